// Package port adapts a PE's 8-byte load64/store64 interface to its
// cache's retry-on-miss contract, and keeps the per-port access counts
// the driver reports alongside each cache's own metrics.
package port

// Cache is the retry-on-miss contract a port drives: false means the
// bus has to run once before the operation completes.
type Cache interface {
	Load(addr uint64) (value uint64, completed bool)
	Store(addr uint64, value uint64) (completed bool)
}

// Port is one PE's adapter onto its private cache.
type Port struct {
	cache  Cache
	loads  uint64
	stores uint64
}

// New creates a Port in front of cache.
func New(cache Cache) *Port {
	return &Port{cache: cache}
}

// Load64 retries Load until it completes. Because the bus is
// synchronous under its own lock, at most one retry is ever needed,
// but the loop makes no assumption about that and simply retries until
// told to stop.
func (p *Port) Load64(addr uint64) uint64 {
	p.loads++
	for {
		if value, ok := p.cache.Load(addr); ok {
			return value
		}
	}
}

// Store64 retries Store until it completes.
func (p *Port) Store64(addr uint64, value uint64) {
	p.stores++
	for {
		if ok := p.cache.Store(addr, value); ok {
			return
		}
	}
}

// Counts returns the number of Load64/Store64 calls served so far.
func (p *Port) Counts() (loads, stores uint64) {
	return p.loads, p.stores
}
