package mesi

// Builder configures and constructs a Cache with a fluent, chainable
// API (value receivers throughout, so each With* call returns an
// independent, fully configured copy).
type Builder struct {
	pe   int
	bus  Bus
	seed []seedLine
}

type seedLine struct {
	addr  uint64
	data  [LineSize]byte
	state State
}

// MakeBuilder creates a builder with no PE id and no bus attached yet;
// both must be set via WithPE/WithBus before Build.
func MakeBuilder() Builder {
	return Builder{}
}

// WithPE sets the owning PE id.
func (b Builder) WithPE(pe int) Builder {
	b.pe = pe
	return b
}

// WithBus sets the interconnect this cache will emit transactions to.
func (b Builder) WithBus(bus Bus) Builder {
	b.bus = bus
	return b
}

// WithPreloadedLine seeds the built cache with a line already resident
// in the given state, bypassing the usual miss/install path. Intended
// for tests that need to start from a specific coherence state rather
// than replaying the bus traffic that would produce it.
func (b Builder) WithPreloadedLine(addr uint64, data [LineSize]byte, state State) Builder {
	b.seed = append(append([]seedLine{}, b.seed...), seedLine{addr: addr, data: data, state: state})
	return b
}

// Build constructs the configured Cache.
func (b Builder) Build() *Cache {
	c := NewCache(b.pe, b.bus)
	for _, sl := range b.seed {
		_, setIdx, tag := split(sl.addr)
		way, ok := c.sets[setIdx].findFree()
		if !ok {
			way = c.sets[setIdx].victim()
		}
		line := &c.sets[setIdx].Way[way]
		line.Valid = true
		line.Tag = tag
		line.Data = sl.data
		line.State = sl.state
		line.Dirty = sl.state == Modified
		c.sets[setIdx].touch(way)
	}
	return c
}
