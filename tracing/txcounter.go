package tracing

import "sync"

// TransactionCounter is a Hook that tallies bus transactions by tag
// ("BusRd", "BusRdX", ...) system-wide, independent of any one cache's
// own busRd/busRdX/busUpgr/flush counters. The monitoring HTTP server
// exposes this as aggregate bus activity.
type TransactionCounter struct {
	mu    sync.Mutex
	names []string
	count map[string]uint64
}

// NewTransactionCounter creates an empty counter.
func NewTransactionCounter() *TransactionCounter {
	return &TransactionCounter{count: make(map[string]uint64)}
}

// Func implements Hook.
func (c *TransactionCounter) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeResponse {
		return
	}
	tag, ok := ctx.Item.(string)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, seen := c.count[tag]; !seen {
		c.names = append(c.names, tag)
	}
	c.count[tag]++
}

// Snapshot returns a copy of the tag -> count table.
func (c *TransactionCounter) Snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]uint64, len(c.count))
	for _, name := range c.names {
		out[name] = c.count[name]
	}
	return out
}
