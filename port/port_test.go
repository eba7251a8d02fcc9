package port_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yaritzaelena/ArquitecturaII-2-2025/port"
)

// retryNCache completes a Load/Store only after misses calls, simulating
// the bus's synchronous miss-then-hit discipline without wiring a real
// cache/bus pair.
type retryNCache struct {
	misses       int
	loadAttempt  int
	storeAttempt int
	stored       uint64
}

func (c *retryNCache) Load(addr uint64) (uint64, bool) {
	c.loadAttempt++
	if c.loadAttempt <= c.misses {
		return 0, false
	}
	return c.stored, true
}

func (c *retryNCache) Store(addr uint64, value uint64) bool {
	c.storeAttempt++
	if c.storeAttempt <= c.misses {
		return false
	}
	c.stored = value
	return true
}

func TestLoad64RetriesUntilComplete(t *testing.T) {
	cache := &retryNCache{misses: 1, stored: 42}
	p := port.New(cache)

	got := p.Load64(0x10)
	require.Equal(t, uint64(42), got)
	require.Equal(t, 2, cache.loadAttempt)

	loads, stores := p.Counts()
	require.EqualValues(t, 1, loads)
	require.EqualValues(t, 0, stores)
}

func TestStore64RetriesUntilComplete(t *testing.T) {
	cache := &retryNCache{misses: 1}
	p := port.New(cache)

	p.Store64(0x10, 99)
	require.Equal(t, uint64(99), cache.stored)
	require.Equal(t, 2, cache.storeAttempt)

	loads, stores := p.Counts()
	require.EqualValues(t, 0, loads)
	require.EqualValues(t, 1, stores)
}

func TestLoad64NoMissesCompletesFirstTry(t *testing.T) {
	cache := &retryNCache{misses: 0, stored: 7}
	p := port.New(cache)

	got := p.Load64(0x0)
	require.Equal(t, uint64(7), got)
	require.Equal(t, 1, cache.loadAttempt)
}
