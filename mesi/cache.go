// Package mesi implements the per-PE L1 cache: an 8-set, 2-way,
// 32-byte-line, write-allocate write-back cache that keeps itself
// coherent with its peers by emitting and snooping bus transactions.
package mesi

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
)

// Cache is one PE's private L1. Its sets and counters are guarded by an
// internal mutex: the design notes describe every mutation as happening
// "under the bus lock", which is true of cross-cache traffic (emit,
// OnSnoop, OnDataResponse all run while some PE holds the bus's
// lock) but does not by itself serialise this cache's own
// hit path against a concurrent snoop from a peer's transaction, so a
// dedicated mutex is kept here purely for memory safety; it changes no
// observable protocol behaviour.
type Cache struct {
	PE  int
	bus Bus

	mu   sync.Mutex
	sets [Sets]Set

	loads, stores, rwAccesses, cacheMisses, invalidations uint64
	busRd, busRdX, busUpgr, flush                         uint64
	transitions                                           [4][4]uint64
	transitionLog                                         []string
}

// NewCache builds an empty cache for the given PE id, wired to bus.
func NewCache(pe int, bus Bus) *Cache {
	return &Cache{PE: pe, bus: bus}
}

func split(addr uint64) (off, setIdx int, tag uint64) {
	off = int(addr & (LineSize - 1))
	setIdx = int((addr >> 5) & (Sets - 1))
	tag = addr >> 8
	return
}

// Load performs an 8-byte load. completed is false on a miss: the
// caller (the memory port) must call Load again for the same address,
// by which point the bus emission below has already installed the
// line.
func (c *Cache) Load(addr uint64) (value uint64, completed bool) {
	off, setIdx, tag := split(addr)

	c.mu.Lock()
	c.loads++
	c.rwAccesses++
	s := &c.sets[setIdx]
	if way, ok := s.lookup(tag); ok {
		value = binary.LittleEndian.Uint64(s.Way[way].Data[off : off+8])
		s.touch(way)
		c.mu.Unlock()
		return value, true
	}
	c.cacheMisses++
	c.busRd++
	c.mu.Unlock()

	c.bus.Emit(Transaction{Type: BusRd, Addr: addr, SrcPE: c.PE})
	return 0, false
}

// HasLine reports whether this cache currently holds a coherent line
// for addr. The bus uses this, called on every cache but the source
// after a BusRd's snoops have run, to decide the response's shared flag.
func (c *Cache) HasLine(addr uint64) bool {
	_, setIdx, tag := split(addr)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sets[setIdx].lookup(tag)
	return ok
}

// Store performs an 8-byte store. completed is false on a miss (or a
// hit against an Invalid line, which lookup treats identically): the
// caller must call Store again with the same value once the bus has
// answered.
func (c *Cache) Store(addr uint64, value uint64) (completed bool) {
	off, setIdx, tag := split(addr)

	c.mu.Lock()
	c.stores++
	c.rwAccesses++
	s := &c.sets[setIdx]
	way, ok := s.lookup(tag)
	if !ok {
		c.cacheMisses++
		c.busRdX++
		c.mu.Unlock()
		c.bus.Emit(Transaction{Type: BusRdX, Addr: addr, SrcPE: c.PE})
		return false
	}

	line := &s.Way[way]
	switch line.State {
	case Modified:
		binary.LittleEndian.PutUint64(line.Data[off:off+8], value)
		s.touch(way)
		c.mu.Unlock()
		return true

	case Exclusive:
		c.recordTransitionLocked(Exclusive, Modified)
		line.State = Modified
		line.Dirty = true
		binary.LittleEndian.PutUint64(line.Data[off:off+8], value)
		s.touch(way)
		c.mu.Unlock()
		return true

	case Shared:
		c.busUpgr++
		c.mu.Unlock()
		c.bus.Emit(Transaction{Type: BusUpgr, Addr: addr, SrcPE: c.PE})

		// Re-acquire and re-check: while this cache held no lock, a
		// peer could have won the bus first and invalidated this very
		// line with its own upgrade. If so this is no longer a hit;
		// fall through to the caller's mandatory retry, which will
		// take the BusRdX miss path on its next call.
		c.mu.Lock()
		way, ok = s.lookup(tag)
		if !ok {
			c.mu.Unlock()
			return false
		}
		line = &s.Way[way]
		c.recordTransitionLocked(Shared, Modified)
		line.State = Modified
		line.Dirty = true
		binary.LittleEndian.PutUint64(line.Data[off:off+8], value)
		s.touch(way)
		c.mu.Unlock()
		return true

	default: // Invalid: lookup never returns this, kept for exhaustiveness.
		c.mu.Unlock()
		return false
	}
}

// OnDataResponse installs a line delivered by the bus in response to
// this cache's own BusRd or BusRdX. shared selects Shared vs
// Exclusive; a BusRdX-originated response always arrives with
// shared=false (installing Exclusive), and the pending store that
// triggered the miss completes on its next call by hitting the
// now-Exclusive line and upgrading it to Modified itself.
func (c *Cache) OnDataResponse(addr uint64, data [LineSize]byte, shared bool) {
	state := Exclusive
	if shared {
		state = Shared
	}
	c.installLine(addr, data, state)
}

// installLine places data at addr in the requested state, evicting the
// current victim if the set is full. A Modified victim is written back
// to its own line base, rebuilt from its tag and this set's index,
// before its way is overwritten.
func (c *Cache) installLine(addr uint64, data [LineSize]byte, state State) {
	_, setIdx, tag := split(addr)

	c.mu.Lock()
	defer c.mu.Unlock()

	s := &c.sets[setIdx]
	way, ok := s.findFree()
	if !ok {
		way = s.victim()
		victim := &s.Way[way]
		if victim.State == Modified {
			victimBase := victim.Tag<<8 | uint64(setIdx)<<5
			c.bus.Emit(Transaction{Type: Flush, Addr: victimBase, Payload: victim.Data, SrcPE: c.PE})
			c.flush++
		}
	}

	// An install always starts from Invalid, whether the way was free or
	// just evicted; the victim's prior state is not a transition of the
	// newly installed line.
	line := &s.Way[way]
	line.Valid = true
	line.Tag = tag
	line.Data = data
	line.State = state
	line.Dirty = state == Modified
	s.touch(way)
	c.recordTransitionLocked(Invalid, state)
}

// OnSnoop reacts to a transaction emitted by a peer cache, per the
// snoop table: a resident M line always flushes before downgrading or
// invalidating; E and S never flush (a BusRd turns E into S and leaves
// S alone, BusRdX/Inv/BusUpgr invalidate both); a non-resident line is
// untouched.
func (c *Cache) OnSnoop(t Transaction) {
	_, setIdx, tag := split(t.Addr)

	c.mu.Lock()
	defer c.mu.Unlock()

	s := &c.sets[setIdx]
	way, ok := s.resident(tag)
	if !ok {
		return
	}
	line := &s.Way[way]

	switch t.Type {
	case BusRd:
		switch line.State {
		case Modified:
			c.bus.Emit(Transaction{Type: Flush, Addr: LineBase(t.Addr), Payload: line.Data, SrcPE: c.PE})
			c.flush++
			c.recordTransitionLocked(Modified, Shared)
			line.State = Shared
			line.Dirty = false
		case Exclusive:
			c.recordTransitionLocked(Exclusive, Shared)
			line.State = Shared
		}

	case BusRdX, Inv, BusUpgr:
		switch line.State {
		case Modified:
			c.bus.Emit(Transaction{Type: Flush, Addr: LineBase(t.Addr), Payload: line.Data, SrcPE: c.PE})
			c.flush++
			c.recordTransitionLocked(Modified, Invalid)
			line.State = Invalid
			line.Dirty = false
			c.invalidations++
		case Exclusive, Shared:
			c.recordTransitionLocked(line.State, Invalid)
			line.State = Invalid
			c.invalidations++
		}

	case Flush:
		// caches never snoop their peers' flushes.
	}
}

// recordTransitionLocked counts a from->to transition and appends a
// "MESI: f→t" log entry (states as their numeric codes). Caller must
// hold c.mu. It records unconditionally; no caller passes from == to.
func (c *Cache) recordTransitionLocked(from, to State) {
	c.transitions[from][to]++
	c.transitionLog = append(c.transitionLog, fmt.Sprintf("MESI: %d→%d", from, to))
}

// Metrics is a point-in-time, race-free snapshot of a cache's counters.
type Metrics struct {
	PE                                                    int
	Loads, Stores, RWAccesses, CacheMisses, Invalidations uint64
	BusRd, BusRdX, BusUpgr, Flush                         uint64
	Transitions                                           [4][4]uint64
	TransitionLog                                         []string
}

// JoinedTransitions renders the transition log the way cache_stats.csv
// wants its Transitions column: "; "-joined "MESI: f->t" entries.
func (m Metrics) JoinedTransitions() string {
	return strings.Join(m.TransitionLog, "; ")
}

// Snapshot copies out the current metrics under lock.
func (c *Cache) Snapshot() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := make([]string, len(c.transitionLog))
	copy(log, c.transitionLog)

	return Metrics{
		PE:            c.PE,
		Loads:         c.loads,
		Stores:        c.stores,
		RWAccesses:    c.rwAccesses,
		CacheMisses:   c.cacheMisses,
		Invalidations: c.invalidations,
		BusRd:         c.busRd,
		BusRdX:        c.busRdX,
		BusUpgr:       c.busUpgr,
		Flush:         c.flush,
		Transitions:   c.transitions,
		TransitionLog: log,
	}
}

// DumpState renders every set/line for the interactive stepper.
func (c *Cache) DumpState() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "=== Cache PE%d ===\n", c.PE)
	for i := range c.sets {
		set := &c.sets[i]
		fmt.Fprintf(&b, "set %d: way0=%s way1=%s\n", i, set.Way[0].String(), set.Way[1].String())
	}
	return b.String()
}
