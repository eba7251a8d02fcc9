// Package bus implements the snooping interconnect: the single
// serialisation point through which every cache miss, upgrade, and
// write-back passes.
package bus

import (
	"sync"

	"github.com/yaritzaelena/ArquitecturaII-2-2025/mesi"
	"github.com/yaritzaelena/ArquitecturaII-2-2025/shm"
	"github.com/yaritzaelena/ArquitecturaII-2-2025/tracing"
)

// Cache is the capability the bus needs from a connected cache: react
// to a peer's transaction, answer whether it holds a line, and accept
// a data response to its own outstanding request. mesi.Cache satisfies
// this without either package importing the other — see mesi.Bus for
// the matching capability the cache needs from the bus.
type Cache interface {
	OnSnoop(t mesi.Transaction)
	OnDataResponse(addr uint64, data [mesi.LineSize]byte, shared bool)
	HasLine(addr uint64) bool
}

// Bus is the interconnect: one mutex, one shared-memory handle, one
// flush staging table, and the set of attached caches indexed by PE id.
type Bus struct {
	tracing.HookableBase

	mu     sync.Mutex
	caches []Cache
	shm    *shm.SharedMemory
	stage  map[uint64][mesi.LineSize]byte

	txLog *tracing.SQLiteTxLog
}

// New creates a Bus backed by the given shared memory.
func New(sharedMem *shm.SharedMemory) *Bus {
	return &Bus{
		shm:   sharedMem,
		stage: make(map[uint64][mesi.LineSize]byte),
	}
}

// AttachCache registers the cache for PE id pe. Caches must be attached
// before any transaction referencing that PE is emitted.
func (b *Bus) AttachCache(pe int, c Cache) {
	for len(b.caches) <= pe {
		b.caches = append(b.caches, nil)
	}
	b.caches[pe] = c
}

// AttachTxLog wires an optional SQLite transaction log; every emitted
// transaction is recorded to it in addition to the in-memory metrics.
func (b *Bus) AttachTxLog(log *tracing.SQLiteTxLog) {
	b.txLog = log
}

// Emit processes one bus transaction to completion, including every
// snoop, SHM access, and response delivery it triggers, before
// returning.
//
// Flush is the one exception to "Emit takes the lock": a Flush is
// only ever emitted by a cache already running inside this very bus's
// critical section (a snoop handler downgrading/invalidating an M
// line, or an install-time eviction of a dirty victim — see mesi.Cache).
// Since Go's sync.Mutex is not reentrant, Emit must not lock again for
// a nested Flush; it is structurally guaranteed that every Flush call
// arrives this way; this is the reentrancy §9's design notes call for,
// achieved by construction rather than by a reentrant lock primitive.
func (b *Bus) Emit(t mesi.Transaction) {
	if t.Type == mesi.Flush {
		b.handleFlush(t)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch t.Type {
	case mesi.BusRd:
		b.handleBusRd(t)
	case mesi.BusRdX:
		b.handleBusRdX(t)
	case mesi.BusUpgr, mesi.Inv:
		b.handleInvalidate(t)
	}
}

func (b *Bus) handleFlush(t mesi.Transaction) {
	base := mesi.LineBase(t.Addr)
	b.stage[base] = t.Payload
	b.shm.Write(base, t.Payload[:], mesi.LineSize, t.SrcPE)
	b.trace(t)
}

func (b *Bus) handleInvalidate(t mesi.Transaction) {
	b.snoopOthers(t)
	b.trace(t)
}

func (b *Bus) handleBusRd(t mesi.Transaction) {
	b.snoopOthers(t)
	shared := b.anyPeerResident(t)
	line := b.sourceLine(t.Addr, t.SrcPE)
	b.trace(t)

	src := b.caches[t.SrcPE]
	src.OnDataResponse(t.Addr, line, shared)
}

func (b *Bus) handleBusRdX(t mesi.Transaction) {
	b.snoopOthers(t)
	line := b.sourceLine(t.Addr, t.SrcPE)
	b.trace(t)

	src := b.caches[t.SrcPE]
	src.OnDataResponse(t.Addr, line, false)
}

// snoopOthers delivers t to every attached cache except its source.
func (b *Bus) snoopOthers(t mesi.Transaction) {
	for pe, c := range b.caches {
		if pe == t.SrcPE || c == nil {
			continue
		}
		c.OnSnoop(t)
	}
}

// anyPeerResident reports whether some cache other than the source
// still holds a coherent line for t.Addr. Called after snoopOthers, so
// a peer that just downgraded from M/E to S during the snoop above
// counts as resident — this is what makes a BusRd's response come
// back shared.
func (b *Bus) anyPeerResident(t mesi.Transaction) bool {
	for pe, c := range b.caches {
		if pe == t.SrcPE || c == nil {
			continue
		}
		if c.HasLine(t.Addr) {
			return true
		}
	}
	return false
}

// sourceLine fetches the 32 bytes to answer a BusRd/BusRdX with: the
// staging slot left by a same-transaction snoop-induced flush if one
// exists, otherwise shared memory. A failed SHM read defensively
// yields an all-zero line rather than propagating an error the cache
// has no contract to handle.
func (b *Bus) sourceLine(addr uint64, requester int) [mesi.LineSize]byte {
	base := mesi.LineBase(addr)
	if data, ok := b.stage[base]; ok {
		delete(b.stage, base)
		return data
	}

	var out [mesi.LineSize]byte
	status, bytes := b.shm.Read(base, mesi.LineSize, requester)
	if status == shm.OK {
		copy(out[:], bytes)
	}
	return out
}

// trace fires the hook (stepper, aggregate counters, ...) and the
// optional SQLite log for a completed transaction.
func (b *Bus) trace(t mesi.Transaction) {
	tag := t.Type.String()
	b.InvokeHook(tracing.HookCtx{
		Domain: b,
		Pos:    tracing.HookPosBeforeResponse,
		Item:   tag,
		Detail: t,
	})
	if b.txLog != nil {
		b.txLog.Record(tag, t.Addr, t.SrcPE)
	}
}
