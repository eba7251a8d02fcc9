// Package tracing holds the instrumentation plumbing shared by the bus,
// caches, and driver: a generic hook mechanism for pausing/observing bus
// transactions (the interactive stepper builds on it), plus CSV and
// SQLite exporters for the per-cache metrics the driver reports.
package tracing

import "sync"

// HookPos names a point in the bus's transaction lifecycle at which a
// hook may be invoked.
type HookPos struct {
	Name string
}

// HookPosBeforeResponse fires just before the bus delivers a data
// response or returns from a transaction with no response (Flush,
// Inv, BusUpgr) — the one pause point the stepper needs. For BusRd and
// BusRdX every snoop and the SHM read have run by then and the source
// cache has not yet installed the response; a Flush fires it from
// inside the snoop or install that emitted it, before that cache
// updates its own line.
var HookPosBeforeResponse = &HookPos{Name: "BeforeResponse"}

// HookCtx carries what a hook needs to know about the site it fired at.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{} // the transaction tag, e.g. "BusRd"
	Detail interface{}
}

// Hookable is anything that accepts hooks — the bus, in practice.
type Hookable interface {
	AcceptHook(hook Hook)
}

// Hook is invoked by a Hookable at its instrumentation points.
type Hook interface {
	Func(ctx HookCtx)
}

// HookableBase is embedded by Hookable implementations for the
// bookkeeping every one of them needs.
type HookableBase struct {
	mu    sync.Mutex
	hooks []Hook
}

// NewHookableBase creates an empty HookableBase.
func NewHookableBase() *HookableBase {
	return &HookableBase{}
}

// AcceptHook registers a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// InvokeHook runs every registered hook in registration order. Safe to
// call with zero hooks registered; Scenario F (stepper neutrality)
// relies on this path being free of side effects on its own.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	h.mu.Lock()
	hooks := make([]Hook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	for _, hook := range hooks {
		hook.Func(ctx)
	}
}
