package mesi

import "fmt"

// TxType is the kind of a bus transaction.
type TxType int

// The five bus transaction kinds the interconnect understands.
const (
	BusRd TxType = iota
	BusRdX
	BusUpgr
	Flush
	Inv
)

// String renders a TxType the way the stepper's pause tag does
// ("BusRd", "BusRdX", "BusUpgr", "Inv", "Flush").
func (t TxType) String() string {
	switch t {
	case BusRd:
		return "BusRd"
	case BusRdX:
		return "BusRdX"
	case BusUpgr:
		return "BusUpgr"
	case Flush:
		return "Flush"
	case Inv:
		return "Inv"
	default:
		return "?"
	}
}

// Transaction is a bus request: created by a cache, consumed
// synchronously by the interconnect, and discarded after the response
// (if any) is delivered. Payload only carries meaningful data for Flush.
type Transaction struct {
	Type    TxType
	Addr    uint64
	Payload [LineSize]byte
	SrcPE   int
}

func (t Transaction) String() string {
	return fmt.Sprintf("%s(addr=%#x, src=%d)", t.Type, t.Addr, t.SrcPE)
}

// Bus is the capability a cache needs from its interconnect: emit a
// transaction and block until the bus (and every snoop/response/flush it
// triggers) has fully completed. Modeled as a one-method capability
// trait rather than a concrete type so caches and the real bus.Bus can
// be wired without an import cycle (see bus.Cache for the reverse
// direction).
type Bus interface {
	Emit(t Transaction)
}

// LineBase returns the 32-byte-aligned base address of addr.
func LineBase(addr uint64) uint64 {
	return addr &^ (LineSize - 1)
}
