package mesi

import "fmt"

// State is a MESI line state.
type State uint8

// The four MESI states. The numeric values match the "0,1,2,3" encoding
// the driver's CSV export uses for Transitions (I=0, S=1, E=2, M=3).
const (
	Invalid State = iota
	Shared
	Exclusive
	Modified
)

// String renders a State the way the transition log does.
func (s State) String() string {
	switch s {
	case Invalid:
		return "I"
	case Shared:
		return "S"
	case Exclusive:
		return "E"
	case Modified:
		return "M"
	default:
		return "?"
	}
}

// LineSize is the fixed cache line payload size in bytes.
const LineSize = 32

// Line is one way of a set: a tag, a MESI state, and its 32-byte payload.
//
// Invariant: dirty implies state == Modified (enforced by every mutator
// in this package; see cache.go).
type Line struct {
	Valid bool
	Dirty bool
	State State
	Tag   uint64
	Data  [LineSize]byte
}

func (l *Line) String() string {
	return fmt.Sprintf("{valid=%v dirty=%v state=%s tag=%#x}",
		l.Valid, l.Dirty, l.State, l.Tag)
}
