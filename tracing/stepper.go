package tracing

import (
	"bufio"
	"fmt"
	"io"
)

// Dumper can render its current state for the interactive stepper —
// caches and shared memory both implement this with their DumpState
// methods.
type Dumper interface {
	DumpState() string
}

// Stepper is a Hook that pauses the driver between bus events in
// --mode=demo, printing the transaction tag and every attached
// Dumper's state, then blocking for a newline on in before letting the
// bus continue. It holds no reference to the bus or any cache beyond
// the Dumper interface, so attaching or detaching a Stepper changes
// nothing about how a transaction is processed.
type Stepper struct {
	in      *bufio.Reader
	out     io.Writer
	dumpers []Dumper
	enabled bool
}

// NewStepper creates a Stepper reading confirmation keystrokes from in
// and writing its dumps to out.
func NewStepper(in io.Reader, out io.Writer) *Stepper {
	return &Stepper{
		in:      bufio.NewReader(in),
		out:     out,
		enabled: true,
	}
}

// Attach registers a Dumper to be printed at every pause.
func (s *Stepper) Attach(d Dumper) {
	s.dumpers = append(s.dumpers, d)
}

// SetEnabled toggles pausing without detaching the stepper; used by
// --nostep, which still wants everything wired but silent.
func (s *Stepper) SetEnabled(enabled bool) {
	s.enabled = enabled
}

// Func implements Hook. It only fires at HookPosBeforeResponse.
func (s *Stepper) Func(ctx HookCtx) {
	if !s.enabled || ctx.Pos != HookPosBeforeResponse {
		return
	}

	tag, _ := ctx.Item.(string)
	fmt.Fprintf(s.out, "\n--- pausing before %s ---\n", tag)
	for _, d := range s.dumpers {
		fmt.Fprint(s.out, d.DumpState())
	}
	fmt.Fprint(s.out, "press Enter to continue... ")
	s.in.ReadString('\n')
}
