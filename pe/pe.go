// Package pe implements the tiny register machine that drives the
// coherence protocol: eight 64-bit registers, a nine-opcode
// instruction set, and the segment convention the dot-product
// benchmark uses to assign each PE its share of the work.
package pe

import "math"

// Op is one of the nine opcodes the machine understands.
type Op uint8

// The instruction set.
const (
	LOAD Op = iota
	STORE
	FMUL
	FADD
	INC
	DEC
	JNZ
	LEA
	HALT
)

// Instr is one instruction. Not every opcode uses every field:
//   - LOAD  d, a        R[d] = mem.Load64(R[a])
//   - STORE d, a        mem.Store64(R[a], R[d])
//   - FMUL  d, a, b     R[d] = bits(double(R[a]) * double(R[b]))
//   - FADD  d, a, b     R[d] = bits(double(R[a]) + double(R[b]))
//   - INC   d           R[d]++
//   - DEC   d           R[d]--
//   - JNZ   d, imm      if R[d] != 0 { pc += imm } else { pc++ }
//   - LEA   d, a, b, imm  R[d] = R[a] + (R[b] << imm)
//   - HALT              stop
type Instr struct {
	Op      Op
	D, A, B uint8
	Imm     int64
}

// Program is an immutable instruction sequence.
type Program []Instr

// MemoryPort is the 8-byte load/store interface a PE drives.
type MemoryPort interface {
	Load64(addr uint64) uint64
	Store64(addr uint64, value uint64)
}

// PE is one processing element: its registers, program counter, and
// the memory port it executes loads and stores through.
type PE struct {
	ID   int
	mem  MemoryPort
	prog Program
	pc   uint64
	R    [8]uint64
}

// New creates a PE with all registers zeroed.
func New(id int, mem MemoryPort) *PE {
	return &PE{ID: id, mem: mem}
}

// LoadProgram installs prog and resets the program counter.
func (p *PE) LoadProgram(prog Program) {
	p.prog = prog
	p.pc = 0
}

// SetSegment initialises R0..R7 for the dot-product loop: R0 is the
// loop index, R1/R2 are the bases of this PE's slice of A and B, R3 is
// the running accumulator (+0.0), R5 is the output address, R7 is the
// iteration count, and R4/R6 are scratch.
func (p *PE) SetSegment(baseA, baseB, partialOut, length uint64) {
	p.R[0] = 0
	p.R[1] = baseA
	p.R[2] = baseB
	p.R[3] = math.Float64bits(0.0)
	p.R[5] = partialOut
	p.R[7] = length
}

// Run executes until HALT, until the program counter runs past the end
// of the program, or until maxSteps instructions have executed
// (maxSteps == 0 means unbounded). An undefined opcode or an
// out-of-range PC halts execution silently, matching the machine's
// no-runtime-error-surface contract.
func (p *PE) Run(maxSteps uint64) {
	var steps uint64
	for {
		if p.pc >= uint64(len(p.prog)) {
			return
		}
		halted := p.step()
		if halted {
			return
		}
		steps++
		if maxSteps != 0 && steps >= maxSteps {
			return
		}
	}
}

func (p *PE) step() (halted bool) {
	ins := p.prog[p.pc]

	switch ins.Op {
	case HALT:
		return true

	case LOAD:
		addr := p.R[ins.A]
		p.R[ins.D] = p.mem.Load64(addr)
		p.pc++

	case STORE:
		addr := p.R[ins.A]
		p.mem.Store64(addr, p.R[ins.D])
		p.pc++

	case FMUL:
		a := math.Float64frombits(p.R[ins.A])
		b := math.Float64frombits(p.R[ins.B])
		p.R[ins.D] = math.Float64bits(a * b)
		p.pc++

	case FADD:
		a := math.Float64frombits(p.R[ins.A])
		b := math.Float64frombits(p.R[ins.B])
		p.R[ins.D] = math.Float64bits(a + b)
		p.pc++

	case INC:
		p.R[ins.D]++
		p.pc++

	case DEC:
		p.R[ins.D]--
		p.pc++

	case JNZ:
		if p.R[ins.D] != 0 {
			p.pc = uint64(int64(p.pc) + ins.Imm)
		} else {
			p.pc++
		}

	case LEA:
		p.R[ins.D] = p.R[ins.A] + (p.R[ins.B] << ins.Imm)
		p.pc++

	default:
		return true
	}

	return false
}

// Registers returns a copy of the current register file.
func (p *PE) Registers() [8]uint64 {
	return p.R
}

// DotProductProgram builds the loop every PE in the dot-product
// benchmark runs: for each of R7 iterations, compute A[i]*B[i] via LEA
// and LOAD into scratch registers, accumulate in R3, then store R3 at
// R5 once the loop ends.
func DotProductProgram() Program {
	return Program{
		{Op: LEA, D: 4, A: 1, B: 0, Imm: 3},  // R4 = &A[i] = R1 + (R0<<3)
		{Op: LEA, D: 6, A: 2, B: 0, Imm: 3},  // R6 = &B[i] = R2 + (R0<<3)
		{Op: LOAD, D: 4, A: 4},               // R4 = A[i]
		{Op: LOAD, D: 6, A: 6},               // R6 = B[i]
		{Op: FMUL, D: 4, A: 4, B: 6},         // R4 = A[i] * B[i]
		{Op: FADD, D: 3, A: 3, B: 4},         // acc += R4
		{Op: INC, D: 0},                      // i++
		{Op: DEC, D: 7},                      // remaining--
		{Op: JNZ, D: 7, Imm: -8},             // loop while R7 != 0
		{Op: STORE, D: 3, A: 5},              // [partial_out] = acc
		{Op: HALT},
	}
}
