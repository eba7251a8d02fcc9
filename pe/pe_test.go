package pe_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yaritzaelena/ArquitecturaII-2-2025/pe"
)

// flatMemory is a trivial MemoryPort backed by a byte slice, used to
// unit test the ISA without wiring a real cache/bus.
type flatMemory struct {
	data []byte
}

func newFlatMemory(size int) *flatMemory {
	return &flatMemory{data: make([]byte, size)}
}

func (m *flatMemory) Load64(addr uint64) uint64 {
	return binLE(m.data[addr : addr+8])
}

func (m *flatMemory) Store64(addr uint64, value uint64) {
	putBinLE(m.data[addr:addr+8], value)
}

func binLE(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func putBinLE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}

func TestIncDecJNZLoop(t *testing.T) {
	mem := newFlatMemory(64)
	p := pe.New(0, mem)
	p.LoadProgram(pe.Program{
		{Op: pe.INC, D: 0},
		{Op: pe.DEC, D: 1},
		{Op: pe.JNZ, D: 1, Imm: -2},
		{Op: pe.HALT},
	})
	p.R[1] = 5
	p.Run(0)

	require.Equal(t, uint64(5), p.R[0])
	require.Equal(t, uint64(0), p.R[1])
}

func TestLoadStoreRoundTrip(t *testing.T) {
	mem := newFlatMemory(64)
	p := pe.New(0, mem)
	p.R[1] = 0  // address of source
	p.R[2] = 8  // address of destination
	mem.Store64(0, 0xCAFEBABE)

	p.LoadProgram(pe.Program{
		{Op: pe.LOAD, D: 0, A: 1},
		{Op: pe.STORE, D: 0, A: 2},
		{Op: pe.HALT},
	})
	p.Run(0)

	require.Equal(t, uint64(0xCAFEBABE), mem.Load64(8))
}

func TestFMULFADD(t *testing.T) {
	mem := newFlatMemory(8)
	p := pe.New(0, mem)
	p.R[0] = math.Float64bits(2.5)
	p.R[1] = math.Float64bits(4.0)
	p.R[2] = math.Float64bits(1.0)

	p.LoadProgram(pe.Program{
		{Op: pe.FMUL, D: 3, A: 0, B: 1}, // R3 = 2.5*4.0 = 10.0
		{Op: pe.FADD, D: 3, A: 3, B: 2}, // R3 += 1.0 = 11.0
		{Op: pe.HALT},
	})
	p.Run(0)

	require.Equal(t, 11.0, math.Float64frombits(p.R[3]))
	require.Equal(t, p.R, p.Registers(), "Registers must mirror the live register file")
}

func TestLEA(t *testing.T) {
	mem := newFlatMemory(8)
	p := pe.New(0, mem)
	p.R[1] = 100
	p.R[2] = 3
	p.LoadProgram(pe.Program{
		{Op: pe.LEA, D: 0, A: 1, B: 2, Imm: 3}, // R0 = 100 + (3<<3) = 124
		{Op: pe.HALT},
	})
	p.Run(0)

	require.Equal(t, uint64(124), p.R[0])
}

func TestMaxStepsBudget(t *testing.T) {
	mem := newFlatMemory(8)
	p := pe.New(0, mem)
	p.LoadProgram(pe.Program{
		{Op: pe.INC, D: 0},
		{Op: pe.JNZ, D: 0, Imm: -1}, // infinite loop without a step budget
	})
	p.Run(10)

	require.LessOrEqual(t, p.R[0], uint64(10))
}

func TestUndefinedOpcodeHaltsSilently(t *testing.T) {
	mem := newFlatMemory(8)
	p := pe.New(0, mem)
	p.LoadProgram(pe.Program{
		{Op: pe.Op(200)},
	})
	require.NotPanics(t, func() { p.Run(0) })
}

func TestSetSegment(t *testing.T) {
	mem := newFlatMemory(8)
	p := pe.New(0, mem)
	p.SetSegment(0, 1984, 3968, 62)

	require.Equal(t, uint64(0), p.R[0])
	require.Equal(t, uint64(0), p.R[1])
	require.Equal(t, uint64(1984), p.R[2])
	require.Equal(t, math.Float64bits(0.0), p.R[3])
	require.Equal(t, uint64(3968), p.R[5])
	require.Equal(t, uint64(62), p.R[7])
}

func TestDotProductProgramConverges(t *testing.T) {
	const n = 8
	mem := newFlatMemory(256)

	baseA, baseB, out := uint64(0), uint64(64), uint64(128)
	for i := 0; i < n; i++ {
		mem.Store64(baseA+uint64(i)*8, math.Float64bits(float64(i+1)))
		mem.Store64(baseB+uint64(i)*8, math.Float64bits(0.5*float64(i+1)))
	}

	p := pe.New(0, mem)
	p.LoadProgram(pe.DotProductProgram())
	p.SetSegment(baseA, baseB, out, n)
	p.Run(0)

	got := math.Float64frombits(mem.Load64(out))
	want := 0.0
	for i := 0; i < n; i++ {
		want += float64(i+1) * (0.5 * float64(i+1))
	}
	require.InDelta(t, want, got, 1e-9)
}
