package shm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadWriteRoundTrip(t *testing.T) {
	m := New()

	data := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0xCA, 0xFE, 0xBA, 0xBE}
	status := m.Write(0x100, data, 8, 0)
	require.Equal(t, OK, status)

	status, out := m.Read(0x100, 8, 0)
	require.Equal(t, OK, status)
	require.Equal(t, data, out)
}

func TestReadOutOfRange(t *testing.T) {
	m := New()

	status, out := m.Read(Capacity-4, 8, -1)
	require.Equal(t, OutOfRange, status)
	require.Nil(t, out)

	status, out = m.Read(0, 0, -1)
	require.Equal(t, OutOfRange, status)
	require.Nil(t, out)
}

func TestWriteOutOfRange(t *testing.T) {
	m := New()
	status := m.Write(Capacity+1, []byte{1}, 1, -1)
	require.Equal(t, OutOfRange, status)
}

func TestWriteShortPayload(t *testing.T) {
	m := New()
	status := m.Write(0, []byte{1, 2}, 4, -1)
	require.Equal(t, ShortPayload, status)
}

func TestNoPartialWriteOnError(t *testing.T) {
	m := New()
	m.Write(0x200, []byte{1, 2, 3, 4, 5, 6, 7, 8}, 8, 0)

	// A short-payload write at the same address must not clobber it.
	status := m.Write(0x200, []byte{9, 9}, 8, 0)
	require.Equal(t, ShortPayload, status)

	_, out := m.Read(0x200, 8, -1)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, out)
}

func TestPerPEAccounting(t *testing.T) {
	m := New()
	m.Write(0, []byte{1, 2, 3, 4, 5, 6, 7, 8}, 8, 2)
	m.Read(0, 8, 2)
	m.Read(0, 8, 3)

	summary := m.DumpState()
	require.Contains(t, summary, "Total reads: 2, Total writes: 1")

	reads, writes := m.TotalOps()
	require.EqualValues(t, 2, reads)
	require.EqualValues(t, 1, writes)
}

func TestAddressOverflowDoesNotPanic(t *testing.T) {
	m := New()
	status, out := m.Read(^uint64(0), 8, -1)
	require.Equal(t, OutOfRange, status)
	require.Nil(t, out)
}
