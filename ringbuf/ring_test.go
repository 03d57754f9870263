package ringbuf

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// testRing backs a ring with plain heap memory, standing in for the
// kernel's shared pages. The data slice is doubled the way the kernel
// double-maps it, so writes past the ring's end land at the start too.
type testRing struct {
	*ring
	cons uint64
	prod uint64
	size uint64
}

func newTestRing(size uint64) *testRing {
	tr := &testRing{size: size}
	tr.ring = newRing(&tr.cons, &tr.prod, make([]byte, 2*size), size)

	return tr
}

// produce appends one committed record the way the kernel producer
// does: header then payload, padded to 8 bytes, at both images of the
// double-mapped offset.
func (tr *testRing) produce(t *testing.T, sample []byte, flags uint32) {
	t.Helper()

	total := headerSize + roundUp8(uint32(len(sample)))
	require.LessOrEqual(t, tr.prod+total-tr.cons, tr.size, "test ring overflow")

	off := tr.prod & tr.mask

	rec := make([]byte, total)
	binary.LittleEndian.PutUint32(rec, uint32(len(sample))|flags)
	copy(rec[headerSize:], sample)

	for i, b := range rec {
		pos := (off + uint64(i)) & tr.mask
		tr.data[pos] = b
		tr.data[pos+tr.size] = b
	}

	tr.prod += total
}

func TestRingDeliversInOrder(t *testing.T) {
	t.Parallel()

	tr := newTestRing(4096)

	want := [][]byte{
		[]byte("first"),
		[]byte("second record"),
		{0xde, 0xad},
	}
	for _, s := range want {
		tr.produce(t, s, 0)
	}

	for _, w := range want {
		got, err := tr.next()
		require.NoError(t, err)
		require.Equal(t, w, got)
	}

	_, err := tr.next()
	require.ErrorIs(t, err, ErrNoRecords)
}

func TestRingPublishesConsumerCursor(t *testing.T) {
	t.Parallel()

	tr := newTestRing(4096)
	tr.produce(t, []byte("abc"), 0)

	_, err := tr.next()
	require.NoError(t, err)

	// 8-byte header plus "abc" padded to 8.
	require.Equal(t, uint64(16), tr.cons)
	require.Equal(t, tr.prod, tr.cons)
}

func TestRingSkipsDiscardedRecords(t *testing.T) {
	t.Parallel()

	tr := newTestRing(4096)

	tr.produce(t, []byte("keep-1"), 0)
	tr.produce(t, []byte("cancelled"), discardBit)
	tr.produce(t, []byte("keep-2"), 0)

	got, err := tr.next()
	require.NoError(t, err)
	require.Equal(t, []byte("keep-1"), got)

	got, err = tr.next()
	require.NoError(t, err)
	require.Equal(t, []byte("keep-2"), got)

	_, err = tr.next()
	require.ErrorIs(t, err, ErrNoRecords)

	// The discarded reservation's space was acknowledged too.
	require.Equal(t, tr.prod, tr.cons)
}

func TestRingStopsAtBusyRecord(t *testing.T) {
	t.Parallel()

	tr := newTestRing(4096)
	tr.produce(t, []byte("still being written"), busyBit)

	_, err := tr.next()
	require.ErrorIs(t, err, ErrNoRecords)

	// Nothing may be acknowledged past an uncommitted reservation.
	require.Zero(t, tr.cons)
	require.True(t, tr.pending())
}

func TestRingWrapsAround(t *testing.T) {
	t.Parallel()

	const size = 64

	tr := newTestRing(size)

	// Fill most of the ring, consume, then produce a record that
	// straddles the wrap point.
	first := make([]byte, 40)
	for i := range first {
		first[i] = byte(i)
	}

	tr.produce(t, first, 0)

	got, err := tr.next()
	require.NoError(t, err)
	require.Equal(t, first, got)

	wrapped := []byte("wrapped-payload")
	tr.produce(t, wrapped, 0)

	got, err = tr.next()
	require.NoError(t, err)
	require.Equal(t, wrapped, got)
}

func TestRingEmpty(t *testing.T) {
	t.Parallel()

	tr := newTestRing(4096)

	_, err := tr.next()
	require.ErrorIs(t, err, ErrNoRecords)
	require.False(t, tr.pending())
}

func TestRoundUp8(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint64(0), roundUp8(0))
	require.Equal(t, uint64(8), roundUp8(1))
	require.Equal(t, uint64(8), roundUp8(8))
	require.Equal(t, uint64(16), roundUp8(9))
}
