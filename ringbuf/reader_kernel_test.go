package ringbuf

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tcassar-diss/rawbpf/bpf"
	"github.com/tcassar-diss/rawbpf/sys"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

func newTestReader(t *testing.T) *Reader {
	t.Helper()

	m, err := bpf.NewMap(bpf.MapSpec{
		Name:       "reader_test",
		Type:       bpf.MapTypeRingBuf,
		MaxEntries: 1 << 16,
	})
	if errors.Is(err, sys.ErrPermissionDenied) || errors.Is(err, unix.ENOSYS) {
		t.Skipf("bpf(2) unavailable: %v", err)
	}

	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	r, err := NewReader(zap.NewNop().Sugar(), m)
	require.NoError(t, err)

	return r
}

func TestPollZeroTimeoutNeverBlocks(t *testing.T) {
	r := newTestReader(t)
	defer r.Close()

	start := time.Now()

	_, err := r.Poll(0)
	require.ErrorIs(t, err, ErrDeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestPollTimesOutOnEmptyRing(t *testing.T) {
	r := newTestReader(t)
	defer r.Close()

	start := time.Now()

	_, err := r.Poll(50 * time.Millisecond)
	require.ErrorIs(t, err, ErrDeadlineExceeded)

	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	require.Less(t, elapsed, 2*time.Second)
}

func TestReaderCloseOnce(t *testing.T) {
	r := newTestReader(t)

	require.NoError(t, r.Close())
	require.ErrorIs(t, r.Close(), ErrClosed)

	_, err := r.Read()
	require.ErrorIs(t, err, ErrClosed)
}

func TestReaderRejectsNonRingBuf(t *testing.T) {
	m, err := bpf.NewMap(bpf.MapSpec{
		Name:       "not_a_ring",
		Type:       bpf.MapTypeArray,
		KeySize:    4,
		ValueSize:  4,
		MaxEntries: 1,
	})
	if errors.Is(err, sys.ErrPermissionDenied) || errors.Is(err, unix.ENOSYS) {
		t.Skipf("bpf(2) unavailable: %v", err)
	}

	require.NoError(t, err)
	defer m.Close()

	_, err = NewReader(zap.NewNop().Sugar(), m)
	require.ErrorIs(t, err, ErrNotRingBuf)
}
