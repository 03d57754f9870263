package bpf

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tcassar-diss/rawbpf/sys"
	"golang.org/x/sys/unix"
)

// mustMap creates a live kernel map, skipping the test when the
// environment lacks bpf(2) privileges.
func mustMap(t *testing.T, spec MapSpec) *Map {
	t.Helper()

	m, err := NewMap(spec)
	if errors.Is(err, sys.ErrPermissionDenied) || errors.Is(err, unix.ENOSYS) {
		t.Skipf("bpf(2) unavailable: %v", err)
	}

	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	return m
}

func u32b(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func TestHashMapLifecycle(t *testing.T) {
	m := mustMap(t, MapSpec{
		Name:       "lifecycle",
		Type:       MapTypeHash,
		KeySize:    4,
		ValueSize:  4,
		MaxEntries: 8,
	})

	key := u32b(7)

	_, err := m.Lookup(key)
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, m.Update(key, u32b(42), UpdateNoExist))

	err = m.Update(key, u32b(43), UpdateNoExist)
	require.ErrorIs(t, err, ErrKeyExists)

	got, err := m.Lookup(key)
	require.NoError(t, err)
	require.Equal(t, u32b(42), got)

	require.NoError(t, m.Update(key, u32b(43), UpdateExist))

	require.NoError(t, m.Delete(key))
	require.ErrorIs(t, m.Delete(key), ErrKeyNotFound)

	err = m.Update(key, u32b(1), UpdateExist)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestHashMapFillsUp(t *testing.T) {
	m := mustMap(t, MapSpec{
		Name:       "tiny",
		Type:       MapTypeHash,
		KeySize:    4,
		ValueSize:  4,
		MaxEntries: 2,
	})

	require.NoError(t, m.Update(u32b(1), u32b(1), UpdateAny))
	require.NoError(t, m.Update(u32b(2), u32b(2), UpdateAny))

	err := m.Update(u32b(3), u32b(3), UpdateNoExist)
	require.ErrorIs(t, err, ErrMapFull)
}

func TestMapIteration(t *testing.T) {
	m := mustMap(t, MapSpec{
		Name:       "iter",
		Type:       MapTypeHash,
		KeySize:    4,
		ValueSize:  4,
		MaxEntries: 16,
	})

	want := map[uint32]uint32{1: 10, 2: 20, 3: 30}
	for k, v := range want {
		require.NoError(t, m.Update(u32b(k), u32b(v), UpdateAny))
	}

	got := make(map[uint32]uint32)

	it := m.Iterate()
	for it.Next() {
		got[binary.LittleEndian.Uint32(it.Key())] = binary.LittleEndian.Uint32(it.Value())
	}

	require.NoError(t, it.Err())
	require.Equal(t, want, got)
}

func TestArrayMapRejectsOutOfRangeKey(t *testing.T) {
	m := mustMap(t, MapSpec{
		Name:       "bounded",
		Type:       MapTypeArray,
		KeySize:    4,
		ValueSize:  4,
		MaxEntries: 4,
	})

	// Index 5 is past the last slot; the kernel reports E2BIG, which
	// surfaces as a map-semantic error rather than a raw errno.
	err := m.Update(u32b(5), u32b(1), UpdateAny)
	require.ErrorIs(t, err, ErrMapFull)
	require.ErrorIs(t, err, sys.ErrResourceExhausted)

	require.NoError(t, m.Update(u32b(3), u32b(1), UpdateAny))
}

func TestPerCPUUpdateLookup(t *testing.T) {
	m := mustMap(t, MapSpec{
		Name:       "percpu_rt",
		Type:       MapTypePerCPUArray,
		KeySize:    4,
		ValueSize:  8,
		MaxEntries: 1,
	})

	ncpu, err := PossibleCPUs()
	require.NoError(t, err)

	values := make([][]byte, ncpu)
	for i := range values {
		values[i] = binary.LittleEndian.AppendUint64(nil, uint64(i)+1)
	}

	require.NoError(t, m.UpdatePerCPU(u32b(0), values, UpdateAny))

	got, err := m.LookupPerCPU(u32b(0))
	require.NoError(t, err)
	require.Equal(t, values, got)
}

func TestQueuePushPop(t *testing.T) {
	m := mustMap(t, MapSpec{
		Name:       "fifo",
		Type:       MapTypeQueue,
		KeySize:    0,
		ValueSize:  4,
		MaxEntries: 4,
	})

	require.NoError(t, m.Push(u32b(1)))
	require.NoError(t, m.Push(u32b(2)))

	first, err := m.Pop()
	require.NoError(t, err)
	require.Equal(t, u32b(1), first)

	second, err := m.Pop()
	require.NoError(t, err)
	require.Equal(t, u32b(2), second)

	_, err = m.Pop()
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestTypedMapAgainstKernel(t *testing.T) {
	m := mustMap(t, MapSpec{
		Name:       "typed",
		Type:       MapTypeArray,
		KeySize:    4,
		ValueSize:  8,
		MaxEntries: 4,
	})

	tm, err := NewTypedMap(m, U32(), U64())
	require.NoError(t, err)

	require.NoError(t, tm.Update(2, 0xfeedface, UpdateAny))

	v, err := tm.Lookup(2)
	require.NoError(t, err)
	require.Equal(t, uint64(0xfeedface), v)

	// Array slots always exist; untouched ones read back zero.
	v, err = tm.Lookup(0)
	require.NoError(t, err)
	require.Zero(t, v)
}
