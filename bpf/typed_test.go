package bpf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecs(t *testing.T) {
	t.Parallel()

	t.Run("u32 little endian", func(t *testing.T) {
		t.Parallel()

		c := U32()
		b, err := c.Marshal(0x01020304)
		require.NoError(t, err)
		require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, b)

		v, err := c.Unmarshal(b)
		require.NoError(t, err)
		require.Equal(t, uint32(0x01020304), v)

		_, err = c.Unmarshal([]byte{1, 2})
		require.ErrorIs(t, err, ErrValueSizeMismatch)
	})

	t.Run("u64 little endian", func(t *testing.T) {
		t.Parallel()

		c := U64()
		b, err := c.Marshal(0x0102030405060708)
		require.NoError(t, err)
		require.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1}, b)

		v, err := c.Unmarshal(b)
		require.NoError(t, err)
		require.Equal(t, uint64(0x0102030405060708), v)
	})

	t.Run("bytes enforces size", func(t *testing.T) {
		t.Parallel()

		c := Bytes(3)
		b, err := c.Marshal([]byte{1, 2, 3})
		require.NoError(t, err)
		require.Equal(t, []byte{1, 2, 3}, b)

		_, err = c.Marshal([]byte{1, 2})
		require.ErrorIs(t, err, ErrValueSizeMismatch)

		// Kernel buffers may carry per-cpu padding past the value.
		v, err := c.Unmarshal([]byte{1, 2, 3, 0, 0})
		require.NoError(t, err)
		require.Equal(t, []byte{1, 2, 3}, v)
	})
}

func TestNewTypedMapValidatesSizes(t *testing.T) {
	t.Parallel()

	m := &Map{spec: MapSpec{
		Name:       "counts",
		Type:       MapTypeHash,
		KeySize:    4,
		ValueSize:  8,
		MaxEntries: 16,
	}}

	_, err := NewTypedMap(m, U32(), U64())
	require.NoError(t, err)

	_, err = NewTypedMap(m, U64(), U64())
	require.ErrorIs(t, err, ErrKeySizeMismatch)

	_, err = NewTypedMap(m, U32(), U32())
	require.ErrorIs(t, err, ErrValueSizeMismatch)
}
