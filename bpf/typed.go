package bpf

import (
	"encoding/binary"
	"fmt"
)

// Codec converts one side of a map entry between its Go representation
// and the fixed-size byte buffer the kernel stores. Pairing a map with
// codecs at construction time means size mismatches fail in user space
// instead of feeding garbage to a syscall.
type Codec[T any] struct {
	Size      uint32
	Marshal   func(T) ([]byte, error)
	Unmarshal func([]byte) (T, error)
}

// U32 is a little-endian uint32 codec.
func U32() Codec[uint32] {
	return Codec[uint32]{
		Size: 4,
		Marshal: func(v uint32) ([]byte, error) {
			return binary.LittleEndian.AppendUint32(nil, v), nil
		},
		Unmarshal: func(b []byte) (uint32, error) {
			if len(b) < 4 {
				return 0, fmt.Errorf("%w: %d bytes", ErrValueSizeMismatch, len(b))
			}

			return binary.LittleEndian.Uint32(b), nil
		},
	}
}

// U64 is a little-endian uint64 codec.
func U64() Codec[uint64] {
	return Codec[uint64]{
		Size: 8,
		Marshal: func(v uint64) ([]byte, error) {
			return binary.LittleEndian.AppendUint64(nil, v), nil
		},
		Unmarshal: func(b []byte) (uint64, error) {
			if len(b) < 8 {
				return 0, fmt.Errorf("%w: %d bytes", ErrValueSizeMismatch, len(b))
			}

			return binary.LittleEndian.Uint64(b), nil
		},
	}
}

// Bytes passes fixed-size byte slices through unchanged, enforcing the
// declared size.
func Bytes(size uint32) Codec[[]byte] {
	return Codec[[]byte]{
		Size: size,
		Marshal: func(v []byte) ([]byte, error) {
			if uint32(len(v)) != size {
				return nil, fmt.Errorf("%w: got %d, codec wants %d", ErrValueSizeMismatch, len(v), size)
			}

			return v, nil
		},
		Unmarshal: func(b []byte) ([]byte, error) {
			if uint32(len(b)) < size {
				return nil, fmt.Errorf("%w: got %d, codec wants %d", ErrValueSizeMismatch, len(b), size)
			}

			out := make([]byte, size)
			copy(out, b)

			return out, nil
		},
	}
}

// TypedMap wraps a Map with a static key and value codec pair.
type TypedMap[K, V any] struct {
	m  *Map
	kc Codec[K]
	vc Codec[V]
}

// NewTypedMap pairs m with codecs, rejecting size disagreements
// between the codecs and the map's creation spec up front.
func NewTypedMap[K, V any](m *Map, kc Codec[K], vc Codec[V]) (*TypedMap[K, V], error) {
	if kc.Size != m.spec.KeySize {
		return nil, fmt.Errorf("%w: key codec is %d bytes, map wants %d", ErrKeySizeMismatch, kc.Size, m.spec.KeySize)
	}

	if vc.Size != m.spec.ValueSize {
		return nil, fmt.Errorf("%w: value codec is %d bytes, map wants %d", ErrValueSizeMismatch, vc.Size, m.spec.ValueSize)
	}

	return &TypedMap[K, V]{m: m, kc: kc, vc: vc}, nil
}

// Map returns the underlying untyped handle.
func (t *TypedMap[K, V]) Map() *Map {
	return t.m
}

// Lookup fetches and decodes the value stored under key.
func (t *TypedMap[K, V]) Lookup(key K) (V, error) {
	var zero V

	kb, err := t.kc.Marshal(key)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal key: %w", err)
	}

	vb, err := t.m.Lookup(kb)
	if err != nil {
		return zero, err
	}

	v, err := t.vc.Unmarshal(vb)
	if err != nil {
		return zero, fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return v, nil
}

// Update encodes and writes value under key according to mode.
func (t *TypedMap[K, V]) Update(key K, value V, mode UpdateMode) error {
	kb, err := t.kc.Marshal(key)
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}

	vb, err := t.vc.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return t.m.Update(kb, vb, mode)
}

// Delete removes the element under key.
func (t *TypedMap[K, V]) Delete(key K) error {
	kb, err := t.kc.Marshal(key)
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}

	return t.m.Delete(kb)
}
