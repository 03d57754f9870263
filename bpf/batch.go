package bpf

import (
	"errors"
	"fmt"

	"github.com/tcassar-diss/rawbpf/sys"
)

// Batch operations pack N keys and values into single buffers and move
// them in one syscall. Batches are not atomic: on error the returned
// count says how many elements the kernel actually processed, and
// callers must cope with partial application.

// BatchCursor carries the kernel's opaque position token between
// successive LookupBatch calls. The zero value starts from the
// beginning of the map.
type BatchCursor struct {
	in  []byte
	out []byte
}

// LookupBatch reads up to count entries, advancing cursor. It returns
// the packed keys and values and the number of entries fetched; the
// end of the map is reported as (n, ErrKeyNotFound) with n possibly
// non-zero.
func (m *Map) LookupBatch(cursor *BatchCursor, count int) (keys, values []byte, n int, err error) {
	if count <= 0 {
		return nil, nil, 0, fmt.Errorf("batch count must be positive, got %d", count)
	}

	keys = make([]byte, count*int(m.spec.KeySize))
	values = make([]byte, count*m.valueBufSize())

	if cursor.out == nil {
		cursor.out = make([]byte, m.spec.KeySize)
	}

	attr := sys.MapBatchAttr{
		InBatch:  sys.NewPointer(cursor.in),
		OutBatch: sys.NewPointer(cursor.out),
		Keys:     sys.NewPointer(keys),
		Values:   sys.NewPointer(values),
		Count:    uint32(count),
		MapFD:    m.fd.Uint(),
	}

	err = sys.MapLookupBatch(&attr)
	n = int(attr.Count)

	// The out token becomes the next call's in token.
	if cursor.in == nil {
		cursor.in = make([]byte, m.spec.KeySize)
	}
	copy(cursor.in, cursor.out)

	keys = keys[:n*int(m.spec.KeySize)]
	values = values[:n*m.valueBufSize()]

	if err != nil {
		if errors.Is(err, sys.ErrNotFound) {
			return keys, values, n, ErrKeyNotFound
		}

		return keys, values, n, fmt.Errorf("failed to lookup batch: %w", err)
	}

	return keys, values, n, nil
}

// UpdateBatch writes len(keys)/KeySize elements in one syscall. keys
// and values must be packed arrays of exactly KeySize and ValueSize
// bytes per element. Returns how many elements the kernel applied.
func (m *Map) UpdateBatch(keys, values []byte, mode UpdateMode) (int, error) {
	ks, vs := int(m.spec.KeySize), m.valueBufSize()

	if ks == 0 || len(keys)%ks != 0 {
		return 0, fmt.Errorf("%w: packed keys length %d", ErrKeySizeMismatch, len(keys))
	}

	count := len(keys) / ks

	if len(values) != count*vs {
		return 0, fmt.Errorf("%w: packed values length %d for %d keys", ErrValueSizeMismatch, len(values), count)
	}

	attr := sys.MapBatchAttr{
		Keys:      sys.NewPointer(keys),
		Values:    sys.NewPointer(values),
		Count:     uint32(count),
		MapFD:     m.fd.Uint(),
		ElemFlags: uint64(mode),
	}

	err := sys.MapUpdateBatch(&attr)
	n := int(attr.Count)

	if err != nil {
		return n, translateUpdateError(err, mode)
	}

	return n, nil
}
