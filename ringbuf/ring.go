package ringbuf

import (
	"sync/atomic"
	"unsafe"
)

// Record header layout, shared with the kernel producer: a 32-bit
// length word whose top two bits flag in-flight and cancelled
// reservations, followed by a 32-bit page offset the consumer ignores.
const (
	headerSize = 8
	busyBit    = uint32(1) << 31
	discardBit = uint32(1) << 30
	lenMask    = ^(busyBit | discardBit)
)

func roundUp8(n uint32) uint64 {
	return (uint64(n) + 7) &^ 7
}

// ring is the cursor protocol over the three shared regions, kept
// separate from the mmap plumbing so the walk can be tested against
// plain heap memory.
//
// cons is ours to advance; prod belongs to the producer and is only
// ever loaded. Both counters grow without bound and are reduced
// modulo the data size (a power of two) on access.
type ring struct {
	cons *uint64
	prod *uint64
	data []byte
	mask uint64
}

// newRing wires a cursor walk over the given regions. data must be
// the double-mapped view: 2*size bytes backing a size-byte ring so
// wrapped records read contiguously.
func newRing(cons, prod *uint64, data []byte, size uint64) *ring {
	return &ring{cons: cons, prod: prod, data: data, mask: size - 1}
}

// next pulls one committed record, skipping discarded reservations.
// It advances and publishes the consumer position for everything it
// walks past; the atomic store doubles as the release barrier the
// producer needs to reuse the space.
//
// ErrNoRecords covers both a drained ring and a head record whose
// producer has reserved but not yet committed; the caller polls again
// either way.
func (r *ring) next() ([]byte, error) {
	for {
		cons := atomic.LoadUint64(r.cons)
		prod := atomic.LoadUint64(r.prod)

		if cons >= prod {
			return nil, ErrNoRecords
		}

		off := cons & r.mask
		hdr := atomic.LoadUint32((*uint32)(unsafe.Pointer(&r.data[off])))

		if hdr&busyBit != 0 {
			return nil, ErrNoRecords
		}

		size := hdr & lenMask
		advanced := cons + headerSize + roundUp8(size)

		if hdr&discardBit != 0 {
			atomic.StoreUint64(r.cons, advanced)
			continue
		}

		sample := make([]byte, size)
		copy(sample, r.data[off+headerSize:])

		atomic.StoreUint64(r.cons, advanced)

		return sample, nil
	}
}

// pending reports whether any record, committed or not, sits between
// the cursors.
func (r *ring) pending() bool {
	return atomic.LoadUint64(r.cons) < atomic.LoadUint64(r.prod)
}
