package sys

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FD owns one kernel object file descriptor. Close releases it exactly
// once; further Closes return ErrClosed without touching the (possibly
// reused) fd number again. Sharing a kernel object across owners goes
// through Dup, never by copying the FD value.
//
// An FD is not safe for concurrent Close.
type FD struct {
	raw int
}

// NewFD wraps a file descriptor returned by the kernel. Negative
// values are refused so an unchecked syscall result cannot masquerade
// as a handle.
func NewFD(value int) (*FD, error) {
	if value < 0 {
		return nil, fmt.Errorf("invalid fd %d", value)
	}

	return &FD{raw: value}, nil
}

// Int returns the raw descriptor number, or -1 after Close.
func (fd *FD) Int() int {
	if fd == nil {
		return -1
	}

	return fd.raw
}

// Uint returns the descriptor for use in attribute fields. Nil and
// closed handles both yield the all-ones value, which the kernel
// rejects, rather than aliasing fd 0.
func (fd *FD) Uint() uint32 {
	return uint32(fd.Int())
}

// Close releases the descriptor. The first error state wins: a second
// Close reports ErrClosed rather than issuing another close(2) on a
// number the kernel may have reassigned.
func (fd *FD) Close() error {
	if fd.raw < 0 {
		return ErrClosed
	}

	value := fd.raw
	fd.raw = -1

	return unix.Close(value)
}

// Dup duplicates the descriptor, producing an independently owned
// reference to the same kernel object. The kernel reference-counts the
// object, so both copies must be closed.
func (fd *FD) Dup() (*FD, error) {
	if fd.raw < 0 {
		return nil, ErrClosed
	}

	// 3 is the lowest fd that can't shadow stdio.
	dup, err := unix.FcntlInt(uintptr(fd.raw), unix.F_DUPFD_CLOEXEC, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to dup fd %d: %w", fd.raw, err)
	}

	return &FD{raw: dup}, nil
}
