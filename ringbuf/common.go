package ringbuf

import "errors"

var (
	// ErrNoRecords is returned by a non-blocking read when every
	// committed record has been consumed.
	ErrNoRecords = errors.New("ring buffer has no committed records")
	// ErrDeadlineExceeded is returned by Poll when the timeout lapses
	// with nothing to read.
	ErrDeadlineExceeded = errors.New("ring buffer poll timed out")
	// ErrClosed is returned once the reader has been closed.
	ErrClosed = errors.New("ring buffer reader closed")
	// ErrNotRingBuf is returned when the map is not a ring buffer.
	ErrNotRingBuf = errors.New("map is not a ring buffer")
)
