package ringbuf

import (
	"errors"
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/tcassar-diss/rawbpf/bpf"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Reader owns one ring buffer map's consumer side.
type Reader struct {
	logger *zap.SugaredLogger

	m       *bpf.Map
	ring    *ring
	epollFD int

	consMem []byte
	prodMem []byte

	closed bool
}

// NewReader maps the ring's shared pages and registers the map fd for
// readiness wakeups.
//
// The reader duplicates the map's descriptor, so the caller's handle
// may be closed independently. Close releases everything the reader
// holds.
func NewReader(logger *zap.SugaredLogger, m *bpf.Map) (*Reader, error) {
	spec := m.Spec()
	if spec.Type != bpf.MapTypeRingBuf {
		return nil, fmt.Errorf("%w: got %s", ErrNotRingBuf, spec.Type)
	}

	dup, err := m.Dup()
	if err != nil {
		return nil, fmt.Errorf("failed to duplicate ring buffer fd: %w", err)
	}

	r := &Reader{logger: logger, m: dup, epollFD: -1}
	if err := r.mapPages(); err != nil {
		r.release()
		return nil, err
	}

	if err := r.setupEpoll(); err != nil {
		r.release()
		return nil, err
	}

	logger.Debugw("ring buffer reader opened", "size", spec.MaxEntries, "fd", dup.FD())

	return r, nil
}

func (r *Reader) mapPages() error {
	pageSize := os.Getpagesize()
	size := int(r.m.Spec().MaxEntries)

	consMem, err := unix.Mmap(r.m.FD(), 0, pageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("failed to mmap consumer page: %w", err)
	}

	r.consMem = consMem

	// Producer page plus the data area, which the kernel maps twice so
	// wrapped records stay contiguous.
	prodMem, err := unix.Mmap(r.m.FD(), int64(pageSize), pageSize+2*size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("failed to mmap producer pages: %w", err)
	}

	r.prodMem = prodMem

	r.ring = newRing(
		(*uint64)(unsafe.Pointer(&consMem[0])),
		(*uint64)(unsafe.Pointer(&prodMem[0])),
		prodMem[pageSize:],
		uint64(size),
	)

	return nil
}

func (r *Reader) setupEpoll() error {
	epollFD, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("failed to create epoll instance: %w", err)
	}

	r.epollFD = epollFD

	event := unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(r.m.FD()),
	}

	if err := unix.EpollCtl(epollFD, unix.EPOLL_CTL_ADD, r.m.FD(), &event); err != nil {
		return fmt.Errorf("failed to register ring buffer fd with epoll: %w", err)
	}

	return nil
}

// Read pops the next committed record without blocking. ErrNoRecords
// means the ring is drained (or its head reservation is still being
// written); callers wanting to wait use Poll.
func (r *Reader) Read() ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}

	return r.ring.next()
}

// Poll blocks until a record is available or timeout elapses, then
// returns the next committed record. A zero timeout is a non-blocking
// check; a negative timeout blocks indefinitely. There is no
// out-of-band cancellation: callers needing responsive shutdown poll
// with a short timeout in a loop.
func (r *Reader) Poll(timeout time.Duration) ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}

	sample, err := r.ring.next()
	if !errors.Is(err, ErrNoRecords) {
		return sample, err
	}

	if timeout == 0 {
		return nil, ErrDeadlineExceeded
	}

	// The deadline is fixed up front: a wakeup that yields nothing
	// (an uncommitted reservation) re-waits only for what remains.
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		wait := timeout
		if timeout > 0 {
			wait = time.Until(deadline)
			if wait <= 0 {
				return nil, ErrDeadlineExceeded
			}
		}

		ready, err := r.wait(wait)
		if err != nil {
			return nil, err
		}

		if !ready {
			return nil, ErrDeadlineExceeded
		}

		sample, err := r.ring.next()
		if errors.Is(err, ErrNoRecords) {
			// Woken for a reservation that is not committed yet.
			continue
		}

		return sample, err
	}
}

// wait blocks on epoll readiness for up to timeout, retrying on
// signal interruption.
func (r *Reader) wait(timeout time.Duration) (bool, error) {
	ms := -1
	if timeout > 0 {
		ms = int(timeout.Milliseconds())
		if ms == 0 {
			ms = 1
		}
	}

	events := make([]unix.EpollEvent, 1)

	for {
		n, err := unix.EpollWait(r.epollFD, events, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}

		if err != nil {
			return false, fmt.Errorf("failed to wait on ring buffer: %w", err)
		}

		return n > 0, nil
	}
}

// Close unmaps the shared pages and releases the reader's
// descriptors. Records not yet consumed are lost to this reader.
func (r *Reader) Close() error {
	if r.closed {
		return ErrClosed
	}

	r.closed = true
	r.release()

	return nil
}

func (r *Reader) release() {
	if r.prodMem != nil {
		_ = unix.Munmap(r.prodMem)
		r.prodMem = nil
	}

	if r.consMem != nil {
		_ = unix.Munmap(r.consMem)
		r.consMem = nil
	}

	if r.epollFD >= 0 {
		_ = unix.Close(r.epollFD)
		r.epollFD = -1
	}

	_ = r.m.Close()
}
