package sys

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Classified syscall failures. Every *Error unwraps to exactly one of
// these (or to nothing, for errnos outside the classification).
var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("no such file or directory")
	ErrExists            = errors.New("object already exists")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrClosed            = errors.New("file descriptor already closed")
)

// Error is a kernel-reported bpf(2) failure. It records which command
// failed and the raw errno alongside the classification, so callers
// can match either the coarse sentinel or the exact kernel code.
type Error struct {
	Cmd   Cmd
	Errno unix.Errno
}

func (e *Error) Error() string {
	return fmt.Sprintf("bpf(%s): %s", e.Cmd, e.Errno.Error())
}

func (e *Error) Unwrap() error {
	return classify(e.Errno)
}

// Is additionally matches the underlying errno, so
// errors.Is(err, unix.ENOENT) works alongside the sentinels.
func (e *Error) Is(target error) bool {
	if errno, ok := target.(unix.Errno); ok {
		return e.Errno == errno
	}

	return false
}

func classify(errno unix.Errno) error {
	switch errno {
	case unix.EPERM, unix.EACCES:
		return ErrPermissionDenied
	case unix.EINVAL:
		return ErrInvalidArgument
	case unix.ENOENT:
		return ErrNotFound
	case unix.EEXIST:
		return ErrExists
	case unix.ENOMEM, unix.ENOSPC, unix.E2BIG, unix.EMFILE, unix.ENFILE:
		return ErrResourceExhausted
	default:
		return nil
	}
}

// VerifierError is returned when the kernel's verifier rejects a
// program load. Log holds the rejection trace verbatim; it is the only
// diagnostic a caller has, so it is never truncated or summarised.
type VerifierError struct {
	Errno unix.Errno
	Log   string
}

func (e *VerifierError) Error() string {
	if e.Log == "" {
		return fmt.Sprintf("verifier rejected program: %s", e.Errno.Error())
	}

	return fmt.Sprintf("verifier rejected program: %s\n%s", e.Errno.Error(), e.Log)
}

func (e *VerifierError) Unwrap() error {
	return classify(e.Errno)
}
