package sys

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestProgLoadAttrFailureIsNotVerifierError(t *testing.T) {
	// No instructions at all: the kernel rejects the attribute before
	// the verifier runs, so the log stays empty and the error must
	// stay a plain classified failure.
	attr := &ProgLoadAttr{ProgType: 1}

	_, err := ProgLoad(attr)
	if errors.Is(err, unix.ENOSYS) {
		t.Skipf("bpf(2) unavailable: %v", err)
	}

	require.Error(t, err)

	var verr *VerifierError
	require.False(t, errors.As(err, &verr), "attr-level failure surfaced as a verifier rejection")

	var sysErr *Error
	require.True(t, errors.As(err, &sysErr))
	require.Equal(t, CmdProgLoad, sysErr.Cmd)
}
