package bpf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Per-cpu maps exchange one value per possible CPU in a single packed
// buffer. The kernel rounds each CPU's slot up to 8 bytes, so the
// wire size differs from value_size * ncpu whenever value_size is not
// itself 8-byte aligned.

const perCPUAlign = 8

func alignValueSize(size uint32) uint32 {
	return (size + perCPUAlign - 1) &^ (perCPUAlign - 1)
}

var possibleCPUs = sync.OnceValues(func() (int, error) {
	data, err := os.ReadFile("/sys/devices/system/cpu/possible")
	if err != nil {
		return 0, fmt.Errorf("failed to read possible cpu list: %w", err)
	}

	return parseCPUList(strings.TrimSpace(string(data)))
})

// PossibleCPUs counts the CPUs the kernel sizes per-cpu map values
// for. This is the possible set, which can exceed the online count.
func PossibleCPUs() (int, error) {
	return possibleCPUs()
}

// parseCPUList handles the kernel's list format: comma-separated
// ranges such as "0-3" or "0,2-4,7".
func parseCPUList(list string) (int, error) {
	if list == "" {
		return 0, fmt.Errorf("empty cpu list")
	}

	count := 0

	for _, part := range strings.Split(list, ",") {
		lo, hi, found := strings.Cut(part, "-")

		start, err := strconv.Atoi(lo)
		if err != nil {
			return 0, fmt.Errorf("failed to parse cpu list %q: %w", list, err)
		}

		end := start
		if found {
			end, err = strconv.Atoi(hi)
			if err != nil {
				return 0, fmt.Errorf("failed to parse cpu list %q: %w", list, err)
			}
		}

		if end < start {
			return 0, fmt.Errorf("backwards cpu range in %q", list)
		}

		count += end - start + 1
	}

	return count, nil
}

// packPerCPUValues lays one value per CPU into a single buffer with
// each slot padded to the kernel's 8-byte alignment.
func packPerCPUValues(values [][]byte, valueSize uint32, ncpu int) ([]byte, error) {
	if len(values) != ncpu {
		return nil, fmt.Errorf("%w: got %d values for %d possible cpus", ErrValueSizeMismatch, len(values), ncpu)
	}

	stride := int(alignValueSize(valueSize))
	buf := make([]byte, stride*ncpu)

	for i, v := range values {
		if uint32(len(v)) != valueSize {
			return nil, fmt.Errorf("%w: cpu %d value is %d bytes, map wants %d", ErrValueSizeMismatch, i, len(v), valueSize)
		}

		copy(buf[i*stride:], v)
	}

	return buf, nil
}

// unpackPerCPUValues splits a kernel per-cpu buffer back into one
// value per CPU, stripping the alignment padding.
func unpackPerCPUValues(buf []byte, valueSize uint32, ncpu int) [][]byte {
	stride := int(alignValueSize(valueSize))
	out := make([][]byte, 0, ncpu)

	for i := 0; i < ncpu; i++ {
		slot := buf[i*stride:]
		v := make([]byte, valueSize)
		copy(v, slot[:valueSize])
		out = append(out, v)
	}

	return out
}
