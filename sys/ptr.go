package sys

import "unsafe"

// Pointer wraps an unsafe.Pointer so it occupies a full 64-bit
// attribute field while staying visible to the garbage collector for
// the lifetime of the attribute struct.
type Pointer struct {
	ptr unsafe.Pointer
}

// NewPointer points an attribute field at the start of buf. A nil or
// empty buffer produces a null pointer.
func NewPointer(buf []byte) Pointer {
	if len(buf) == 0 {
		return Pointer{}
	}

	return Pointer{ptr: unsafe.Pointer(&buf[0])}
}

// NewStringPointer returns a pointer to a NUL-terminated copy of s.
func NewStringPointer(s string) Pointer {
	buf := make([]byte, len(s)+1)
	copy(buf, s)

	return Pointer{ptr: unsafe.Pointer(&buf[0])}
}

// UnsafePointer wraps an arbitrary pointer, for fields that reference
// typed structures rather than byte buffers.
func UnsafePointer(p unsafe.Pointer) Pointer {
	return Pointer{ptr: p}
}
