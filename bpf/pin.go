package bpf

import (
	"fmt"

	"github.com/tcassar-diss/rawbpf/sys"
)

// Pinning stores a reference to a kernel object in the bpffs
// filesystem (normally mounted at /sys/fs/bpf), letting the object
// outlive the process that created it. Unlinking the path drops the
// reference again.

// Pin pins the map at path.
func (m *Map) Pin(path string) error {
	if err := objPin(path, m.fd); err != nil {
		return fmt.Errorf("failed to pin map %q: %w", m.spec.Name, err)
	}

	return nil
}

// LoadPinnedMap opens a handle to a map pinned at path. The caller
// must supply the spec the map was created with; the kernel does not
// return it through this interface.
func LoadPinnedMap(path string, spec MapSpec) (*Map, error) {
	fd, err := objGet(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pinned map at %q: %w", path, err)
	}

	m := &Map{fd: fd, spec: spec}

	if spec.Type.perCPU() {
		m.ncpu, err = PossibleCPUs()
		if err != nil {
			_ = fd.Close()
			return nil, fmt.Errorf("failed to count possible cpus: %w", err)
		}
	}

	return m, nil
}

// Pin pins the program at path.
func (p *Program) Pin(path string) error {
	if err := objPin(path, p.fd); err != nil {
		return fmt.Errorf("failed to pin program: %w", err)
	}

	return nil
}

func objPin(path string, fd *sys.FD) error {
	attr := sys.ObjAttr{
		Pathname: sys.NewStringPointer(path),
		BPFFd:    fd.Uint(),
	}

	return sys.ObjPin(&attr)
}

func objGet(path string) (*sys.FD, error) {
	attr := sys.ObjAttr{
		Pathname: sys.NewStringPointer(path),
	}

	return sys.ObjGet(&attr)
}
