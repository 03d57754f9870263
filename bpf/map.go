package bpf

import (
	"errors"
	"fmt"

	"github.com/tcassar-diss/rawbpf/sys"
)

// MapType is a kernel map kind. Values match the kernel's
// bpf_map_type enum.
type MapType uint32

const (
	MapTypeUnspec MapType = iota
	MapTypeHash
	MapTypeArray
	MapTypeProgArray
	MapTypePerfEventArray
	MapTypePerCPUHash
	MapTypePerCPUArray
	MapTypeStackTrace
	MapTypeCgroupArray
	MapTypeLRUHash
	MapTypeLRUPerCPUHash
	MapTypeLPMTrie
	MapTypeArrayOfMaps
	MapTypeHashOfMaps
	MapTypeDevMap
	MapTypeSockMap
	MapTypeCPUMap
	MapTypeXSKMap
	MapTypeSockHash
	MapTypeCgroupStorage
	MapTypeReusePortSockArray
	MapTypePerCPUCgroupStorage
	MapTypeQueue
	MapTypeStack
	MapTypeSKStorage
	MapTypeDevMapHash
	MapTypeStructOps
	MapTypeRingBuf
)

// perCPU reports whether values are stored once per possible CPU.
func (t MapType) perCPU() bool {
	switch t {
	case MapTypePerCPUHash, MapTypePerCPUArray, MapTypeLRUPerCPUHash, MapTypePerCPUCgroupStorage:
		return true
	default:
		return false
	}
}

// UpdateMode selects the element-update semantics. Values match the
// kernel's update flags.
type UpdateMode uint64

const (
	// UpdateAny creates the element or overwrites an existing one.
	UpdateAny UpdateMode = iota
	// UpdateNoExist creates only; an existing key fails with
	// ErrKeyExists.
	UpdateNoExist
	// UpdateExist overwrites only; a missing key fails with
	// ErrKeyNotFound.
	UpdateExist
)

// MapSpec describes a map to be created.
type MapSpec struct {
	Name       string
	Type       MapType
	KeySize    uint32
	ValueSize  uint32
	MaxEntries uint32
	Flags      uint32
}

// Map owns the descriptor of one kernel map. The kernel object itself
// is reference-counted kernel-side; this handle holds exactly one
// reference and Close drops it.
//
// Lookups and updates against the same Map from multiple goroutines
// are as safe as the kernel's own per-kind guarantee. Nothing here
// adds atomicity: a lookup followed by an update is two operations.
type Map struct {
	fd   *sys.FD
	spec MapSpec
	ncpu int
}

// NewMap creates a kernel map from spec.
func NewMap(spec MapSpec) (*Map, error) {
	attr := sys.MapCreateAttr{
		MapType:    uint32(spec.Type),
		KeySize:    spec.KeySize,
		ValueSize:  spec.ValueSize,
		MaxEntries: spec.MaxEntries,
		MapFlags:   spec.Flags,
	}
	copy(attr.MapName[:15], spec.Name)

	fd, err := sys.MapCreate(&attr)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s map %q: %w", spec.Type, spec.Name, err)
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

// Spec returns the map's creation parameters.
func (m *Map) Spec() MapSpec {
	return m.spec
}

// FD exposes the raw descriptor number for embedding into
// instruction streams and attribute structs.
func (m *Map) FD() int {
	return m.fd.Int()
}

// Close drops this handle's reference to the kernel map. Closing an
// already-closed handle returns sys.ErrClosed and performs no second
// syscall.
func (m *Map) Close() error {
	return m.fd.Close()
}

// Dup creates a second, independently owned handle to the same kernel
// map. Both handles must be closed.
func (m *Map) Dup() (*Map, error) {
	fd, err := m.fd.Dup()
	if err != nil {
		return nil, err
	}

	return &Map{fd: fd, spec: m.spec, ncpu: m.ncpu}, nil
}

func (m *Map) checkKey(key []byte) error {
	if uint32(len(key)) != m.spec.KeySize {
		return fmt.Errorf("%w: got %d, map wants %d", ErrKeySizeMismatch, len(key), m.spec.KeySize)
	}

	return nil
}

func (m *Map) checkValue(value []byte) error {
	if uint32(len(value)) != m.spec.ValueSize {
		return fmt.Errorf("%w: got %d, map wants %d", ErrValueSizeMismatch, len(value), m.spec.ValueSize)
	}

	return nil
}

// valueBufSize is the byte count the kernel reads or writes for one
// element, which for per-cpu kinds is the aligned value size times the
// number of possible CPUs.
func (m *Map) valueBufSize() int {
	if m.spec.Type.perCPU() {
		return int(alignValueSize(m.spec.ValueSize)) * m.ncpu
	}

	return int(m.spec.ValueSize)
}

// Lookup fetches the value stored under key. A missing key returns
// ErrKeyNotFound.
func (m *Map) Lookup(key []byte) ([]byte, error) {
	if err := m.checkKey(key); err != nil {
		return nil, err
	}

	value := make([]byte, m.valueBufSize())

	attr := sys.MapElemAttr{
		MapFD: m.fd.Uint(),
		Key:   sys.NewPointer(key),
		Value: sys.NewPointer(value),
	}

	if err := sys.MapLookupElem(&attr); err != nil {
		if errors.Is(err, sys.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrKeyNotFound, err)
		}

		return nil, fmt.Errorf("failed to lookup map element: %w", err)
	}

	return value, nil
}

// LookupPerCPU fetches one value per possible CPU for key. Only valid
// on per-cpu map kinds.
func (m *Map) LookupPerCPU(key []byte) ([][]byte, error) {
	if !m.spec.Type.perCPU() {
		return nil, ErrNotPerCPU
	}

	buf, err := m.Lookup(key)
	if err != nil {
		return nil, err
	}

	return unpackPerCPUValues(buf, m.spec.ValueSize, m.ncpu), nil
}

// Update writes value under key according to mode.
func (m *Map) Update(key, value []byte, mode UpdateMode) error {
	if err := m.checkKey(key); err != nil {
		return err
	}

	// Per-cpu kinds exchange one packed buffer covering every possible
	// CPU; anything shorter would have the kernel read past the slice.
	if m.spec.Type.perCPU() {
		if len(value) != m.valueBufSize() {
			return fmt.Errorf("%w: got %d, per-cpu map wants %d packed bytes", ErrValueSizeMismatch, len(value), m.valueBufSize())
		}
	} else if err := m.checkValue(value); err != nil {
		return err
	}

	attr := sys.MapElemAttr{
		MapFD: m.fd.Uint(),
		Key:   sys.NewPointer(key),
		Value: sys.NewPointer(value),
		Flags: uint64(mode),
	}

	if err := sys.MapUpdateElem(&attr); err != nil {
		return translateUpdateError(err, mode)
	}

	return nil
}

// UpdatePerCPU writes one value per possible CPU under key. values
// must hold exactly one slice per possible CPU.
func (m *Map) UpdatePerCPU(key []byte, values [][]byte, mode UpdateMode) error {
	if !m.spec.Type.perCPU() {
		return ErrNotPerCPU
	}

	if err := m.checkKey(key); err != nil {
		return err
	}

	buf, err := packPerCPUValues(values, m.spec.ValueSize, m.ncpu)
	if err != nil {
		return err
	}

	attr := sys.MapElemAttr{
		MapFD: m.fd.Uint(),
		Key:   sys.NewPointer(key),
		Value: sys.NewPointer(buf),
		Flags: uint64(mode),
	}

	if err := sys.MapUpdateElem(&attr); err != nil {
		return translateUpdateError(err, mode)
	}

	return nil
}

// translateUpdateError maps the kernel's errno repertoire onto
// map-semantic errors, keeping the raw cause wrapped underneath.
func translateUpdateError(err error, mode UpdateMode) error {
	switch {
	case mode == UpdateNoExist && errors.Is(err, sys.ErrExists):
		return fmt.Errorf("%w: %w", ErrKeyExists, err)
	case mode == UpdateExist && errors.Is(err, sys.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrKeyNotFound, err)
	case errors.Is(err, sys.ErrResourceExhausted):
		return fmt.Errorf("%w: %w", ErrMapFull, err)
	default:
		return fmt.Errorf("failed to update map element: %w", err)
	}
}

// Delete removes the element under key. A missing key returns
// ErrKeyNotFound.
func (m *Map) Delete(key []byte) error {
	if err := m.checkKey(key); err != nil {
		return err
	}

	attr := sys.MapElemAttr{
		MapFD: m.fd.Uint(),
		Key:   sys.NewPointer(key),
	}

	if err := sys.MapDeleteElem(&attr); err != nil {
		if errors.Is(err, sys.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrKeyNotFound, err)
		}

		return fmt.Errorf("failed to delete map element: %w", err)
	}

	return nil
}

// NextKey returns the key following prev, or the first key when prev
// is nil. ErrKeyNotFound marks the end of the map.
func (m *Map) NextKey(prev []byte) ([]byte, error) {
	if prev != nil {
		if err := m.checkKey(prev); err != nil {
			return nil, err
		}
	}

	next := make([]byte, m.spec.KeySize)

	attr := sys.MapElemAttr{
		MapFD: m.fd.Uint(),
		Key:   sys.NewPointer(prev),
		Value: sys.NewPointer(next),
	}

	if err := sys.MapGetNextKey(&attr); err != nil {
		if errors.Is(err, sys.ErrNotFound) {
			return nil, ErrKeyNotFound
		}

		return nil, fmt.Errorf("failed to get next key: %w", err)
	}

	return next, nil
}

// Push appends a value to a queue or stack map.
func (m *Map) Push(value []byte) error {
	if err := m.checkValue(value); err != nil {
		return err
	}

	attr := sys.MapElemAttr{
		MapFD: m.fd.Uint(),
		Value: sys.NewPointer(value),
	}

	if err := sys.MapUpdateElem(&attr); err != nil {
		if errors.Is(err, sys.ErrResourceExhausted) {
			return fmt.Errorf("%w: %w", ErrMapFull, err)
		}

		return fmt.Errorf("failed to push element: %w", err)
	}

	return nil
}

// Pop removes and returns the next value of a queue or stack map.
// An empty map returns ErrKeyNotFound.
func (m *Map) Pop() ([]byte, error) {
	value := make([]byte, m.spec.ValueSize)

	attr := sys.MapElemAttr{
		MapFD: m.fd.Uint(),
		Value: sys.NewPointer(value),
	}

	if err := sys.MapLookupAndDeleteElem(&attr); err != nil {
		if errors.Is(err, sys.ErrNotFound) {
			return nil, ErrKeyNotFound
		}

		return nil, fmt.Errorf("failed to pop element: %w", err)
	}

	return value, nil
}
