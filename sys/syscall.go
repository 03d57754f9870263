package sys

import (
	"bytes"
	"errors"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Cmd identifies a subcommand of the bpf(2) syscall. Values match the
// kernel's bpf_cmd enum.
type Cmd uint32

const (
	CmdMapCreate Cmd = iota
	CmdMapLookupElem
	CmdMapUpdateElem
	CmdMapDeleteElem
	CmdMapGetNextKey
	CmdProgLoad
	CmdObjPin
	CmdObjGet
	CmdProgAttach
	CmdProgDetach
	CmdProgTestRun
	CmdProgGetNextID
	CmdMapGetNextID
	CmdProgGetFDByID
	CmdMapGetFDByID
	CmdObjGetInfoByFD
	CmdProgQuery
	CmdRawTracepointOpen
	CmdBTFLoad
	CmdBTFGetFDByID
	CmdTaskFDQuery
	CmdMapLookupAndDeleteElem
	CmdMapFreeze
	CmdBTFGetNextID
	CmdMapLookupBatch
	CmdMapLookupAndDeleteBatch
	CmdMapUpdateBatch
	CmdMapDeleteBatch
	CmdLinkCreate
	CmdLinkUpdate
	CmdLinkGetFDByID
	CmdLinkGetNextID
	CmdEnableStats
	CmdIterCreate
	CmdLinkDetach
)

var cmdNames = map[Cmd]string{
	CmdMapCreate:         "MAP_CREATE",
	CmdMapLookupElem:     "MAP_LOOKUP_ELEM",
	CmdMapUpdateElem:     "MAP_UPDATE_ELEM",
	CmdMapDeleteElem:     "MAP_DELETE_ELEM",
	CmdMapGetNextKey:     "MAP_GET_NEXT_KEY",
	CmdProgLoad:          "PROG_LOAD",
	CmdObjPin:            "OBJ_PIN",
	CmdObjGet:            "OBJ_GET",
	CmdRawTracepointOpen: "RAW_TRACEPOINT_OPEN",
	CmdMapLookupBatch:    "MAP_LOOKUP_BATCH",
	CmdMapUpdateBatch:    "MAP_UPDATE_BATCH",
	CmdLinkCreate:        "LINK_CREATE",
	CmdLinkUpdate:        "LINK_UPDATE",
	CmdLinkDetach:        "LINK_DETACH",
}

func (c Cmd) String() string {
	if s, ok := cmdNames[c]; ok {
		return s
	}

	return "UNKNOWN"
}

// VerifierLogSize is the buffer the kernel writes its rejection trace
// into during PROG_LOAD. The buffer is attached before the call, so a
// failed load always carries its diagnostic.
const VerifierLogSize = 1 << 20

// invoke performs one bpf(2) call. Each invocation is independent:
// the attribute buffer belongs to the caller and no state is shared,
// so concurrent invocations from different goroutines need no locking.
func invoke(cmd Cmd, attr unsafe.Pointer, size uintptr) (uintptr, error) {
	r1, _, errno := unix.Syscall(unix.SYS_BPF, uintptr(cmd), uintptr(attr), size)
	runtime.KeepAlive(attr)

	if errno != 0 {
		return r1, &Error{Cmd: cmd, Errno: errno}
	}

	return r1, nil
}

func invokeFD(cmd Cmd, attr unsafe.Pointer, size uintptr) (*FD, error) {
	r1, err := invoke(cmd, attr, size)
	if err != nil {
		return nil, err
	}

	return NewFD(int(r1))
}

// MapCreate creates a map and returns its owning descriptor.
func MapCreate(attr *MapCreateAttr) (*FD, error) {
	return invokeFD(CmdMapCreate, unsafe.Pointer(attr), unsafe.Sizeof(*attr))
}

// MapLookupElem copies the value stored under attr.Key into the buffer
// attr.Value points at.
func MapLookupElem(attr *MapElemAttr) error {
	_, err := invoke(CmdMapLookupElem, unsafe.Pointer(attr), unsafe.Sizeof(*attr))
	return err
}

// MapUpdateElem creates or updates the element under attr.Key,
// depending on attr.Flags.
func MapUpdateElem(attr *MapElemAttr) error {
	_, err := invoke(CmdMapUpdateElem, unsafe.Pointer(attr), unsafe.Sizeof(*attr))
	return err
}

// MapDeleteElem removes the element under attr.Key.
func MapDeleteElem(attr *MapElemAttr) error {
	_, err := invoke(CmdMapDeleteElem, unsafe.Pointer(attr), unsafe.Sizeof(*attr))
	return err
}

// MapGetNextKey writes the key following attr.Key into the buffer
// attr.Value points at. A null attr.Key yields the first key; ENOENT
// marks the end of the map.
func MapGetNextKey(attr *MapElemAttr) error {
	_, err := invoke(CmdMapGetNextKey, unsafe.Pointer(attr), unsafe.Sizeof(*attr))
	return err
}

// MapLookupAndDeleteElem pops an element. Queue and stack maps
// implement this as their pop operation with a null key.
func MapLookupAndDeleteElem(attr *MapElemAttr) error {
	_, err := invoke(CmdMapLookupAndDeleteElem, unsafe.Pointer(attr), unsafe.Sizeof(*attr))
	return err
}

// MapLookupBatch fetches up to attr.Count elements in one call. On
// return attr.Count holds the number actually copied, which callers
// must consult even on error: the batch is not atomic.
func MapLookupBatch(attr *MapBatchAttr) error {
	_, err := invoke(CmdMapLookupBatch, unsafe.Pointer(attr), unsafe.Sizeof(*attr))
	return err
}

// MapUpdateBatch updates up to attr.Count elements in one call, with
// the same partial-success contract as MapLookupBatch.
func MapUpdateBatch(attr *MapBatchAttr) error {
	_, err := invoke(CmdMapUpdateBatch, unsafe.Pointer(attr), unsafe.Sizeof(*attr))
	return err
}

// ProgLoad submits a program to the verifier. The verifier log buffer
// is allocated and attached here, before the call, so that a rejection
// surfaces as a *VerifierError carrying the kernel's trace verbatim.
func ProgLoad(attr *ProgLoadAttr) (*FD, error) {
	logBuf := make([]byte, VerifierLogSize)
	attr.LogBuf = NewPointer(logBuf)
	attr.LogSize = uint32(len(logBuf))

	if attr.LogLevel == 0 {
		attr.LogLevel = 1
	}

	fd, err := invokeFD(CmdProgLoad, unsafe.Pointer(attr), unsafe.Sizeof(*attr))
	runtime.KeepAlive(logBuf)

	// An empty log means the load never reached the verifier (bad
	// attr, missing privilege); only a written log is a rejection.
	var sysErr *Error
	if errors.As(err, &sysErr) {
		if log := logText(logBuf); log != "" {
			return nil, &VerifierError{Errno: sysErr.Errno, Log: log}
		}
	}

	if err != nil {
		return nil, err
	}

	return fd, nil
}

// RawTracepointOpen attaches a program to a raw tracepoint and returns
// the attachment's descriptor.
func RawTracepointOpen(attr *RawTracepointOpenAttr) (*FD, error) {
	return invokeFD(CmdRawTracepointOpen, unsafe.Pointer(attr), unsafe.Sizeof(*attr))
}

// LinkCreate attaches a program to attr.TargetFD at the given attach
// type, returning the link descriptor.
func LinkCreate(attr *LinkCreateAttr) (*FD, error) {
	return invokeFD(CmdLinkCreate, unsafe.Pointer(attr), unsafe.Sizeof(*attr))
}

// LinkUpdate swaps the program behind an existing link.
func LinkUpdate(attr *LinkUpdateAttr) error {
	_, err := invoke(CmdLinkUpdate, unsafe.Pointer(attr), unsafe.Sizeof(*attr))
	return err
}

// ObjPin pins the object behind attr.BPFFd to a bpffs path.
func ObjPin(attr *ObjAttr) error {
	_, err := invoke(CmdObjPin, unsafe.Pointer(attr), unsafe.Sizeof(*attr))
	return err
}

// ObjGet opens a descriptor for an object pinned at attr.Pathname.
func ObjGet(attr *ObjAttr) (*FD, error) {
	return invokeFD(CmdObjGet, unsafe.Pointer(attr), unsafe.Sizeof(*attr))
}

func logText(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}

	return string(bytes.TrimSpace(buf))
}
