package sys

// Attribute structures for each bpf(2) command, mirroring the union
// members of the kernel's struct bpf_attr. Field order, widths and
// padding must match the published ABI exactly; the kernel rejects
// attributes whose trailing bytes are non-zero, so every struct is
// passed freshly zeroed.

// MapCreateAttr is the BPF_MAP_CREATE attribute.
type MapCreateAttr struct {
	MapType        uint32
	KeySize        uint32
	ValueSize      uint32
	MaxEntries     uint32
	MapFlags       uint32
	InnerMapFD     uint32
	NumaNode       uint32
	MapName        [16]byte
	MapIfIndex     uint32
	BTFFd          uint32
	BTFKeyTypeID   uint32
	BTFValueTypeID uint32
}

// MapElemAttr serves BPF_MAP_LOOKUP_ELEM, BPF_MAP_UPDATE_ELEM,
// BPF_MAP_DELETE_ELEM and BPF_MAP_GET_NEXT_KEY. Value doubles as the
// next-key output for BPF_MAP_GET_NEXT_KEY (a union in the kernel).
type MapElemAttr struct {
	MapFD uint32
	_     [4]byte
	Key   Pointer
	Value Pointer
	Flags uint64
}

// MapBatchAttr serves BPF_MAP_LOOKUP_BATCH and BPF_MAP_UPDATE_BATCH.
type MapBatchAttr struct {
	InBatch   Pointer
	OutBatch  Pointer
	Keys      Pointer
	Values    Pointer
	Count     uint32
	MapFD     uint32
	ElemFlags uint64
	Flags     uint64
}

// ProgLoadAttr is the BPF_PROG_LOAD attribute, up to and including
// expected_attach_type. Trailing kernel fields this package never
// sets are omitted; the syscall size argument tells the kernel where
// the structure ends.
type ProgLoadAttr struct {
	ProgType           uint32
	InsnCnt            uint32
	Insns              Pointer
	License            Pointer
	LogLevel           uint32
	LogSize            uint32
	LogBuf             Pointer
	KernVersion        uint32
	ProgFlags          uint32
	ProgName           [16]byte
	ProgIfIndex        uint32
	ExpectedAttachType uint32
}

// RawTracepointOpenAttr is the BPF_RAW_TRACEPOINT_OPEN attribute.
type RawTracepointOpenAttr struct {
	Name   Pointer
	ProgFD uint32
	_      [4]byte
}

// LinkCreateAttr is the BPF_LINK_CREATE attribute.
type LinkCreateAttr struct {
	ProgFD     uint32
	TargetFD   uint32
	AttachType uint32
	Flags      uint32
}

// LinkUpdateAttr is the BPF_LINK_UPDATE attribute.
type LinkUpdateAttr struct {
	LinkFD    uint32
	NewProgFD uint32
	Flags     uint32
	OldProgFD uint32
}

// ObjAttr serves BPF_OBJ_PIN and BPF_OBJ_GET.
type ObjAttr struct {
	Pathname  Pointer
	BPFFd     uint32
	FileFlags uint32
}
