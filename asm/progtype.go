package asm

// ProgramType is the kernel hook category a program is written for.
// Values match the kernel's program type enum.
type ProgramType uint32

const (
	ProgTypeUnspec ProgramType = iota
	ProgTypeSocketFilter
	ProgTypeKprobe
	ProgTypeSchedCLS
	ProgTypeSchedACT
	ProgTypeTracepoint
	ProgTypeXDP
	ProgTypePerfEvent
	ProgTypeCgroupSKB
	ProgTypeCgroupSock
	ProgTypeLWTIn
	ProgTypeLWTOut
	ProgTypeLWTXmit
	ProgTypeSockOps
	ProgTypeSKSKB
	ProgTypeCgroupDevice
	ProgTypeSKMsg
	ProgTypeRawTracepoint
	ProgTypeCgroupSockAddr
	ProgTypeLWTSeg6Local
	ProgTypeLircMode2
	ProgTypeSKReuseport
	ProgTypeFlowDissector
	ProgTypeCgroupSysctl
	ProgTypeRawTracepointWritable
	ProgTypeCgroupSockopt
	ProgTypeTracing
	ProgTypeStructOps
	ProgTypeExt
	ProgTypeLSM
	ProgTypeSKLookup
)

var progTypeNames = map[ProgramType]string{
	ProgTypeUnspec:                "unspec",
	ProgTypeSocketFilter:          "socket_filter",
	ProgTypeKprobe:                "kprobe",
	ProgTypeSchedCLS:              "sched_cls",
	ProgTypeSchedACT:              "sched_act",
	ProgTypeTracepoint:            "tracepoint",
	ProgTypeXDP:                   "xdp",
	ProgTypePerfEvent:             "perf_event",
	ProgTypeCgroupSKB:             "cgroup_skb",
	ProgTypeCgroupSock:            "cgroup_sock",
	ProgTypeSockOps:               "sock_ops",
	ProgTypeRawTracepoint:         "raw_tracepoint",
	ProgTypeCgroupSockAddr:        "cgroup_sock_addr",
	ProgTypeCgroupSysctl:          "cgroup_sysctl",
	ProgTypeRawTracepointWritable: "raw_tracepoint_writable",
	ProgTypeCgroupSockopt:         "cgroup_sockopt",
	ProgTypeTracing:               "tracing",
	ProgTypeLSM:                   "lsm",
	ProgTypeSKLookup:              "sk_lookup",
}

func (t ProgramType) String() string {
	if s, ok := progTypeNames[t]; ok {
		return s
	}

	return "unknown"
}
