package bpf

import (
	"fmt"

	"github.com/tcassar-diss/rawbpf/sys"
)

// AttachType selects the kernel hook point within a program type's
// family. Values mirror enum bpf_attach_type; only the entries the
// attach paths below understand are named.
type AttachType uint32

const (
	AttachNone                 AttachType = 0
	AttachCGroupInetIngress    AttachType = 0
	AttachCGroupInetEgress     AttachType = 1
	AttachCGroupInetSockCreate AttachType = 2
	AttachCGroupSockOps        AttachType = 3
	AttachCGroupDevice         AttachType = 6
	AttachCGroupInet4Bind      AttachType = 8
	AttachCGroupInet6Bind      AttachType = 9
	AttachCGroupInet4Connect   AttachType = 10
	AttachCGroupInet6Connect   AttachType = 11
	AttachCGroupSysctl         AttachType = 18
	AttachTraceRawTP           AttachType = 23
	AttachTraceFEntry          AttachType = 24
	AttachTraceFExit           AttachType = 25
	AttachModifyReturn         AttachType = 26
	AttachLSMMac               AttachType = 27
	AttachSKLookup             AttachType = 36
	AttachXDP                  AttachType = 37
	AttachPerfEvent            AttachType = 41
)

// Link owns one kernel attachment. Dropping the link detaches the
// program; the program's own descriptor stays valid until its Close.
type Link struct {
	fd *sys.FD
}

// AttachRawTracepoint wires a loaded program to the named raw
// tracepoint. The returned link is backed by the raw_tracepoint_open
// descriptor, which detaches on close like any other link fd.
func AttachRawTracepoint(prog *Program, name string) (*Link, error) {
	if name == "" {
		return nil, fmt.Errorf("attach raw tracepoint: empty name: %w", sys.ErrInvalidArgument)
	}

	attr := sys.RawTracepointOpenAttr{
		Name:   sys.NewStringPointer(name),
		ProgFD: uint32(prog.FD()),
	}

	fd, err := sys.RawTracepointOpen(&attr)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw tracepoint %q: %w", name, err)
	}

	prog.logger.Debugw("attached raw tracepoint", "tracepoint", name, "link_fd", fd.Int())

	return &Link{fd: fd}, nil
}

// AttachLink attaches via BPF_LINK_CREATE, the path for cgroup, netns
// and XDP hooks. targetFD identifies the attachment target: a cgroup
// directory fd, a netns fd, or an interface index for XDP.
func AttachLink(prog *Program, targetFD int, typ AttachType) (*Link, error) {
	attr := sys.LinkCreateAttr{
		ProgFD:     uint32(prog.FD()),
		TargetFD:   uint32(targetFD),
		AttachType: uint32(typ),
	}

	fd, err := sys.LinkCreate(&attr)
	if err != nil {
		return nil, fmt.Errorf("failed to create link (attach type %d): %w", typ, err)
	}

	prog.logger.Debugw("created link", "attach_type", typ, "target_fd", targetFD, "link_fd", fd.Int())

	return &Link{fd: fd}, nil
}

// Update atomically swaps the attached program for another without a
// detach window. The new program must be of the same type.
func (l *Link) Update(next *Program) error {
	attr := sys.LinkUpdateAttr{
		LinkFD:    uint32(l.fd.Int()),
		NewProgFD: uint32(next.FD()),
	}

	if err := sys.LinkUpdate(&attr); err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}

	return nil
}

// FD exposes the raw link descriptor.
func (l *Link) FD() int {
	return l.fd.Int()
}

// Pin makes the link survive process exit by binding it into bpffs.
func (l *Link) Pin(path string) error {
	if err := objPin(path, l.fd); err != nil {
		return fmt.Errorf("failed to pin link at %s: %w", path, err)
	}

	return nil
}

// Close detaches. Second call returns sys.ErrClosed.
func (l *Link) Close() error {
	return l.fd.Close()
}
