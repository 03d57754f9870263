package bpf

import (
	"errors"
	"fmt"

	"github.com/tcassar-diss/rawbpf/asm"
	"github.com/tcassar-diss/rawbpf/sys"
	"go.uber.org/zap"
)

// Patch is one field-offset relocation produced by a type-information
// subsystem: overwrite the immediate of the instruction at Slot with
// Imm before load. The list is applied verbatim; producing it is out
// of this package's hands.
type Patch struct {
	Slot int
	Imm  int32
}

// ProgramOpts tunes a load beyond the assembled program itself.
type ProgramOpts struct {
	// Name is the kernel-visible program name, truncated to 15 bytes.
	Name string
	// License defaults to GPL, which most helpers require.
	License string
	// Patches are field-offset relocations applied before load.
	Patches []Patch
	// ExpectedAttachType is required by some program types (cgroup
	// sock_addr, LSM) and ignored by the rest.
	ExpectedAttachType AttachType
}

// Program owns one loaded program's descriptor.
//
// A program moves Unloaded -> Loaded -> Attached and back: LoadProgram
// produces a Loaded program, Attach* produce Links, and Close drops
// the load reference. Closing a Program that still has live Links is
// fine; the kernel keeps the program resident until the last link is
// gone.
type Program struct {
	logger *zap.SugaredLogger
	fd     *sys.FD
	typ    asm.ProgramType
}

// LoadProgram submits an assembled program to the kernel.
//
// The program's map descriptors (see asm.Assembled.MapFDs) must still
// be open. Verifier rejections surface as *sys.VerifierError with the
// kernel's trace intact; it is the caller's only diagnostic and is
// never shortened.
func LoadProgram(logger *zap.SugaredLogger, prog *asm.Assembled, opts ProgramOpts) (*Program, error) {
	for _, p := range opts.Patches {
		if err := prog.PatchImm(p.Slot, p.Imm); err != nil {
			return nil, fmt.Errorf("failed to apply relocation patch: %w", err)
		}
	}

	license := opts.License
	if license == "" {
		license = "GPL"
	}

	insns := prog.Bytes()

	attr := sys.ProgLoadAttr{
		ProgType:           uint32(prog.Type),
		InsnCnt:            uint32(prog.Len()),
		Insns:              sys.NewPointer(insns),
		License:            sys.NewStringPointer(license),
		ExpectedAttachType: uint32(opts.ExpectedAttachType),
	}
	copy(attr.ProgName[:15], sanitizeName(opts.Name))

	fd, err := sys.ProgLoad(&attr)
	if err != nil {
		var verr *sys.VerifierError
		if errors.As(err, &verr) {
			logger.Warnw("verifier rejected program",
				"name", opts.Name,
				"type", prog.Type,
				"insns", prog.Len(),
			)
		}

		return nil, fmt.Errorf("failed to load program: %w", err)
	}

	logger.Debugw("program loaded",
		"name", opts.Name,
		"type", prog.Type,
		"insns", prog.Len(),
		"fd", fd.Int(),
	)

	return &Program{logger: logger, fd: fd, typ: prog.Type}, nil
}

// Type returns the hook category the program was loaded as.
func (p *Program) Type() asm.ProgramType {
	return p.typ
}

// FD exposes the raw program descriptor.
func (p *Program) FD() int {
	return p.fd.Int()
}

// Close drops the load reference. Idempotent in the close-once sense:
// a second Close returns sys.ErrClosed without touching the fd number
// again.
func (p *Program) Close() error {
	return p.fd.Close()
}

// sanitizeName keeps the kernel happy: object names allow only
// alphanumerics, dot, dash and underscore.
func sanitizeName(name string) string {
	out := make([]byte, 0, len(name))

	for i := 0; i < len(name); i++ {
		c := name[i]

		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '_', c == '-':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}

	return string(out)
}
