package asm

import (
	"encoding/binary"
	"fmt"
)

// Register is one of the eBPF machine's eleven registers.
//
// R0 holds return values, R1-R5 carry arguments into helper calls and
// are clobbered by them, R6-R9 are callee-saved and R10 is the
// read-only frame pointer.
type Register uint8

const (
	R0 Register = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10

	FP = R10

	registerMax = R10
)

func (r Register) String() string {
	if r <= registerMax {
		return fmt.Sprintf("r%d", uint8(r))
	}

	return fmt.Sprintf("r?(%d)", uint8(r))
}

// Valid reports whether r names a real register.
func (r Register) Valid() bool {
	return r <= registerMax
}

// Source register values with special meaning to the kernel, used in
// the src field of wide-immediate and call instructions.
const (
	// PseudoMapFD marks the 64-bit immediate of an ld_imm64 as a map
	// file descriptor subject to kernel relocation.
	PseudoMapFD Register = 1

	// PseudoCall marks a call's immediate as a program-relative
	// instruction offset rather than a helper number.
	PseudoCall Register = 1
)

// Instruction classes (low three bits of the opcode byte).
const (
	classLD    uint8 = 0x00
	classLDX   uint8 = 0x01
	classST    uint8 = 0x02
	classSTX   uint8 = 0x03
	classALU   uint8 = 0x04
	classJMP   uint8 = 0x05
	classJMP32 uint8 = 0x06
	classALU64 uint8 = 0x07
)

// Width is the access size of a load or store.
type Width uint8

const (
	W  Width = 0x00 // 4 bytes
	H  Width = 0x08 // 2 bytes
	B  Width = 0x10 // 1 byte
	DW Width = 0x18 // 8 bytes
)

// Address modes for loads and stores.
const (
	modeIMM    uint8 = 0x00
	modeABS    uint8 = 0x20
	modeMEM    uint8 = 0x60
	modeAtomic uint8 = 0xc0
)

// ALUOp selects an arithmetic or logic operation.
type ALUOp uint8

const (
	Add  ALUOp = 0x00
	Sub  ALUOp = 0x10
	Mul  ALUOp = 0x20
	Div  ALUOp = 0x30
	Or   ALUOp = 0x40
	And  ALUOp = 0x50
	LSh  ALUOp = 0x60
	RSh  ALUOp = 0x70
	Neg  ALUOp = 0x80
	Mod  ALUOp = 0x90
	Xor  ALUOp = 0xa0
	Mov  ALUOp = 0xb0
	ARSh ALUOp = 0xc0
)

// JumpCond selects a jump condition.
type JumpCond uint8

const (
	JA     JumpCond = 0x00
	JEq    JumpCond = 0x10
	JGT    JumpCond = 0x20
	JGE    JumpCond = 0x30
	JSet   JumpCond = 0x40
	JNE    JumpCond = 0x50
	JSGT   JumpCond = 0x60
	JSGE   JumpCond = 0x70
	opCall JumpCond = 0x80
	opExit JumpCond = 0x90
	JLT    JumpCond = 0xa0
	JLE    JumpCond = 0xb0
	JSLT   JumpCond = 0xc0
	JSLE   JumpCond = 0xd0
)

// Source operand selectors.
const (
	srcK uint8 = 0x00 // 32-bit immediate
	srcX uint8 = 0x08 // source register
)

// MaxInstructions is the kernel's per-program slot ceiling (one
// million slots since 5.2). The verifier is authoritative; the
// assembler only rejects programs that cannot possibly load.
const MaxInstructions = 1_000_000

// SlotSize is the size in bytes of one encoded instruction slot.
const SlotSize = 8

const opLdImm64 = classLD | uint8(DW) | modeIMM // 0x18

// Instruction is one logical eBPF instruction. A wide-immediate
// instruction (ld_imm64 and friends) is a single Instruction even
// though it encodes to two slots.
//
// Instructions are built with the constructor functions below; the zero
// value is not a valid instruction.
type Instruction struct {
	// Code is the fully formed opcode byte.
	Code uint8

	Dst Register
	Src Register

	// Off is the signed 16-bit offset operand. For jumps it counts
	// instruction slots relative to the following instruction.
	Off int16

	// Imm is the immediate operand. Only wide instructions use more
	// than the low 32 bits.
	Imm int64

	// Ref is a label this jump or bpf-to-bpf call targets. The
	// assembler rewrites Off (or Imm, for calls) during pass 2 and
	// refuses to assemble while an unresolved Ref remains.
	Ref string
}

// Wide reports whether the instruction occupies two encoded slots.
func (ins Instruction) Wide() bool {
	return ins.Code == opLdImm64
}

// IsJump reports whether the instruction's offset field is a jump
// target (and therefore subject to label resolution).
func (ins Instruction) IsJump() bool {
	if ins.Code&0x07 != classJMP && ins.Code&0x07 != classJMP32 {
		return false
	}

	op := JumpCond(ins.Code & 0xf0)

	return op != opCall && op != opExit
}

func (ins Instruction) isCall() bool {
	return ins.Code&0x07 == classJMP && JumpCond(ins.Code&0xf0) == opCall
}

// LoadsMapFD reports whether the instruction embeds a map file
// descriptor in its immediate.
func (ins Instruction) LoadsMapFD() bool {
	return ins.Wide() && ins.Src == PseudoMapFD
}

func (ins Instruction) validate() error {
	if !ins.Dst.Valid() {
		return fmt.Errorf("%w: dst %s", ErrInvalidRegister, ins.Dst)
	}

	// src doubles as a pseudo-value selector on wide and call
	// instructions, where 1 is meaningful rather than r1.
	if !ins.Src.Valid() {
		return fmt.Errorf("%w: src %s", ErrInvalidRegister, ins.Src)
	}

	return nil
}

func (ins Instruction) String() string {
	if ins.Ref != "" {
		return fmt.Sprintf("op=%#02x dst=%s src=%s ref=%q imm=%d", ins.Code, ins.Dst, ins.Src, ins.Ref, ins.Imm)
	}

	return fmt.Sprintf("op=%#02x dst=%s src=%s off=%d imm=%d", ins.Code, ins.Dst, ins.Src, ins.Off, ins.Imm)
}

// RawInstruction is one packed 8-byte instruction slot, laid out
// exactly as the kernel consumes it.
type RawInstruction struct {
	Code uint8
	Regs uint8
	Off  int16
	Imm  int32
}

// DstReg extracts the destination register from the packed register
// byte.
func (r RawInstruction) DstReg() Register {
	return Register(r.Regs & 0x0f)
}

// SrcReg extracts the source register from the packed register byte.
func (r RawInstruction) SrcReg() Register {
	return Register(r.Regs >> 4)
}

// pack encodes a logical instruction into one or two raw slots.
func (ins Instruction) pack() []RawInstruction {
	lo := RawInstruction{
		Code: ins.Code,
		Regs: uint8(ins.Src)<<4 | uint8(ins.Dst)&0x0f,
		Off:  ins.Off,
		Imm:  int32(ins.Imm),
	}

	if !ins.Wide() {
		return []RawInstruction{lo}
	}

	// The second slot of an ld_imm64 pair carries the upper half of
	// the immediate; every other field must be zero.
	hi := RawInstruction{Imm: int32(ins.Imm >> 32)}

	return []RawInstruction{lo, hi}
}

// Unpack rebuilds logical instructions from raw slots, fusing
// ld_imm64 pairs back into single wide instructions. It is the inverse
// of assembly and exists chiefly so encodings can be verified.
func Unpack(raw []RawInstruction) ([]Instruction, error) {
	out := make([]Instruction, 0, len(raw))

	for i := 0; i < len(raw); i++ {
		slot := raw[i]

		ins := Instruction{
			Code: slot.Code,
			Dst:  slot.DstReg(),
			Src:  slot.SrcReg(),
			Off:  slot.Off,
			Imm:  int64(slot.Imm),
		}

		if slot.Code == opLdImm64 {
			if i+1 >= len(raw) {
				return nil, ErrBadWidePair
			}

			i++
			ins.Imm = int64(uint32(slot.Imm)) | int64(raw[i].Imm)<<32
		}

		out = append(out, ins)
	}

	return out, nil
}

// Marshal writes raw instructions in the kernel's little-endian slot
// layout: opcode, packed registers, offset, immediate.
func Marshal(raw []RawInstruction) []byte {
	buf := make([]byte, len(raw)*SlotSize)

	for i, ins := range raw {
		b := buf[i*SlotSize:]
		b[0] = ins.Code
		b[1] = ins.Regs
		binary.LittleEndian.PutUint16(b[2:], uint16(ins.Off))
		binary.LittleEndian.PutUint32(b[4:], uint32(ins.Imm))
	}

	return buf
}

// Unmarshal parses a little-endian instruction stream back into raw
// slots.
func Unmarshal(buf []byte) ([]RawInstruction, error) {
	if len(buf)%SlotSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedStream, len(buf))
	}

	raw := make([]RawInstruction, len(buf)/SlotSize)

	for i := range raw {
		b := buf[i*SlotSize:]
		raw[i] = RawInstruction{
			Code: b[0],
			Regs: b[1],
			Off:  int16(binary.LittleEndian.Uint16(b[2:])),
			Imm:  int32(binary.LittleEndian.Uint32(b[4:])),
		}
	}

	return raw, nil
}
