package asm

// Constructors for every instruction variant. Register and immediate
// operands are carried as-is and validated when the program is
// assembled, so a mistyped register fails before any kernel
// interaction.

// Mov64Imm loads a 32-bit immediate into dst: dst = imm.
func Mov64Imm(dst Register, imm int32) Instruction {
	return Instruction{Code: classALU64 | uint8(Mov) | srcK, Dst: dst, Imm: int64(imm)}
}

// Mov64Reg copies src into dst: dst = src.
func Mov64Reg(dst, src Register) Instruction {
	return Instruction{Code: classALU64 | uint8(Mov) | srcX, Dst: dst, Src: src}
}

// Mov32Imm loads an immediate into the 32-bit subregister of dst,
// zero-extending into the upper half.
func Mov32Imm(dst Register, imm int32) Instruction {
	return Instruction{Code: classALU | uint8(Mov) | srcK, Dst: dst, Imm: int64(imm)}
}

// Mov32Reg copies the 32-bit subregister of src into dst,
// zero-extending into the upper half.
func Mov32Reg(dst, src Register) Instruction {
	return Instruction{Code: classALU | uint8(Mov) | srcX, Dst: dst, Src: src}
}

// ALU64Imm performs dst = dst <op> imm on the full 64-bit register.
func ALU64Imm(op ALUOp, dst Register, imm int32) Instruction {
	return Instruction{Code: classALU64 | uint8(op) | srcK, Dst: dst, Imm: int64(imm)}
}

// ALU64Reg performs dst = dst <op> src on the full 64-bit registers.
func ALU64Reg(op ALUOp, dst, src Register) Instruction {
	return Instruction{Code: classALU64 | uint8(op) | srcX, Dst: dst, Src: src}
}

// ALU32Imm performs dst = int32(dst) <op> imm, zero-extending the
// result.
func ALU32Imm(op ALUOp, dst Register, imm int32) Instruction {
	return Instruction{Code: classALU | uint8(op) | srcK, Dst: dst, Imm: int64(imm)}
}

// ALU32Reg performs dst = int32(dst) <op> int32(src), zero-extending
// the result.
func ALU32Reg(op ALUOp, dst, src Register) Instruction {
	return Instruction{Code: classALU | uint8(op) | srcX, Dst: dst, Src: src}
}

// LoadImm64 loads a full 64-bit immediate into dst. Encodes to two
// slots.
func LoadImm64(dst Register, imm uint64) Instruction {
	return Instruction{Code: opLdImm64, Dst: dst, Imm: int64(imm)}
}

// LoadMapFD loads a map file descriptor into dst as a
// kernel-relocatable map reference. The assembler records fd so the
// map object can be kept alive for the duration of the load.
func LoadMapFD(dst Register, fd int) Instruction {
	return Instruction{Code: opLdImm64, Dst: dst, Src: PseudoMapFD, Imm: int64(uint32(fd))}
}

// LoadMem loads from memory: dst = *(size *)(src + off).
func LoadMem(size Width, dst, src Register, off int16) Instruction {
	return Instruction{Code: classLDX | uint8(size) | modeMEM, Dst: dst, Src: src, Off: off}
}

// LoadAbs is the legacy direct packet access load:
// R0 = *(size *)(skb->data + imm).
func LoadAbs(size Width, imm int32) Instruction {
	return Instruction{Code: classLD | uint8(size) | modeABS, Imm: int64(imm)}
}

// StoreMem stores a register to memory: *(size *)(dst + off) = src.
func StoreMem(size Width, dst Register, off int16, src Register) Instruction {
	return Instruction{Code: classSTX | uint8(size) | modeMEM, Dst: dst, Src: src, Off: off}
}

// StoreImm stores an immediate to memory: *(size *)(dst + off) = imm.
func StoreImm(size Width, dst Register, off int16, imm int32) Instruction {
	return Instruction{Code: classST | uint8(size) | modeMEM, Dst: dst, Off: off, Imm: int64(imm)}
}

// AtomicAdd64 atomically adds src to *(u64 *)(dst + off).
func AtomicAdd64(dst Register, off int16, src Register) Instruction {
	return Instruction{Code: classSTX | uint8(DW) | modeAtomic, Dst: dst, Src: src, Off: off}
}

// Jump unconditionally transfers control to label.
func Jump(label string) Instruction {
	return Instruction{Code: classJMP | uint8(JA), Ref: label}
}

// JumpOff unconditionally jumps a fixed number of slots past the next
// instruction.
func JumpOff(off int16) Instruction {
	return Instruction{Code: classJMP | uint8(JA), Off: off}
}

// JumpImm jumps to label when dst <cond> imm holds.
func JumpImm(cond JumpCond, dst Register, imm int32, label string) Instruction {
	return Instruction{Code: classJMP | uint8(cond) | srcK, Dst: dst, Imm: int64(imm), Ref: label}
}

// JumpImmOff is JumpImm with an already-numeric slot offset.
func JumpImmOff(cond JumpCond, dst Register, imm int32, off int16) Instruction {
	return Instruction{Code: classJMP | uint8(cond) | srcK, Dst: dst, Imm: int64(imm), Off: off}
}

// JumpReg jumps to label when dst <cond> src holds.
func JumpReg(cond JumpCond, dst, src Register, label string) Instruction {
	return Instruction{Code: classJMP | uint8(cond) | srcX, Dst: dst, Src: src, Ref: label}
}

// Call invokes a kernel helper by its symbolic name. Unknown names are
// rejected at assembly.
func Call(helper string) Instruction {
	num, ok := LookupHelper(helper)
	if !ok {
		// Resolution is re-attempted (and properly reported) during
		// assembly; carry the name so the error can quote it.
		return Instruction{Code: classJMP | uint8(opCall), Ref: helper, Imm: -1}
	}

	return Instruction{Code: classJMP | uint8(opCall), Imm: int64(num)}
}

// CallNum invokes a kernel helper by number.
func CallNum(num int32) Instruction {
	return Instruction{Code: classJMP | uint8(opCall), Imm: int64(num)}
}

// CallLabel emits a bpf-to-bpf call to the function starting at label.
func CallLabel(label string) Instruction {
	return Instruction{Code: classJMP | uint8(opCall), Src: PseudoCall, Ref: label}
}

// Exit returns from the program with R0 as the result.
func Exit() Instruction {
	return Instruction{Code: classJMP | uint8(opExit)}
}
