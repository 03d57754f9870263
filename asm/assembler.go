package asm

import (
	"fmt"
	"math"
)

// Assembler accumulates instructions and labels, then resolves and
// encodes them in one shot. The zero value is ready to use. An
// Assembler is not safe for concurrent use; Assemble itself is pure
// and leaves the Assembler reusable.
type Assembler struct {
	insns  []Instruction
	labels map[string]int // name -> index of the next emitted instruction
	dup    []string
}

// Emit appends instructions to the program.
func (a *Assembler) Emit(insns ...Instruction) {
	a.insns = append(a.insns, insns...)
}

// Label binds name to the current position. The label refers to the
// next instruction emitted after the call; binding a label past the
// final instruction is legal and resolves to one slot past the end.
func (a *Assembler) Label(name string) {
	if a.labels == nil {
		a.labels = make(map[string]int)
	}

	if _, ok := a.labels[name]; ok {
		a.dup = append(a.dup, name)
		return
	}

	a.labels[name] = len(a.insns)
}

// Assembled is an encoded program plus everything the load syscall
// needs alongside it: the map file descriptors referenced by the
// instruction stream and the program type tag. It is immutable once
// produced.
type Assembled struct {
	// Type is the kernel hook category the program targets.
	Type ProgramType

	insns  []RawInstruction
	mapFDs []int
}

// Instructions returns the packed instruction slots.
func (p *Assembled) Instructions() []RawInstruction {
	out := make([]RawInstruction, len(p.insns))
	copy(out, p.insns)

	return out
}

// MapFDs lists the map file descriptors embedded in the program via
// LoadMapFD, in first-reference order. Callers must keep these maps
// open until the program has been loaded.
func (p *Assembled) MapFDs() []int {
	out := make([]int, len(p.mapFDs))
	copy(out, p.mapFDs)

	return out
}

// Bytes encodes the program in the kernel's little-endian slot layout.
func (p *Assembled) Bytes() []byte {
	return Marshal(p.insns)
}

// Len returns the program length in slots.
func (p *Assembled) Len() int {
	return len(p.insns)
}

// PatchImm overwrites the 32-bit immediate of the instruction at the
// given slot index. It exists for field-offset relocation, which
// rewrites immediates after assembly but before load.
func (p *Assembled) PatchImm(slot int, imm int32) error {
	if slot < 0 || slot >= len(p.insns) {
		return fmt.Errorf("patch slot %d out of range (program has %d slots)", slot, len(p.insns))
	}

	p.insns[slot].Imm = imm

	return nil
}

// Assemble resolves labels over two passes and encodes the program.
//
// Pass 1 assigns every instruction its slot index, accounting for
// wide immediates occupying two slots; pass 2 rewrites label
// references into slot-relative offsets. No output is produced if any
// instruction fails to resolve.
func (a *Assembler) Assemble(typ ProgramType) (*Assembled, error) {
	if len(a.dup) > 0 {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, a.dup[0])
	}

	// Pass 1: slot assignment.
	slots := make([]int, len(a.insns)+1)
	slot := 0

	for i, ins := range a.insns {
		if err := ins.validate(); err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}

		slots[i] = slot

		slot++
		if ins.Wide() {
			slot++
		}
	}

	slots[len(a.insns)] = slot

	if slot > MaxInstructions {
		return nil, fmt.Errorf("%w: %d slots", ErrProgramTooLarge, slot)
	}

	// Pass 2: reference resolution and encoding.
	raw := make([]RawInstruction, 0, slot)

	for i, ins := range a.insns {
		if ins.Ref != "" {
			resolved, err := a.resolve(ins, slots, i)
			if err != nil {
				return nil, err
			}

			ins = resolved
		}

		raw = append(raw, ins.pack()...)
	}

	p := &Assembled{Type: typ, insns: raw}

	seen := make(map[int]bool)

	for _, ins := range a.insns {
		if ins.LoadsMapFD() {
			fd := int(uint32(ins.Imm))
			if !seen[fd] {
				seen[fd] = true
				p.mapFDs = append(p.mapFDs, fd)
			}
		}
	}

	return p, nil
}

func (a *Assembler) resolve(ins Instruction, slots []int, idx int) (Instruction, error) {
	switch {
	case ins.IsJump():
		target, ok := a.labels[ins.Ref]
		if !ok {
			return ins, fmt.Errorf("%w: %q", ErrUnknownLabel, ins.Ref)
		}

		// Offsets count slots from the instruction after the jump.
		dist := slots[target] - (slots[idx] + 1)
		if dist < math.MinInt16 || dist > math.MaxInt16 {
			return ins, fmt.Errorf("%w: %q is %d slots away", ErrOffsetOutOfRange, ins.Ref, dist)
		}

		ins.Off = int16(dist)
		ins.Ref = ""

		return ins, nil

	case ins.isCall() && ins.Src == PseudoCall:
		target, ok := a.labels[ins.Ref]
		if !ok {
			return ins, fmt.Errorf("%w: %q", ErrUnknownLabel, ins.Ref)
		}

		// bpf-to-bpf calls carry the slot distance in the immediate.
		ins.Imm = int64(slots[target] - (slots[idx] + 1))
		ins.Ref = ""

		return ins, nil

	case ins.isCall():
		num, ok := LookupHelper(ins.Ref)
		if !ok {
			return ins, fmt.Errorf("%w: %q", ErrUnknownHelper, ins.Ref)
		}

		ins.Imm = int64(num)
		ins.Ref = ""

		return ins, nil

	default:
		return ins, fmt.Errorf("instruction %d (%s) cannot take a label", idx, ins)
	}
}
