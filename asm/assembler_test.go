package asm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tcassar-diss/rawbpf/asm"
)

func TestAssembler_ForwardJump(t *testing.T) {
	var a asm.Assembler

	a.Emit(asm.Mov64Imm(asm.R0, 1))
	a.Emit(asm.Jump("out"))
	a.Emit(asm.Mov64Imm(asm.R0, 2))
	a.Label("out")
	a.Emit(asm.Exit())

	prog, err := a.Assemble(asm.ProgTypeSocketFilter)
	require.NoError(t, err)

	insns := prog.Instructions()
	require.Len(t, insns, 4)

	// The jump at slot 1 skips exactly the one instruction between it
	// and the label.
	require.Equal(t, int16(1), insns[1].Off)
}

func TestAssembler_BackwardJump(t *testing.T) {
	var a asm.Assembler

	a.Label("loop")
	a.Emit(asm.ALU64Imm(asm.Sub, asm.R1, 1))
	a.Emit(asm.JumpImm(asm.JGT, asm.R1, 0, "loop"))
	a.Emit(asm.Exit())

	prog, err := a.Assemble(asm.ProgTypeSocketFilter)
	require.NoError(t, err)

	insns := prog.Instructions()
	require.Equal(t, int16(-2), insns[1].Off)
}

func TestAssembler_SelfJump(t *testing.T) {
	var a asm.Assembler

	a.Emit(asm.Jump("next"))
	a.Label("next")
	a.Emit(asm.Exit())

	prog, err := a.Assemble(asm.ProgTypeSocketFilter)
	require.NoError(t, err)
	require.Equal(t, int16(0), prog.Instructions()[0].Off)
}

func TestAssembler_WideImmediateShiftsSlots(t *testing.T) {
	var a asm.Assembler

	// ld_imm64 takes two slots, so the jump over it must have offset 2.
	a.Emit(asm.Jump("past"))
	a.Emit(asm.LoadImm64(asm.R1, 0xdeadbeefcafe))
	a.Label("past")
	a.Emit(asm.Exit())

	prog, err := a.Assemble(asm.ProgTypeKprobe)
	require.NoError(t, err)

	insns := prog.Instructions()
	require.Len(t, insns, 4)
	require.Equal(t, int16(2), insns[0].Off)
}

func TestAssembler_UnknownLabel(t *testing.T) {
	var a asm.Assembler

	a.Emit(asm.CallLabel("unknown-label"))
	a.Emit(asm.Exit())

	prog, err := a.Assemble(asm.ProgTypeSocketFilter)
	require.ErrorIs(t, err, asm.ErrUnknownLabel)
	require.ErrorContains(t, err, "unknown-label")
	require.Nil(t, prog)
}

func TestAssembler_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(a *asm.Assembler)
		err   error
	}{
		{
			name: "undeclared jump target",
			build: func(a *asm.Assembler) {
				a.Emit(asm.Jump("nowhere"))
				a.Emit(asm.Exit())
			},
			err: asm.ErrUnknownLabel,
		},
		{
			name: "duplicate label",
			build: func(a *asm.Assembler) {
				a.Label("here")
				a.Emit(asm.Exit())
				a.Label("here")
			},
			err: asm.ErrDuplicateLabel,
		},
		{
			name: "invalid destination register",
			build: func(a *asm.Assembler) {
				a.Emit(asm.Mov64Imm(asm.Register(12), 0))
				a.Emit(asm.Exit())
			},
			err: asm.ErrInvalidRegister,
		},
		{
			name: "unknown helper",
			build: func(a *asm.Assembler) {
				a.Emit(asm.Call("frob_the_widget"))
				a.Emit(asm.Exit())
			},
			err: asm.ErrUnknownHelper,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a asm.Assembler
			tt.build(&a)

			prog, err := a.Assemble(asm.ProgTypeSocketFilter)

			if !errors.Is(err, tt.err) {
				t.Errorf("Assemble() err = %v, expected %v", err, tt.err)
			}

			if prog != nil {
				t.Errorf("Assemble() returned partial output alongside error")
			}
		})
	}
}

func TestAssembler_OffsetOutOfRange(t *testing.T) {
	var a asm.Assembler

	a.Emit(asm.Jump("far"))

	// Wide immediates count double, so half the slot distance in
	// instructions is enough to overflow the signed 16-bit offset.
	for i := 0; i < 17000; i++ {
		a.Emit(asm.LoadImm64(asm.R1, uint64(i)))
	}

	a.Label("far")
	a.Emit(asm.Exit())

	_, err := a.Assemble(asm.ProgTypeSocketFilter)
	require.ErrorIs(t, err, asm.ErrOffsetOutOfRange)
}

func TestAssembler_ProgramTooLarge(t *testing.T) {
	var a asm.Assembler

	for i := 0; i < asm.MaxInstructions+1; i++ {
		a.Emit(asm.Mov64Imm(asm.R0, 0))
	}

	a.Emit(asm.Exit())

	_, err := a.Assemble(asm.ProgTypeSocketFilter)
	require.ErrorIs(t, err, asm.ErrProgramTooLarge)
}

func TestAssembler_UnreferencedAndReusedLabels(t *testing.T) {
	var a asm.Assembler

	a.Label("never-referenced")
	a.Emit(asm.Mov64Imm(asm.R0, 0))
	a.Label("out")
	a.Emit(asm.Exit())

	// Two references to the same label are fine.
	a.Emit(asm.Jump("out"))
	a.Emit(asm.Jump("out"))

	_, err := a.Assemble(asm.ProgTypeSocketFilter)
	require.NoError(t, err)
}

func TestAssembler_CollectsMapFDs(t *testing.T) {
	var a asm.Assembler

	a.Emit(asm.LoadMapFD(asm.R1, 7))
	a.Emit(asm.LoadMapFD(asm.R2, 9))
	a.Emit(asm.LoadMapFD(asm.R3, 7)) // repeat reference
	a.Emit(asm.Exit())

	prog, err := a.Assemble(asm.ProgTypeKprobe)
	require.NoError(t, err)
	require.Equal(t, []int{7, 9}, prog.MapFDs())
}

func TestAssembler_TrailingLabel(t *testing.T) {
	var a asm.Assembler

	a.Emit(asm.JumpImm(asm.JEq, asm.R1, 0, "end"))
	a.Emit(asm.Exit())
	a.Label("end")

	prog, err := a.Assemble(asm.ProgTypeSocketFilter)
	require.NoError(t, err)
	require.Equal(t, int16(1), prog.Instructions()[0].Off)
}
