package asm_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tcassar-diss/rawbpf/asm"
)

func TestMarshalLayout(t *testing.T) {
	var a asm.Assembler

	a.Emit(asm.Mov64Imm(asm.R0, 1))
	a.Emit(asm.Exit())

	prog, err := a.Assemble(asm.ProgTypeSocketFilter)
	require.NoError(t, err)

	buf := prog.Bytes()
	require.Len(t, buf, 16)

	// mov r0, 1: opcode b7, regs 00, off 0000, imm 01000000 (LE).
	require.Equal(t, []byte{0xb7, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}, buf[:8])
	// exit: opcode 95, all other fields zero.
	require.Equal(t, []byte{0x95, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, buf[8:])
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ins  asm.Instruction
	}{
		{"mov64 imm", asm.Mov64Imm(asm.R3, -42)},
		{"mov64 reg", asm.Mov64Reg(asm.R1, asm.R9)},
		{"alu32 imm", asm.ALU32Imm(asm.Xor, asm.R5, 0x7fffffff)},
		{"alu64 reg", asm.ALU64Reg(asm.Add, asm.R6, asm.R7)},
		{"load mem", asm.LoadMem(asm.H, asm.R0, asm.R10, -16)},
		{"store imm", asm.StoreImm(asm.W, asm.R10, -8, 123)},
		{"store reg", asm.StoreMem(asm.DW, asm.R10, -24, asm.R2)},
		{"atomic add", asm.AtomicAdd64(asm.R1, 0, asm.R2)},
		{"jump off", asm.JumpImmOff(asm.JNE, asm.R4, 99, 12)},
		{"helper call", asm.Call("ktime_get_ns")},
		{"exit", asm.Exit()},
		{"wide imm", asm.LoadImm64(asm.R8, 0x0102030405060708)},
		{"wide imm negative half", asm.LoadImm64(asm.R2, 0xffffffff00000001)},
		{"map fd", asm.LoadMapFD(asm.R1, 33)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a asm.Assembler
			a.Emit(tt.ins)

			prog, err := a.Assemble(asm.ProgTypeSocketFilter)
			require.NoError(t, err)

			raw, err := asm.Unmarshal(prog.Bytes())
			require.NoError(t, err)

			decoded, err := asm.Unpack(raw)
			require.NoError(t, err)
			require.Len(t, decoded, 1)

			got := decoded[0]
			require.Equal(t, tt.ins.Code, got.Code)
			require.Equal(t, tt.ins.Dst, got.Dst)
			require.Equal(t, tt.ins.Src, got.Src)
			require.Equal(t, tt.ins.Off, got.Off)
			require.Equal(t, tt.ins.Imm, got.Imm)
		})
	}
}

func TestUnmarshalErrors(t *testing.T) {
	_, err := asm.Unmarshal(make([]byte, 12))
	require.ErrorIs(t, err, asm.ErrTruncatedStream)

	// A lone ld_imm64 first slot with no partner is rejected.
	raw, err := asm.Unmarshal([]byte{0x18, 0x01, 0x00, 0x00, 0x07, 0x00, 0x00, 0x00})
	require.NoError(t, err)

	_, err = asm.Unpack(raw)
	require.ErrorIs(t, err, asm.ErrBadWidePair)
}

func TestLookupHelper(t *testing.T) {
	num, ok := asm.LookupHelper("map_lookup_elem")
	require.True(t, ok)
	require.Equal(t, int32(1), num)

	_, ok = asm.LookupHelper("does_not_exist")
	require.False(t, ok)

	h, ok := asm.HelperInfo("ringbuf_reserve")
	require.True(t, ok)
	require.Equal(t, "5.8", h.MinKernel)
}
