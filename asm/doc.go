// Package asm models eBPF instructions and assembles them into the
// kernel's binary instruction encoding.
//
// Instructions are built with the constructor functions (Mov64Imm,
// JumpImm, LoadMapFD, ...) and fed to an Assembler, which resolves
// symbolic labels over two passes and emits an Assembled program ready
// for the load syscall. Everything in this package is pure: no kernel
// interaction happens before the result is handed to the bpf package.
package asm
