// Package bpf manages the kernel objects behind loaded programs: maps
// of every supported kind, the programs themselves, and the links that
// attach them to hook points.
//
// The package sits on top of the sys syscall bridge and consumes
// assembled instruction streams from the asm package. It contains no
// policy: callers decide what to load and where to attach it, and the
// kernel's verifier decides whether a program is acceptable.
package bpf
