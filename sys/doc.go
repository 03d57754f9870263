// Package sys is the only place that touches the bpf(2) kernel ABI.
//
// It marshals per-command attribute structures (laid out bit-for-bit
// as the kernel's bpf_attr union members), performs the multiplexed
// syscall, and classifies errno results. Higher layers never see a
// raw errno or construct an attribute buffer themselves.
//
// Only linux/amd64 and linux/arm64 are supported: attribute pointers
// are passed as 64-bit words.
package sys
