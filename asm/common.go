package asm

import "errors"

var (
	ErrUnknownLabel     = errors.New("reference to undeclared label")
	ErrDuplicateLabel   = errors.New("label declared more than once")
	ErrOffsetOutOfRange = errors.New("jump offset does not fit in 16 bits")
	ErrInvalidRegister  = errors.New("register outside r0-r10")
	ErrUnknownHelper    = errors.New("unknown helper function")
	ErrProgramTooLarge  = errors.New("program exceeds kernel instruction ceiling")
	ErrTruncatedStream  = errors.New("instruction stream is not a whole number of slots")
	ErrBadWidePair      = errors.New("wide immediate missing its second slot")
)
