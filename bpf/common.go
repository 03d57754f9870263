package bpf

import "errors"

var (
	ErrKeyNotFound       = errors.New("key not found in map")
	ErrKeyExists         = errors.New("key already exists in map")
	ErrMapFull           = errors.New("map reached its max_entries limit")
	ErrKeySizeMismatch   = errors.New("key length does not match map key size")
	ErrValueSizeMismatch = errors.New("value length does not match map value size")
	ErrNotPerCPU         = errors.New("map kind does not hold per-cpu values")
)
