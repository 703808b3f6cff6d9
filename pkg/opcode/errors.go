package opcode

import "errors"

var (
	ErrUnknownOpcode  = errors.New("unknown opcode")
	ErrValueConflict  = errors.New("opcode value assigned twice")
	ErrValueRange     = errors.New("opcode value out of range")
	ErrBadEndian      = errors.New("unknown byte order")
	ErrBlobVersion    = errors.New("unsupported opcode blob version")
	ErrTargetNotFound = errors.New("target definition not found")
)
