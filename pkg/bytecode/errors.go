package bytecode

import "errors"

var (
	ErrNotNumeric      = errors.New("value is not numeric")
	ErrNumericRange    = errors.New("numeric value out of range")
	ErrNotJump         = errors.New("operation is not a jump")
	ErrJumpTargetSet   = errors.New("jump target already set")
	ErrJumpTargetUnset = errors.New("jump target never set")
	ErrBranchOverflow  = errors.New("branch displacement does not fit in 16 bits")
	ErrUndefinedLocal  = errors.New("undefined local variable")
	ErrLocalRemoved    = errors.New("local variable removed after use")
	ErrLocalsFrozen    = errors.New("local variables are frozen")
	ErrTooManyLocals   = errors.New("too many local variables")
	ErrOperandRequired = errors.New("operation requires an operand")
	ErrWrongOperation  = errors.New("operation not valid for this node")
	ErrUnknownNode     = errors.New("unknown node")
	ErrNodeNotInStream = errors.New("node is not linked into a stream")
	ErrAlreadyPlaced   = errors.New("node already has an address")
	ErrNotPlaced       = errors.New("node has no address")
	ErrShortBuffer     = errors.New("buffer too small for instruction")
)
