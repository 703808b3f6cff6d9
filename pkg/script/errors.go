package script

import (
	"errors"

	"github.com/chazu/gsclink/pkg/bytecode"
)

var (
	ErrDuplicateSymbol = errors.New("duplicate symbol")
	ErrDuplicateDetour = errors.New("duplicate detour")
	ErrUnknownSymbol   = errors.New("unknown symbol")
	ErrEntryReferenced = errors.New("entry is still referenced")
	ErrLocalsNode      = errors.New("the local variable declaration cannot be removed")
	ErrUnknownExport   = errors.New("unknown export")
	ErrAlreadyLinked   = errors.New("script was already linked")
	ErrTableOverflow   = errors.New("table does not fit the image header")

	// ErrOperandRequired is returned by AddOp for operations that need a
	// dedicated builder.
	ErrOperandRequired = bytecode.ErrOperandRequired
)
