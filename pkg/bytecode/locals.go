package bytecode

import (
	"fmt"
	"slices"
	"strings"

	"github.com/chazu/gsclink/pkg/opcode"
)

// MaxLocals is the largest number of variables a function can declare.
const MaxLocals = 0xFF

// Locals declares a function's local variables. It is always the first node
// of a function.
//
// Variables are kept by position in declaration order; the VM addresses
// them relative to the top of its variable stack, so the index handed to
// consumers is count-1-position. Positions stay contiguous: removing a
// variable shifts every later one down by one.
//
// The operation is SafeCreateLocalVariables while any variable is declared
// and CheckClearParams otherwise. It is decided when the stream is laid out,
// after which the set of variables can no longer change.
type Locals struct {
	base
	slots  map[uint32]int
	frozen bool
}

// NewLocals returns an empty declaration.
func NewLocals(e opcode.Endian) *Locals {
	return &Locals{
		base:  base{opcode.OpCheckClearParams, e},
		slots: make(map[uint32]int),
	}
}

// Count returns the number of declared variables.
func (l *Locals) Count() int { return len(l.slots) }

// Frozen reports whether the declaration was laid out.
func (l *Locals) Frozen() bool { return l.frozen }

func (l *Locals) index(position int) int { return len(l.slots) - 1 - position }

// Add declares a variable and returns its index. Declaring a variable that
// already exists returns its current index and changes nothing.
func (l *Locals) Add(h uint32) (int, error) {
	if pos, ok := l.slots[h]; ok {
		return l.index(pos), nil
	}
	if l.frozen {
		return 0, fmt.Errorf("%w: cannot add 0x%08X", ErrLocalsFrozen, h)
	}
	if len(l.slots) >= MaxLocals {
		return 0, fmt.Errorf("%w: limit is %d", ErrTooManyLocals, MaxLocals)
	}
	l.slots[h] = len(l.slots)
	return 0, nil
}

// TryGet returns the index of a declared variable.
func (l *Locals) TryGet(h uint32) (int, bool) {
	pos, ok := l.slots[h]
	if !ok {
		return 0, false
	}
	return l.index(pos), true
}

// Position returns the declaration position of a variable.
func (l *Locals) Position(h uint32) (int, bool) {
	pos, ok := l.slots[h]
	return pos, ok
}

// Remove drops a variable. Removing an unknown variable does nothing.
func (l *Locals) Remove(h uint32) error {
	pos, ok := l.slots[h]
	if !ok {
		return nil
	}
	if l.frozen {
		return fmt.Errorf("%w: cannot remove 0x%08X", ErrLocalsFrozen, h)
	}
	for k, p := range l.slots {
		if p > pos {
			l.slots[k] = p - 1
		}
	}
	delete(l.slots, h)
	return nil
}

// Hashes returns the declared variables in position order.
func (l *Locals) Hashes() []uint32 {
	out := make([]uint32, len(l.slots))
	for h, p := range l.slots {
		out[p] = h
	}
	return out
}

func (l *Locals) Finalize(Instruction) error {
	l.frozen = true
	if len(l.slots) > 0 {
		l.op = opcode.OpSafeCreateLocalVariables
	} else {
		l.op = opcode.OpCheckClearParams
	}
	return nil
}

// Op reflects the current declarations until the node is frozen.
func (l *Locals) Op() opcode.Op {
	if l.frozen {
		return l.op
	}
	if len(l.slots) > 0 {
		return opcode.OpSafeCreateLocalVariables
	}
	return opcode.OpCheckClearParams
}

func (l *Locals) PayloadOffset(addr uint32) uint32 {
	if len(l.slots) == 0 {
		return addr + l.tag()
	}
	return Align(addr+l.tag()+1, 4)
}

// Size follows the VM's packing: each hash is followed by a flag byte and
// padded to 4, except the last, which is padded to the tag width.
func (l *Locals) Size(addr uint32) uint32 {
	end := l.PayloadOffset(addr)
	for i := 0; i < len(l.slots); i++ {
		end += 5
		if i+1 == len(l.slots) {
			end = Align(end, l.tag())
		} else {
			end = Align(end, 4)
		}
	}
	return end - addr
}

func (l *Locals) Encode(dst []byte, addr uint32, tag uint16) error {
	if err := l.check(dst, l.Size(addr)); err != nil {
		return err
	}
	l.putTag(dst, tag)
	if len(l.slots) == 0 {
		return nil
	}
	dst[l.tag()] = byte(len(l.slots))
	off := l.PayloadOffset(addr) - addr
	for h, pos := range l.slots {
		l.put32(dst[off+uint32(pos)*8:], h)
	}
	return nil
}

func (l *Locals) Describe(names Namer) string {
	hashes := l.Hashes()
	parts := make([]string, len(hashes))
	for i, h := range hashes {
		parts[i] = describeHash(names, h)
	}
	return fmt.Sprintf("%d [%s]", len(hashes), strings.Join(parts, ", "))
}

// LocalRef reads or writes a declared variable by index. The index is
// resolved when the node is encoded.
type LocalRef struct {
	base
	locals *Locals
	hash   uint32
}

var localRefOps = []opcode.Op{
	opcode.OpEvalLocalVariableCached,
	opcode.OpEvalLocalVariableRefCached,
	opcode.OpSetWaittillVariableFieldCached,
}

// NewLocalRef returns a node referencing variable h of locals.
func NewLocalRef(op opcode.Op, locals *Locals, h uint32, e opcode.Endian) (*LocalRef, error) {
	if !slices.Contains(localRefOps, op) {
		return nil, fmt.Errorf("%w: %s is not a local variable access", ErrWrongOperation, op)
	}
	if _, ok := locals.TryGet(h); !ok {
		return nil, fmt.Errorf("%w: 0x%08X", ErrUndefinedLocal, h)
	}
	return &LocalRef{base: base{op, e}, locals: locals, hash: h}, nil
}

// Hash returns the referenced variable.
func (r *LocalRef) Hash() uint32 { return r.hash }

func (r *LocalRef) PayloadOffset(addr uint32) uint32 { return addr + r.tag() }
func (r *LocalRef) Size(addr uint32) uint32 { return r.tag() * 2 }

func (r *LocalRef) Encode(dst []byte, addr uint32, tag uint16) error {
	if err := r.check(dst, r.Size(addr)); err != nil {
		return err
	}
	idx, ok := r.locals.TryGet(r.hash)
	if !ok {
		return fmt.Errorf("%w: 0x%08X", ErrLocalRemoved, r.hash)
	}
	r.putTag(dst, tag)
	dst[r.tag()] = byte(idx)
	return nil
}

func (r *LocalRef) Describe(names Namer) string {
	idx, ok := r.locals.TryGet(r.hash)
	if !ok {
		return describeHash(names, r.hash) + " (removed)"
	}
	return fmt.Sprintf("%s [%d]", describeHash(names, r.hash), idx)
}
