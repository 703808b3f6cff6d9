package bytecode

import (
	"fmt"

	"github.com/chazu/gsclink/pkg/opcode"
)

// StringRef pushes a string literal. The operand is a placeholder that the
// VM replaces with the string's address at load time, using the string
// table's fixup records.
type StringRef struct {
	base
	sym   Symbol
	value string
}

// NewStringRef returns a GetString or GetIString node for string entry sym.
func NewStringRef(op opcode.Op, sym Symbol, value string, e opcode.Endian) (*StringRef, error) {
	if op != opcode.OpGetString && op != opcode.OpGetIString {
		return nil, fmt.Errorf("%w: %s is not a string load", ErrWrongOperation, op)
	}
	return &StringRef{base: base{op, e}, sym: sym, value: value}, nil
}

func (s *StringRef) Symbol() Symbol { return s.sym }

func (s *StringRef) width() uint32 {
	if s.endian == opcode.LittleEndian {
		return 4
	}
	return 2
}

func (s *StringRef) PayloadOffset(addr uint32) uint32 { return Align(addr+s.tag(), s.width()) }
func (s *StringRef) Size(addr uint32) uint32 { return s.PayloadOffset(addr) + s.width() - addr }

func (s *StringRef) Encode(dst []byte, addr uint32, tag uint16) error {
	size := s.Size(addr)
	if err := s.check(dst, size); err != nil {
		return err
	}
	s.putTag(dst, tag)
	for i := s.PayloadOffset(addr) - addr; i < size; i++ {
		dst[i] = Placeholder
	}
	return nil
}

func (s *StringRef) Describe(Namer) string { return fmt.Sprintf("%q", s.value) }

// HashRef carries a 32-bit hash operand aligned to 4. It backs GetHash and
// the field variable loads.
type HashRef struct {
	base
	hash uint32
}

var hashRefOps = map[opcode.Op]bool{
	opcode.OpGetHash:                   true,
	opcode.OpEvalFieldVariable:         true,
	opcode.OpEvalFieldVariableRef:      true,
	opcode.OpClearFieldVariable:        true,
	opcode.OpEvalLevelFieldVariable:    true,
	opcode.OpEvalLevelFieldVariableRef: true,
	opcode.OpEvalSelfFieldVariable:     true,
	opcode.OpEvalSelfFieldVariableRef:  true,
	opcode.OpGetObjectType:             true,
}

// NewHashRef returns a node pushing or addressing hash h.
func NewHashRef(op opcode.Op, h uint32, e opcode.Endian) (*HashRef, error) {
	if !hashRefOps[op] {
		return nil, fmt.Errorf("%w: %s does not take a hash", ErrWrongOperation, op)
	}
	return &HashRef{base: base{op, e}, hash: h}, nil
}

// Hash returns the operand.
func (h *HashRef) Hash() uint32 { return h.hash }

func (h *HashRef) PayloadOffset(addr uint32) uint32 { return Align(addr+h.tag(), 4) }
func (h *HashRef) Size(addr uint32) uint32 { return h.PayloadOffset(addr) + 4 - addr }

func (h *HashRef) Encode(dst []byte, addr uint32, tag uint16) error {
	if err := h.check(dst, h.Size(addr)); err != nil {
		return err
	}
	h.putTag(dst, tag)
	h.put32(dst[h.PayloadOffset(addr)-addr:], h.hash)
	return nil
}

func (h *HashRef) Describe(names Namer) string { return describeHash(names, h.hash) }

// GlobalRef pushes a global object. Its operand is a placeholder resolved by
// the VM from the globals table.
type GlobalRef struct {
	base
	sym  Symbol
	hash uint32
}

// NewGlobalRef returns a GetGlobalObject or GetGlobalObjectRef node.
func NewGlobalRef(sym Symbol, h uint32, ref bool, e opcode.Endian) *GlobalRef {
	op := opcode.OpGetGlobalObject
	if ref {
		op = opcode.OpGetGlobalObjectRef
	}
	return &GlobalRef{base: base{op, e}, sym: sym, hash: h}
}

func (g *GlobalRef) Symbol() Symbol { return g.sym }

func (g *GlobalRef) PayloadOffset(addr uint32) uint32 { return Align(addr+g.tag(), 2) }
func (g *GlobalRef) Size(addr uint32) uint32 { return g.PayloadOffset(addr) + 2 - addr }

func (g *GlobalRef) Encode(dst []byte, addr uint32, tag uint16) error {
	size := g.Size(addr)
	if err := g.check(dst, size); err != nil {
		return err
	}
	g.putTag(dst, tag)
	dst[size-2] = Placeholder
	dst[size-1] = Placeholder
	return nil
}

func (g *GlobalRef) Describe(names Namer) string { return describeHash(names, g.hash) }
