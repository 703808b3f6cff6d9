package bytecode

import (
	"fmt"

	"github.com/chazu/gsclink/pkg/opcode"
)

// Placeholder fills operand bytes whose value is only known after layout.
const Placeholder = 0xFF

// Instruction is one node of a stream. Size and PayloadOffset are pure
// functions of the node's state and the address it is placed at.
type Instruction interface {
	// Op returns the logical operation the node encodes.
	Op() opcode.Op

	// PayloadOffset returns the absolute address of the first operand byte
	// when the node is placed at addr.
	PayloadOffset(addr uint32) uint32

	// Size returns the number of bytes the node occupies at addr.
	Size(addr uint32) uint32

	// Encode writes the node into dst, which spans exactly
	// [addr, addr+Size(addr)) of the image. tag is the target's numeric
	// value for Op().
	Encode(dst []byte, addr uint32, tag uint16) error
}

// Finalizer is implemented by nodes whose operation depends on state that
// is frozen when the stream is laid out. prev is the preceding instruction,
// or nil for the head of the stream.
type Finalizer interface {
	Finalize(prev Instruction) error
}

// SymbolKind names the table a Symbol handle points into.
type SymbolKind uint8

const (
	SymbolImport SymbolKind = iota + 1
	SymbolString
	SymbolGlobal
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolImport:
		return "import"
	case SymbolString:
		return "string"
	case SymbolGlobal:
		return "global"
	default:
		return fmt.Sprintf("SymbolKind(%d)", k)
	}
}

// Symbol is a handle to a symbol table entry.
type Symbol struct {
	Kind SymbolKind
	ID   int
}

// Referencer is implemented by nodes that use a symbol table entry.
type Referencer interface {
	Symbol() Symbol
}

// Namer resolves hashes to identifiers for listings.
type Namer interface {
	Name(hash uint32) (string, bool)
}

// Describer is implemented by nodes that can render their operand.
type Describer interface {
	Describe(names Namer) string
}

// Align rounds v up to a multiple of a, which must be a power of two.
func Align(v, a uint32) uint32 {
	return (v + a - 1) &^ (a - 1)
}

// base carries the fields every node shares.
type base struct {
	op     opcode.Op
	endian opcode.Endian
}

func (b *base) Op() opcode.Op { return b.op }

// Endian returns the byte order the node is encoded in.
func (b *base) Endian() opcode.Endian { return b.endian }

func (b *base) tag() uint32 { return b.endian.TagWidth() }

func (b *base) check(dst []byte, size uint32) error {
	if uint32(len(dst)) < size {
		return fmt.Errorf("%w: %s needs %d bytes, have %d", ErrShortBuffer, b.op, size, len(dst))
	}
	return nil
}

func (b *base) putTag(dst []byte, tag uint16) {
	if b.endian == opcode.BigEndian {
		dst[0] = byte(tag)
		return
	}
	b.endian.ByteOrder().PutUint16(dst, tag)
}

func (b *base) put16(dst []byte, v uint16) { b.endian.ByteOrder().PutUint16(dst, v) }
func (b *base) put32(dst []byte, v uint32) { b.endian.ByteOrder().PutUint32(dst, v) }

func describeHash(names Namer, h uint32) string {
	if names != nil {
		if s, ok := names.Name(h); ok {
			return s
		}
	}
	return fmt.Sprintf("0x%08X", h)
}

// ---------------------------------------------------------------------------
// Plain operations
// ---------------------------------------------------------------------------

// Plain is an operation without operand bytes.
type Plain struct {
	base
}

// NewPlain returns a node for an operation that takes no operand.
func NewPlain(op opcode.Op, e opcode.Endian) (*Plain, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: 0x%02X", opcode.ErrUnknownOpcode, byte(op))
	}
	if op.HasOperand() {
		return nil, fmt.Errorf("%w: %s", ErrOperandRequired, op)
	}
	return &Plain{base{op, e}}, nil
}

func (p *Plain) PayloadOffset(addr uint32) uint32 { return addr + p.tag() }
func (p *Plain) Size(addr uint32) uint32 { return p.tag() }

func (p *Plain) Encode(dst []byte, addr uint32, tag uint16) error {
	if err := p.check(dst, p.Size(addr)); err != nil {
		return err
	}
	p.putTag(dst, tag)
	return nil
}

// Marker is a zero-size label. It encodes nothing and serves as a branch
// anchor.
type Marker struct {
	base
	Label string
}

// NewMarker returns a label node.
func NewMarker(label string, e opcode.Endian) *Marker {
	return &Marker{base: base{opcode.OpNop, e}, Label: label}
}

func (m *Marker) PayloadOffset(addr uint32) uint32 { return addr }
func (m *Marker) Size(addr uint32) uint32 { return 0 }
func (m *Marker) Encode(dst []byte, addr uint32, tag uint16) error { return nil }
func (m *Marker) Describe(Namer) string { return m.Label + ":" }

// Return ends a function. It encodes as Return when the previous
// instruction carries an operand and as End otherwise.
type Return struct {
	base
}

// NewReturn returns a function terminator.
func NewReturn(e opcode.Endian) *Return {
	return &Return{base: base{opcode.OpEnd, e}}
}

func (r *Return) Finalize(prev Instruction) error {
	r.op = opcode.OpEnd
	if prev != nil && prev.Op().HasOperand() {
		r.op = opcode.OpReturn
	}
	return nil
}

func (r *Return) PayloadOffset(addr uint32) uint32 { return addr + r.tag() }
func (r *Return) Size(addr uint32) uint32 { return r.tag() }

func (r *Return) Encode(dst []byte, addr uint32, tag uint16) error {
	if err := r.check(dst, r.Size(addr)); err != nil {
		return err
	}
	r.putTag(dst, tag)
	return nil
}
