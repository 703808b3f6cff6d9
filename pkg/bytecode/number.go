package bytecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/gsclink/pkg/opcode"
)

// Number pushes a numeric literal. Its operation is chosen from the value
// when the node is built:
//
//	0                     GetZero              no operand
//	float                 GetFloat             4 bytes, aligned 4
//	1..255, -255..-1      GetByte/GetNegByte   magnitude; 1 byte on big-endian,
//	                                           2 bytes aligned 2 otherwise
//	256..65535, negated   Get(Neg)UnsignedShort magnitude, 2 bytes aligned 2
//	anything else         GetInteger           4 bytes, aligned 4
//
// Integers outside [-2^31, 2^32-1] are rejected.
type Number struct {
	base
	bits  uint32 // operand bits, interpreted per op
	float bool
	value float64
}

// NewNumber builds a literal from any Go integer or float, or from a string
// holding one.
func NewNumber(v any, e opcode.Endian) (*Number, error) {
	n := &Number{base: base{endian: e}}
	var err error
	switch x := v.(type) {
	case int:
		err = n.setInt(int64(x))
	case int8:
		err = n.setInt(int64(x))
	case int16:
		err = n.setInt(int64(x))
	case int32:
		err = n.setInt(int64(x))
	case int64:
		err = n.setInt(x)
	case uint:
		err = n.setUint(uint64(x))
	case uint8:
		err = n.setUint(uint64(x))
	case uint16:
		err = n.setUint(uint64(x))
	case uint32:
		err = n.setUint(uint64(x))
	case uint64:
		err = n.setUint(x)
	case float32:
		err = n.setFloat(float64(x))
	case float64:
		err = n.setFloat(x)
	case string:
		err = n.parse(x)
	default:
		err = fmt.Errorf("%w: %v (%T)", ErrNotNumeric, v, v)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Number) parse(s string) error {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return n.setInt(i)
	}
	if u, err := strconv.ParseUint(s, 0, 64); err == nil {
		return n.setUint(u)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return n.setFloat(f)
	}
	return fmt.Errorf("%w: %q", ErrNotNumeric, s)
}

func (n *Number) setUint(u uint64) error {
	if u > math.MaxUint32 {
		return fmt.Errorf("%w: %d", ErrNumericRange, u)
	}
	return n.setInt(int64(u))
}

func (n *Number) setInt(i int64) error {
	if i < math.MinInt32 || i > math.MaxUint32 {
		return fmt.Errorf("%w: %d", ErrNumericRange, i)
	}
	n.value = float64(i)
	mag := i
	if mag < 0 {
		mag = -mag
	}
	switch {
	case i == 0:
		n.op = opcode.OpGetZero
	case mag <= 0xFF && i > 0:
		n.op = opcode.OpGetByte
	case mag <= 0xFF:
		n.op = opcode.OpGetNegByte
	case mag <= 0xFFFF && i > 0:
		n.op = opcode.OpGetUnsignedShort
	case mag <= 0xFFFF:
		n.op = opcode.OpGetNegUnsignedShort
	default:
		n.op = opcode.OpGetInteger
		n.bits = uint32(i)
		return nil
	}
	n.bits = uint32(mag)
	return nil
}

func (n *Number) setFloat(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %v", ErrNotNumeric, f)
	}
	if f == 0 {
		return n.setInt(0)
	}
	if math.Abs(f) > math.MaxFloat32 {
		return fmt.Errorf("%w: %v", ErrNumericRange, f)
	}
	n.op = opcode.OpGetFloat
	n.float = true
	n.value = f
	n.bits = math.Float32bits(float32(f))
	return nil
}

// Value returns the literal as a float64.
func (n *Number) Value() float64 { return n.value }

// IsFloat reports whether the literal was built from a float.
func (n *Number) IsFloat() bool { return n.float }

// width returns the operand width and alignment for the chosen operation.
func (n *Number) width() (size, align uint32) {
	switch n.op {
	case opcode.OpGetZero:
		return 0, 1
	case opcode.OpGetInteger, opcode.OpGetFloat:
		return 4, 4
	case opcode.OpGetByte, opcode.OpGetNegByte:
		if n.endian == opcode.BigEndian {
			return 1, 1
		}
	}
	return 2, 2
}

func (n *Number) PayloadOffset(addr uint32) uint32 {
	_, a := n.width()
	return Align(addr+n.tag(), a)
}

func (n *Number) Size(addr uint32) uint32 {
	w, _ := n.width()
	return n.PayloadOffset(addr) + w - addr
}

func (n *Number) Encode(dst []byte, addr uint32, tag uint16) error {
	if err := n.check(dst, n.Size(addr)); err != nil {
		return err
	}
	n.putTag(dst, tag)
	off := n.PayloadOffset(addr) - addr
	switch w, _ := n.width(); w {
	case 1:
		dst[off] = byte(n.bits)
	case 2:
		n.put16(dst[off:], uint16(n.bits))
	case 4:
		n.put32(dst[off:], n.bits)
	}
	return nil
}

func (n *Number) Describe(Namer) string {
	if n.float {
		return strconv.FormatFloat(n.value, 'g', -1, 32)
	}
	return strconv.FormatInt(int64(n.value), 10)
}
