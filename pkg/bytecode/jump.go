package bytecode

import (
	"fmt"
	"math"

	"github.com/chazu/gsclink/pkg/opcode"
)

// Jump is a forward branch. Its target is bound after construction with
// SetTarget, once, and the displacement is written by Arena.PatchBranches.
// Until then the operand holds 0xFFFF.
type Jump struct {
	base
	target NodeID
}

// NewJump returns a branch node. op must be one of Jump, JumpOnFalse,
// JumpOnTrue, JumpOnFalseExpr or JumpOnTrueExpr.
func NewJump(op opcode.Op, e opcode.Endian) (*Jump, error) {
	if !op.IsJump() {
		return nil, fmt.Errorf("%w: %s", ErrNotJump, op)
	}
	return &Jump{base: base{op, e}}, nil
}

// SetTarget binds the branch. Execution continues after the target node.
func (j *Jump) SetTarget(target NodeID) error {
	if target == NoNode {
		return fmt.Errorf("%w: target is empty", ErrUnknownNode)
	}
	if j.target != NoNode {
		return fmt.Errorf("%w: already jumps past node %d", ErrJumpTargetSet, j.target)
	}
	j.target = target
	return nil
}

// Target returns the bound target, or NoNode.
func (j *Jump) Target() NodeID { return j.target }

func (j *Jump) PayloadOffset(addr uint32) uint32 { return Align(addr+j.tag(), 2) }
func (j *Jump) Size(addr uint32) uint32 { return j.PayloadOffset(addr) + 2 - addr }

func (j *Jump) Encode(dst []byte, addr uint32, tag uint16) error {
	size := j.Size(addr)
	if err := j.check(dst, size); err != nil {
		return err
	}
	j.putTag(dst, tag)
	dst[size-2] = Placeholder
	dst[size-1] = Placeholder
	return nil
}

// patch writes the displacement into an encoded jump.
func (j *Jump) patch(dst []byte, addr uint32, disp int16) {
	off := j.PayloadOffset(addr) - addr
	j.put16(dst[off:], uint16(disp))
}

func (j *Jump) Describe(Namer) string {
	if j.target == NoNode {
		return "-> ?"
	}
	return fmt.Sprintf("-> past #%d", j.target)
}

// BranchDisplacement returns the distance from the end of a branch at
// [from, from+fromSize) to the end of its target at [to, to+toSize).
func BranchDisplacement(from, fromSize, to, toSize uint32) (int16, error) {
	d := (int64(to) + int64(toSize)) - (int64(from) + int64(fromSize))
	if d < math.MinInt16 || d > math.MaxInt16 {
		return 0, fmt.Errorf("%w: %d bytes", ErrBranchOverflow, d)
	}
	return int16(d), nil
}

// ReadDisplacement decodes the displacement of an encoded jump.
func ReadDisplacement(dst []byte, addr uint32, j *Jump) int16 {
	off := j.PayloadOffset(addr) - addr
	return int16(j.endian.ByteOrder().Uint16(dst[off:]))
}
