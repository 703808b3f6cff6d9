package script

import (
	"fmt"

	"github.com/chazu/gsclink/pkg/bytecode"
	"github.com/chazu/gsclink/pkg/opcode"
)

// Function is an exported function and the builder for its instruction
// stream. The stream always starts with the function's local variable
// declaration.
type Function struct {
	Function  uint32
	Namespace uint32
	Params    uint8
	Flags     ExportFlags

	script   *Script
	stream   *bytecode.Stream
	locals   *bytecode.Locals
	localsID bytecode.NodeID

	addr, size uint32 // bytecode placement, set during layout
	crc        uint32
}

func newFunction(s *Script, fn, ns uint32, params uint8, flags ExportFlags) (*Function, error) {
	f := &Function{
		Function:  fn,
		Namespace: ns,
		Params:    params,
		Flags:     flags,
		script:    s,
		stream:    s.arena.NewStream(),
		locals:    bytecode.NewLocals(s.Endian()),
	}
	id, err := f.stream.Append(f.locals)
	if err != nil {
		return nil, err
	}
	f.localsID = id
	return f, nil
}

// Stream returns the function's instruction stream.
func (f *Function) Stream() *bytecode.Stream { return f.stream }

// Locals returns the function's local variable declaration.
func (f *Function) Locals() *bytecode.Locals { return f.locals }

// Address returns the bytecode address assigned by Link.
func (f *Function) Address() uint32 { return f.addr }

// Size returns the bytecode size assigned by Link.
func (f *Function) Size() uint32 { return f.size }

// Checksum returns the CRC-32 of the function's bytecode, computed by Link.
func (f *Function) Checksum() uint32 { return f.crc }

func (f *Function) endian() opcode.Endian { return f.script.Endian() }

// Append adds inst at the end of the function and records its symbol
// reference.
func (f *Function) Append(inst bytecode.Instruction) (bytecode.NodeID, error) {
	return f.InsertAfter(f.stream.Tail(), inst)
}

// InsertAfter adds inst directly after node after.
func (f *Function) InsertAfter(after bytecode.NodeID, inst bytecode.Instruction) (bytecode.NodeID, error) {
	if err := f.script.mutable(); err != nil {
		return bytecode.NoNode, err
	}
	if err := f.script.checkReference(inst); err != nil {
		return bytecode.NoNode, err
	}
	id, err := f.stream.InsertAfter(after, inst)
	if err != nil {
		return bytecode.NoNode, err
	}
	if err := f.script.reference(id, inst); err != nil {
		return bytecode.NoNode, err
	}
	return id, nil
}

// Remove unlinks a node and releases its symbol reference. Jumps that
// target the node fail at link time.
func (f *Function) Remove(id bytecode.NodeID) error {
	if id == f.localsID {
		return ErrLocalsNode
	}
	if err := f.script.mutable(); err != nil {
		return err
	}
	if err := f.stream.Unlink(id); err != nil {
		return err
	}
	f.script.release(id)
	return nil
}

// ---------------------------------------------------------------------------
// Builders
// ---------------------------------------------------------------------------

// AddOp appends an operation without operand.
func (f *Function) AddOp(op opcode.Op) (bytecode.NodeID, error) {
	p, err := bytecode.NewPlain(op, f.endian())
	if err != nil {
		return bytecode.NoNode, err
	}
	return f.Append(p)
}

// AddNumber appends a numeric literal. v may be any Go integer or float, or
// a string holding one.
func (f *Function) AddNumber(v any) (bytecode.NodeID, error) {
	n, err := bytecode.NewNumber(v, f.endian())
	if err != nil {
		return bytecode.NoNode, err
	}
	return f.Append(n)
}

// AddReturn appends the function terminator.
func (f *Function) AddReturn() (bytecode.NodeID, error) {
	return f.Append(bytecode.NewReturn(f.endian()))
}

// AddString appends a GetString load of v, interning the literal.
func (f *Function) AddString(v string) (bytecode.NodeID, error) {
	return f.addString(opcode.OpGetString, v)
}

// AddIString appends a GetIString load of a localized string reference.
func (f *Function) AddIString(v string) (bytecode.NodeID, error) {
	return f.addString(opcode.OpGetIString, v)
}

func (f *Function) addString(op opcode.Op, v string) (bytecode.NodeID, error) {
	sym := f.script.AddString(v)
	n, err := bytecode.NewStringRef(op, sym, v, f.endian())
	if err != nil {
		return bytecode.NoNode, err
	}
	return f.Append(n)
}

// AddHash appends a GetHash of h.
func (f *Function) AddHash(h uint32) (bytecode.NodeID, error) {
	return f.AddField(opcode.OpGetHash, h)
}

// AddField appends an operation taking a field or hash operand, such as
// EvalFieldVariable.
func (f *Function) AddField(op opcode.Op, h uint32) (bytecode.NodeID, error) {
	n, err := bytecode.NewHashRef(op, h, f.endian())
	if err != nil {
		return bytecode.NoNode, err
	}
	return f.Append(n)
}

// DeclareLocal declares variable h and returns its index.
func (f *Function) DeclareLocal(h uint32) (int, error) {
	return f.locals.Add(h)
}

// ReleaseLocal removes variable h from the declaration.
func (f *Function) ReleaseLocal(h uint32) error {
	return f.locals.Remove(h)
}

// AddLocal appends an access to declared variable h.
func (f *Function) AddLocal(op opcode.Op, h uint32) (bytecode.NodeID, error) {
	r, err := bytecode.NewLocalRef(op, f.locals, h, f.endian())
	if err != nil {
		return bytecode.NoNode, err
	}
	return f.Append(r)
}

// AddCall appends a direct call to fn in namespace ns, interning the import.
func (f *Function) AddCall(ctx bytecode.CallContext, fn, ns uint32, params uint8, flags ImportFlags) (bytecode.NodeID, error) {
	sym := f.script.AddImport(fn, ns, params, flags)
	return f.Append(bytecode.NewCall(ctx, sym, fn, params, uint8(flags), f.endian()))
}

// AddCallPointer appends a call through the function pointer on the stack.
func (f *Function) AddCallPointer(ctx bytecode.CallContext, params uint8) (bytecode.NodeID, error) {
	return f.Append(bytecode.NewCallPointer(ctx, params, f.endian()))
}

// AddFunctionPointer appends a GetFunction of fn in namespace ns.
func (f *Function) AddFunctionPointer(fn, ns uint32, params uint8, flags ImportFlags) (bytecode.NodeID, error) {
	sym := f.script.AddImport(fn, ns, params, flags|ImportRef)
	return f.Append(bytecode.NewFuncPtr(sym, fn, f.endian()))
}

// AddGlobal appends a load of global object h.
func (f *Function) AddGlobal(h uint32, ref bool) (bytecode.NodeID, error) {
	sym := f.script.AddGlobal(h)
	return f.Append(bytecode.NewGlobalRef(sym, h, ref, f.endian()))
}

// AddJump appends a branch whose target is bound later with SetJumpTarget.
func (f *Function) AddJump(op opcode.Op) (bytecode.NodeID, error) {
	j, err := bytecode.NewJump(op, f.endian())
	if err != nil {
		return bytecode.NoNode, err
	}
	return f.Append(j)
}

// SetJumpTarget binds jump to continue after node target.
func (f *Function) SetJumpTarget(jump, target bytecode.NodeID) error {
	if err := f.script.arena.SetBranchTarget(jump, target); err != nil {
		return fmt.Errorf("%s: %w", f.script.describe(f.Function), err)
	}
	return nil
}

// AddMarker appends a zero-size label.
func (f *Function) AddMarker(label string) (bytecode.NodeID, error) {
	return f.Append(bytecode.NewMarker(label, f.endian()))
}

// Disassemble returns a listing of the linked function.
func (f *Function) Disassemble(image []byte, names bytecode.Namer) string {
	if names == nil {
		names = f.script
	}
	return f.stream.DisassembleWithName(image, f.script.tbl, names, f.script.describe(f.Function))
}
