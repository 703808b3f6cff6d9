package bytecode

import (
	"fmt"

	"github.com/chazu/gsclink/pkg/opcode"
)

// CallContext selects the call family member.
type CallContext uint8

const (
	CallMethod   CallContext = 1 << iota // called on an explicit object
	CallThreaded                         // runs in a new thread
)

func (c CallContext) callOp() opcode.Op {
	switch {
	case c&CallMethod != 0 && c&CallThreaded != 0:
		return opcode.OpScriptMethodThreadCall
	case c&CallMethod != 0:
		return opcode.OpScriptMethodCall
	case c&CallThreaded != 0:
		return opcode.OpScriptThreadCall
	}
	return opcode.OpScriptFunctionCall
}

func (c CallContext) pointerOp() opcode.Op {
	// Each pointer variant directly follows its direct-call counterpart.
	return c.callOp() + 1
}

// Call invokes an imported function by hash.
//
// Layout: tag, parameter count, import flags (little-endian only), then the
// function hash aligned to four times the tag width, followed by padding.
type Call struct {
	base
	sym    Symbol
	fn     uint32
	params uint8
	flags  uint8
}

// NewCall returns a direct call through import sym.
func NewCall(ctx CallContext, sym Symbol, fn uint32, params, flags uint8, e opcode.Endian) *Call {
	return &Call{base: base{ctx.callOp(), e}, sym: sym, fn: fn, params: params, flags: flags}
}

func (c *Call) Symbol() Symbol { return c.sym }

// Function returns the called function hash.
func (c *Call) Function() uint32 { return c.fn }

func (c *Call) PayloadOffset(addr uint32) uint32 {
	return Align(addr+2*c.tag(), 4*c.tag())
}

func (c *Call) Size(addr uint32) uint32 {
	return c.PayloadOffset(addr) + 4*c.tag() - addr
}

func (c *Call) Encode(dst []byte, addr uint32, tag uint16) error {
	if err := c.check(dst, c.Size(addr)); err != nil {
		return err
	}
	c.putTag(dst, tag)
	dst[c.tag()] = c.params
	if c.endian == opcode.LittleEndian {
		dst[3] = c.flags
	}
	c.put32(dst[c.PayloadOffset(addr)-addr:], c.fn)
	return nil
}

func (c *Call) Describe(names Namer) string {
	return fmt.Sprintf("%s(%d)", describeHash(names, c.fn), c.params)
}

// CallPointer invokes the function pointer on top of the stack.
type CallPointer struct {
	base
	params uint8
}

// NewCallPointer returns a call through a function pointer.
func NewCallPointer(ctx CallContext, params uint8, e opcode.Endian) *CallPointer {
	return &CallPointer{base: base{ctx.pointerOp(), e}, params: params}
}

func (c *CallPointer) PayloadOffset(addr uint32) uint32 { return addr + c.tag() }

func (c *CallPointer) Size(addr uint32) uint32 {
	if c.endian == opcode.LittleEndian {
		return c.tag() + 2
	}
	return c.tag() + 1
}

func (c *CallPointer) Encode(dst []byte, addr uint32, tag uint16) error {
	if err := c.check(dst, c.Size(addr)); err != nil {
		return err
	}
	c.putTag(dst, tag)
	dst[c.tag()] = c.params
	return nil
}

func (c *CallPointer) Describe(Namer) string {
	return fmt.Sprintf("(%d)", c.params)
}

// FuncPtr pushes a pointer to an imported function. The hash is aligned to
// 8 on little-endian targets, where it is followed by four zero bytes, and
// to 4 on big-endian targets.
type FuncPtr struct {
	base
	sym Symbol
	fn  uint32
}

// NewFuncPtr returns a GetFunction node for import sym.
func NewFuncPtr(sym Symbol, fn uint32, e opcode.Endian) *FuncPtr {
	return &FuncPtr{base: base{opcode.OpGetFunction, e}, sym: sym, fn: fn}
}

func (f *FuncPtr) Symbol() Symbol { return f.sym }

// Function returns the referenced function hash.
func (f *FuncPtr) Function() uint32 { return f.fn }

func (f *FuncPtr) PayloadOffset(addr uint32) uint32 {
	if f.endian == opcode.LittleEndian {
		return Align(addr+f.tag(), 8)
	}
	return Align(addr+f.tag(), 4)
}

func (f *FuncPtr) Size(addr uint32) uint32 {
	if f.endian == opcode.LittleEndian {
		return f.PayloadOffset(addr) + 8 - addr
	}
	return f.PayloadOffset(addr) + 4 - addr
}

func (f *FuncPtr) Encode(dst []byte, addr uint32, tag uint16) error {
	if err := f.check(dst, f.Size(addr)); err != nil {
		return err
	}
	f.putTag(dst, tag)
	f.put32(dst[f.PayloadOffset(addr)-addr:], f.fn)
	return nil
}

func (f *FuncPtr) Describe(names Namer) string {
	return "&" + describeHash(names, f.fn)
}
