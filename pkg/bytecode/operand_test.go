package bytecode

import (
	"bytes"
	"errors"
	"testing"

	"github.com/chazu/gsclink/pkg/opcode"
)

func TestCallContextOps(t *testing.T) {
	tests := []struct {
		ctx     CallContext
		call    opcode.Op
		pointer opcode.Op
	}{
		{0, opcode.OpScriptFunctionCall, opcode.OpScriptFunctionCallPointer},
		{CallMethod, opcode.OpScriptMethodCall, opcode.OpScriptMethodCallPointer},
		{CallThreaded, opcode.OpScriptThreadCall, opcode.OpScriptThreadCallPointer},
		{CallMethod | CallThreaded, opcode.OpScriptMethodThreadCall, opcode.OpScriptMethodThreadCallPointer},
	}
	for _, tt := range tests {
		if got := NewCall(tt.ctx, Symbol{}, 1, 0, 0, opcode.LittleEndian).Op(); got != tt.call {
			t.Errorf("call op for %d = %s, want %s", tt.ctx, got, tt.call)
		}
		if got := NewCallPointer(tt.ctx, 0, opcode.LittleEndian).Op(); got != tt.pointer {
			t.Errorf("pointer op for %d = %s, want %s", tt.ctx, got, tt.pointer)
		}
		if !tt.call.IsCall() || !tt.pointer.IsCallPointer() {
			t.Errorf("%s/%s not classified as calls", tt.call, tt.pointer)
		}
	}
}

func TestCallEncoding(t *testing.T) {
	sym := Symbol{Kind: SymbolImport, ID: 1}

	le := NewCall(0, sym, 0x11223344, 2, 0x05, opcode.LittleEndian)
	if got := le.Size(0); got != 16 {
		t.Errorf("le Size(0) = %d, want 16", got)
	}
	if got := le.Size(10); got != 14 {
		t.Errorf("le Size(10) = %d, want 14", got)
	}
	want := []byte{0x2E, 0x00, 0x02, 0x05, 0, 0, 0, 0, 0x44, 0x33, 0x22, 0x11, 0, 0, 0, 0}
	if got := encodeAt(t, le, 0, opcode.LittleEndian); !bytes.Equal(got, want) {
		t.Errorf("le Encode = % X, want % X", got, want)
	}

	be := NewCall(CallThreaded, sym, 0x11223344, 3, 0x05, opcode.BigEndian)
	if got := be.Size(0); got != 8 {
		t.Errorf("be Size(0) = %d, want 8", got)
	}
	want = []byte{byte(opcode.OpScriptThreadCall), 0x03, 0, 0, 0x11, 0x22, 0x33, 0x44}
	if got := encodeAt(t, be, 0, opcode.BigEndian); !bytes.Equal(got, want) {
		t.Errorf("be Encode = % X, want % X", got, want)
	}
}

func TestOperandSizes(t *testing.T) {
	sym := Symbol{Kind: SymbolString, ID: 1}
	str := func(e opcode.Endian) Instruction {
		s, _ := NewStringRef(opcode.OpGetString, sym, "hi", e)
		return s
	}
	hash := func(e opcode.Endian) Instruction {
		h, _ := NewHashRef(opcode.OpGetHash, 0xDEADBEEF, e)
		return h
	}
	tests := []struct {
		name   string
		inst   func(opcode.Endian) Instruction
		addr   uint32
		le, be uint32
	}{
		{"string", str, 0, 8, 4},
		{"string odd", str, 1, 7, 3},
		{"hash", hash, 0, 8, 8},
		{"hash at 2", hash, 2, 6, 6},
		{"funcptr", func(e opcode.Endian) Instruction { return NewFuncPtr(sym, 1, e) }, 0, 16, 8},
		{"funcptr at 6", func(e opcode.Endian) Instruction { return NewFuncPtr(sym, 1, e) }, 6, 10, 6},
		{"callptr", func(e opcode.Endian) Instruction { return NewCallPointer(0, 1, e) }, 0, 4, 2},
		{"global", func(e opcode.Endian) Instruction { return NewGlobalRef(sym, 1, false, e) }, 0, 4, 4},
		{"global odd", func(e opcode.Endian) Instruction { return NewGlobalRef(sym, 1, true, e) }, 1, 5, 3},
		{"marker", func(e opcode.Endian) Instruction { return NewMarker("m", e) }, 3, 0, 0},
		{"return", func(e opcode.Endian) Instruction { return NewReturn(e) }, 3, 2, 1},
	}
	for _, tt := range tests {
		if got := tt.inst(opcode.LittleEndian).Size(tt.addr); got != tt.le {
			t.Errorf("%s: le Size(%d) = %d, want %d", tt.name, tt.addr, got, tt.le)
		}
		if got := tt.inst(opcode.BigEndian).Size(tt.addr); got != tt.be {
			t.Errorf("%s: be Size(%d) = %d, want %d", tt.name, tt.addr, got, tt.be)
		}
	}
}

func TestPlaceholderOperands(t *testing.T) {
	sym := Symbol{Kind: SymbolString, ID: 1}
	s, _ := NewStringRef(opcode.OpGetIString, sym, "x", opcode.LittleEndian)
	if got := encodeAt(t, s, 0, opcode.LittleEndian); !bytes.Equal(got[4:], []byte{0xFF, 0xFF, 0xFF, 0xFF}) {
		t.Errorf("string operand = % X, want placeholder", got[4:])
	}
	g := NewGlobalRef(Symbol{Kind: SymbolGlobal, ID: 1}, 7, false, opcode.BigEndian)
	if got := encodeAt(t, g, 0, opcode.BigEndian); !bytes.Equal(got, []byte{byte(opcode.OpGetGlobalObject), 0, 0xFF, 0xFF}) {
		t.Errorf("global Encode = % X", got)
	}
}

func TestWrongOperations(t *testing.T) {
	if _, err := NewStringRef(opcode.OpGetHash, Symbol{}, "x", opcode.LittleEndian); !errors.Is(err, ErrWrongOperation) {
		t.Errorf("NewStringRef(GetHash) error = %v", err)
	}
	if _, err := NewHashRef(opcode.OpGetString, 1, opcode.LittleEndian); !errors.Is(err, ErrWrongOperation) {
		t.Errorf("NewHashRef(GetString) error = %v", err)
	}
	if _, err := NewPlain(opcode.OpGetByte, opcode.LittleEndian); !errors.Is(err, ErrOperandRequired) {
		t.Errorf("NewPlain(GetByte) error = %v", err)
	}
	if _, err := NewPlain(opcode.OpInvalid, opcode.LittleEndian); !errors.Is(err, opcode.ErrUnknownOpcode) {
		t.Errorf("NewPlain(invalid) error = %v", err)
	}
}

func TestEncodeShortBuffer(t *testing.T) {
	n, _ := NewNumber(70000, opcode.LittleEndian)
	if err := n.Encode(make([]byte, 4), 0, 8); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("error = %v, want %v", err, ErrShortBuffer)
	}
}
