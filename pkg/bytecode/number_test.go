package bytecode

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/chazu/gsclink/pkg/opcode"
)

func TestNumberBoundaries(t *testing.T) {
	tests := []struct {
		value   int64
		op      opcode.Op
		leSize  uint32
		beSize  uint32
		payload uint32
	}{
		{0, opcode.OpGetZero, 2, 1, 0},
		{1, opcode.OpGetByte, 4, 2, 1},
		{255, opcode.OpGetByte, 4, 2, 255},
		{256, opcode.OpGetUnsignedShort, 4, 4, 256},
		{65535, opcode.OpGetUnsignedShort, 4, 4, 65535},
		{65536, opcode.OpGetInteger, 8, 8, 65536},
		{-1, opcode.OpGetNegByte, 4, 2, 1},
		{-255, opcode.OpGetNegByte, 4, 2, 255},
		{-256, opcode.OpGetNegUnsignedShort, 4, 4, 256},
		{-65535, opcode.OpGetNegUnsignedShort, 4, 4, 65535},
		{-65536, opcode.OpGetInteger, 8, 8, 0xFFFF0000},
		{math.MaxUint32, opcode.OpGetInteger, 8, 8, math.MaxUint32},
		{math.MinInt32, opcode.OpGetInteger, 8, 8, 0x80000000},
	}
	for _, tt := range tests {
		for _, e := range []opcode.Endian{opcode.LittleEndian, opcode.BigEndian} {
			n, err := NewNumber(tt.value, e)
			if err != nil {
				t.Fatalf("NewNumber(%d): %v", tt.value, err)
			}
			if n.Op() != tt.op {
				t.Errorf("NewNumber(%d).Op() = %s, want %s", tt.value, n.Op(), tt.op)
			}
			want := tt.leSize
			if e == opcode.BigEndian {
				want = tt.beSize
			}
			if got := n.Size(0); got != want {
				t.Errorf("NewNumber(%d) %s Size(0) = %d, want %d", tt.value, e, got, want)
			}
			if n.bits != tt.payload {
				t.Errorf("NewNumber(%d) payload = 0x%X, want 0x%X", tt.value, n.bits, tt.payload)
			}
		}
	}
}

func TestNumberEncoding(t *testing.T) {
	tests := []struct {
		name  string
		value any
		e     opcode.Endian
		addr  uint32
		want  []byte
	}{
		{"le zero", 0, opcode.LittleEndian, 0, []byte{0x03, 0x00}},
		{"le byte", 7, opcode.LittleEndian, 0, []byte{0x04, 0x00, 0x07, 0x00}},
		{"le byte odd address", 7, opcode.LittleEndian, 1, []byte{0x04, 0x00, 0x00, 0x07, 0x00}},
		{"le neg short", -300, opcode.LittleEndian, 0, []byte{0x07, 0x00, 0x2C, 0x01}},
		{"le int", 70000, opcode.LittleEndian, 0, []byte{0x08, 0x00, 0x00, 0x00, 0x70, 0x11, 0x01, 0x00}},
		{"le float", float32(1.5), opcode.LittleEndian, 0, []byte{0x09, 0x00, 0x00, 0x00, 0x00, 0x00, 0xC0, 0x3F}},
		{"be byte", 7, opcode.BigEndian, 0, []byte{0x04, 0x07}},
		{"be short", 300, opcode.BigEndian, 0, []byte{0x06, 0x00, 0x01, 0x2C}},
		{"be int", -70000, opcode.BigEndian, 0, []byte{0x08, 0x00, 0x00, 0x00, 0xFF, 0xFE, 0xEE, 0x90}},
	}
	for _, tt := range tests {
		n, err := NewNumber(tt.value, tt.e)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got := encodeAt(t, n, tt.addr, tt.e); !bytes.Equal(got, tt.want) {
			t.Errorf("%s: Encode = % X, want % X", tt.name, got, tt.want)
		}
	}
}

func TestNumberAcceptedTypes(t *testing.T) {
	tests := []struct {
		value any
		op    opcode.Op
	}{
		{int8(-3), opcode.OpGetNegByte},
		{uint16(300), opcode.OpGetUnsignedShort},
		{uint64(1 << 20), opcode.OpGetInteger},
		{"42", opcode.OpGetByte},
		{"0x100", opcode.OpGetUnsignedShort},
		{" -1 ", opcode.OpGetNegByte},
		{"2.5", opcode.OpGetFloat},
		{2.0, opcode.OpGetFloat},
		{0.0, opcode.OpGetZero},
		{"4294967295", opcode.OpGetInteger},
	}
	for _, tt := range tests {
		n, err := NewNumber(tt.value, opcode.LittleEndian)
		if err != nil {
			t.Errorf("NewNumber(%v): %v", tt.value, err)
			continue
		}
		if n.Op() != tt.op {
			t.Errorf("NewNumber(%v).Op() = %s, want %s", tt.value, n.Op(), tt.op)
		}
	}
}

func TestNumberRejects(t *testing.T) {
	tests := []struct {
		value any
		want  error
	}{
		{"abc", ErrNotNumeric},
		{"", ErrNotNumeric},
		{true, ErrNotNumeric},
		{nil, ErrNotNumeric},
		{math.NaN(), ErrNotNumeric},
		{"Inf", ErrNotNumeric},
		{int64(1) << 32, ErrNumericRange},
		{int64(math.MinInt32) - 1, ErrNumericRange},
		{uint64(math.MaxUint64), ErrNumericRange},
		{1e300, ErrNumericRange},
	}
	for _, tt := range tests {
		if _, err := NewNumber(tt.value, opcode.LittleEndian); !errors.Is(err, tt.want) {
			t.Errorf("NewNumber(%v) error = %v, want %v", tt.value, err, tt.want)
		}
	}
}

func TestNumberSizeIsPureFunctionOfClass(t *testing.T) {
	classes := [][]int64{
		{1, 2, 100, 255, -1, -100, -255},
		{256, 1000, 65535, -256, -65535},
		{65536, -65536, 1 << 30},
	}
	for _, class := range classes {
		for addr := uint32(0); addr < 8; addr++ {
			first, _ := NewNumber(class[0], opcode.LittleEndian)
			for _, v := range class[1:] {
				n, _ := NewNumber(v, opcode.LittleEndian)
				if n.Size(addr) != first.Size(addr) || n.PayloadOffset(addr) != first.PayloadOffset(addr) {
					t.Errorf("value %d at %d: size %d, want %d", v, addr, n.Size(addr), first.Size(addr))
				}
			}
		}
	}
}
