package bytecode

import (
	"testing"

	"github.com/chazu/gsclink/pkg/opcode"
)

var (
	leTable = opcode.NewIdentity(opcode.Target{Platform: "test", Revision: 1, Endian: opcode.LittleEndian})
	beTable = opcode.NewIdentity(opcode.Target{Platform: "test", Revision: 2, Endian: opcode.BigEndian})
)

func tableFor(e opcode.Endian) *opcode.Table {
	if e == opcode.BigEndian {
		return beTable
	}
	return leTable
}

// encodeAt encodes a single instruction placed at addr and returns its bytes.
func encodeAt(t *testing.T, inst Instruction, addr uint32, e opcode.Endian) []byte {
	t.Helper()
	dst := make([]byte, inst.Size(addr))
	if err := inst.Encode(dst, addr, tableFor(e).Value(inst.Op())); err != nil {
		t.Fatalf("Encode(%s): %v", inst.Op(), err)
	}
	return dst
}

// padding is a fixed-size filler used to build long streams.
type padding struct {
	base
	n uint32
}

func newPadding(n uint32, e opcode.Endian) *padding {
	return &padding{base: base{opcode.OpNop, e}, n: n}
}

func (p *padding) PayloadOffset(addr uint32) uint32 { return addr + p.tag() }
func (p *padding) Size(addr uint32) uint32 { return p.n }
func (p *padding) Encode(dst []byte, addr uint32, tag uint16) error {
	if p.n >= p.tag() {
		p.putTag(dst, tag)
	}
	return nil
}

type mapNamer map[uint32]string

func (m mapNamer) Name(h uint32) (string, bool) {
	s, ok := m[h]
	return s, ok
}

func mustAppend(t *testing.T, s *Stream, inst Instruction) NodeID {
	t.Helper()
	id, err := s.Append(inst)
	if err != nil {
		t.Fatalf("Append(%s): %v", inst.Op(), err)
	}
	return id
}

// link lays out, encodes and patches a set of streams in order.
func link(t *testing.T, a *Arena, e opcode.Endian, streams ...*Stream) []byte {
	t.Helper()
	var end uint32
	for _, s := range streams {
		var err error
		if end, err = s.Layout(end); err != nil {
			t.Fatalf("Layout: %v", err)
		}
	}
	image := make([]byte, end)
	for _, s := range streams {
		if err := s.Encode(image, tableFor(e)); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	if err := a.PatchBranches(image); err != nil {
		t.Fatalf("PatchBranches: %v", err)
	}
	return image
}
