package bytecode

import (
	"fmt"
	"strings"

	"github.com/chazu/gsclink/pkg/opcode"
)

// maxDumpBytes limits the raw bytes shown per line.
const maxDumpBytes = 12

// Disassemble returns a listing of a laid out and encoded stream.
func (s *Stream) Disassemble(image []byte, tbl *opcode.Table, names Namer) string {
	return s.DisassembleWithName(image, tbl, names, "")
}

// DisassembleWithName returns a listing with a name header.
func (s *Stream) DisassembleWithName(image []byte, tbl *opcode.Table, names Namer, name string) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	if s.head != NoNode {
		if head, ok := s.arena.nodes[s.head].inst.(*Locals); ok && head.Count() > 0 {
			sb.WriteString(fmt.Sprintf("; Locals: %d\n", head.Count()))
		}
	}

	_ = s.Each(func(id NodeID, inst Instruction) error {
		n := &s.arena.nodes[id]
		if !n.placed {
			sb.WriteString(fmt.Sprintf("??????  %s\n", inst.Op()))
			return nil
		}
		if m, ok := inst.(*Marker); ok {
			sb.WriteString(fmt.Sprintf("%06X  %s:\n", n.addr, m.Label))
			return nil
		}
		sb.WriteString(fmt.Sprintf("%06X  %s\n", n.addr, disassembleNode(image, n, tbl, names)))
		return nil
	})

	return sb.String()
}

// disassembleNode formats one placed node.
func disassembleNode(image []byte, n *node, tbl *opcode.Table, names Namer) string {
	op := n.inst.Op()
	value := tbl.Value(op)

	var raw strings.Builder
	end := min(n.addr+n.size, uint32(len(image)))
	for i := n.addr; i < end && i-n.addr < maxDumpBytes; i++ {
		raw.WriteString(fmt.Sprintf("%02X ", image[i]))
	}
	if n.size > maxDumpBytes {
		raw.WriteString("..")
	}

	line := fmt.Sprintf("%-36s %-28s [%04X]", strings.TrimSpace(raw.String()), op, value)
	if value == opcode.InvalidValue {
		line += " !missing"
	}
	if j, ok := n.inst.(*Jump); ok && end == n.addr+n.size {
		disp := ReadDisplacement(image[n.addr:end], n.addr, j)
		return fmt.Sprintf("%s %+d ; -> %06X", line, disp, int64(n.addr+n.size)+int64(disp))
	}
	if d, ok := n.inst.(Describer); ok {
		return line + " " + d.Describe(names)
	}
	return line
}
