package script

import (
	"fmt"
	"hash/crc32"
	"math"

	"github.com/chazu/gsclink/pkg/bytecode"
)

const (
	// HeaderSize is the size of the image header.
	HeaderSize = 0x50

	// ExportEntrySize is the size of one export table entry.
	ExportEntrySize = 20

	// SectionAlign is the alignment of every section end.
	SectionAlign = 0x10

	// FunctionGap is the number of bytes between a 16-byte boundary and the
	// start of each function's bytecode. The VM stores a function header
	// there at load time.
	FunctionGap = 8

	// MaxFixupRefs is the number of references one string fixup record can
	// hold.
	MaxFixupRefs = 250

	// SourceChecksum is written in the header's checksum field.
	SourceChecksum = 0x4C492053
)

// linker holds the sections of one Link call.
type linker struct {
	script *Script

	header   *headerSection
	exports  *exportSection
	imports  *importSection
	fixups   *fixupSection
	includes *includeSection
	globals  *globalSection
	name     *nameSection
	literals *literalSection
	code     *codeSection

	chain *Chain
}

func newLinker(s *Script) *linker {
	l := &linker{script: s}
	l.header = &headerSection{l: l}
	l.exports = &exportSection{l: l}
	l.imports = &importSection{l: l}
	l.fixups = &fixupSection{l: l}
	l.includes = &includeSection{l: l}
	l.globals = &globalSection{l: l}
	l.name = &nameSection{l: l}
	l.literals = &literalSection{l: l}
	l.code = &codeSection{l: l}
	l.chain = NewChain(l.header, l.exports, l.imports, l.fixups, l.includes,
		l.globals, l.name, l.literals, l.code)
	return l
}

func (l *linker) writer(image []byte, at uint32) *writer {
	return newWriter(image, at, l.script.Endian().ByteOrder())
}

// region records where a section was placed.
type region struct {
	base, size uint32
}

func (r *region) place(base, size uint32) (uint32, error) {
	r.base = base
	r.size = Align(base+size, SectionAlign) - base
	return r.size, nil
}

// Align rounds v up to a multiple of a, which must be a power of two.
func Align(v, a uint32) uint32 { return bytecode.Align(v, a) }

// ---------------------------------------------------------------------------
// Header
// ---------------------------------------------------------------------------

type headerSection struct {
	l *linker
	region
}

func (h *headerSection) Name() string { return "header" }

func (h *headerSection) Layout(base uint32) (uint32, error) {
	h.base, h.size = base, HeaderSize
	return HeaderSize, nil
}

func (h *headerSection) Write(image []byte) error {
	l := h.l
	s := l.script
	end := l.chain.End()

	if n := len(s.exports); n > math.MaxUint16 {
		return fmt.Errorf("%w: %d exports", ErrTableOverflow, n)
	}
	if n := s.imports.len(); n > math.MaxUint16 {
		return fmt.Errorf("%w: %d imports", ErrTableOverflow, n)
	}
	if n := l.fixups.count; n > math.MaxUint16 {
		return fmt.Errorf("%w: %d string fixups", ErrTableOverflow, n)
	}
	if n := s.globals.len(); n > math.MaxUint16 {
		return fmt.Errorf("%w: %d globals", ErrTableOverflow, n)
	}
	if n := len(s.includes); n > math.MaxUint8 {
		return fmt.Errorf("%w: %d includes", ErrTableOverflow, n)
	}

	w := l.writer(image, h.base)
	w.u64(s.tbl.Magic)
	w.u32(SourceChecksum)
	w.u32(l.includes.base)
	w.u32(end) // animation trees
	w.u32(l.code.base)
	w.u32(l.fixups.base)
	w.u32(end) // debug strings
	w.u32(l.exports.base)
	w.u32(l.imports.base)
	w.u32(l.globals.base)
	w.u32(end) // profiling
	w.u32(l.code.size)
	if s.Endian().TagWidth() == 2 {
		w.u32(l.name.base)
	} else {
		if l.name.base > math.MaxUint16 {
			return fmt.Errorf("%w: name at 0x%X", ErrTableOverflow, l.name.base)
		}
		w.u16(uint16(l.name.base))
	}
	w.u16(uint16(l.fixups.count))
	w.u16(uint16(len(s.exports)))
	w.u16(uint16(s.imports.len()))
	w.u16(uint16(s.globals.len()))
	w.u16(0) // profiling
	w.u16(0) // debug strings
	w.u8(uint8(len(s.includes)))
	w.u8(0) // animation trees
	w.u8(0) // flags
	return nil
}

// ---------------------------------------------------------------------------
// Exports
// ---------------------------------------------------------------------------

type exportSection struct {
	l *linker
	region
}

func (e *exportSection) Name() string { return "exports" }

func (e *exportSection) Layout(base uint32) (uint32, error) {
	return e.place(base, uint32(len(e.l.script.exports))*ExportEntrySize)
}

// Write runs after the bytecode was written and patched, so checksums cover
// the final bytes.
func (e *exportSection) Write(image []byte) error {
	w := e.l.writer(image, e.base)
	for _, f := range e.l.script.exports {
		f.crc = crc32.ChecksumIEEE(image[f.addr : f.addr+f.size])
		w.u32(f.crc)
		w.u32(f.addr)
		w.u32(f.Function)
		w.u32(f.Namespace)
		w.u8(f.Params)
		w.u8(uint8(f.Flags))
		w.u16(0)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Imports
// ---------------------------------------------------------------------------

type importSection struct {
	l *linker
	region
}

func (i *importSection) Name() string { return "imports" }

func (i *importSection) Layout(base uint32) (uint32, error) {
	var size uint32
	for _, imp := range i.l.script.imports.live() {
		if imp.Refs() > math.MaxUint16 {
			return 0, fmt.Errorf("%w: import 0x%08X has %d references", ErrTableOverflow, imp.Function, imp.Refs())
		}
		size += 12 + 4*uint32(imp.Refs())
	}
	return i.place(base, size)
}

// Write lists, per import, the address of every node that uses it.
func (i *importSection) Write(image []byte) error {
	arena := i.l.script.arena
	w := i.l.writer(image, i.base)
	for _, imp := range i.l.script.imports.live() {
		w.u32(imp.Function)
		w.u32(imp.Namespace)
		w.u16(uint16(imp.Refs()))
		w.u8(imp.Params)
		w.u8(uint8(imp.Flags))
		for _, id := range imp.nodes() {
			addr, _, ok := arena.Placement(id)
			if !ok {
				return fmt.Errorf("import 0x%08X: node %d: %w", imp.Function, id, bytecode.ErrNotPlaced)
			}
			w.u32(addr)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// String fixups
// ---------------------------------------------------------------------------

type fixupSection struct {
	l *linker
	region
	count int // records, at most MaxFixupRefs references each
}

func (f *fixupSection) Name() string { return "string fixups" }

func (f *fixupSection) recordSize() uint32 {
	if f.l.script.Endian().TagWidth() == 2 {
		return 8
	}
	return 4
}

func (f *fixupSection) Layout(base uint32) (uint32, error) {
	var size uint32
	f.count = 0
	for _, str := range f.l.script.strings.live() {
		refs := str.Refs()
		records := (refs + MaxFixupRefs - 1) / MaxFixupRefs
		f.count += records
		size += uint32(records)*f.recordSize() + 4*uint32(refs)
	}
	return f.place(base, size)
}

// Write emits, per string, records pointing the VM from the literal to the
// operand of every node that loads it.
func (f *fixupSection) Write(image []byte) error {
	arena := f.l.script.arena
	le := f.l.script.Endian().TagWidth() == 2
	w := f.l.writer(image, f.base)
	for _, str := range f.l.script.strings.live() {
		nodes := str.nodes()
		for start := 0; start < len(nodes); start += MaxFixupRefs {
			chunk := nodes[start:min(start+MaxFixupRefs, len(nodes))]
			if le {
				w.u32(str.addr)
			} else {
				if str.addr > math.MaxUint16 {
					return fmt.Errorf("%w: string %q at 0x%X", ErrTableOverflow, str.Value, str.addr)
				}
				w.u16(uint16(str.addr))
			}
			w.u8(uint8(len(chunk)))
			w.u8(0)
			if le {
				w.u16(0)
			}
			for _, id := range chunk {
				addr, err := arena.PayloadAddr(id)
				if err != nil {
					return fmt.Errorf("string %q: %w", str.Value, err)
				}
				w.u32(addr)
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Includes
// ---------------------------------------------------------------------------

type includeSection struct {
	l *linker
	region
}

func (i *includeSection) Name() string { return "includes" }

func (i *includeSection) Layout(base uint32) (uint32, error) {
	var size uint32
	for _, p := range i.l.script.includes {
		size += 4 + uint32(len(p)) + 1
	}
	return i.place(base, size)
}

// Write emits an address per include followed by the paths themselves.
func (i *includeSection) Write(image []byte) error {
	includes := i.l.script.includes
	ptrs := i.l.writer(image, i.base)
	strs := i.l.writer(image, i.base+4*uint32(len(includes)))
	for _, p := range includes {
		ptrs.u32(strs.pos)
		strs.cstring(p)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Globals
// ---------------------------------------------------------------------------

type globalSection struct {
	l *linker
	region
}

func (g *globalSection) Name() string { return "globals" }

func (g *globalSection) Layout(base uint32) (uint32, error) {
	var size uint32
	for _, gl := range g.l.script.globals.live() {
		size += 8 + 4*uint32(gl.Refs())
	}
	return g.place(base, size)
}

func (g *globalSection) Write(image []byte) error {
	arena := g.l.script.arena
	w := g.l.writer(image, g.base)
	for _, gl := range g.l.script.globals.live() {
		w.u32(gl.Hash)
		w.u32(uint32(gl.Refs()))
		for _, id := range gl.nodes() {
			addr, err := arena.PayloadAddr(id)
			if err != nil {
				return fmt.Errorf("global 0x%08X: %w", gl.Hash, err)
			}
			w.u32(addr)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Name and string literals
// ---------------------------------------------------------------------------

type nameSection struct {
	l *linker
	region
}

func (n *nameSection) Name() string { return "name" }

func (n *nameSection) Layout(base uint32) (uint32, error) {
	return n.place(base, uint32(len(n.l.script.Path))+1)
}

func (n *nameSection) Write(image []byte) error {
	n.l.writer(image, n.base).cstring(n.l.script.Path)
	return nil
}

type literalSection struct {
	l *linker
	region
}

func (s *literalSection) Name() string { return "strings" }

// Layout also assigns every literal its address.
func (s *literalSection) Layout(base uint32) (uint32, error) {
	at := base
	for _, str := range s.l.script.strings.live() {
		str.addr = at
		at += uint32(len(str.Value)) + 1
	}
	return s.place(base, at-base)
}

func (s *literalSection) Write(image []byte) error {
	for _, str := range s.l.script.strings.live() {
		s.l.writer(image, str.addr).cstring(str.Value)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Bytecode
// ---------------------------------------------------------------------------

type codeSection struct {
	l *linker
	region
}

func (c *codeSection) Name() string { return "bytecode" }

// Layout lays out every function. Each starts FunctionGap bytes past a
// 16-byte boundary.
func (c *codeSection) Layout(base uint32) (uint32, error) {
	at := base
	for _, f := range c.l.script.exports {
		start := Align(at, SectionAlign) + FunctionGap
		end, err := f.stream.Layout(start)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", c.l.script.describe(f.Function), err)
		}
		f.addr, f.size = start, end-start
		at = end
	}
	return c.place(base, at-base)
}

// Write encodes every function, then resolves every branch.
func (c *codeSection) Write(image []byte) error {
	s := c.l.script
	for _, f := range s.exports {
		if err := f.stream.Encode(image, s.tbl); err != nil {
			return fmt.Errorf("%s: %w", s.describe(f.Function), err)
		}
	}
	return s.arena.PatchBranches(image)
}
