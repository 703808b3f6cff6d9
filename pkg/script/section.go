package script

import (
	"encoding/binary"
	"fmt"
)

// Section is one region of an image. Layout is called once, in chain order,
// before any Write.
type Section interface {
	// Name identifies the section in errors and listings.
	Name() string

	// Layout places the section at base and returns its size.
	Layout(base uint32) (uint32, error)

	// Write fills the section's region of image.
	Write(image []byte) error
}

// Chain places sections one after another: each section starts where the
// previous one ends.
type Chain struct {
	sections []Section
	bases    []uint32
	sizes    []uint32
	end      uint32
}

// NewChain returns a chain of the given sections, in image order.
func NewChain(sections ...Section) *Chain {
	return &Chain{
		sections: sections,
		bases:    make([]uint32, len(sections)),
		sizes:    make([]uint32, len(sections)),
	}
}

// Layout places every section starting at base and returns the end of the
// last one.
func (c *Chain) Layout(base uint32) (uint32, error) {
	for i, sec := range c.sections {
		size, err := sec.Layout(base)
		if err != nil {
			return 0, fmt.Errorf("%s section: %w", sec.Name(), err)
		}
		c.bases[i], c.sizes[i] = base, size
		base += size
	}
	c.end = base
	return base, nil
}

// Base returns the address of section i.
func (c *Chain) Base(i int) uint32 { return c.bases[i] }

// Size returns the size of section i.
func (c *Chain) Size(i int) uint32 { return c.sizes[i] }

// End returns the address following the last section.
func (c *Chain) End() uint32 { return c.end }

// Len returns the number of sections.
func (c *Chain) Len() int { return len(c.sections) }

// Write fills image, which must span at least End() bytes. Sections are
// written last to first so a table can read the regions placed after it.
func (c *Chain) Write(image []byte) error {
	if uint32(len(image)) < c.end {
		return fmt.Errorf("image is 0x%X bytes, chain ends at 0x%X", len(image), c.end)
	}
	for i := len(c.sections) - 1; i >= 0; i-- {
		if err := c.sections[i].Write(image); err != nil {
			return fmt.Errorf("%s section: %w", c.sections[i].Name(), err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Binary writer
// ---------------------------------------------------------------------------

// writer writes fixed-width values into a preallocated region.
type writer struct {
	buf   []byte
	pos   uint32
	order binary.ByteOrder
}

func newWriter(image []byte, at uint32, order binary.ByteOrder) *writer {
	return &writer{buf: image, pos: at, order: order}
}

func (w *writer) u8(v uint8) {
	w.buf[w.pos] = v
	w.pos++
}

func (w *writer) u16(v uint16) {
	w.order.PutUint16(w.buf[w.pos:], v)
	w.pos += 2
}

func (w *writer) u32(v uint32) {
	w.order.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
}

func (w *writer) u64(v uint64) {
	w.order.PutUint64(w.buf[w.pos:], v)
	w.pos += 8
}

func (w *writer) cstring(s string) {
	w.pos += uint32(copy(w.buf[w.pos:], s))
	w.u8(0)
}
