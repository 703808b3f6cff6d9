package script

import (
	"fmt"
	"strings"

	"github.com/chazu/gsclink/pkg/bytecode"
)

// Image is a linked script.
type Image struct {
	// Bytes holds the image, including the GSIC trailer when present.
	Bytes []byte

	// Size is the length of the image without the trailer.
	Size uint32

	script *Script
	chain  *Chain
}

// Trailer returns the GSIC trailer, or nil.
func (img *Image) Trailer() []byte {
	if uint32(len(img.Bytes)) == img.Size {
		return nil
	}
	return img.Bytes[img.Size:]
}

// Script returns the script the image was linked from.
func (img *Image) Script() *Script { return img.script }

// Link lays out, encodes and patches the script. A script can be linked
// once; nothing can be added to it afterwards.
func (s *Script) Link() (*Image, error) {
	if err := s.mutable(); err != nil {
		return nil, err
	}
	if err := s.checkDetours(); err != nil {
		return nil, err
	}
	s.linked = true

	l := newLinker(s)
	end, err := l.chain.Layout(0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	image := make([]byte, end)
	if err := l.chain.Write(image); err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	s.resolveDetours()
	image = append(image, s.encodeGSIC()...)

	log.Infof("linked %s: %d exports, %d imports, %d strings, %d detours, %d bytes",
		s.Path, len(s.exports), s.imports.len(), s.strings.len(), len(s.detours), len(image))
	return &Image{Bytes: image, Size: end, script: s, chain: l.chain}, nil
}

// Disassemble returns a listing of every function in img. Hashes are
// resolved through names, or through the script's own names when nil.
func Disassemble(img *Image, names bytecode.Namer) string {
	s := img.script
	if names == nil {
		names = s
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; %s (%s, %d bytes)\n", s.Path, s.tbl.Key, img.Size))
	for i := 0; i < img.chain.Len(); i++ {
		sec := img.chain.sections[i]
		sb.WriteString(fmt.Sprintf(";   %-14s %06X  %6d\n", sec.Name(), img.chain.Base(i), img.chain.Size(i)))
	}
	for _, f := range s.exports {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("; crc %08X  params %d  flags %02X\n", f.crc, f.Params, uint8(f.Flags)))
		sb.WriteString(f.Disassemble(img.Bytes, names))
	}
	for _, d := range s.detours {
		sb.WriteString(fmt.Sprintf("\n; detour %s::%s <%s> -> %s at %06X\n",
			describeWith(names, d.ReplaceNamespace), describeWith(names, d.ReplaceFunction),
			scriptOrSystem(d.ReplaceScript), describeWith(names, d.FixupName), d.FixupOffset))
	}
	return sb.String()
}

func describeWith(names bytecode.Namer, h uint32) string {
	if n, ok := names.Name(h); ok {
		return n
	}
	return fmt.Sprintf("0x%08X", h)
}
