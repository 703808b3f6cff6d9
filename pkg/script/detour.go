package script

import (
	"encoding/binary"
	"fmt"
)

const (
	// DetourSize is the size of one detour record.
	DetourSize = 256

	// MaxDetourScript is the longest script path a detour record can hold.
	MaxDetourScript = DetourSize - 5*4 - 1

	// GSICMagic starts the extension trailer.
	GSICMagic = "GSIC"
)

// GSIC field types.
const (
	FieldDetours uint32 = 0
)

// Detour redirects calls to a function in another script, or to a builtin,
// to one of this script's exports.
type Detour struct {
	// FixupName is the hash of the local export that replaces the target.
	FixupName uint32

	ReplaceNamespace uint32
	ReplaceFunction  uint32

	// ReplaceScript is the path of the script defining the replaced
	// function, or empty for builtins.
	ReplaceScript string

	// FixupOffset and FixupSize locate the export; set by Link.
	FixupOffset uint32
	FixupSize   uint32
}

func (d *Detour) key() string {
	script := d.ReplaceScript
	if script == "" {
		script = "system"
	}
	return fmt.Sprintf("%08X:%08X:%s", d.ReplaceNamespace, d.ReplaceFunction, script)
}

// AddDetour registers a detour. A second detour replacing the same
// namespace, function and script is an error.
func (s *Script) AddDetour(d Detour) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if len(d.ReplaceScript) > MaxDetourScript {
		d.ReplaceScript = d.ReplaceScript[:MaxDetourScript]
	}
	k := d.key()
	if _, ok := s.detourIdx[k]; ok {
		return fmt.Errorf("%w: %s::%s <%s>", ErrDuplicateDetour,
			s.describe(d.ReplaceNamespace), s.describe(d.ReplaceFunction), scriptOrSystem(d.ReplaceScript))
	}
	s.detours = append(s.detours, &d)
	s.detourIdx[k] = &d
	return nil
}

// Detours returns the registered detours in registration order.
func (s *Script) Detours() []*Detour {
	return append([]*Detour(nil), s.detours...)
}

func scriptOrSystem(p string) string {
	if p == "" {
		return "system"
	}
	return p
}

// checkDetours fails if a detour names a function the script does not
// export.
func (s *Script) checkDetours() error {
	for _, d := range s.detours {
		if _, ok := s.exportIdx[d.FixupName]; !ok {
			return fmt.Errorf("%w: detour %s replaces with %s", ErrUnknownExport, d.key(), s.describe(d.FixupName))
		}
	}
	return nil
}

// resolveDetours copies the placement of each detour's export.
func (s *Script) resolveDetours() {
	for _, d := range s.detours {
		f := s.exportIdx[d.FixupName]
		d.FixupOffset, d.FixupSize = f.addr, f.size
	}
}

// encodeGSIC returns the extension trailer, or nil without detours. The
// trailer is little-endian on every target.
func (s *Script) encodeGSIC() []byte {
	if len(s.detours) == 0 {
		return nil
	}
	out := make([]byte, 0, 16+len(s.detours)*DetourSize)
	out = append(out, GSICMagic...)
	out = binary.LittleEndian.AppendUint32(out, 1)
	out = binary.LittleEndian.AppendUint32(out, FieldDetours)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(s.detours)))
	for _, d := range s.detours {
		out = d.appendRecord(out)
	}
	return out
}

func (d *Detour) appendRecord(out []byte) []byte {
	out = binary.LittleEndian.AppendUint32(out, d.FixupName)
	out = binary.LittleEndian.AppendUint32(out, d.ReplaceNamespace)
	out = binary.LittleEndian.AppendUint32(out, d.ReplaceFunction)
	out = binary.LittleEndian.AppendUint32(out, d.FixupOffset)
	out = binary.LittleEndian.AppendUint32(out, d.FixupSize)
	var name [MaxDetourScript + 1]byte
	copy(name[:], d.ReplaceScript)
	return append(out, name[:]...)
}

// ParseGSIC decodes the detours of an extension trailer.
func ParseGSIC(data []byte) ([]Detour, error) {
	if len(data) < 8 || string(data[:4]) != GSICMagic {
		return nil, fmt.Errorf("script: not a GSIC trailer")
	}
	fields := binary.LittleEndian.Uint32(data[4:])
	data = data[8:]
	var out []Detour
	for fi := uint32(0); fi < fields; fi++ {
		if len(data) < 8 {
			return nil, fmt.Errorf("script: truncated GSIC field header")
		}
		kind, n := binary.LittleEndian.Uint32(data), binary.LittleEndian.Uint32(data[4:])
		data = data[8:]
		if kind != FieldDetours {
			return nil, fmt.Errorf("script: unknown GSIC field %d", kind)
		}
		if uint64(len(data)) < uint64(n)*DetourSize {
			return nil, fmt.Errorf("script: truncated detour table")
		}
		for di := uint32(0); di < n; di++ {
			r := data[:DetourSize]
			d := Detour{
				FixupName:        binary.LittleEndian.Uint32(r[0:]),
				ReplaceNamespace: binary.LittleEndian.Uint32(r[4:]),
				ReplaceFunction:  binary.LittleEndian.Uint32(r[8:]),
				FixupOffset:      binary.LittleEndian.Uint32(r[12:]),
				FixupSize:        binary.LittleEndian.Uint32(r[16:]),
			}
			name := r[20:]
			for i, b := range name {
				if b == 0 {
					name = name[:i]
					break
				}
			}
			d.ReplaceScript = string(name)
			out = append(out, d)
			data = data[DetourSize:]
		}
	}
	return out, nil
}
