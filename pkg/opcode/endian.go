package opcode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Endian selects the byte order of a target. It also fixes the width of an
// operation tag: two bytes on little-endian targets, one on big-endian ones.
type Endian uint8

const (
	LittleEndian Endian = iota
	BigEndian
)

// ParseEndian accepts "little"/"le" and "big"/"be" in any case.
func ParseEndian(s string) (Endian, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "little", "le":
		return LittleEndian, nil
	case "big", "be":
		return BigEndian, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadEndian, s)
}

// TagWidth returns the size in bytes of an operation tag.
func (e Endian) TagWidth() uint32 {
	if e == BigEndian {
		return 1
	}
	return 2
}

// ByteOrder returns the binary order for multi-byte operands.
func (e Endian) ByteOrder() binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (e Endian) String() string {
	if e == BigEndian {
		return "big"
	}
	return "little"
}

// MarshalText implements encoding.TextMarshaler.
func (e Endian) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Endian) UnmarshalText(text []byte) error {
	v, err := ParseEndian(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}
