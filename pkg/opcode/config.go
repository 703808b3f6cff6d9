package opcode

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

// Definition is the TOML form of a target:
//
//	[target]
//	name = "t7-pc"
//	platform = "pc"
//	revision = 7
//	endian = "little"
//
//	[opcodes]
//	End = [0x00]
//	GetByte = [0x04, 0x1A2]
type Definition struct {
	Target  Target             `toml:"target"`
	Opcodes map[string][]int64 `toml:"opcodes"`
}

// LoadDefinition reads a target definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	d, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return d, nil
}

// ParseDefinition decodes a target definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var d Definition
	if err := toml.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Table validates the definition and builds its opcode table.
func (d *Definition) Table() (*Table, error) {
	names := make([]string, 0, len(d.Opcodes))
	for name := range d.Opcodes {
		names = append(names, name)
	}
	sort.Strings(names)

	high := -1
	for _, name := range names {
		for _, v := range d.Opcodes[name] {
			if v < 0 || v >= MaxValue {
				return nil, fmt.Errorf("%w: %s = 0x%X", ErrValueRange, name, v)
			}
			high = max(high, int(v))
		}
	}

	slots := make([]Op, high+1)
	for i := range slots {
		slots[i] = OpInvalid
	}
	for _, name := range names {
		op, err := Parse(name)
		if err != nil {
			return nil, err
		}
		for _, v := range d.Opcodes[name] {
			if prev := slots[v]; prev != OpInvalid && prev != op {
				return nil, fmt.Errorf("%w: 0x%X is both %s and %s", ErrValueConflict, v, prev, op)
			}
			slots[v] = op
		}
	}
	return NewTable(d.Target, slots)
}

// Encode writes the definition as TOML.
func (d *Definition) Encode(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(d); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
