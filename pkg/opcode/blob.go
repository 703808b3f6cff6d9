package opcode

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// BlobVersion is the current version of the compiled table format.
const BlobVersion = 1

// BlobExt is the file extension of compiled tables.
const BlobExt = ".opdb"

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("opcode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// blob is the compiled form of a table. Ops is indexed by numeric value;
// 0xFF marks an unassigned value.
type blob struct {
	Version int    `cbor:"1,keyasint"`
	Target  Target `cbor:"2,keyasint"`
	Ops     []byte `cbor:"3,keyasint"`
}

// MarshalBlob serializes the table to canonical CBOR.
func (t *Table) MarshalBlob() ([]byte, error) {
	b := blob{Version: BlobVersion, Target: t.Target(), Ops: make([]byte, len(t.slots))}
	for i, op := range t.slots {
		b.Ops[i] = byte(op)
	}
	return cborEncMode.Marshal(&b)
}

// UnmarshalBlob decodes a compiled table.
func UnmarshalBlob(data []byte) (*Table, error) {
	var b blob
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("opcode: unmarshal blob: %w", err)
	}
	if b.Version != BlobVersion {
		return nil, fmt.Errorf("%w: %d", ErrBlobVersion, b.Version)
	}
	slots := make([]Op, len(b.Ops))
	for i, v := range b.Ops {
		slots[i] = Op(v)
	}
	return NewTable(b.Target, slots)
}

// ReadBlob loads a compiled table from disk.
func ReadBlob(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	t, err := UnmarshalBlob(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteBlob stores a compiled table on disk.
func (t *Table) WriteBlob(path string) error {
	data, err := t.MarshalBlob()
	if err != nil {
		return fmt.Errorf("opcode: marshal blob: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
