package opcode

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/gsclink/pkg/hash"
)

// InvalidValue is returned for operations a target does not implement.
// The VM treats it as an illegal instruction.
const InvalidValue uint16 = 0xFFFF

// MaxValue bounds the numeric values a target may assign.
const MaxValue = 0x4000

// DefaultMagic is the image magic used when a target does not name one.
const DefaultMagic uint64 = 0x1C000A0D43534780

var log = commonlog.GetLogger("gsclink.opcode")

// Key identifies a target: a platform and a VM revision.
type Key struct {
	Platform string
	Revision int
}

func (k Key) String() string {
	return fmt.Sprintf("%s_r%d", k.Platform, k.Revision)
}

// Table maps logical operations to the numeric values of one target.
// A Table is immutable after construction and safe for concurrent use.
type Table struct {
	Key     Key
	Name    string
	Endian  Endian
	Magic   uint64
	HashIV  uint32
	HashKey uint32

	slots  []Op          // numeric value -> logical op, OpInvalid when unassigned
	values map[Op]uint16 // logical op -> lowest numeric value

	warned sync.Map // Op -> struct{}
}

// Target holds the scalar properties of a target.
type Target struct {
	Name     string `toml:"name" cbor:"1,keyasint"`
	Platform string `toml:"platform" cbor:"2,keyasint"`
	Revision int    `toml:"revision" cbor:"3,keyasint"`
	Endian   Endian `toml:"endian" cbor:"4,keyasint"`
	Magic    uint64 `toml:"magic" cbor:"5,keyasint"`
	HashIV   uint32 `toml:"hash-iv" cbor:"6,keyasint"`
	HashKey  uint32 `toml:"hash-key" cbor:"7,keyasint"`
}

func (t Target) withDefaults() Target {
	if t.Magic == 0 {
		t.Magic = DefaultMagic
	}
	if t.HashIV == 0 {
		t.HashIV = hash.DefaultIV
	}
	if t.HashKey == 0 {
		t.HashKey = hash.DefaultKey
	}
	return t
}

// NewTable builds a table from a slot array indexed by numeric value.
// Entries equal to OpInvalid are unassigned. When several values map to the
// same operation, the lowest value is used for emission.
func NewTable(target Target, slots []Op) (*Table, error) {
	if len(slots) > MaxValue {
		return nil, fmt.Errorf("%w: %d slots", ErrValueRange, len(slots))
	}
	target = target.withDefaults()
	t := &Table{
		Key:     Key{Platform: target.Platform, Revision: target.Revision},
		Name:    target.Name,
		Endian:  target.Endian,
		Magic:   target.Magic,
		HashIV:  target.HashIV,
		HashKey: target.HashKey,
		slots:   make([]Op, len(slots)),
		values:  make(map[Op]uint16),
	}
	copy(t.slots, slots)
	for v, op := range t.slots {
		if op == OpInvalid {
			continue
		}
		if !op.Valid() {
			return nil, fmt.Errorf("%w: 0x%02X at value 0x%X", ErrUnknownOpcode, byte(op), v)
		}
		if _, ok := t.values[op]; !ok {
			t.values[op] = uint16(v)
		}
	}
	return t, nil
}

// NewIdentity returns a table whose numeric values equal the logical
// operation numbers. It is used for targets that follow the logical order
// and in tests.
func NewIdentity(target Target) *Table {
	ops := AllOps()
	slots := make([]Op, int(ops[len(ops)-1])+1)
	for i := range slots {
		slots[i] = OpInvalid
	}
	for _, op := range ops {
		slots[op] = op
	}
	t, err := NewTable(target, slots)
	if err != nil {
		panic(fmt.Sprintf("opcode: identity table: %v", err))
	}
	return t
}

// Value returns the numeric value of op on this target. Operations the
// target does not implement yield InvalidValue and a warning, logged once
// per operation.
func (t *Table) Value(op Op) uint16 {
	if v, ok := t.values[op]; ok {
		return v
	}
	if _, seen := t.warned.LoadOrStore(op, struct{}{}); !seen {
		log.Warningf("target %s is missing opcode %s", t.Key, op)
	}
	return InvalidValue
}

// Has reports whether the target implements op.
func (t *Table) Has(op Op) bool {
	_, ok := t.values[op]
	return ok
}

// Lookup returns the logical operation for a numeric value.
func (t *Table) Lookup(v uint16) (Op, bool) {
	if int(v) >= len(t.slots) || t.slots[v] == OpInvalid {
		return OpInvalid, false
	}
	return t.slots[v], true
}

// Values returns every numeric value assigned to op in ascending order.
func (t *Table) Values(op Op) []uint16 {
	var out []uint16
	for v, o := range t.slots {
		if o == op {
			out = append(out, uint16(v))
		}
	}
	return out
}

// Missing returns the defined operations this target does not implement.
func (t *Table) Missing() []Op {
	var out []Op
	for _, op := range AllOps() {
		if !t.Has(op) {
			out = append(out, op)
		}
	}
	return out
}

// Hasher returns the identifier hasher configured for this target.
func (t *Table) Hasher() hash.Hasher {
	return hash.Hasher{IV: t.HashIV, Key: t.HashKey}
}

// Hash hashes an identifier with this target's parameters.
func (t *Table) Hash(s string) uint32 {
	return t.Hasher().Identifier(s)
}

// Target returns the scalar properties the table was built from.
func (t *Table) Target() Target {
	return Target{
		Name:     t.Name,
		Platform: t.Key.Platform,
		Revision: t.Key.Revision,
		Endian:   t.Endian,
		Magic:    t.Magic,
		HashIV:   t.HashIV,
		HashKey:  t.HashKey,
	}
}

// Definition converts the table back into the name -> values form used by
// target definition files.
func (t *Table) Definition() *Definition {
	d := &Definition{Target: t.Target(), Opcodes: make(map[string][]int64)}
	ops := make([]Op, 0, len(t.values))
	for op := range t.values {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	for _, op := range ops {
		for _, v := range t.Values(op) {
			d.Opcodes[op.String()] = append(d.Opcodes[op.String()], int64(v))
		}
	}
	return d
}
