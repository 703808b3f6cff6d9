package script

import (
	"fmt"
	"slices"

	"github.com/chazu/gsclink/pkg/bytecode"
)

// entry tracks the nodes that reference a table entry. Nodes are held by id;
// the entry never owns them.
type entry struct {
	refs map[bytecode.NodeID]struct{}
	dead bool
}

func (e *entry) base() *entry { return e }

func (e *entry) reference(id bytecode.NodeID) {
	if e.refs == nil {
		e.refs = make(map[bytecode.NodeID]struct{})
	}
	e.refs[id] = struct{}{}
}

func (e *entry) release(id bytecode.NodeID) { delete(e.refs, id) }

// Refs returns the number of nodes referencing the entry.
func (e *entry) Refs() int { return len(e.refs) }

// nodes returns the referencing nodes in creation order.
func (e *entry) nodes() []bytecode.NodeID {
	out := make([]bytecode.NodeID, 0, len(e.refs))
	for id := range e.refs {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

type tableEntry interface {
	base() *entry
}

// table is an interning symbol table. Entry ids are indices into entries and
// are never reused; removed entries stay behind as dead slots.
type table[K comparable, E tableEntry] struct {
	kind    bytecode.SymbolKind
	entries []E
	keys    []K
	index   map[K]int
}

func newTable[K comparable, E tableEntry](kind bytecode.SymbolKind) *table[K, E] {
	return &table[K, E]{kind: kind, index: make(map[K]int)}
}

// intern returns the live entry for key, creating it with mk if needed.
func (t *table[K, E]) intern(key K, mk func() E) (bytecode.Symbol, E) {
	if id, ok := t.index[key]; ok {
		return bytecode.Symbol{Kind: t.kind, ID: id}, t.entries[id]
	}
	e := mk()
	id := len(t.entries)
	t.entries = append(t.entries, e)
	t.keys = append(t.keys, key)
	t.index[key] = id
	return bytecode.Symbol{Kind: t.kind, ID: id}, e
}

func (t *table[K, E]) get(sym bytecode.Symbol) (E, error) {
	var zero E
	if sym.Kind != t.kind || sym.ID < 0 || sym.ID >= len(t.entries) || t.entries[sym.ID].base().dead {
		return zero, fmt.Errorf("%w: %s %d", ErrUnknownSymbol, sym.Kind, sym.ID)
	}
	return t.entries[sym.ID], nil
}

func (t *table[K, E]) lookup(key K) (bytecode.Symbol, bool) {
	id, ok := t.index[key]
	return bytecode.Symbol{Kind: t.kind, ID: id}, ok
}

// remove drops an unreferenced entry.
func (t *table[K, E]) remove(sym bytecode.Symbol) error {
	e, err := t.get(sym)
	if err != nil {
		return err
	}
	if n := e.base().Refs(); n > 0 {
		return fmt.Errorf("%w: %s %d has %d references", ErrEntryReferenced, sym.Kind, sym.ID, n)
	}
	e.base().dead = true
	delete(t.index, t.keys[sym.ID])
	return nil
}

// live returns the live entries in creation order.
func (t *table[K, E]) live() []E {
	out := make([]E, 0, len(t.index))
	for _, e := range t.entries {
		if !e.base().dead {
			out = append(out, e)
		}
	}
	return out
}

func (t *table[K, E]) len() int { return len(t.index) }

// prune removes every unreferenced entry and returns how many were removed.
func (t *table[K, E]) prune() int {
	n := 0
	for id, e := range t.entries {
		if b := e.base(); !b.dead && b.Refs() == 0 {
			b.dead = true
			delete(t.index, t.keys[id])
			n++
		}
	}
	return n
}
