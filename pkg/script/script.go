package script

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/gsclink/pkg/bytecode"
	"github.com/chazu/gsclink/pkg/opcode"
)

var log = commonlog.GetLogger("gsclink.script")

// ImportFlags describe how an imported function is used.
type ImportFlags uint8

const (
	ImportRef           ImportFlags = 1 << 0 // taken by reference or threaded
	ImportFunction      ImportFlags = 1 << 1
	ImportMethod        ImportFlags = 1 << 2
	ImportDebug         ImportFlags = 1 << 4 // dev-only builtin
	ImportNeedsResolver ImportFlags = 1 << 5 // namespace resolved at load time
)

// CallFlags returns the import flags a call in context ctx uses.
func CallFlags(ctx bytecode.CallContext) ImportFlags {
	var f ImportFlags
	if ctx&bytecode.CallThreaded != 0 {
		f |= ImportRef
	}
	if ctx&bytecode.CallMethod != 0 {
		f |= ImportMethod
	} else {
		f |= ImportFunction
	}
	return f
}

// ExportFlags describe an exported function.
type ExportFlags uint8

const (
	ExportAutoExec ExportFlags = 1 << 1
	ExportPrivate  ExportFlags = 1 << 2
)

// Import is an external function referenced by calls and function pointers.
type Import struct {
	entry
	Function  uint32
	Namespace uint32
	Params    uint8
	Flags     ImportFlags
}

type importKey struct {
	fn, ns uint32
	params uint8
	flags  ImportFlags
}

// String is an interned string literal.
type String struct {
	entry
	Value string
	addr  uint32 // literal address, set during layout
}

// Global is a global object referenced by hash.
type Global struct {
	entry
	Hash uint32
}

// Script is one compilation unit.
type Script struct {
	// Path is the script's name inside the game, e.g. "scripts/zm/ee.gsc".
	Path string

	tbl   *opcode.Table
	arena *bytecode.Arena

	exports   []*Function
	exportIdx map[uint32]*Function

	imports  *table[importKey, *Import]
	strings  *table[string, *String]
	globals  *table[uint32, *Global]
	includes []string

	detours   []*Detour
	detourIdx map[string]*Detour

	names  map[uint32]string
	linked bool
}

// New returns an empty script for the target described by tbl.
func New(path string, tbl *opcode.Table) *Script {
	return &Script{
		Path:      strings.ReplaceAll(path, "\\", "/"),
		tbl:       tbl,
		arena:     bytecode.NewArena(),
		exportIdx: make(map[uint32]*Function),
		imports:   newTable[importKey, *Import](bytecode.SymbolImport),
		strings:   newTable[string, *String](bytecode.SymbolString),
		globals:   newTable[uint32, *Global](bytecode.SymbolGlobal),
		detourIdx: make(map[string]*Detour),
		names:     make(map[uint32]string),
	}
}

// Table returns the target's opcode table.
func (s *Script) Table() *opcode.Table { return s.tbl }

// Endian returns the target byte order.
func (s *Script) Endian() opcode.Endian { return s.tbl.Endian }

// Arena returns the arena holding every node of the script.
func (s *Script) Arena() *bytecode.Arena { return s.arena }

// Linked reports whether Link was called.
func (s *Script) Linked() bool { return s.linked }

// ---------------------------------------------------------------------------
// Hashing
// ---------------------------------------------------------------------------

// Hash hashes an identifier with the target's parameters and remembers the
// name for listings.
func (s *Script) Hash(name string) uint32 {
	h := s.tbl.Hash(name)
	if h != 0 {
		if _, ok := s.names[h]; !ok {
			s.names[h] = strings.ToLower(name)
		}
	}
	return h
}

// Name returns the identifier recorded for h. It makes a Script usable as a
// bytecode.Namer.
func (s *Script) Name(h uint32) (string, bool) {
	n, ok := s.names[h]
	return n, ok
}

// Names returns every recorded hash and identifier.
func (s *Script) Names() map[uint32]string {
	out := make(map[uint32]string, len(s.names))
	for h, n := range s.names {
		out[h] = n
	}
	return out
}

// ---------------------------------------------------------------------------
// Exports
// ---------------------------------------------------------------------------

// AddExport defines a function. Defining the same function hash twice is an
// error.
func (s *Script) AddExport(fn, ns uint32, params uint8, flags ExportFlags) (*Function, error) {
	if err := s.mutable(); err != nil {
		return nil, err
	}
	if _, ok := s.exportIdx[fn]; ok {
		return nil, fmt.Errorf("%w: export %s", ErrDuplicateSymbol, s.describe(fn))
	}
	f, err := newFunction(s, fn, ns, params, flags)
	if err != nil {
		return nil, err
	}
	s.exports = append(s.exports, f)
	s.exportIdx[fn] = f
	return f, nil
}

// Export returns the function with hash fn.
func (s *Script) Export(fn uint32) (*Function, bool) {
	f, ok := s.exportIdx[fn]
	return f, ok
}

// Exports returns the functions in definition order.
func (s *Script) Exports() []*Function {
	return append([]*Function(nil), s.exports...)
}

// RemoveExport deletes a function. Functions named by a detour cannot be
// removed. The function's nodes release their symbol references.
func (s *Script) RemoveExport(fn uint32) error {
	if err := s.mutable(); err != nil {
		return err
	}
	f, ok := s.exportIdx[fn]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownExport, s.describe(fn))
	}
	for _, d := range s.detours {
		if d.FixupName == fn {
			return fmt.Errorf("%w: export %s is the target of detour %s", ErrEntryReferenced, s.describe(fn), d.key())
		}
	}
	for _, id := range f.stream.Nodes() {
		s.release(id)
	}
	delete(s.exportIdx, fn)
	for i, e := range s.exports {
		if e == f {
			s.exports = append(s.exports[:i], s.exports[i+1:]...)
			break
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Imports, strings, globals and includes
// ---------------------------------------------------------------------------

// AddImport interns an import. Identical requests return the same symbol.
func (s *Script) AddImport(fn, ns uint32, params uint8, flags ImportFlags) bytecode.Symbol {
	sym, _ := s.imports.intern(importKey{fn, ns, params, flags}, func() *Import {
		return &Import{Function: fn, Namespace: ns, Params: params, Flags: flags}
	})
	return sym
}

// Import returns the import behind sym.
func (s *Script) Import(sym bytecode.Symbol) (*Import, error) { return s.imports.get(sym) }

// Imports returns the live imports in creation order.
func (s *Script) Imports() []*Import { return s.imports.live() }

// RemoveImport drops an unreferenced import.
func (s *Script) RemoveImport(sym bytecode.Symbol) error { return s.imports.remove(sym) }

// AddString interns a string literal.
func (s *Script) AddString(v string) bytecode.Symbol {
	sym, _ := s.strings.intern(v, func() *String { return &String{Value: v} })
	return sym
}

// StringEntry returns the string behind sym.
func (s *Script) StringEntry(sym bytecode.Symbol) (*String, error) { return s.strings.get(sym) }

// Strings returns the live strings in creation order.
func (s *Script) Strings() []*String { return s.strings.live() }

// RemoveString drops an unreferenced string.
func (s *Script) RemoveString(sym bytecode.Symbol) error { return s.strings.remove(sym) }

// AddGlobal interns a global object reference.
func (s *Script) AddGlobal(h uint32) bytecode.Symbol {
	sym, _ := s.globals.intern(h, func() *Global { return &Global{Hash: h} })
	return sym
}

// Global returns the global behind sym.
func (s *Script) Global(sym bytecode.Symbol) (*Global, error) { return s.globals.get(sym) }

// Globals returns the live globals in creation order.
func (s *Script) Globals() []*Global { return s.globals.live() }

// RemoveGlobal drops an unreferenced global.
func (s *Script) RemoveGlobal(sym bytecode.Symbol) error { return s.globals.remove(sym) }

// AddInclude records a dependency on another script. Paths are stored with
// forward slashes; adding a path twice has no effect.
func (s *Script) AddInclude(path string) {
	path = strings.ReplaceAll(path, "\\", "/")
	for _, p := range s.includes {
		if p == path {
			return
		}
	}
	s.includes = append(s.includes, path)
}

// RemoveInclude drops an include.
func (s *Script) RemoveInclude(path string) {
	path = strings.ReplaceAll(path, "\\", "/")
	for i, p := range s.includes {
		if p == path {
			s.includes = append(s.includes[:i], s.includes[i+1:]...)
			return
		}
	}
}

// Includes returns the included paths in insertion order.
func (s *Script) Includes() []string { return append([]string(nil), s.includes...) }

// Prune removes every import, string and global no node references and
// returns how many entries were dropped.
func (s *Script) Prune() int {
	imports, strs, globals := s.imports.prune(), s.strings.prune(), s.globals.prune()
	if n := imports + strs + globals; n > 0 {
		log.Debugf("%s: pruned %d imports, %d strings, %d globals", s.Path, imports, strs, globals)
	}
	return imports + strs + globals
}

// ---------------------------------------------------------------------------
// References
// ---------------------------------------------------------------------------

func (s *Script) entryFor(sym bytecode.Symbol) (*entry, error) {
	switch sym.Kind {
	case bytecode.SymbolImport:
		e, err := s.imports.get(sym)
		if err != nil {
			return nil, err
		}
		return &e.entry, nil
	case bytecode.SymbolString:
		e, err := s.strings.get(sym)
		if err != nil {
			return nil, err
		}
		return &e.entry, nil
	case bytecode.SymbolGlobal:
		e, err := s.globals.get(sym)
		if err != nil {
			return nil, err
		}
		return &e.entry, nil
	}
	return nil, fmt.Errorf("%w: %s %d", ErrUnknownSymbol, sym.Kind, sym.ID)
}

// reference records that node id uses the entry behind inst's symbol.
func (s *Script) reference(id bytecode.NodeID, inst bytecode.Instruction) error {
	r, ok := inst.(bytecode.Referencer)
	if !ok {
		return nil
	}
	e, err := s.entryFor(r.Symbol())
	if err != nil {
		return err
	}
	e.reference(id)
	return nil
}

// checkReference fails if inst names an entry that does not exist.
func (s *Script) checkReference(inst bytecode.Instruction) error {
	if r, ok := inst.(bytecode.Referencer); ok {
		_, err := s.entryFor(r.Symbol())
		return err
	}
	return nil
}

func (s *Script) release(id bytecode.NodeID) {
	r, ok := s.arena.Instruction(id).(bytecode.Referencer)
	if !ok {
		return
	}
	if e, err := s.entryFor(r.Symbol()); err == nil {
		e.release(id)
	}
}

func (s *Script) mutable() error {
	if s.linked {
		return fmt.Errorf("%w: %s", ErrAlreadyLinked, s.Path)
	}
	return nil
}

func (s *Script) describe(h uint32) string {
	if n, ok := s.names[h]; ok {
		return n
	}
	return fmt.Sprintf("0x%08X", h)
}
