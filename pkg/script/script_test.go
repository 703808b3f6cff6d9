package script

import (
	"errors"
	"testing"

	"github.com/chazu/gsclink/pkg/bytecode"
	"github.com/chazu/gsclink/pkg/opcode"
)

var (
	leTable = opcode.NewIdentity(opcode.Target{Platform: "pc", Revision: 7, Endian: opcode.LittleEndian})
	beTable = opcode.NewIdentity(opcode.Target{Platform: "console", Revision: 7, Endian: opcode.BigEndian})
)

func mustExport(t *testing.T, s *Script, name string) *Function {
	t.Helper()
	f, err := s.AddExport(s.Hash(name), s.Hash("test"), 0, 0)
	if err != nil {
		t.Fatalf("AddExport(%s): %v", name, err)
	}
	return f
}

func must(t *testing.T) func(bytecode.NodeID, error) bytecode.NodeID {
	return func(id bytecode.NodeID, err error) bytecode.NodeID {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
}

func TestDuplicateExport(t *testing.T) {
	s := New("scripts/test.gsc", leTable)
	mustExport(t, s, "main")
	if _, err := s.AddExport(s.Hash("main"), 0, 1, 0); !errors.Is(err, ErrDuplicateSymbol) {
		t.Errorf("second AddExport error = %v, want %v", err, ErrDuplicateSymbol)
	}
	if len(s.Exports()) != 1 {
		t.Errorf("len(Exports()) = %d, want 1", len(s.Exports()))
	}
}

func TestImportInterning(t *testing.T) {
	s := New("a", leTable)
	a := s.AddImport(1, 2, 3, ImportFunction)
	b := s.AddImport(1, 2, 3, ImportFunction)
	c := s.AddImport(1, 2, 3, ImportMethod)
	if a != b {
		t.Errorf("identical imports got %v and %v", a, b)
	}
	if a == c {
		t.Error("imports with different flags share an entry")
	}
	if len(s.Imports()) != 2 {
		t.Errorf("len(Imports()) = %d, want 2", len(s.Imports()))
	}
}

func TestCallFlags(t *testing.T) {
	tests := []struct {
		ctx  bytecode.CallContext
		want ImportFlags
	}{
		{0, ImportFunction},
		{bytecode.CallMethod, ImportMethod},
		{bytecode.CallThreaded, ImportFunction | ImportRef},
		{bytecode.CallMethod | bytecode.CallThreaded, ImportMethod | ImportRef},
	}
	for _, tt := range tests {
		if got := CallFlags(tt.ctx); got != tt.want {
			t.Errorf("CallFlags(%d) = %d, want %d", tt.ctx, got, tt.want)
		}
	}
}

func TestIncludes(t *testing.T) {
	s := New("a", leTable)
	s.AddInclude(`scripts\shared\util.gsc`)
	s.AddInclude("scripts/shared/util.gsc")
	s.AddInclude("scripts/zm/zm.gsc")
	got := s.Includes()
	if len(got) != 2 || got[0] != "scripts/shared/util.gsc" {
		t.Fatalf("Includes() = %v", got)
	}
	s.RemoveInclude(`scripts\zm\zm.gsc`)
	if len(s.Includes()) != 1 {
		t.Errorf("Includes() after remove = %v", s.Includes())
	}
}

func TestReferencedEntriesCannotBeRemoved(t *testing.T) {
	s := New("a", leTable)
	f := mustExport(t, s, "main")
	id := must(t)(f.AddString("hello"))
	sym := s.AddString("hello")

	if err := s.RemoveString(sym); !errors.Is(err, ErrEntryReferenced) {
		t.Fatalf("RemoveString error = %v, want %v", err, ErrEntryReferenced)
	}
	if err := f.Remove(id); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveString(sym); err != nil {
		t.Fatalf("RemoveString after releasing: %v", err)
	}
	if _, err := s.StringEntry(sym); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("StringEntry after remove error = %v", err)
	}
	if again := s.AddString("hello"); again == sym {
		t.Error("re-added string reused a removed id")
	}
}

func TestNodesAreCountedPerReference(t *testing.T) {
	s := New("a", leTable)
	f := mustExport(t, s, "main")
	for i := 0; i < 3; i++ {
		must(t)(f.AddGlobal(0x1234, false))
	}
	g, err := s.Global(s.AddGlobal(0x1234))
	if err != nil {
		t.Fatal(err)
	}
	if g.Refs() != 3 {
		t.Errorf("Refs() = %d, want 3", g.Refs())
	}
}

func TestPrune(t *testing.T) {
	s := New("a", leTable)
	f := mustExport(t, s, "main")
	must(t)(f.AddCall(0, 1, 2, 0, ImportFunction))
	s.AddImport(9, 9, 0, ImportFunction)
	s.AddString("unused")
	s.AddGlobal(5)
	must(t)(f.AddString("used"))

	if n := s.Prune(); n != 3 {
		t.Errorf("Prune() = %d, want 3", n)
	}
	if len(s.Imports()) != 1 || len(s.Strings()) != 1 || len(s.Globals()) != 0 {
		t.Errorf("after Prune: %d imports, %d strings, %d globals", len(s.Imports()), len(s.Strings()), len(s.Globals()))
	}
}

func TestRemoveLocalsNode(t *testing.T) {
	s := New("a", leTable)
	f := mustExport(t, s, "main")
	if err := f.Remove(f.Stream().Head()); !errors.Is(err, ErrLocalsNode) {
		t.Errorf("Remove(head) error = %v, want %v", err, ErrLocalsNode)
	}
}

func TestRemoveExport(t *testing.T) {
	s := New("a", leTable)
	f := mustExport(t, s, "main")
	must(t)(f.AddString("x"))
	mustExport(t, s, "other")

	if err := s.AddDetour(Detour{FixupName: s.Hash("other"), ReplaceNamespace: 1, ReplaceFunction: 2}); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveExport(s.Hash("other")); !errors.Is(err, ErrEntryReferenced) {
		t.Errorf("RemoveExport(detour target) error = %v", err)
	}
	if err := s.RemoveExport(s.Hash("main")); err != nil {
		t.Fatal(err)
	}
	if n := s.Prune(); n != 1 {
		t.Errorf("Prune() after removing main = %d, want 1", n)
	}
	if err := s.RemoveExport(s.Hash("main")); !errors.Is(err, ErrUnknownExport) {
		t.Errorf("second RemoveExport error = %v", err)
	}
}

func TestDuplicateDetour(t *testing.T) {
	s := New("a", leTable)
	d := Detour{FixupName: 1, ReplaceNamespace: 2, ReplaceFunction: 3, ReplaceScript: "scripts/zm/a.gsc"}
	if err := s.AddDetour(d); err != nil {
		t.Fatal(err)
	}
	if err := s.AddDetour(d); !errors.Is(err, ErrDuplicateDetour) {
		t.Errorf("duplicate error = %v, want %v", err, ErrDuplicateDetour)
	}
	d.ReplaceScript = ""
	if err := s.AddDetour(d); err != nil {
		t.Errorf("builtin detour: %v", err)
	}
	d.FixupName = 99
	if err := s.AddDetour(d); !errors.Is(err, ErrDuplicateDetour) {
		t.Errorf("duplicate builtin detour error = %v", err)
	}
}

func TestHashRecordsNames(t *testing.T) {
	s := New("a", leTable)
	h := s.Hash("Main")
	if h != 0xD290EBFA {
		t.Errorf("Hash(Main) = 0x%08X, want 0xD290EBFA", h)
	}
	if n, ok := s.Name(h); !ok || n != "main" {
		t.Errorf("Name = %q, %v", n, ok)
	}
	if h := s.Hash("func_1234ABCD"); h != 0x1234ABCD {
		t.Errorf("Hash(func_1234ABCD) = 0x%08X", h)
	}
}

func TestUnknownSymbol(t *testing.T) {
	s := New("a", leTable)
	f := mustExport(t, s, "main")
	bad := bytecode.NewCall(0, bytecode.Symbol{Kind: bytecode.SymbolImport, ID: 5}, 1, 0, 0, opcode.LittleEndian)
	if _, err := f.Append(bad); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("Append with dangling symbol error = %v, want %v", err, ErrUnknownSymbol)
	}
	if f.Stream().Len() != 1 {
		t.Errorf("stream Len() = %d, want 1", f.Stream().Len())
	}
}
