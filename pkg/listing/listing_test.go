package listing

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/gsclink/pkg/bytecode"
	"github.com/chazu/gsclink/pkg/opcode"
	"github.com/chazu/gsclink/pkg/script"
)

var pcTable = opcode.NewIdentity(opcode.Target{Platform: "pc", Revision: 7, Endian: opcode.LittleEndian})

const modListing = `
name: scripts\mod.gsc
target: pc_r7
includes: [scripts/shared/util.gsc]
exports:
  - name: main
    namespace: mod
    flags: [autoexec]
    locals: [count]
    code:
      - number: 3
      - local: count
        mode: ref
      - op: SetVariableField
      - local: count
      - jump: done
        op: JumpOnFalse
      - string: hello
      - call: iprintln
        namespace: sys
        params: 1
      - op: DecTop
      - label: done
      - return: true
  - name: helper
    code:
      - global: level
      - field: score
      - funcptr: main
        namespace: mod
      - callptr: true
        thread: true
      - return: true
detours:
  - fixup: main
    namespace: sys
    function: iprintln
`

func TestBuild(t *testing.T) {
	u, err := Parse([]byte(modListing))
	if err != nil {
		t.Fatal(err)
	}
	key, ok, err := u.TargetKey()
	if err != nil || !ok || key != (opcode.Key{Platform: "pc", Revision: 7}) {
		t.Fatalf("TargetKey() = %v, %v, %v", key, ok, err)
	}
	s, err := u.Build(pcTable)
	if err != nil {
		t.Fatal(err)
	}

	if s.Path != "scripts/mod.gsc" {
		t.Errorf("Path = %q", s.Path)
	}
	if got := s.Includes(); len(got) != 1 || got[0] != "scripts/shared/util.gsc" {
		t.Errorf("Includes() = %v", got)
	}
	main, ok := s.Export(s.Hash("main"))
	if !ok {
		t.Fatal("main not exported")
	}
	if main.Flags != script.ExportAutoExec {
		t.Errorf("main flags = %d", main.Flags)
	}
	if main.Locals().Count() != 1 {
		t.Errorf("main locals = %d, want 1", main.Locals().Count())
	}
	// Locals plus ten items.
	if main.Stream().Len() != 11 {
		t.Errorf("main has %d nodes, want 11", main.Stream().Len())
	}
	if n := len(s.Imports()); n != 2 {
		t.Errorf("%d imports, want 2", n)
	}
	if n := len(s.Strings()); n != 1 {
		t.Errorf("%d strings, want 1", n)
	}
	if n := len(s.Globals()); n != 1 {
		t.Errorf("%d globals, want 1", n)
	}
	if n := len(s.Detours()); n != 1 {
		t.Errorf("%d detours, want 1", n)
	}

	img, err := s.Link()
	if err != nil {
		t.Fatal(err)
	}
	if img.Trailer() == nil {
		t.Error("missing detour trailer")
	}
}

func TestJumpBoundAfterBody(t *testing.T) {
	u, err := Parse([]byte(`
name: a
exports:
  - name: main
    code:
      - jump: end
      - number: 1
      - label: end
      - return: true
`))
	if err != nil {
		t.Fatal(err)
	}
	s, err := u.Build(pcTable)
	if err != nil {
		t.Fatal(err)
	}
	f, _ := s.Export(s.Hash("main"))
	nodes := f.Stream().Nodes()
	j, ok := s.Arena().Instruction(nodes[1]).(*bytecode.Jump)
	if !ok {
		t.Fatalf("node 1 is %T", s.Arena().Instruction(nodes[1]))
	}
	if j.Target() != nodes[3] {
		t.Errorf("jump target = %d, want %d", j.Target(), nodes[3])
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"unknown label", "      - jump: nowhere\n", ErrUnknownLabel},
		{"duplicate label", "      - label: a\n      - label: a\n", ErrDuplicateLabel},
		{"two kinds", "      - number: 1\n        string: x\n", ErrBadItem},
		{"empty item", "      - params: 1\n", ErrBadItem},
		{"unknown op", "      - op: Frobnicate\n", opcode.ErrUnknownOpcode},
		{"operand required", "      - op: GetByte\n", bytecode.ErrOperandRequired},
		{"undefined local", "      - local: x\n", bytecode.ErrUndefinedLocal},
		{"bad local mode", "      - declare: x\n      - local: x\n        mode: poke\n", ErrBadItem},
		{"not numeric", "      - number: abc\n", bytecode.ErrNotNumeric},
		{"bad jump op", "      - jump: a\n        op: Plus\n      - label: a\n", bytecode.ErrNotJump},
		{"bad import flag", "      - call: f\n        flags: [bogus]\n", ErrBadFlag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := Parse([]byte("name: a\nexports:\n  - name: main\n    code:\n" + tt.code))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := u.Build(pcTable); !errors.Is(err, tt.want) {
				t.Errorf("Build error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuildDuplicateExport(t *testing.T) {
	u, err := Parse([]byte("name: a\nexports:\n  - name: main\n  - name: MAIN\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := u.Build(pcTable); !errors.Is(err, script.ErrDuplicateSymbol) {
		t.Errorf("Build error = %v, want %v", err, script.ErrDuplicateSymbol)
	}
}

func TestItemLine(t *testing.T) {
	u, err := Parse([]byte("name: a\nexports:\n  - name: main\n    code:\n      - number: 1\n      - return: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := u.Exports[0].Code[1].Line(); got != 6 {
		t.Errorf("Line() = %d, want 6", got)
	}
}

func TestTargetKey(t *testing.T) {
	tests := []struct {
		in   string
		want opcode.Key
		ok   bool
		err  bool
	}{
		{"", opcode.Key{}, false, false},
		{"pc_r7", opcode.Key{Platform: "pc", Revision: 7}, true, false},
		{"ps_4_r12", opcode.Key{Platform: "ps_4", Revision: 12}, true, false},
		{"pc", opcode.Key{}, false, true},
		{"pc_rx", opcode.Key{}, false, true},
	}
	for _, tt := range tests {
		u := &Unit{Name: "a", Target: tt.in}
		got, ok, err := u.TargetKey()
		if got != tt.want || ok != tt.ok || (err != nil) != tt.err {
			t.Errorf("TargetKey(%q) = %v, %v, %v", tt.in, got, ok, err)
		}
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]byte("exports: []\n")); err == nil {
		t.Error("listing without a name should fail")
	}
	if _, err := Parse([]byte("name: [\n")); err == nil {
		t.Error("invalid YAML should fail")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mod"+Ext)
	if err := os.WriteFile(path, []byte(modListing), 0o644); err != nil {
		t.Fatal(err)
	}
	u, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(u.Exports) != 2 || len(u.Exports[0].Code) != 10 {
		t.Errorf("loaded %d exports", len(u.Exports))
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file should fail")
	}
}

func TestDefaultNamespace(t *testing.T) {
	tests := []struct{ in, want string }{
		{"scripts/zm/_zm_utility.gsc", "_zm_utility"},
		{`scripts\mp\Gametype.csc`, "gametype"},
		{"mod", "mod"},
		{"a.b.gsc", "a"},
	}
	for _, tt := range tests {
		if got := DefaultNamespace(tt.in); got != tt.want {
			t.Errorf("DefaultNamespace(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	u, err := Parse([]byte("name: scripts/zm/util.gsc\nexports:\n  - name: main\n    code:\n      - return: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	s, err := u.Build(pcTable)
	if err != nil {
		t.Fatal(err)
	}
	f, _ := s.Export(s.Hash("main"))
	if f.Namespace != s.Hash("util") {
		t.Errorf("namespace = 0x%08X, want hash of util", f.Namespace)
	}
}
