package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/gsclink/manifest"
	"github.com/chazu/gsclink/pkg/hash"
	"github.com/chazu/gsclink/pkg/hashdb"
	"github.com/chazu/gsclink/pkg/opcode"
)

var pcKey = opcode.Key{Platform: "pc", Revision: 7}

func identityLoader(key opcode.Key) (*opcode.Table, error) {
	return opcode.NewIdentity(opcode.Target{Platform: key.Platform, Revision: key.Revision}), nil
}

func writeListing(t *testing.T, dir, file, content string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const utilListing = `
name: scripts/util.gsc
exports:
  - name: main
    code:
      - string: hi
      - call: iprintln
        namespace: sys
        params: 1
      - return: true
`

const modListing = `
name: scripts/mod.gsc
target: pc_r7
exports:
  - name: replacement
    code:
      - return: true
detours:
  - fixup: replacement
    namespace: util
    function: main
    script: scripts/util.gsc
`

func TestRun(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	a := writeListing(t, src, "util.yaml", utilListing)
	b := writeListing(t, src, "mod.yaml", modListing)

	rec, err := run(context.Background(), options{
		Sources:    []string{a, b},
		OutDir:     out,
		Dump:       true,
		HashDB:     filepath.Join(out, "names.db"),
		Jobs:       2,
		Registry:   opcode.NewRegistry(identityLoader),
		Default:    pcKey,
		HasDefault: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(rec.Units) != 2 || rec.Target != "pc_r7" || rec.BuildID == "" {
		t.Fatalf("record = %+v", rec)
	}
	util := rec.FindUnit("scripts/util.gsc")
	if util == nil || util.Source != a {
		t.Fatalf("util unit = %+v", util)
	}
	data, err := os.ReadFile(util.Output)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != util.Size {
		t.Errorf("image is %d bytes, record says %d", len(data), util.Size)
	}
	if mod := rec.FindUnit("scripts/mod.gsc"); mod == nil || mod.Detours != 1 {
		t.Errorf("mod unit = %+v", mod)
	}

	lst, err := os.ReadFile(util.Output + ListingExt)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(lst), "iprintln") {
		t.Errorf("listing does not resolve names:\n%s", lst)
	}

	saved, err := manifest.ReadRecord(filepath.Join(out, manifest.RecordFileName))
	if err != nil || saved == nil || saved.BuildID != rec.BuildID {
		t.Errorf("saved record = %+v, %v", saved, err)
	}

	db, err := hashdb.Open(filepath.Join(out, "names.db"), hash.Hasher{IV: hash.DefaultIV, Key: hash.DefaultKey})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if name, ok := db.Name(db.Hasher().Identifier("iprintln")); !ok || name != "iprintln" {
		t.Errorf("dictionary lookup = %q, %v", name, ok)
	}
}

func TestRunNeedsTarget(t *testing.T) {
	src := t.TempDir()
	a := writeListing(t, src, "util.yaml", utilListing)
	_, err := run(context.Background(), options{
		Sources:  []string{a},
		OutDir:   t.TempDir(),
		Registry: opcode.NewRegistry(identityLoader),
	})
	if err == nil || !strings.Contains(err.Error(), "no default target") {
		t.Errorf("run error = %v", err)
	}
}

func TestRunReportsLinkErrors(t *testing.T) {
	src := t.TempDir()
	a := writeListing(t, src, "bad.yaml", "name: a\nexports:\n  - name: main\n    code:\n      - jump: nowhere\n")
	_, err := run(context.Background(), options{
		Sources:    []string{a},
		OutDir:     t.TempDir(),
		Registry:   opcode.NewRegistry(identityLoader),
		Default:    pcKey,
		HasDefault: true,
	})
	if err == nil || !strings.Contains(err.Error(), "bad.yaml") {
		t.Errorf("run error = %v", err)
	}
}

func TestApplyManifest(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0755); err != nil {
		t.Fatal(err)
	}
	writeListing(t, filepath.Join(dir, "src"), "util.yaml", utilListing)
	toml := "[target]\nplatform = \"pc\"\nrevision = 7\n\n[build]\nhashdb = \"names.db\"\ndump = true\n"
	if err := os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := manifest.Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	var o options
	if err := o.applyManifest(m); err != nil {
		t.Fatal(err)
	}
	if len(o.Sources) != 1 || !o.Dump || !o.HasDefault || o.Default != pcKey {
		t.Errorf("options = %+v", o)
	}
	if o.OutDir != filepath.Join(m.Dir, "build") || o.HashDB != filepath.Join(m.Dir, "names.db") {
		t.Errorf("OutDir = %q, HashDB = %q", o.OutDir, o.HashDB)
	}

	m.Build.Sources = []string{"none/*.yaml"}
	if err := (&options{}).applyManifest(m); err == nil {
		t.Error("a manifest matching no listings should fail")
	}
}

func TestLoadTargetFile(t *testing.T) {
	dir := t.TempDir()
	def := filepath.Join(dir, "pc_r7.toml")
	content := "[target]\nplatform = \"pc\"\nrevision = 7\nendian = \"little\"\n\n[opcodes]\nEnd = [0x20]\n"
	if err := os.WriteFile(def, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	tbl, err := loadTargetFile(def)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Key != pcKey || tbl.Value(opcode.OpEnd) != 0x20 {
		t.Errorf("table %s End = 0x%X", tbl.Key, tbl.Value(opcode.OpEnd))
	}

	blob := filepath.Join(dir, "pc_r7"+opcode.BlobExt)
	if err := tbl.WriteBlob(blob); err != nil {
		t.Fatal(err)
	}
	again, err := loadTargetFile(blob)
	if err != nil {
		t.Fatal(err)
	}
	if again.Value(opcode.OpEnd) != 0x20 {
		t.Errorf("blob End = 0x%X", again.Value(opcode.OpEnd))
	}
}
