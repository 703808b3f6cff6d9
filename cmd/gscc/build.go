package main

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/gsclink/manifest"
	"github.com/chazu/gsclink/pkg/bytecode"
	"github.com/chazu/gsclink/pkg/hash"
	"github.com/chazu/gsclink/pkg/hashdb"
	"github.com/chazu/gsclink/pkg/listing"
	"github.com/chazu/gsclink/pkg/opcode"
	"github.com/chazu/gsclink/pkg/script"
)

var log = commonlog.GetLogger("gscc")

// ListingExt is appended to an image path for its disassembly.
const ListingExt = ".lst"

// options configures one build.
type options struct {
	Sources []string
	OutDir  string
	Dump    bool
	HashDB  string
	Jobs    int

	Registry *opcode.Registry

	// Default is the target of listings that do not name one.
	Default    opcode.Key
	HasDefault bool
}

// applyManifest fills options from a project manifest.
func (o *options) applyManifest(m *manifest.Manifest) error {
	sources, err := m.SourcePaths()
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no listings match %v in %s", m.Build.Sources, m.Dir)
	}
	o.Sources = sources
	if o.OutDir == "" {
		o.OutDir = m.OutputDir()
	}
	if o.HashDB == "" {
		o.HashDB = m.HashDBPath()
	}
	o.Dump = o.Dump || m.Build.Dump
	if m.Target.Platform != "" {
		o.Default = opcode.Key{Platform: m.Target.Platform, Revision: m.Target.Revision}
		o.HasDefault = true
	}
	return nil
}

// loadTargetFile reads a compiled table or a TOML definition.
func loadTargetFile(path string) (*opcode.Table, error) {
	if strings.EqualFold(filepath.Ext(path), opcode.BlobExt) {
		return opcode.ReadBlob(path)
	}
	d, err := opcode.LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	return d.Table()
}

// run links every source concurrently and writes the images, optional
// listings and the build record.
func run(ctx context.Context, o options) (*manifest.Record, error) {
	if o.OutDir == "" {
		o.OutDir = "."
	}
	if err := os.MkdirAll(o.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	var names *hashdb.DB
	if o.HashDB != "" {
		var err error
		names, err = hashdb.Open(o.HashDB, defaultHasher(o))
		if err != nil {
			return nil, err
		}
		defer names.Close()
	}

	buildID := uuid.NewString()
	rec := &manifest.Record{
		BuildID: buildID,
		Time:    time.Now().UTC().Truncate(time.Second),
		Units:   make([]manifest.BuiltUnit, len(o.Sources)),
	}
	if o.HasDefault {
		rec.Target = o.Default.String()
	}

	g, ctx := errgroup.WithContext(ctx)
	if o.Jobs > 0 {
		g.SetLimit(o.Jobs)
	}
	for i, src := range o.Sources {
		i, src := i, src
		g.Go(func() error {
			u, err := buildUnit(ctx, o, names, src)
			if err != nil {
				log.Error("link failed", "build", buildID, "source", src, "error", err)
				return fmt.Errorf("%s: %w", src, err)
			}
			log.Info("linked", "build", buildID, "unit", u.Name, "bytes", u.Size, "detours", u.Detours)
			rec.Units[i] = *u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := manifest.WriteRecord(filepath.Join(o.OutDir, manifest.RecordFileName), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// defaultHasher picks the hash parameters of the dictionary: the default
// target's, or the standard ones.
func defaultHasher(o options) hash.Hasher {
	if o.HasDefault {
		if t, err := o.Registry.Get(o.Default); err == nil {
			return t.Hasher()
		}
	}
	return hash.Hasher{IV: hash.DefaultIV, Key: hash.DefaultKey}
}

func buildUnit(ctx context.Context, o options, names *hashdb.DB, src string) (*manifest.BuiltUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := listing.Load(src)
	if err != nil {
		return nil, err
	}
	key, ok, err := u.TargetKey()
	if err != nil {
		return nil, err
	}
	if !ok {
		if !o.HasDefault {
			return nil, fmt.Errorf("%s names no target and no default target is set", u.Name)
		}
		key = o.Default
	}
	tbl, err := o.Registry.Get(key)
	if err != nil {
		return nil, err
	}

	s, err := u.Build(tbl)
	if err != nil {
		return nil, err
	}
	img, err := s.Link()
	if err != nil {
		return nil, err
	}

	out := filepath.Join(o.OutDir, filepath.FromSlash(s.Path))
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	if err := os.WriteFile(out, img.Bytes, 0644); err != nil {
		return nil, fmt.Errorf("writing image: %w", err)
	}

	var namer bytecode.Namer = s
	if names != nil && tbl.Hasher() == names.Hasher() {
		recorded := make([]string, 0, len(s.Names()))
		for _, n := range s.Names() {
			recorded = append(recorded, n)
		}
		if _, err := names.RecordAll(ctx, recorded); err != nil {
			return nil, err
		}
		namer = hashdb.Chain{s, names}
	}
	if o.Dump {
		if err := os.WriteFile(out+ListingExt, []byte(script.Disassemble(img, namer)), 0644); err != nil {
			return nil, fmt.Errorf("writing listing: %w", err)
		}
	}

	return &manifest.BuiltUnit{
		Name:    s.Path,
		Source:  src,
		Output:  out,
		Size:    len(img.Bytes),
		CRC32:   crc32.ChecksumIEEE(img.Bytes),
		Detours: len(s.Detours()),
	}, nil
}
