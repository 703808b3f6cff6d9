// gscc links script listings into loadable images.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/gsclink/manifest"
	"github.com/chazu/gsclink/pkg/opcode"
)

func main() {
	targetFile := flag.String("target", "", "Target definition (.toml) or compiled table (.opdb)")
	targetDir := flag.String("targets", "", "Directory of target definitions (default: next to the executable)")
	outDir := flag.String("o", "", "Output directory")
	dump := flag.Bool("dump", false, "Write a disassembly listing next to each image")
	hashDB := flag.String("hashdb", "", "Hash dictionary used and extended by listings")
	jobs := flag.Int("j", runtime.NumCPU(), "Units linked in parallel")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gscc [options] [listing.yaml...]\n\n")
		fmt.Fprintf(os.Stderr, "Links script listings into images. Without arguments, builds the\n")
		fmt.Fprintf(os.Stderr, "project described by the nearest %s.\n\n", manifest.FileName)
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  gscc                                   # build ./gscc.toml\n")
		fmt.Fprintf(os.Stderr, "  gscc -target pc_r7.toml -o out a.yaml  # link one listing\n")
		fmt.Fprintf(os.Stderr, "  gscc -dump -hashdb names.db a.yaml     # also write a.gsc.lst\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)

	opts := options{
		Sources: flag.Args(),
		OutDir:  *outDir,
		Dump:    *dump,
		HashDB:  *hashDB,
		Jobs:    *jobs,
	}

	if len(opts.Sources) == 0 {
		m, err := manifest.FindAndLoad(".")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
			os.Exit(1)
		}
		if m == nil {
			fmt.Fprintf(os.Stderr, "Error: no listings given and no %s found\n", manifest.FileName)
			flag.Usage()
			os.Exit(2)
		}
		if err := opts.applyManifest(m); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if *targetDir == "" {
			*targetDir = m.TargetDir()
		}
	}

	loader := opcode.ExecutableLoader()
	if *targetDir != "" {
		loader = opcode.DirLoader(*targetDir)
	}
	opts.Registry = opcode.NewRegistry(loader)

	if *targetFile != "" {
		t, err := loadTargetFile(*targetFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading target: %v\n", err)
			os.Exit(1)
		}
		opts.Registry.Add(t)
		opts.Default = t.Key
		opts.HasDefault = true
	}

	rec, err := run(context.Background(), opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		for _, u := range rec.Units {
			fmt.Printf("%s -> %s (%d bytes)\n", u.Name, u.Output, u.Size)
		}
	}
}
