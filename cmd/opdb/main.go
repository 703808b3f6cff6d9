// opdb compiles target definitions into opcode tables and back.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/gsclink/pkg/opcode"
)

func main() {
	output := flag.String("o", "", "Output path (default: <platform>_r<revision> next to the input)")
	decode := flag.Bool("d", false, "Decode a compiled table back into a TOML definition")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: opdb [options] definition.toml\n")
		fmt.Fprintf(os.Stderr, "       opdb -d [options] table%s\n\n", opcode.BlobExt)
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	verbosity := 0
	if *verbose {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)

	out, err := convert(flag.Arg(0), *output, *decode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		fmt.Printf("Wrote %s\n", out)
	}
}

// convert compiles in, or decodes it when decode is set, and returns the
// path written.
func convert(in, out string, decode bool) (string, error) {
	var t *opcode.Table
	var err error
	if decode {
		t, err = opcode.ReadBlob(in)
	} else {
		var d *opcode.Definition
		d, err = opcode.LoadDefinition(in)
		if err == nil {
			t, err = d.Table()
		}
	}
	if err != nil {
		return "", err
	}

	if missing := t.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, op := range missing {
			names[i] = op.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: %s has no value for %d operations: %s\n",
			t.Key, len(missing), strings.Join(names, ", "))
	}

	if out == "" {
		ext := opcode.BlobExt
		if decode {
			ext = ".toml"
		}
		out = filepath.Join(filepath.Dir(in), t.Key.String()+ext)
	}
	if decode {
		err = t.Definition().Encode(out)
	} else {
		err = t.WriteBlob(out)
	}
	if err != nil {
		return "", err
	}
	return out, nil
}
