package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// RecordFileName is the build record written next to the images.
const RecordFileName = "gscc.lock"

// Record describes the images produced by one build.
type Record struct {
	BuildID string      `toml:"build-id"`
	Target  string      `toml:"target"`
	Time    time.Time   `toml:"time"`
	Units   []BuiltUnit `toml:"unit"`
}

// BuiltUnit is one linked image.
type BuiltUnit struct {
	Name    string `toml:"name"`
	Source  string `toml:"source"`
	Output  string `toml:"output"`
	Size    int    `toml:"size"`
	CRC32   uint32 `toml:"crc32"`
	Detours int    `toml:"detours,omitempty"`
}

// FindUnit returns the unit with the given script name, or nil.
func (r *Record) FindUnit(name string) *BuiltUnit {
	for i := range r.Units {
		if r.Units[i].Name == name {
			return &r.Units[i]
		}
	}
	return nil
}

// ReadRecord reads a build record. It returns nil, nil when the file does
// not exist.
func ReadRecord(path string) (*Record, error) {
	var r Record
	if _, err := toml.DecodeFile(path, &r); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return &r, nil
}

// WriteRecord writes r to path.
func WriteRecord(path string, r *Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	if err := toml.NewEncoder(f).Encode(r); err != nil {
		f.Close()
		return fmt.Errorf("cannot encode %s: %w", path, err)
	}
	return f.Close()
}
