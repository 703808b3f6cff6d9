package opcode

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Loader produces the table for a target. It is called at most once per
// key for the lifetime of a Registry, unless it fails.
type Loader func(Key) (*Table, error)

// Registry caches one Table per target. Concurrent requests for a key that
// is not loaded yet share a single load; failed loads are not cached.
type Registry struct {
	load Loader

	mu     sync.RWMutex
	tables map[Key]*Table
	group  singleflight.Group
}

// NewRegistry returns a registry backed by load.
func NewRegistry(load Loader) *Registry {
	return &Registry{load: load, tables: make(map[Key]*Table)}
}

// Get returns the table for key, loading it on first use.
func (r *Registry) Get(key Key) (*Table, error) {
	if t, ok := r.cached(key); ok {
		return t, nil
	}
	v, err, _ := r.group.Do(key.String(), func() (any, error) {
		if t, ok := r.cached(key); ok {
			return t, nil
		}
		if r.load == nil {
			return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, key)
		}
		t, err := r.load(key)
		if err != nil {
			return nil, err
		}
		r.Add(t)
		log.Infof("loaded target %s (%s, %d opcodes)", key, t.Endian, len(t.values))
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Table), nil
}

// Add registers a table under its own key, replacing nothing that is
// already present.
func (r *Registry) Add(t *Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tables[t.Key]; !ok {
		r.tables[t.Key] = t
	}
}

func (r *Registry) cached(key Key) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[key]
	return t, ok
}

// DirLoader loads "<platform>_r<revision>.opdb" from dir, falling back to
// the TOML definition "<platform>_r<revision>.toml".
func DirLoader(dir string) Loader {
	return func(key Key) (*Table, error) {
		base := filepath.Join(dir, key.String())
		t, err := ReadBlob(base + BlobExt)
		if errors.Is(err, fs.ErrNotExist) {
			var d *Definition
			d, err = LoadDefinition(base + ".toml")
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s in %s", ErrTargetNotFound, key, dir)
			}
			if err == nil {
				t, err = d.Table()
			}
		}
		if err != nil {
			return nil, err
		}
		if t.Key != key {
			return nil, fmt.Errorf("%s declares target %s, want %s", base, t.Key, key)
		}
		return t, nil
	}
}

// ExecutableLoader loads tables stored next to the running executable.
func ExecutableLoader() Loader {
	return func(key Key) (*Table, error) {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("cannot locate executable: %w", err)
		}
		return DirLoader(filepath.Dir(exe))(key)
	}
}
