// Package hashdb is a persistent reverse dictionary from identifier hashes
// to the identifiers they were computed from. Listings use it to print
// names for hashes a script only references.
package hashdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/gsclink/pkg/bytecode"
	"github.com/chazu/gsclink/pkg/hash"
)

var log = commonlog.GetLogger("gsclink.hashdb")

// DB maps hashes of one hasher back to identifiers.
type DB struct {
	db     *sql.DB
	hasher hash.Hasher

	mu    sync.Mutex
	cache map[uint32]string
}

// Open opens or creates the dictionary at path. Hashes are computed and
// looked up with hasher; entries of other hashers in the same file are
// ignored.
func Open(path string, hasher hash.Hasher) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening hash database: %w", err)
	}
	// One connection serializes writers from concurrent builds.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS names (
		iv   INTEGER NOT NULL,
		key  INTEGER NOT NULL,
		hash INTEGER NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (iv, key, hash)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	return &DB{db: db, hasher: hasher, cache: make(map[uint32]string)}, nil
}

// Hasher returns the hash parameters the dictionary was opened with.
func (d *DB) Hasher() hash.Hasher { return d.hasher }

// Close closes the database.
func (d *DB) Close() error { return d.db.Close() }

// Record stores name and returns its hash. The first name recorded for a
// hash wins.
func (d *DB) Record(ctx context.Context, name string) (uint32, error) {
	if _, err := d.RecordAll(ctx, []string{name}); err != nil {
		return 0, err
	}
	return d.hasher.Identifier(name), nil
}

// RecordAll stores every name in one transaction and returns how many were
// new. Empty names and hash literals such as "func_1234abcd" are skipped.
func (d *DB) RecordAll(ctx context.Context, names []string) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO names (iv, key, hash, name) VALUES (?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := hash.Literal(name); ok {
			continue
		}
		name = strings.ToLower(name)
		res, err := stmt.ExecContext(ctx, d.hasher.IV, d.hasher.Key, d.hasher.Identifier(name), name)
		if err != nil {
			return 0, fmt.Errorf("record %q: %w", name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	log.Debugf("recorded %d of %d names", added, len(names))
	return added, nil
}

// Lookup returns the name recorded for h.
func (d *DB) Lookup(ctx context.Context, h uint32) (string, bool, error) {
	d.mu.Lock()
	name, ok := d.cache[h]
	d.mu.Unlock()
	if ok {
		return name, true, nil
	}
	err := d.db.QueryRowContext(ctx,
		"SELECT name FROM names WHERE iv = ? AND key = ? AND hash = ?",
		d.hasher.IV, d.hasher.Key, h).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup 0x%08X: %w", h, err)
	}
	d.mu.Lock()
	d.cache[h] = name
	d.mu.Unlock()
	return name, true, nil
}

// Name implements bytecode.Namer. Lookup errors read as unknown names.
func (d *DB) Name(h uint32) (string, bool) {
	name, ok, err := d.Lookup(context.Background(), h)
	if err != nil {
		log.Warningf("%s", err)
		return "", false
	}
	return name, ok
}

// Len returns the number of names recorded for this hasher.
func (d *DB) Len(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM names WHERE iv = ? AND key = ?",
		d.hasher.IV, d.hasher.Key).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Chain resolves a hash through each namer in turn.
type Chain []bytecode.Namer

func (c Chain) Name(h uint32) (string, bool) {
	for _, n := range c {
		if n == nil {
			continue
		}
		if name, ok := n.Name(h); ok {
			return name, true
		}
	}
	return "", false
}
