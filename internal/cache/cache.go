// Package cache keeps compiled WAT keyed by a hash of the source and the
// options that produced it, in a SQLite database.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/funvibe/watc/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	id         TEXT PRIMARY KEY,
	key        TEXT NOT NULL UNIQUE,
	file       TEXT NOT NULL,
	wat        TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	hits       INTEGER NOT NULL DEFAULT 0
);`

// Artifact is one cached compilation.
type Artifact struct {
	ID        string
	Key       string
	File      string
	WAT       string
	CreatedAt time.Time
	Hits      int
}

type Cache struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the cache database at path. The path
// ":memory:" gives a private in-memory cache.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache %s: %w", path, err)
	}
	return &Cache{db: db, path: path}, nil
}

func (c *Cache) Path() string { return c.path }

func (c *Cache) Close() error { return c.db.Close() }

// Key identifies a compilation: the source text plus every option that can
// change the output.
func Key(source string, opts config.Options) (string, error) {
	settings, err := yaml.Marshal(struct {
		Optimize config.OptimizeOptions `yaml:"optimize"`
		Codegen  config.CodegenOptions  `yaml:"codegen"`
	}{opts.Optimize, opts.Codegen})
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	h := sha256.New()
	h.Write(settings)
	h.Write([]byte{0})
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the artifact stored under key and counts the hit.
func (c *Cache) Get(ctx context.Context, key string) (*Artifact, bool, error) {
	a := &Artifact{Key: key}
	var created int64
	err := c.db.QueryRowContext(ctx,
		`SELECT id, file, wat, created_at, hits FROM artifacts WHERE key = ?`, key).
		Scan(&a.ID, &a.File, &a.WAT, &created, &a.Hits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, `UPDATE artifacts SET hits = hits + 1 WHERE id = ?`, a.ID); err != nil {
		return nil, false, fmt.Errorf("cache hit count: %w", err)
	}
	a.Hits++
	a.CreatedAt = time.Unix(0, created)
	return a, true, nil
}

// Put stores wat under key, replacing any previous artifact for that key.
func (c *Cache) Put(ctx context.Context, key, file, wat string) (*Artifact, error) {
	a := &Artifact{
		ID:        uuid.NewString(),
		Key:       key,
		File:      file,
		WAT:       wat,
		CreatedAt: time.Now(),
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, key, file, wat, created_at, hits) VALUES (?, ?, ?, ?, ?, 0)
		 ON CONFLICT(key) DO UPDATE SET id = excluded.id, file = excluded.file,
		 wat = excluded.wat, created_at = excluded.created_at, hits = 0`,
		a.ID, a.Key, a.File, a.WAT, a.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("cache store: %w", err)
	}
	return a, nil
}

// List returns every artifact, newest first, without the WAT text.
func (c *Cache) List(ctx context.Context) ([]Artifact, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, key, file, created_at, hits FROM artifacts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		var created int64
		if err := rows.Scan(&a.ID, &a.Key, &a.File, &created, &a.Hits); err != nil {
			return nil, fmt.Errorf("cache list: %w", err)
		}
		a.CreatedAt = time.Unix(0, created)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Purge removes every artifact and reports how many were removed.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM artifacts`)
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	return res.RowsAffected()
}
