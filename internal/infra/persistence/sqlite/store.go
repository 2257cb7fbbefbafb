// Package sqlite persists corpus snapshots in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"vitisexpr/internal/infra/persistence/buckets"
	"vitisexpr/pkg/expression"
)

const defaultPath = "vitis.db"

// Store keeps each snapshot as one JSON row per bucket in the snapshots table.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewStore opens (creating if needed) the database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		name TEXT NOT NULL,
		bucket TEXT NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (name, bucket)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &Store{db: db, path: path, now: time.Now}, nil
}

// Save writes s under name, replacing any earlier snapshot with that name.
func (s *Store) Save(ctx context.Context, name string, snap expression.Snapshot) (retErr error) {
	payloads, err := buckets.Encode(name, snap, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range buckets.Names {
		if _, err := tx.ExecContext(ctx, `INSERT INTO snapshots(name,bucket,payload) VALUES(?,?,?) ON CONFLICT(name,bucket) DO UPDATE SET payload=excluded.payload`, name, bucket, payloads[bucket]); err != nil {
			return fmt.Errorf("upsert %s/%s: %w", name, bucket, err)
		}
	}
	return tx.Commit()
}

// Load reads the snapshot stored under name.
func (s *Store) Load(ctx context.Context, name string) (expression.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM snapshots WHERE name = ?`, name)
	if err != nil {
		return expression.Snapshot{}, fmt.Errorf("select snapshot: %w", err)
	}
	defer func() { _ = rows.Close() }()
	payloads := make(map[string][]byte)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return expression.Snapshot{}, fmt.Errorf("scan: %w", err)
		}
		payloads[bucket] = payload
	}
	if err := rows.Err(); err != nil {
		return expression.Snapshot{}, fmt.Errorf("iterate snapshot: %w", err)
	}
	return buckets.Decode(name, payloads)
}

// List summarizes every stored snapshot, sorted by name.
func (s *Store) List(ctx context.Context) ([]buckets.Info, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, payload FROM snapshots WHERE bucket = ?`, buckets.Meta)
	if err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []buckets.Info
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		info, err := buckets.DecodeInfo(payload)
		if err != nil {
			return nil, err
		}
		info.Name = name
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes the snapshot stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", buckets.ErrNotFound, name)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
