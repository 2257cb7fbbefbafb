// Package postgres persists corpus snapshots in Postgres, one JSONB row per
// snapshot bucket.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"vitisexpr/internal/infra/persistence/buckets"
	"vitisexpr/pkg/expression"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/vitis?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a Postgres-backed snapshot store.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewStore opens dsn (falling back to defaultDSN), pings it and ensures the
// snapshots table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureSnapshotTable(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func ensureSnapshotTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS snapshots (
		name TEXT NOT NULL,
		bucket TEXT NOT NULL,
		payload JSONB NOT NULL,
		PRIMARY KEY (name, bucket)
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure snapshots table: %w", err)
	}
	return nil
}

// Save writes snap under name in one transaction.
func (s *Store) Save(ctx context.Context, name string, snap expression.Snapshot) error {
	payloads, err := buckets.Encode(name, snap, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range buckets.Names {
		if _, err := tx.ExecContext(ctx, `INSERT INTO snapshots(name,bucket,payload) VALUES($1,$2,$3) ON CONFLICT(name,bucket) DO UPDATE SET payload=EXCLUDED.payload`, name, bucket, payloads[bucket]); err != nil {
			return fmt.Errorf("upsert %s/%s: %w", name, bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Load reads the snapshot stored under name.
func (s *Store) Load(ctx context.Context, name string) (expression.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM snapshots WHERE name = $1`, name)
	if err != nil {
		return expression.Snapshot{}, fmt.Errorf("select snapshot: %w", err)
	}
	defer func() { _ = rows.Close() }()
	payloads := make(map[string][]byte)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return expression.Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
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
	rows, err := s.db.QueryContext(ctx, `SELECT name, payload FROM snapshots WHERE bucket = $1`, buckets.Meta)
	if err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []buckets.Info
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("scan snapshots: %w", err)
		}
		info, err := buckets.DecodeInfo(payload)
		if err != nil {
			return nil, err
		}
		info.Name = name
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes the snapshot stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", buckets.ErrNotFound, name)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
