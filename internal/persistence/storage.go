// Package persistence selects a snapshot store backend and moves loaded
// corpora in and out of it.
package persistence

import (
	"context"
	"fmt"

	"vitisexpr/internal/corpus"
	"vitisexpr/internal/infra/persistence/buckets"
	"vitisexpr/internal/infra/persistence/memory"
	"vitisexpr/internal/infra/persistence/postgres"
	"vitisexpr/internal/infra/persistence/sqlite"
	"vitisexpr/pkg/expression"
)

// Driver identifies a snapshot store implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-process only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Info summarizes a stored snapshot.
type Info = buckets.Info

// ErrNotFound is returned when no snapshot exists under a name.
var ErrNotFound = buckets.ErrNotFound

// Store saves and loads named corpus snapshots.
type Store interface {
	Save(ctx context.Context, name string, s expression.Snapshot) error
	Load(ctx context.Context, name string) (expression.Snapshot, error)
	List(ctx context.Context) ([]Info, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
	_ Store = (*postgres.Store)(nil)
)

// Config selects and parameterizes a backend. An empty Driver means sqlite.
type Config struct {
	Driver      Driver `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Open returns the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case DriverPostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// SaveCorpus stores c under name.
func SaveCorpus(ctx context.Context, store Store, name string, c *corpus.Corpus) error {
	if name == "" {
		return fmt.Errorf("snapshot name required")
	}
	return store.Save(ctx, name, c.Snapshot())
}

// LoadCorpus rebuilds the corpus stored under name.
func LoadCorpus(ctx context.Context, store Store, name string) (*corpus.Corpus, error) {
	s, err := store.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	c, err := corpus.FromSnapshot(s)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", name, err)
	}
	return c, nil
}
