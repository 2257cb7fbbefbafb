package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"vitisexpr/internal/infra/persistence/buckets"
	"vitisexpr/pkg/expression"
)

func snapshotFixture(condition string) expression.Snapshot {
	v := 4.0
	return expression.Snapshot{
		Species:   "vitis_vinifera",
		Condition: condition,
		Genes:     []string{"g1", "g2"},
		Samples:   []string{"leaf|GSE1|A"},
		Counts:    [][]*float64{{&v}, {nil}},
		Metadata: []expression.SampleRecord{{
			SampleID: "leaf|GSE1|A", OriginalName: "A", Tissue: "leaf",
			Condition: condition, GSEAccession: "GSE1", FilePath: "/data/GSE1.txt",
		}},
	}
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "snapshots.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	store.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	if err := store.Save(ctx, "control-run", snapshotFixture("control")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "control-run", snapshotFixture("control")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := store.Save(ctx, "a-stress", snapshotFixture("stress")); err != nil {
		t.Fatalf("save second: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if reopened.Path() != path || reopened.DB() == nil {
		t.Fatalf("unexpected accessors")
	}
	got, err := reopened.Load(ctx, "control-run")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(snapshotFixture("control"), got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	infos, err := reopened.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Name != "a-stress" || infos[1].Condition != "control" || infos[1].Genes != 2 {
		t.Fatalf("unexpected infos %+v", infos)
	}
	if !infos[1].SavedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected saved_at %v", infos[1].SavedAt)
	}
}

func TestSQLiteStoreMissingAndDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(filepath.Join(t.TempDir(), "s.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	if _, err := store.Load(ctx, "absent"); !errors.Is(err, buckets.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Save(ctx, "x", snapshotFixture("control")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "x"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "x"); !errors.Is(err, buckets.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSQLiteStoreCanceledContext(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "s.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Save(ctx, "x", snapshotFixture("control")); err == nil {
		t.Fatalf("expected canceled save to fail")
	}
}
