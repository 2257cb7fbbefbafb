package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"vitisexpr/internal/observability"
	"vitisexpr/internal/parser"
	"vitisexpr/pkg/expression"
)

func TestLoadDir_EndToEnd(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, scenarioFiles())

	c, err := LoadDir(context.Background(), root, "control")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Counts().Rows() != 2 || c.Counts().Cols() != 3 {
		t.Fatalf("expected 2x3 matrix, got %dx%d", c.Counts().Rows(), c.Counts().Cols())
	}
	if diff := cmp.Diff([]string{"VIT_01", "VIT_03"}, c.Genes()); diff != "" {
		t.Fatalf("genes mismatch (-want +got):\n%s", diff)
	}
	wantSamples := []string{"berry|GSE200|B1", "leaf|GSE100|S1", "leaf|GSE100|S2"}
	if diff := cmp.Diff(wantSamples, c.Samples()); diff != "" {
		t.Fatalf("samples mismatch (-want +got):\n%s", diff)
	}

	var tissues, accessions []string
	for _, r := range c.Metadata().Records() {
		tissues = append(tissues, r.Tissue)
		accessions = append(accessions, r.GSEAccession)
		if r.Condition != "control" {
			t.Fatalf("unexpected condition %q", r.Condition)
		}
		if !filepath.IsAbs(r.FilePath) {
			t.Fatalf("file path not absolute: %s", r.FilePath)
		}
		if r.Cultivar != nil {
			t.Fatalf("unexpected cultivar %q", *r.Cultivar)
		}
	}
	sort.Strings(tissues)
	sort.Strings(accessions)
	if diff := cmp.Diff([]string{"berry", "leaf", "leaf"}, tissues); diff != "" {
		t.Fatalf("tissues mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"GSE100", "GSE100", "GSE200"}, accessions); diff != "" {
		t.Fatalf("accessions mismatch:\n%s", diff)
	}

	if v, ok := c.Counts().Value("VIT_03", "berry|GSE200|B1"); !ok || v != 7 {
		t.Fatalf("berry VIT_03 = %v, %v", v, ok)
	}
	if v, ok := c.Counts().Value("VIT_01", "leaf|GSE100|S2"); !ok || v != 2 {
		t.Fatalf("leaf VIT_01 S2 = %v, %v", v, ok)
	}
	if !c.Counts().Dense() {
		t.Fatalf("intersection result must be dense")
	}
	if c.Species() != DefaultSpecies || c.Condition() != "control" {
		t.Fatalf("unexpected identity %s/%s", c.Species(), c.Condition())
	}
	files := c.Files()
	if len(files) != 2 || files[0].Tissue != "berry" || files[1].Name != "GSE100_control.txt" {
		t.Fatalf("unexpected files %+v", files)
	}
	if files[1].Location != filepath.Join(root, "vitis_vinifera", "control", "leaf", "GSE100_control.txt") {
		t.Fatalf("unexpected location %s", files[1].Location)
	}
}

func TestLoad_AlignmentInvariant(t *testing.T) {
	store := memoryStore(t, map[string]string{
		"vitis_vinifera/control/leaf/GSE1_a.txt":           "Gene\tX\tY\ng1\t1\t2\ng2\t3\t4\n",
		"vitis_vinifera/control/leaf/GSE2_regent.txt":      "Gene\tX\ng2\t1\ng1\t2\n",
		"vitis_vinifera/control/root/GSE1_mueller.txt":     "Gene\tX\ng1\t1\ng2\t0\n",
		"vitis_vinifera/control/root/notes.md":             "ignored",
		"vitis_vinifera/control/root/nested/GSE9_deep.txt": "Gene\tZ\ng1\t1\n",
		"vitis_vinifera/control/stray.txt":                 "Gene\tQ\ng1\t1\n",
	})
	c, err := Load(context.Background(), store, "control")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := c.Metadata().CheckAligned(c.Counts()); err != nil {
		t.Fatalf("misaligned: %v", err)
	}
	if diff := cmp.Diff(c.Samples(), c.Metadata().Index()); diff != "" {
		t.Fatalf("index differs from columns:\n%s", diff)
	}
	if len(c.Files()) != 3 {
		t.Fatalf("expected 3 files, got %+v", c.Files())
	}
	cultivars, _ := c.Metadata().Column("cultivar")
	want := []expression.FieldValue{{Null: true}, {Null: true}, {Text: "regent"}, {Text: "mueller"}}
	if diff := cmp.Diff(want, cultivars); diff != "" {
		t.Fatalf("cultivars mismatch:\n%s", diff)
	}
}

func TestLoad_Deterministic(t *testing.T) {
	store := memoryStore(t, scenarioFiles())
	a, err := Load(context.Background(), store, "control")
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	b, err := Load(context.Background(), store, "control")
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if diff := cmp.Diff(a.Counts(), b.Counts()); diff != "" {
		t.Fatalf("matrices differ:\n%s", diff)
	}
	if diff := cmp.Diff(a.Metadata().Records(), b.Metadata().Records()); diff != "" {
		t.Fatalf("metadata differs:\n%s", diff)
	}
}

func TestLoad_UnionModeMarksAbsentCells(t *testing.T) {
	store := memoryStore(t, scenarioFiles())
	c, err := Load(context.Background(), store, "control", WithIntersectGenes(false))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"VIT_01", "VIT_02", "VIT_03"}, c.Genes()); diff != "" {
		t.Fatalf("union genes mismatch:\n%s", diff)
	}
	if c.Counts().AbsentCount() != 1 {
		t.Fatalf("expected one absent cell, got %d", c.Counts().AbsentCount())
	}
	if _, ok := c.Counts().Value("VIT_02", "berry|GSE200|B1"); ok {
		t.Fatalf("missing gene must be absent, not zero")
	}
	if v, ok := c.Counts().Value("VIT_02", "leaf|GSE100|S1"); !ok || v != 3 {
		t.Fatalf("VIT_02 S1 = %v, %v", v, ok)
	}
}

func TestLoad_NoCommonGenes(t *testing.T) {
	store := memoryStore(t, map[string]string{
		"vitis_vinifera/control/leaf/GSE1.txt":  "Gene\tA\ng1\t1\n",
		"vitis_vinifera/control/berry/GSE2.txt": "Gene\tA\ng2\t1\n",
	})
	_, err := Load(context.Background(), store, "control")
	if !errors.Is(err, expression.ErrNoCommonGenes) {
		t.Fatalf("expected ErrNoCommonGenes, got %v", err)
	}
	c, err := Load(context.Background(), store, "control", WithIntersectGenes(false))
	if err != nil {
		t.Fatalf("union load: %v", err)
	}
	if c.Counts().AbsentCount() != 2 {
		t.Fatalf("expected 2 absent cells, got %d", c.Counts().AbsentCount())
	}
}

func TestLoad_DirectoryErrors(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"vitis_vinifera/control/leaf/README": "x"})

	_, err := LoadDir(context.Background(), root, "drought")
	if !errors.Is(err, expression.ErrDirectoryNotFound) {
		t.Fatalf("expected ErrDirectoryNotFound, got %v", err)
	}
	_, err = LoadDir(context.Background(), root, "control")
	if !errors.Is(err, expression.ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
	_, err = LoadDir(context.Background(), root, "control", WithSpecies("vitis_riparia"))
	if !errors.Is(err, expression.ErrDirectoryNotFound) {
		t.Fatalf("expected ErrDirectoryNotFound for species, got %v", err)
	}
}

func TestLoadDir_FollowsSymlinks(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{
		"data/vitis_vinifera/control/berry/GSE2_control.txt": "Gene\tB\ng1\t1\n",
		"shared/leaf/GSE1_control.txt":                       "Gene\tA\ng1\t2\n",
	})
	if err := os.Symlink(filepath.Join(base, "shared", "leaf"), filepath.Join(base, "data", "vitis_vinifera", "control", "leaf")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	current := filepath.Join(base, "current")
	if err := os.Symlink(filepath.Join(base, "data"), current); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	c, err := LoadDir(context.Background(), current, "control")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"berry|GSE2|B", "leaf|GSE1|A"}, c.Samples()); diff != "" {
		t.Fatalf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDir_DotsInFileName(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"vitis_vinifera/control/leaf/GSE1_rep..1.txt": "Gene\tA\ng1\t1\n",
	})
	c, err := LoadDir(context.Background(), root, "control")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Counts().Cols() != 1 || c.Files()[0].Name != "GSE1_rep..1.txt" {
		t.Fatalf("unexpected corpus %v %+v", c.Samples(), c.Files())
	}
}

func TestLoad_MalformedFileAbortsLoad(t *testing.T) {
	store := memoryStore(t, map[string]string{
		"vitis_vinifera/control/leaf/GSE1.txt": "Gene\tA\ng1\t1\n",
		"vitis_vinifera/control/leaf/GSE2.txt": "Gene\tA\ng1\tNA\n",
	})
	c, err := Load(context.Background(), store, "control")
	if c != nil {
		t.Fatalf("partial corpus returned")
	}
	if !errors.Is(err, expression.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	var pe *parser.ParseError
	if !errors.As(err, &pe) || pe.Path != "memory://vitis_vinifera/control/leaf/GSE2.txt" || pe.Line != 2 {
		t.Fatalf("unexpected parse error %#v", pe)
	}
}

func TestLoad_SampleIDCollision(t *testing.T) {
	store := memoryStore(t, map[string]string{
		"vitis_vinifera/control/leaf/GSE5_a.txt": "Gene\tS1\ng1\t1\n",
		"vitis_vinifera/control/leaf/GSE5_b.txt": "Gene\tS1\ng1\t2\n",
	})
	_, err := Load(context.Background(), store, "control")
	if !errors.Is(err, expression.ErrSampleIDCollision) {
		t.Fatalf("expected ErrSampleIDCollision, got %v", err)
	}
	for _, name := range []string{"GSE5_a.txt", "GSE5_b.txt"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("error %q does not name %s", err, name)
		}
	}
}

func TestLoad_LogsDuplicateRowsAndRecordsMetrics(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	rec := observability.NewExpvarRecorder("")
	tracer := observability.NewJSONTracer(nil)
	store := memoryStore(t, map[string]string{
		"vitis_vinifera/control/leaf/GSE7.txt": "Gene\tA\tB\ng1\t1\t2\ng1\t3\t4\n",
	})
	c, err := Load(context.Background(), store, "control",
		WithLogger(zap.New(core)), WithRecorder(rec), WithTracer(tracer))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	row, _, err := c.Counts().Row("g1")
	if err != nil {
		t.Fatalf("row: %v", err)
	}
	if diff := cmp.Diff([]float64{4, 6}, row); diff != "" {
		t.Fatalf("dedup sum mismatch:\n%s", diff)
	}
	dups := logs.FilterMessage("summed duplicate gene rows").All()
	if len(dups) != 1 || dups[0].ContextMap()["duplicate_rows"] != int64(1) {
		t.Fatalf("expected one dedup log entry, got %+v", dups)
	}
	if logs.FilterMessage("corpus loaded").Len() != 1 {
		t.Fatalf("missing summary log")
	}
	snap := rec.Snapshot()
	if snap.FilesByTissue["leaf"] != 1 || snap.DuplicateRows != 1 || snap.Results["control"]["success"] != 1 {
		t.Fatalf("unexpected metrics %+v", snap)
	}
	entries := tracer.Entries()
	if len(entries) != 2 || entries[0].Operation != "corpus.parse" || entries[1].Operation != "corpus.load" {
		t.Fatalf("unexpected spans %+v", entries)
	}
}

func TestLoad_FailureIsLoggedAndRecorded(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	rec := observability.NewExpvarRecorder("")
	_, err := Load(context.Background(), memoryStore(t, nil), "control", WithLogger(zap.New(core)), WithRecorder(rec))
	if err == nil {
		t.Fatalf("expected failure")
	}
	if logs.FilterMessage("corpus load failed").Len() != 1 {
		t.Fatalf("missing failure log")
	}
	if rec.Snapshot().Results["control"]["error"] != 1 {
		t.Fatalf("failure not recorded")
	}
}

func TestLoad_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, memoryStore(t, scenarioFiles()), "control")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	c, err := Load(context.Background(), memoryStore(t, scenarioFiles()), "control", WithIntersectGenes(false))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	back, err := FromSnapshot(c.Snapshot())
	if err != nil {
		t.Fatalf("from snapshot: %v", err)
	}
	if diff := cmp.Diff(c.Counts(), back.Counts()); diff != "" {
		t.Fatalf("counts differ:\n%s", diff)
	}
	if diff := cmp.Diff(c.Metadata().Records(), back.Metadata().Records()); diff != "" {
		t.Fatalf("metadata differs:\n%s", diff)
	}
	if back.Species() != c.Species() || back.Condition() != c.Condition() || len(back.Files()) != 0 {
		t.Fatalf("unexpected identity after round trip")
	}

	bad := c.Snapshot()
	bad.Metadata = bad.Metadata[1:]
	if _, err := FromSnapshot(bad); !errors.Is(err, expression.ErrMisaligned) {
		t.Fatalf("expected ErrMisaligned, got %v", err)
	}
}

func TestReconcileGenes(t *testing.T) {
	a, _ := expression.NewGeneMatrix([]string{"b", "a", "c"}, []string{"x"}, []float64{1, 2, 3})
	b, _ := expression.NewGeneMatrix([]string{"c", "b", "d"}, []string{"y"}, []float64{1, 2, 3})
	got, err := reconcileGenes([]*expression.GeneMatrix{a, b}, true)
	if err != nil {
		t.Fatalf("intersection: %v", err)
	}
	if diff := cmp.Diff([]string{"b", "c"}, got); diff != "" {
		t.Fatalf("intersection mismatch:\n%s", diff)
	}
	got, _ = reconcileGenes([]*expression.GeneMatrix{a, b}, false)
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, got); diff != "" {
		t.Fatalf("union mismatch:\n%s", diff)
	}
}
