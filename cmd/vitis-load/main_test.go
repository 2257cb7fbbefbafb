package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"vitis_vinifera/control/leaf/GSE100_control.txt":  "gene_id\tS1\tS2\nVIT_01\t1\t2\nVIT_02\t3\t4\nVIT_03\t5\t6\n",
		"vitis_vinifera/control/berry/GSE200_control.txt": "Gene\tB1\nVIT_03\t7\nVIT_01\t8\n",
	}
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestLoadCommandSummaryExportAndSnapshot(t *testing.T) {
	root := writeCorpus(t)
	exportDir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "vitis.db")
	metricsPath := filepath.Join(t.TempDir(), "vitis.prom")
	t.Setenv("VITIS_SQLITE_PATH", dbPath)
	t.Setenv("VITIS_LOG_LEVEL", "error")
	t.Setenv("VITIS_METRICS_EXPORTER", "prometheus")
	t.Setenv("VITIS_METRICS_TEXTFILE", metricsPath)

	out, err := run(t, "load", "control", "--data-root", root, "--export-dir", exportDir, "--snapshot", "control-v1")
	if err != nil {
		t.Fatalf("load: %v\n%s", err, out)
	}
	for _, want := range []string{"genes:     2", "samples:   3", "berry        1", "leaf         2", "saved snapshot control-v1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	for _, name := range []string{"counts.tsv", "metadata.tsv", "snapshot.json"} {
		if _, err := os.Stat(filepath.Join(exportDir, "vitis_vinifera", "control", name)); err != nil {
			t.Fatalf("missing export %s: %v", name, err)
		}
	}
	prom, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(prom), `vitis_corpus_loads_total{condition="control",result="success"} 1`) {
		t.Fatalf("unexpected metrics:\n%s", prom)
	}

	out, err = run(t, "snapshot", "list")
	if err != nil || !strings.Contains(out, "control-v1\tvitis_vinifera/control\t2 genes\t3 samples") {
		t.Fatalf("snapshot list: %v\n%s", err, out)
	}
	out, err = run(t, "snapshot", "show", "control-v1")
	if err != nil || !strings.Contains(out, "samples:   3") {
		t.Fatalf("snapshot show: %v\n%s", err, out)
	}
	if _, err := run(t, "snapshot", "delete", "control-v1"); err != nil {
		t.Fatalf("snapshot delete: %v", err)
	}
	if _, err := run(t, "snapshot", "show", "control-v1"); err == nil {
		t.Fatalf("expected missing snapshot error")
	}
}

func TestLoadCommandUnionAndErrors(t *testing.T) {
	root := writeCorpus(t)
	t.Setenv("VITIS_LOG_LEVEL", "error")

	out, err := run(t, "load", "--data-root", root, "--union")
	if err != nil {
		t.Fatalf("union load: %v", err)
	}
	if !strings.Contains(out, "genes:     3") || !strings.Contains(out, "absent:    1") {
		t.Fatalf("unexpected union summary:\n%s", out)
	}
	if _, err := run(t, "load", "drought", "--data-root", root); err == nil || !strings.Contains(err.Error(), "directory not found") {
		t.Fatalf("expected directory error, got %v", err)
	}
	t.Setenv("VITIS_LOG_LEVEL", "loud")
	if _, err := run(t, "load", "--data-root", root); err == nil {
		t.Fatalf("expected bad log level error")
	}
}
