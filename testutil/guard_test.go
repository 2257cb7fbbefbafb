package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestPredicates(t *testing.T) {
	cases := []struct {
		path     string
		internal bool
		infra    bool
		sdk      bool
	}{
		{"vitisexpr/internal/blob", true, false, false},
		{"vitisexpr/internal/infra/blob/s3", true, true, false},
		{"github.com/aws/aws-sdk-go-v2/service/s3", false, false, true},
		{"modernc.org/sqlite", false, false, true},
		{"github.com/RoaringBitmap/roaring/v2", false, false, false},
	}
	for _, tc := range cases {
		if InternalImportForbidden(tc.path) != tc.internal || InfraImportForbidden(tc.path) != tc.infra || BackendSDKForbidden(tc.path) != tc.sdk {
			t.Fatalf("unexpected classification for %s", tc.path)
		}
	}
	if !AnyOf(InfraImportForbidden, BackendSDKForbidden)("modernc.org/sqlite") {
		t.Fatalf("AnyOf should match sdk path")
	}
	if AnyOf()("x") {
		t.Fatalf("empty AnyOf should match nothing")
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	src := "package p\n\nimport (\n\t_ \"vitisexpr/internal/infra/blob/fs\"\n\t_ \"strings\"\n)\n"
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte(src), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a_test.go"), []byte("package p\n\nimport _ \"modernc.org/sqlite\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	viols, err := directImportViolations(dir, AnyOf(InfraImportForbidden, BackendSDKForbidden))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.HasPrefix(viols[0], "vitisexpr/internal/infra/blob/fs") {
		t.Fatalf("unexpected violations %v", viols)
	}
	rec := &recordingFatal{}
	failIfDirectViolations(rec, "facade only", viols)
	if !strings.Contains(rec.msg, "facade only") {
		t.Fatalf("unexpected failure message %q", rec.msg)
	}
	if _, err := directImportViolations(filepath.Join(dir, "missing"), InfraImportForbidden); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestTransitiveDependencyViolations(t *testing.T) {
	prev := goListDeps
	defer func() { goListDeps = prev }()
	goListDeps = func(string) ([]byte, error) {
		return []byte("fmt\nvitisexpr/pkg/expression\nvitisexpr/internal/blob\n\n"), nil
	}
	viols, _, err := transitiveDependencyViolations("./...", InternalImportForbidden)
	if err != nil || len(viols) != 1 || viols[0] != "vitisexpr/internal/blob" {
		t.Fatalf("unexpected result %v %v", viols, err)
	}
	rec := &recordingFatal{}
	failIfTransitiveViolations(rec, "model stays pure", viols)
	if !strings.Contains(rec.msg, "model stays pure") {
		t.Fatalf("unexpected failure message %q", rec.msg)
	}
	goListDeps = func(string) ([]byte, error) { return []byte("boom"), errors.New("exit 1") }
	if _, out, err := transitiveDependencyViolations(".", InternalImportForbidden); err == nil || string(out) != "boom" {
		t.Fatalf("expected go list error")
	}
}
