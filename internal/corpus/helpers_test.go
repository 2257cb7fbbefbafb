package corpus

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"vitisexpr/internal/blob"
)

// writeTree creates files under root; keys are slash-separated relative paths.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

func memoryStore(t *testing.T, files map[string]string) blob.Store {
	t.Helper()
	store := blob.NewMemory()
	for key, body := range files {
		if _, err := store.Put(context.Background(), key, bytes.NewReader([]byte(body)), blob.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	return store
}

const (
	leafGSE100 = "gene_id\tS1\tS2\n" +
		"VIT_01\t1\t2\n" +
		"VIT_02\t3\t4\n" +
		"VIT_03\t5\t6\n"
	berryGSE200 = "Gene\tB1\n" +
		"VIT_03\t7\n" +
		"VIT_01\t8\n"
)

func scenarioFiles() map[string]string {
	return map[string]string{
		"vitis_vinifera/control/leaf/GSE100_control.txt":  leafGSE100,
		"vitis_vinifera/control/berry/GSE200_control.txt": berryGSE200,
	}
}
