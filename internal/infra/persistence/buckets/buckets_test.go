package buckets

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"vitisexpr/pkg/expression"
)

func sampleSnapshot() expression.Snapshot {
	one, two := 1.0, 2.5
	regent := "regent"
	return expression.Snapshot{
		Species:   "vitis_vinifera",
		Condition: "control",
		Genes:     []string{"g1", "g2"},
		Samples:   []string{"leaf|GSE1|A"},
		Counts:    [][]*float64{{&one}, {&two}},
		Metadata: []expression.SampleRecord{{
			SampleID: "leaf|GSE1|A", OriginalName: "A", Tissue: "leaf", Condition: "control",
			GSEAccession: "GSE1", Cultivar: &regent, FilePath: "/data/GSE1_regent.txt",
		}},
	}
}

func TestEncodeDecode(t *testing.T) {
	saved := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payloads, err := Encode("run1", sampleSnapshot(), saved)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(payloads) != len(Names) {
		t.Fatalf("expected %d buckets, got %d", len(Names), len(payloads))
	}
	got, err := Decode("run1", payloads)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(sampleSnapshot(), got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	info, err := DecodeInfo(payloads[Meta])
	if err != nil {
		t.Fatalf("decode info: %v", err)
	}
	want := Info{Name: "run1", Species: "vitis_vinifera", Condition: "control", Genes: 2, Samples: 1, SavedAt: saved}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Fatalf("info mismatch:\n%s", diff)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode("none", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	payloads, _ := Encode("run1", sampleSnapshot(), time.Now())
	delete(payloads, Counts)
	if _, err := Decode("run1", payloads); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	payloads, _ = Encode("run1", sampleSnapshot(), time.Now())
	payloads[Genes] = []byte("{")
	if _, err := Decode("run1", payloads); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := DecodeInfo([]byte("[")); err == nil {
		t.Fatalf("expected info decode error")
	}
}
