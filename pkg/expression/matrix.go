package expression

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// GeneIndexName labels the row index of every GeneMatrix.
const GeneIndexName = "Gene"

// maxCells bounds the matrix so cell offsets fit the uint32 absent mask.
const maxCells = math.MaxUint32

// GeneMatrix is an immutable genes × samples table of finite float64 counts.
// Row keys (genes) and column keys (sample ids) are unique. Cells that were
// never assigned, which only happens when files with different gene sets are
// outer-joined, are tracked as absent rather than filled with a value.
type GeneMatrix struct {
	genes     []string
	samples   []string
	geneIdx   map[string]int
	sampleIdx map[string]int
	values    []float64       // row-major, len(genes)*len(samples)
	absent    *roaring.Bitmap // nil when every cell is present
}

// NewGeneMatrix builds a dense matrix from row-major values.
func NewGeneMatrix(genes, samples []string, values []float64) (*GeneMatrix, error) {
	if len(values) != len(genes)*len(samples) {
		return nil, fmt.Errorf("%w: %d values for %d×%d", ErrShape, len(values), len(genes), len(samples))
	}
	b, err := NewMatrixBuilder(genes, samples)
	if err != nil {
		return nil, err
	}
	for i := range genes {
		for j := range samples {
			if err := b.Set(i, j, values[i*len(samples)+j]); err != nil {
				return nil, err
			}
		}
	}
	return b.Build(), nil
}

// MatrixBuilder assembles a GeneMatrix cell by cell. Cells never Set are
// absent in the built matrix.
type MatrixBuilder struct {
	m       *GeneMatrix
	present *roaring.Bitmap
}

// NewMatrixBuilder validates the row and column keys and allocates storage.
func NewMatrixBuilder(genes, samples []string) (*MatrixBuilder, error) {
	if uint64(len(genes))*uint64(len(samples)) > maxCells {
		return nil, fmt.Errorf("%w: %d×%d exceeds %d cells", ErrShape, len(genes), len(samples), uint64(maxCells))
	}
	geneIdx, err := indexKeys(genes, ErrDuplicateGene)
	if err != nil {
		return nil, err
	}
	sampleIdx, err := indexKeys(samples, ErrSampleIDCollision)
	if err != nil {
		return nil, err
	}
	m := &GeneMatrix{
		genes:     cloneStrings(genes),
		samples:   cloneStrings(samples),
		geneIdx:   geneIdx,
		sampleIdx: sampleIdx,
		values:    make([]float64, len(genes)*len(samples)),
	}
	return &MatrixBuilder{m: m, present: roaring.New()}, nil
}

// Set assigns cell (i, j). Non-finite values are rejected.
func (b *MatrixBuilder) Set(i, j int, v float64) error {
	if i < 0 || i >= len(b.m.genes) || j < 0 || j >= len(b.m.samples) {
		return fmt.Errorf("%w: cell (%d,%d) outside %d×%d", ErrShape, i, j, len(b.m.genes), len(b.m.samples))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: gene %q sample %q", ErrNonFinite, b.m.genes[i], b.m.samples[j])
	}
	off := b.m.offset(i, j)
	b.m.values[off] = v
	b.present.Add(off)
	return nil
}

// Build finalizes the matrix. The builder must not be used afterwards.
func (b *MatrixBuilder) Build() *GeneMatrix {
	m := b.m
	total := uint64(len(m.values))
	if b.present.GetCardinality() != total {
		absent := roaring.New()
		absent.AddRange(0, total)
		absent.AndNot(b.present)
		m.absent = absent
	}
	b.m, b.present = nil, nil
	return m
}

func (m *GeneMatrix) offset(i, j int) uint32 {
	return uint32(i*len(m.samples) + j)
}

// Rows returns the number of genes.
func (m *GeneMatrix) Rows() int { return len(m.genes) }

// Cols returns the number of samples.
func (m *GeneMatrix) Cols() int { return len(m.samples) }

// Genes returns the ordered row keys.
func (m *GeneMatrix) Genes() []string { return cloneStrings(m.genes) }

// Samples returns the ordered column keys.
func (m *GeneMatrix) Samples() []string { return cloneStrings(m.samples) }

// GeneIndex reports the row position of gene.
func (m *GeneMatrix) GeneIndex(gene string) (int, bool) {
	i, ok := m.geneIdx[gene]
	return i, ok
}

// SampleIndex reports the column position of sampleID.
func (m *GeneMatrix) SampleIndex(sampleID string) (int, bool) {
	j, ok := m.sampleIdx[sampleID]
	return j, ok
}

// At returns cell (i, j) and whether it is present. Like slice indexing it
// panics when i or j is out of range.
func (m *GeneMatrix) At(i, j int) (float64, bool) {
	if i < 0 || i >= len(m.genes) || j < 0 || j >= len(m.samples) {
		panic(fmt.Sprintf("expression: cell (%d,%d) outside %d×%d", i, j, len(m.genes), len(m.samples)))
	}
	off := m.offset(i, j)
	if m.absent != nil && m.absent.Contains(off) {
		return 0, false
	}
	return m.values[off], true
}

// Value looks a cell up by keys. ok is false for unknown keys and absent cells.
func (m *GeneMatrix) Value(gene, sampleID string) (float64, bool) {
	i, ok := m.geneIdx[gene]
	if !ok {
		return 0, false
	}
	j, ok := m.sampleIdx[sampleID]
	if !ok {
		return 0, false
	}
	return m.At(i, j)
}

// Row returns a copy of the counts for gene, or ErrUnknownGene. present[j]
// is false where the cell is absent.
func (m *GeneMatrix) Row(gene string) (values []float64, present []bool, err error) {
	i, ok := m.geneIdx[gene]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownGene, gene)
	}
	values = make([]float64, len(m.samples))
	present = make([]bool, len(m.samples))
	for j := range m.samples {
		values[j], present[j] = m.At(i, j)
	}
	return values, present, nil
}

// Dense reports whether every cell is present.
func (m *GeneMatrix) Dense() bool { return m.absent == nil }

// AbsentCount returns the number of absent cells.
func (m *GeneMatrix) AbsentCount() int {
	if m.absent == nil {
		return 0
	}
	return int(m.absent.GetCardinality())
}

// Select returns a new matrix restricted to genes, in the given order.
func (m *GeneMatrix) Select(genes []string) (*GeneMatrix, error) {
	b, err := NewMatrixBuilder(genes, m.samples)
	if err != nil {
		return nil, err
	}
	for ni, g := range genes {
		i, ok := m.geneIdx[g]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownGene, g)
		}
		for j := range m.samples {
			if v, ok := m.At(i, j); ok {
				b.present.Add(b.m.offset(ni, j))
				b.m.values[b.m.offset(ni, j)] = v
			}
		}
	}
	return b.Build(), nil
}

// ConcatColumns joins matrices along the sample axis onto the given gene
// order. Columns keep their per-matrix order and matrices keep slice order.
// A gene missing from one input leaves that input's cells absent.
func ConcatColumns(genes []string, parts []*GeneMatrix) (*GeneMatrix, error) {
	var samples []string
	for _, p := range parts {
		samples = append(samples, p.samples...)
	}
	b, err := NewMatrixBuilder(genes, samples)
	if err != nil {
		return nil, err
	}
	col := 0
	for _, p := range parts {
		for ni, g := range genes {
			i, ok := p.geneIdx[g]
			if !ok {
				continue
			}
			for j := range p.samples {
				if v, ok := p.At(i, j); ok {
					off := b.m.offset(ni, col+j)
					b.m.values[off] = v
					b.present.Add(off)
				}
			}
		}
		col += len(p.samples)
	}
	return b.Build(), nil
}

// Equal reports whether both matrices have identical keys, order, presence
// and values.
func (m *GeneMatrix) Equal(o *GeneMatrix) bool {
	if m == nil || o == nil {
		return m == o
	}
	if !equalStrings(m.genes, o.genes) || !equalStrings(m.samples, o.samples) {
		return false
	}
	if m.AbsentCount() != o.AbsentCount() {
		return false
	}
	if m.absent != nil && !m.absent.Equals(o.absent) {
		return false
	}
	for i := range m.genes {
		for j := range m.samples {
			a, aok := m.At(i, j)
			b, bok := o.At(i, j)
			if aok != bok || a != b {
				return false
			}
		}
	}
	return true
}

func indexKeys(keys []string, dup error) (map[string]int, error) {
	idx := make(map[string]int, len(keys))
	for i, k := range keys {
		if _, exists := idx[k]; exists {
			return nil, fmt.Errorf("%w: %q", dup, k)
		}
		idx[k] = i
	}
	return idx, nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
