// Package dataset turns a loaded count matrix and its metadata into indexed
// training examples: one float32 feature vector per sample plus an integer
// label derived from a metadata field.
package dataset

import (
	"errors"
	"fmt"

	"vitisexpr/pkg/expression"
)

var (
	// ErrSparseFeatures is returned when the matrix has absent cells.
	ErrSparseFeatures = errors.New("dataset: matrix has absent cells")
	// ErrNullLabel is returned when a sample has no value for the label field.
	ErrNullLabel = errors.New("dataset: null label value")
)

// Dataset is an immutable, sample-major view of a corpus.
type Dataset struct {
	samples    []string
	features   [][]float32
	labels     []int
	categories []string
	labelField string
	metadata   *expression.MetadataTable
}

// New aligns metadata to the matrix columns and encodes labelField. Label
// categories are numbered in order of first appearance.
func New(counts *expression.GeneMatrix, metadata *expression.MetadataTable, labelField string) (*Dataset, error) {
	field, ok := expression.LookupField(labelField)
	if !ok {
		return nil, fmt.Errorf("%w: %q", expression.ErrUnknownField, labelField)
	}
	if !counts.Dense() {
		return nil, fmt.Errorf("%w: %d", ErrSparseFeatures, counts.AbsentCount())
	}
	samples := counts.Samples()
	md, err := metadata.Reindex(samples)
	if err != nil {
		return nil, err
	}

	d := &Dataset{
		samples:    samples,
		features:   make([][]float32, len(samples)),
		labels:     make([]int, len(samples)),
		labelField: labelField,
		metadata:   md,
	}
	byName := make(map[string]int)
	for j, id := range samples {
		v, ok := field.Value(md.Record(j))
		if !ok {
			return nil, fmt.Errorf("%w: %s of %q", ErrNullLabel, labelField, id)
		}
		idx, seen := byName[v]
		if !seen {
			idx = len(d.categories)
			byName[v] = idx
			d.categories = append(d.categories, v)
		}
		d.labels[j] = idx

		row := make([]float32, counts.Rows())
		for i := range row {
			x, _ := counts.At(i, j)
			row[i] = float32(x)
		}
		d.features[j] = row
	}
	return d, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.samples) }

// Item returns the features and label index of sample i. It panics if i is
// out of range.
func (d *Dataset) Item(i int) ([]float32, int) {
	out := make([]float32, len(d.features[i]))
	copy(out, d.features[i])
	return out, d.labels[i]
}

// LabelName maps a label index back to its category.
func (d *Dataset) LabelName(idx int) (string, bool) {
	if idx < 0 || idx >= len(d.categories) {
		return "", false
	}
	return d.categories[idx], true
}

// Categories returns the label categories in index order.
func (d *Dataset) Categories() []string {
	out := make([]string, len(d.categories))
	copy(out, d.categories)
	return out
}

// LabelField names the metadata field used for labels.
func (d *Dataset) LabelField() string { return d.labelField }

// SampleID returns the id of sample i.
func (d *Dataset) SampleID(i int) string { return d.samples[i] }

// SampleMetadata returns the metadata record of sample i.
func (d *Dataset) SampleMetadata(i int) expression.SampleRecord { return d.metadata.Record(i) }
