package expression

import "fmt"

// Snapshot is the serializable form of a loaded corpus. Counts is gene-major;
// a nil entry is an absent cell.
type Snapshot struct {
	Species   string         `json:"species"`
	Condition string         `json:"condition"`
	Genes     []string       `json:"genes"`
	Samples   []string       `json:"samples"`
	Counts    [][]*float64   `json:"counts"`
	Metadata  []SampleRecord `json:"metadata"`
}

// NewSnapshot captures m and md. The caller guarantees they are aligned.
func NewSnapshot(species, condition string, m *GeneMatrix, md *MetadataTable) Snapshot {
	counts := make([][]*float64, m.Rows())
	for i := range counts {
		row := make([]*float64, m.Cols())
		for j := range row {
			if v, ok := m.At(i, j); ok {
				row[j] = &v
			}
		}
		counts[i] = row
	}
	return Snapshot{
		Species:   species,
		Condition: condition,
		Genes:     m.Genes(),
		Samples:   m.Samples(),
		Counts:    counts,
		Metadata:  md.Records(),
	}
}

// Tables rebuilds the matrix and metadata table and verifies alignment.
func (s Snapshot) Tables() (*GeneMatrix, *MetadataTable, error) {
	if len(s.Counts) != len(s.Genes) {
		return nil, nil, fmt.Errorf("%w: %d count rows for %d genes", ErrShape, len(s.Counts), len(s.Genes))
	}
	b, err := NewMatrixBuilder(s.Genes, s.Samples)
	if err != nil {
		return nil, nil, err
	}
	for i, row := range s.Counts {
		if len(row) != len(s.Samples) {
			return nil, nil, fmt.Errorf("%w: row %q has %d cells for %d samples", ErrShape, s.Genes[i], len(row), len(s.Samples))
		}
		for j, v := range row {
			if v == nil {
				continue
			}
			if err := b.Set(i, j, *v); err != nil {
				return nil, nil, err
			}
		}
	}
	m := b.Build()
	md, err := NewMetadataTable(s.Metadata)
	if err != nil {
		return nil, nil, err
	}
	if err := md.CheckAligned(m); err != nil {
		return nil, nil, err
	}
	return m, md, nil
}
