package expression

import "fmt"

// MetadataTable holds one SampleRecord per sample, indexed by sample id.
type MetadataTable struct {
	records []SampleRecord
	index   map[string]int
}

// FieldValue is one cell of a metadata column. Null is set for absent
// nullable values such as an unknown cultivar.
type FieldValue struct {
	Text string
	Null bool
}

// NewMetadataTable indexes records by sample id, preserving order.
func NewMetadataTable(records []SampleRecord) (*MetadataTable, error) {
	t := &MetadataTable{
		records: make([]SampleRecord, len(records)),
		index:   make(map[string]int, len(records)),
	}
	for i, r := range records {
		if prev, exists := t.index[r.SampleID]; exists {
			return nil, fmt.Errorf("%w: %q from %s and %s", ErrSampleIDCollision, r.SampleID, records[prev].FilePath, r.FilePath)
		}
		t.index[r.SampleID] = i
		t.records[i] = r.clone()
	}
	return t, nil
}

// Reindex returns a table whose rows follow order exactly. order must be a
// permutation of the current index.
func (t *MetadataTable) Reindex(order []string) (*MetadataTable, error) {
	if len(order) != len(t.records) {
		return nil, fmt.Errorf("%w: %d metadata rows for %d samples", ErrMisaligned, len(t.records), len(order))
	}
	out := make([]SampleRecord, len(order))
	for i, id := range order {
		pos, ok := t.index[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSample, id)
		}
		out[i] = t.records[pos]
	}
	return NewMetadataTable(out)
}

// Len returns the number of rows.
func (t *MetadataTable) Len() int { return len(t.records) }

// Index returns the ordered sample ids.
func (t *MetadataTable) Index() []string {
	ids := make([]string, len(t.records))
	for i, r := range t.records {
		ids[i] = r.SampleID
	}
	return ids
}

// Record returns row i. It panics if i is out of range.
func (t *MetadataTable) Record(i int) SampleRecord { return t.records[i].clone() }

// Records returns a copy of all rows in order.
func (t *MetadataTable) Records() []SampleRecord {
	out := make([]SampleRecord, len(t.records))
	for i, r := range t.records {
		out[i] = r.clone()
	}
	return out
}

// Lookup returns the row for sampleID.
func (t *MetadataTable) Lookup(sampleID string) (SampleRecord, bool) {
	i, ok := t.index[sampleID]
	if !ok {
		return SampleRecord{}, false
	}
	return t.records[i].clone(), true
}

// Column returns the values of field name in row order.
func (t *MetadataTable) Column(name string) ([]FieldValue, error) {
	f, ok := LookupField(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	out := make([]FieldValue, len(t.records))
	for i, r := range t.records {
		v, ok := f.Value(r)
		out[i] = FieldValue{Text: v, Null: !ok}
	}
	return out, nil
}

// CheckAligned returns ErrMisaligned unless the table index equals the
// matrix columns in the same order.
func (t *MetadataTable) CheckAligned(m *GeneMatrix) error {
	if len(t.records) != m.Cols() {
		return fmt.Errorf("%w: %d metadata rows, %d columns", ErrMisaligned, len(t.records), m.Cols())
	}
	for i, r := range t.records {
		if m.samples[i] != r.SampleID {
			return fmt.Errorf("%w: row %d is %q, column is %q", ErrMisaligned, i, r.SampleID, m.samples[i])
		}
	}
	return nil
}
