// Package corpus discovers the count files of one experimental condition,
// parses them and assembles a single gene × sample matrix with a metadata
// table aligned to its columns.
package corpus

import "vitisexpr/pkg/expression"

// SourceFile is one discovered count file.
type SourceFile struct {
	Tissue string `json:"tissue"`
	Name   string `json:"name"`
	Key    string `json:"key"`
	// Location is where the file was read from, e.g. an absolute path.
	Location string `json:"location"`
}

// Corpus is a loaded, read-only condition. Counts columns and Metadata rows
// always carry the same sample ids in the same order.
type Corpus struct {
	species   string
	condition string
	files     []SourceFile
	counts    *expression.GeneMatrix
	metadata  *expression.MetadataTable
}

func (c *Corpus) Counts() *expression.GeneMatrix { return c.counts }

func (c *Corpus) Metadata() *expression.MetadataTable { return c.metadata }

// Genes returns the row labels in order.
func (c *Corpus) Genes() []string { return c.counts.Genes() }

// Samples returns the column labels in order.
func (c *Corpus) Samples() []string { return c.counts.Samples() }

func (c *Corpus) Condition() string { return c.condition }

func (c *Corpus) Species() string { return c.species }

// Files returns the discovered files in load order.
func (c *Corpus) Files() []SourceFile {
	out := make([]SourceFile, len(c.files))
	copy(out, c.files)
	return out
}

// Snapshot captures the corpus in serializable form.
func (c *Corpus) Snapshot() expression.Snapshot {
	return expression.NewSnapshot(c.species, c.condition, c.counts, c.metadata)
}

// FromSnapshot rebuilds a corpus from a snapshot, verifying alignment.
// The discovered file list is not part of a snapshot.
func FromSnapshot(s expression.Snapshot) (*Corpus, error) {
	m, md, err := s.Tables()
	if err != nil {
		return nil, err
	}
	return &Corpus{species: s.Species, condition: s.Condition, counts: m, metadata: md}, nil
}
