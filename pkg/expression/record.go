package expression

import "strings"

// UnknownAccession is used when a filename carries no GSE token.
const UnknownAccession = "UNKNOWN"

// SampleIDSeparator joins the parts of a sample id.
const SampleIDSeparator = "|"

// SampleRecord describes one sample column of one source file.
type SampleRecord struct {
	SampleID     string  `json:"sample_id"`
	OriginalName string  `json:"original_name"`
	Tissue       string  `json:"tissue"`
	Condition    string  `json:"condition"`
	GSEAccession string  `json:"gse_accession"`
	Cultivar     *string `json:"cultivar"`
	FilePath     string  `json:"file_path"`
}

// SampleID derives the corpus-wide identifier tissue|accession|column.
func SampleID(tissue, accession, originalName string) string {
	return strings.Join([]string{tissue, accession, originalName}, SampleIDSeparator)
}

func (r SampleRecord) clone() SampleRecord {
	if r.Cultivar != nil {
		c := *r.Cultivar
		r.Cultivar = &c
	}
	return r
}

// Field is one named column of the metadata schema.
type Field struct {
	Name     string
	Nullable bool
	value    func(SampleRecord) (string, bool)
}

// Value extracts the field from r. ok is false only for null values.
func (f Field) Value(r SampleRecord) (string, bool) { return f.value(r) }

func present(s string) (string, bool) { return s, true }

// MetadataSchema is the ordered set of fields every SampleRecord populates.
// The first field is the table index.
var MetadataSchema = []Field{
	{Name: "sample_id", value: func(r SampleRecord) (string, bool) { return present(r.SampleID) }},
	{Name: "original_name", value: func(r SampleRecord) (string, bool) { return present(r.OriginalName) }},
	{Name: "tissue", value: func(r SampleRecord) (string, bool) { return present(r.Tissue) }},
	{Name: "condition", value: func(r SampleRecord) (string, bool) { return present(r.Condition) }},
	{Name: "gse_accession", value: func(r SampleRecord) (string, bool) { return present(r.GSEAccession) }},
	{Name: "cultivar", Nullable: true, value: func(r SampleRecord) (string, bool) {
		if r.Cultivar == nil {
			return "", false
		}
		return *r.Cultivar, true
	}},
	{Name: "file_path", value: func(r SampleRecord) (string, bool) { return present(r.FilePath) }},
}

// IndexField names the schema field that indexes the metadata table.
const IndexField = "sample_id"

// LookupField returns the schema field called name.
func LookupField(name string) (Field, bool) {
	for _, f := range MetadataSchema {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
