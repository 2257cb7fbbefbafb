// Package parser reads one tab-delimited count file into a per-file gene
// matrix and the sample records for its columns. It has no knowledge of other
// files in the corpus.
package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"vitisexpr/pkg/expression"
)

// FileSource identifies the file being parsed and the directory context
// that the loader derived for it.
type FileSource struct {
	Path      string // recorded as SampleRecord.FilePath; its base name is parsed
	Tissue    string
	Condition string
}

// Result is the parsed content of one file.
type Result struct {
	Matrix  *expression.GeneMatrix
	Samples []expression.SampleRecord
	// DuplicateRows counts rows folded into an earlier row with the same gene id.
	DuplicateRows int
}

var (
	errTooFewColumns = errors.New("no usable sample columns")
	errEmptyGene     = errors.New("empty gene identifier")
	errNotNumeric    = errors.New("value is not a finite number")
)

// ParseFile opens path and parses it. The file is closed before returning.
func ParseFile(path, tissue, condition string) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Parse(f, FileSource{Path: abs, Tissue: tissue, Condition: condition})
}

// Parse reads a tab-delimited table with a header row. The first column holds
// gene identifiers whatever its header says; each remaining column is one
// sample. Rows repeating a gene id are summed into the first occurrence.
func Parse(r io.Reader, src FileSource) (*Result, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Path: src.Path, Err: errTooFewColumns}
	}
	if err != nil {
		return nil, csvError(src.Path, err)
	}
	if len(header) < 2 {
		return nil, &ParseError{Path: src.Path, Line: 1, Err: errTooFewColumns}
	}
	// The gene column is always relabelled, so only sample headers are kept.
	columns := make([]string, len(header)-1)
	copy(columns, header[1:])

	accession := Accession(src.Path)
	cultivar := Cultivar(src.Path)
	sampleIDs := make([]string, len(columns))
	records := make([]expression.SampleRecord, len(columns))
	seen := make(map[string]struct{}, len(columns))
	for j, name := range columns {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%s: column %q repeated: %w", src.Path, name, expression.ErrSampleIDCollision)
		}
		seen[name] = struct{}{}
		id := expression.SampleID(src.Tissue, accession, name)
		sampleIDs[j] = id
		records[j] = expression.SampleRecord{
			SampleID:     id,
			OriginalName: name,
			Tissue:       src.Tissue,
			Condition:    src.Condition,
			GSEAccession: accession,
			Cultivar:     cloneCultivar(cultivar),
			FilePath:     src.Path,
		}
	}

	var (
		genes   []string
		rows    [][]float64
		rowOf   = make(map[string]int)
		dupRows int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(src.Path, err)
		}
		line, _ := cr.FieldPos(0)
		gene := rec[0]
		if gene == "" {
			return nil, &ParseError{Path: src.Path, Line: line, Column: expression.GeneIndexName, Err: errEmptyGene}
		}
		values := make([]float64, len(columns))
		for j := range columns {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j+1]), 64)
			if err != nil || !isFinite(v) {
				return nil, &ParseError{Path: src.Path, Line: line, Column: columns[j], Err: errNotNumeric}
			}
			values[j] = v
		}
		if i, ok := rowOf[gene]; ok {
			for j, v := range values {
				rows[i][j] += v
			}
			dupRows++
			continue
		}
		rowOf[gene] = len(genes)
		genes = append(genes, gene)
		rows = append(rows, values)
	}

	flat := make([]float64, 0, len(genes)*len(columns))
	for _, row := range rows {
		flat = append(flat, row...)
	}
	m, err := expression.NewGeneMatrix(genes, sampleIDs, flat)
	if err != nil {
		// Sums of finite values can still overflow to ±Inf.
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}
	return &Result{Matrix: m, Samples: records, DuplicateRows: dupRows}, nil
}

func csvError(path string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Path: path, Line: pe.Line, Err: pe.Err}
	}
	return fmt.Errorf("read %s: %w", path, err)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func cloneCultivar(c *string) *string {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}
