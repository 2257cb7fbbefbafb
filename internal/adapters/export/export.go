// Package export renders a loaded corpus as tab-separated files and publishes
// them to a blob store.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"vitisexpr/internal/blob"
	"vitisexpr/internal/corpus"
	"vitisexpr/pkg/expression"
)

// Format names one rendered artifact.
type Format string

const (
	FormatCounts   Format = "counts"
	FormatMetadata Format = "metadata"
	FormatSnapshot Format = "snapshot"
)

// AllFormats lists every format in publish order.
var AllFormats = []Format{FormatCounts, FormatMetadata, FormatSnapshot}

// AbsentCell is written for cells with no value.
const AbsentCell = "NA"

// Artifact describes one published object.
type Artifact struct {
	Format      Format            `json:"format"`
	Key         string            `json:"key"`
	Location    string            `json:"location"`
	ContentType string            `json:"content_type"`
	SizeBytes   int64             `json:"size_bytes"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// WriteCounts writes m as a gene × sample table with a Gene header column.
func WriteCounts(w io.Writer, m *expression.GeneMatrix) error {
	writer := tsvWriter(w)
	header := append([]string{expression.GeneIndexName}, m.Samples()...)
	if err := writer.Write(header); err != nil {
		return err
	}
	genes := m.Genes()
	record := make([]string, m.Cols()+1)
	for i, g := range genes {
		record[0] = g
		for j := 0; j < m.Cols(); j++ {
			if v, ok := m.At(i, j); ok {
				record[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
			} else {
				record[j+1] = AbsentCell
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteMetadata writes one row per sample with the schema fields as columns.
// Null values are written as empty cells.
func WriteMetadata(w io.Writer, md *expression.MetadataTable) error {
	writer := tsvWriter(w)
	header := make([]string, len(expression.MetadataSchema))
	for i, f := range expression.MetadataSchema {
		header[i] = f.Name
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for _, r := range md.Records() {
		for i, f := range expression.MetadataSchema {
			v, _ := f.Value(r)
			record[i] = v
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func tsvWriter(w io.Writer) *csv.Writer {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'
	return writer
}

// Publish renders the requested formats (all when none are given) and puts
// them under prefix. Keys are create-only, so republishing to the same prefix
// fails.
func Publish(ctx context.Context, store blob.Store, prefix string, c *corpus.Corpus, formats ...Format) ([]Artifact, error) {
	if len(formats) == 0 {
		formats = AllFormats
	}
	prefix = strings.TrimSuffix(prefix, "/")
	out := make([]Artifact, 0, len(formats))
	for _, format := range formats {
		payload, name, contentType, err := render(format, c)
		if err != nil {
			return out, err
		}
		key := name
		if prefix != "" {
			key = prefix + "/" + name
		}
		meta := map[string]string{
			"species":   c.Species(),
			"condition": c.Condition(),
			"genes":     strconv.Itoa(c.Counts().Rows()),
			"samples":   strconv.Itoa(c.Counts().Cols()),
		}
		info, err := store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: contentType, Metadata: meta})
		if err != nil {
			return out, fmt.Errorf("publish %s: %w", key, err)
		}
		out = append(out, Artifact{
			Format:      format,
			Key:         info.Key,
			Location:    store.Location(info.Key),
			ContentType: contentType,
			SizeBytes:   int64(len(payload)),
			Metadata:    meta,
			CreatedAt:   time.Now().UTC(),
		})
	}
	return out, nil
}

func render(format Format, c *corpus.Corpus) (payload []byte, name, contentType string, err error) {
	buf := &bytes.Buffer{}
	switch format {
	case FormatCounts:
		err = WriteCounts(buf, c.Counts())
		name, contentType = "counts.tsv", "text/tab-separated-values"
	case FormatMetadata:
		err = WriteMetadata(buf, c.Metadata())
		name, contentType = "metadata.tsv", "text/tab-separated-values"
	case FormatSnapshot:
		err = json.NewEncoder(buf).Encode(c.Snapshot())
		name, contentType = "snapshot.json", "application/json"
	default:
		return nil, "", "", fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return nil, "", "", fmt.Errorf("render %s: %w", format, err)
	}
	return buf.Bytes(), name, contentType, nil
}
