// Package buckets splits a corpus snapshot into named JSON payloads and
// joins them back. The SQL stores persist one row per (snapshot, bucket).
package buckets

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vitisexpr/pkg/expression"
)

const (
	Meta     = "meta"
	Genes    = "genes"
	Samples  = "samples"
	Counts   = "counts"
	Metadata = "metadata"
)

// Names lists every bucket written for a snapshot, in write order.
var Names = []string{Meta, Genes, Samples, Counts, Metadata}

// ErrNotFound is returned when no snapshot exists under a name.
var ErrNotFound = errors.New("persistence: snapshot not found")

// Info summarizes a stored snapshot. It is the payload of the meta bucket.
type Info struct {
	Name      string    `json:"name"`
	Species   string    `json:"species"`
	Condition string    `json:"condition"`
	Genes     int       `json:"genes"`
	Samples   int       `json:"samples"`
	SavedAt   time.Time `json:"saved_at"`
}

// Encode returns one JSON payload per bucket.
func Encode(name string, s expression.Snapshot, savedAt time.Time) (map[string][]byte, error) {
	info := Info{
		Name:      name,
		Species:   s.Species,
		Condition: s.Condition,
		Genes:     len(s.Genes),
		Samples:   len(s.Samples),
		SavedAt:   savedAt.UTC(),
	}
	values := map[string]any{
		Meta:     info,
		Genes:    s.Genes,
		Samples:  s.Samples,
		Counts:   s.Counts,
		Metadata: s.Metadata,
	}
	out := make(map[string][]byte, len(values))
	for _, bucket := range Names {
		data, err := json.Marshal(values[bucket])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// Decode rebuilds a snapshot. Every bucket must be present.
func Decode(name string, payloads map[string][]byte) (expression.Snapshot, error) {
	if len(payloads) == 0 {
		return expression.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	var (
		info Info
		s    expression.Snapshot
	)
	targets := map[string]any{
		Meta:     &info,
		Genes:    &s.Genes,
		Samples:  &s.Samples,
		Counts:   &s.Counts,
		Metadata: &s.Metadata,
	}
	for _, bucket := range Names {
		payload, ok := payloads[bucket]
		if !ok {
			return expression.Snapshot{}, fmt.Errorf("snapshot %s: missing bucket %s", name, bucket)
		}
		if err := json.Unmarshal(payload, targets[bucket]); err != nil {
			return expression.Snapshot{}, fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	s.Species = info.Species
	s.Condition = info.Condition
	return s, nil
}

// DecodeInfo reads a meta payload.
func DecodeInfo(payload []byte) (Info, error) {
	var info Info
	if err := json.Unmarshal(payload, &info); err != nil {
		return Info{}, fmt.Errorf("decode %s: %w", Meta, err)
	}
	return info, nil
}
