package observability

import (
	"context"
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// ExpvarRecorder publishes aggregate load totals via expvar for processes
// that do not run a Prometheus endpoint.
type ExpvarRecorder struct {
	name          string
	mu            sync.Mutex
	files         map[string]int64
	samples       int64
	duplicateRows int64
	durationsMS   map[string]float64
	results       map[string]map[string]int64
}

// ExpvarSnapshot is a read-only copy of the recorded totals.
type ExpvarSnapshot struct {
	FilesByTissue map[string]int64            `json:"files_by_tissue"`
	Samples       int64                       `json:"samples_total"`
	DuplicateRows int64                       `json:"duplicate_rows_total"`
	DurationsMS   map[string]float64          `json:"load_duration_ms_total"`
	Results       map[string]map[string]int64 `json:"loads_total"`
	RecordedAt    time.Time                   `json:"recorded_at"`
}

// NewExpvarRecorder publishes a recorder under name. An empty name gets a
// generated unique one.
func NewExpvarRecorder(name string) *ExpvarRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("vitis_corpus_metrics_%d", id)
	}
	rec := &ExpvarRecorder{
		name:        name,
		files:       make(map[string]int64),
		durationsMS: make(map[string]float64),
		results:     make(map[string]map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarRecorder) Name() string { return r.name }

// Snapshot copies the current totals.
func (r *ExpvarRecorder) Snapshot() ExpvarSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	files := make(map[string]int64, len(r.files))
	for k, v := range r.files {
		files[k] = v
	}
	durations := make(map[string]float64, len(r.durationsMS))
	for k, v := range r.durationsMS {
		durations[k] = v
	}
	results := make(map[string]map[string]int64, len(r.results))
	for cond, counts := range r.results {
		cpy := make(map[string]int64, len(counts))
		for status, n := range counts {
			cpy[status] = n
		}
		results[cond] = cpy
	}
	return ExpvarSnapshot{
		FilesByTissue: files,
		Samples:       r.samples,
		DuplicateRows: r.duplicateRows,
		DurationsMS:   durations,
		Results:       results,
		RecordedAt:    time.Now().UTC(),
	}
}

func (r *ExpvarRecorder) ObserveFile(_ context.Context, stats FileStats) {
	r.mu.Lock()
	r.files[stats.Tissue]++
	r.samples += int64(stats.Samples)
	r.duplicateRows += int64(stats.DuplicateRows)
	r.mu.Unlock()
}

func (r *ExpvarRecorder) ObserveLoad(_ context.Context, stats LoadStats) {
	ms := float64(stats.Duration) / float64(time.Millisecond)
	status := resultLabel(stats.Err)

	r.mu.Lock()
	r.durationsMS[stats.Condition] += ms
	if _, ok := r.results[stats.Condition]; !ok {
		r.results[stats.Condition] = make(map[string]int64, 3)
	}
	r.results[stats.Condition][status]++
	r.mu.Unlock()
}
