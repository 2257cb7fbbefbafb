package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports load metrics as Prometheus collectors.
type PrometheusRecorder struct {
	files      *prometheus.CounterVec
	samples    prometheus.Counter
	duplicates prometheus.Counter
	loads      *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewPrometheusRecorder builds the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vitis",
			Subsystem: "corpus",
			Name:      "files_parsed_total",
			Help:      "Count files parsed, by tissue.",
		}, []string{"tissue"}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vitis",
			Subsystem: "corpus",
			Name:      "samples_loaded_total",
			Help:      "Sample columns read from count files.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vitis",
			Subsystem: "corpus",
			Name:      "duplicate_gene_rows_total",
			Help:      "Rows folded into an earlier row with the same gene id.",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vitis",
			Subsystem: "corpus",
			Name:      "loads_total",
			Help:      "Corpus loads, by condition and result.",
		}, []string{"condition", "result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vitis",
			Subsystem: "corpus",
			Name:      "load_duration_seconds",
			Help:      "Wall time of corpus loads.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	if reg != nil {
		for _, c := range r.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) collectors() []prometheus.Collector {
	return []prometheus.Collector{r.files, r.samples, r.duplicates, r.loads, r.duration}
}

// ObserveFile counts one parsed file.
func (r *PrometheusRecorder) ObserveFile(_ context.Context, stats FileStats) {
	r.files.WithLabelValues(stats.Tissue).Inc()
	r.samples.Add(float64(stats.Samples))
	r.duplicates.Add(float64(stats.DuplicateRows))
}

// ObserveLoad counts one load and its duration.
func (r *PrometheusRecorder) ObserveLoad(_ context.Context, stats LoadStats) {
	r.loads.WithLabelValues(stats.Condition, resultLabel(stats.Err)).Inc()
	r.duration.Observe(stats.Duration.Seconds())
}
