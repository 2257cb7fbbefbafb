package corpus

import (
	"go.uber.org/zap"

	"vitisexpr/internal/observability"
)

// DefaultSpecies is the species folder read when WithSpecies is not given.
const DefaultSpecies = "vitis_vinifera"

// DefaultCondition is the condition used by callers that do not choose one.
const DefaultCondition = "control"

type options struct {
	species   string
	intersect bool
	logger    *zap.Logger
	recorder  observability.Recorder
	tracer    observability.Tracer
}

// Option configures a load.
type Option func(*options)

func defaultOptions() options {
	return options{
		species:   DefaultSpecies,
		intersect: true,
		logger:    zap.NewNop(),
		recorder:  observability.NopRecorder{},
		tracer:    observability.NopTracer{},
	}
}

// WithSpecies selects the species folder under the data root.
func WithSpecies(species string) Option {
	return func(o *options) {
		if species != "" {
			o.species = species
		}
	}
}

// WithIntersectGenes chooses between the gene intersection (true, the
// default) and an outer join over the gene union with absent cells.
func WithIntersectGenes(intersect bool) Option {
	return func(o *options) { o.intersect = intersect }
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder. A nil recorder is ignored.
func WithRecorder(r observability.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithTracer wraps the load and each file parse in spans.
func WithTracer(t observability.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}
