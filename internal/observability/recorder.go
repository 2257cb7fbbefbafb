// Package observability records corpus load metrics and trace spans.
package observability

import (
	"context"
	"errors"
	"time"
)

// FileStats describes one parsed count file.
type FileStats struct {
	Tissue        string
	Samples       int
	Genes         int
	DuplicateRows int
}

// LoadStats describes a finished corpus load. Shape fields are zero when the
// load failed.
type LoadStats struct {
	Condition string
	Files     int
	Genes     int
	Samples   int
	Absent    int
	Duration  time.Duration
	Err       error
}

// Recorder receives load measurements. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveFile(ctx context.Context, stats FileStats)
	ObserveLoad(ctx context.Context, stats LoadStats)
}

// NopRecorder discards every measurement.
type NopRecorder struct{}

func (NopRecorder) ObserveFile(context.Context, FileStats) {}

func (NopRecorder) ObserveLoad(context.Context, LoadStats) {}

// Multi fans measurements out to every non-nil recorder.
func Multi(recorders ...Recorder) Recorder {
	out := make(multiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multiRecorder []Recorder

func (m multiRecorder) ObserveFile(ctx context.Context, stats FileStats) {
	for _, r := range m {
		r.ObserveFile(ctx, stats)
	}
}

func (m multiRecorder) ObserveLoad(ctx context.Context, stats LoadStats) {
	for _, r := range m {
		r.ObserveLoad(ctx, stats)
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
