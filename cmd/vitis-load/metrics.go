package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"vitisexpr/internal/config"
	"vitisexpr/internal/observability"
)

// runMetrics owns the recorder of one run and writes it out afterwards.
type runMetrics struct {
	recorder observability.Recorder
	flush    func() error
}

func newMetrics(cfg config.MetricsConfig) (runMetrics, error) {
	noop := runMetrics{recorder: observability.NopRecorder{}, flush: func() error { return nil }}
	switch cfg.Exporter {
	case "", "none":
		return noop, nil
	case "prometheus":
		reg := prometheus.NewRegistry()
		rec, err := observability.NewPrometheusRecorder(reg)
		if err != nil {
			return noop, err
		}
		return runMetrics{recorder: rec, flush: func() error {
			if cfg.Textfile == "" {
				return nil
			}
			families, err := reg.Gather()
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			for _, mf := range families {
				if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
					return err
				}
			}
			return writeAtomic(cfg.Textfile, buf.Bytes())
		}}, nil
	case "expvar":
		rec := observability.NewExpvarRecorder("")
		return runMetrics{recorder: rec, flush: func() error {
			if cfg.Textfile == "" {
				return nil
			}
			data, err := json.MarshalIndent(rec.Snapshot(), "", "  ")
			if err != nil {
				return err
			}
			return writeAtomic(cfg.Textfile, data)
		}}, nil
	default:
		return noop, fmt.Errorf("unknown metrics exporter %q", cfg.Exporter)
	}
}

// writeAtomic writes to a sibling temp file and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
