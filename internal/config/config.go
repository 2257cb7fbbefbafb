// Package config loads vitis-load settings from YAML with VITIS_*
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"vitisexpr/internal/blob"
	"vitisexpr/internal/corpus"
	"vitisexpr/internal/persistence"
)

// Config holds every setting the CLI needs.
type Config struct {
	Species        string             `yaml:"species"`
	Condition      string             `yaml:"condition"`
	IntersectGenes bool               `yaml:"intersect_genes"`
	Blob           blob.Config        `yaml:"blob"`
	Storage        persistence.Config `yaml:"storage"`
	Logging        LoggingConfig      `yaml:"logging"`
	Metrics        MetricsConfig      `yaml:"metrics"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// MetricsConfig selects a metrics exporter.
type MetricsConfig struct {
	Exporter string `yaml:"exporter"` // none, prometheus, expvar
	// Textfile receives the metrics after each run; empty disables writing.
	Textfile string `yaml:"textfile"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Species:        corpus.DefaultSpecies,
		Condition:      corpus.DefaultCondition,
		IntersectGenes: true,
		Blob:           blob.Config{Driver: blob.DriverFilesystem, Root: "data"},
		Storage:        persistence.Config{Driver: persistence.DriverSQLite, SQLitePath: "vitis.db"},
		Logging:        LoggingConfig{Level: "info"},
		Metrics:        MetricsConfig{Exporter: "none"},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error; an empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnvOverrides(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Condition) == "" {
		return fmt.Errorf("config: condition required")
	}
	if strings.ContainsAny(c.Species+c.Condition, `/\`) {
		return fmt.Errorf("config: species and condition must be single path segments")
	}
	switch c.Blob.Driver {
	case blob.DriverFilesystem, blob.DriverMemory, "":
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("config: blob.s3.bucket required for s3 driver")
		}
	default:
		return fmt.Errorf("config: unknown blob driver %q", c.Blob.Driver)
	}
	switch c.Metrics.Exporter {
	case "", "none", "prometheus", "expvar":
	default:
		return fmt.Errorf("config: unknown metrics exporter %q", c.Metrics.Exporter)
	}
	return nil
}

// Environment variables:
//
//	VITIS_SPECIES, VITIS_CONDITION, VITIS_INTERSECT_GENES
//	VITIS_BLOB_DRIVER: fs|s3|memory
//	VITIS_BLOB_FS_ROOT: data root for the fs driver
//	VITIS_BLOB_S3_BUCKET, VITIS_BLOB_S3_REGION, VITIS_BLOB_S3_ENDPOINT, VITIS_BLOB_S3_PATH_STYLE
//	VITIS_STORAGE_DRIVER: memory|sqlite|postgres
//	VITIS_SQLITE_PATH, VITIS_POSTGRES_DSN
//	VITIS_LOG_LEVEL, VITIS_METRICS_EXPORTER, VITIS_METRICS_TEXTFILE
func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("VITIS_SPECIES", &c.Species)
	str("VITIS_CONDITION", &c.Condition)
	if err := boolean("VITIS_INTERSECT_GENES", &c.IntersectGenes); err != nil {
		return err
	}
	if v, ok := lookup("VITIS_BLOB_DRIVER"); ok && v != "" {
		c.Blob.Driver = blob.Driver(strings.ToLower(v))
	}
	str("VITIS_BLOB_FS_ROOT", &c.Blob.Root)
	str("VITIS_BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("VITIS_BLOB_S3_REGION", &c.Blob.S3.Region)
	str("VITIS_BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	if err := boolean("VITIS_BLOB_S3_PATH_STYLE", &c.Blob.S3.PathStyle); err != nil {
		return err
	}
	if v, ok := lookup("VITIS_STORAGE_DRIVER"); ok && v != "" {
		c.Storage.Driver = persistence.Driver(strings.ToLower(v))
	}
	str("VITIS_SQLITE_PATH", &c.Storage.SQLitePath)
	str("VITIS_POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("VITIS_LOG_LEVEL", &c.Logging.Level)
	str("VITIS_METRICS_EXPORTER", &c.Metrics.Exporter)
	str("VITIS_METRICS_TEXTFILE", &c.Metrics.Textfile)
	return nil
}

// LoadOptions translates the corpus settings into loader options.
func (c *Config) LoadOptions() []corpus.Option {
	return []corpus.Option{
		corpus.WithSpecies(c.Species),
		corpus.WithIntersectGenes(c.IntersectGenes),
	}
}
