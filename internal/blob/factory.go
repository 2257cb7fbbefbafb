package blob

import (
	"context"
	"fmt"

	fsstore "vitisexpr/internal/infra/blob/fs"
	memorystore "vitisexpr/internal/infra/blob/memory"
	s3store "vitisexpr/internal/infra/blob/s3"
)

// S3Config re-exports the infra S3 configuration type.
type S3Config = s3store.Config

// Config selects and parameterizes a blob store.
type Config struct {
	Driver Driver `yaml:"driver"`
	// Root is the data root for the filesystem driver.
	Root string   `yaml:"root"`
	S3   S3Config `yaml:"s3"`
}

// Open selects a Store implementation from cfg. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.Root)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewFilesystem constructs a filesystem-backed Store rooted at root.
func NewFilesystem(root string) (Store, error) {
	return fsstore.New(root)
}

// NewMemory returns an in-memory Store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// NewS3 constructs an S3-backed Store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return s3store.New(ctx, cfg)
}

// NewMockS3ForTests exposes the in-memory S3 transport mock for cross-package tests.
func NewMockS3ForTests() Store { return s3store.NewMockForTests() }
