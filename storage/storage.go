// Package storage - Acquisition of model artifacts.
package storage

import (
	"context"
	"os"

	"github.com/pkg/errors"
)

// Source hands a local copy of a model artifact to a loader.
//
// The path passed to load is only valid until load returns.
type Source interface {
	Acquire(ctx context.Context, load func(path string) error) error
	String() string
}

// LocalSource serves an artifact that already lives on disk. The file is
// neither copied nor removed.
type LocalSource struct {
	Path string
}

// Acquire calls load with the configured path.
func (s LocalSource) Acquire(ctx context.Context, load func(path string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(s.Path); err != nil {
		return errors.Wrap(err, "model artifact not found")
	}
	return load(s.Path)
}

// String implements fmt.Stringer.
func (s LocalSource) String() string {
	return "file://" + s.Path
}

// New picks the artifact source: the local file when path is set, the S3
// object when a bucket is configured. It returns a nil Source when neither
// is configured.
func New(ctx context.Context, path string, cfg S3Config) (Source, error) {
	switch {
	case path != "":
		return LocalSource{Path: path}, nil
	case cfg.Bucket != "":
		s, err := NewS3Source(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, nil
	}
}
