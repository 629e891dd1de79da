// Package models - registry for enhancement model backends.
package models

import (
	"github.com/nvr-ai/text-enhancer/models/identity"
	"github.com/nvr-ai/text-enhancer/models/model"
	"github.com/nvr-ai/text-enhancer/models/onnx"
	"github.com/nvr-ai/text-enhancer/models/sharpen"
	"github.com/pkg/errors"
)

// NewModel creates a new enhancement model instance based on the specified
// backend name.
//
// This factory function is the single entry point for model creation, so
// the caller can switch between the pretrained artifact and the in-process
// backends through configuration alone.
//
// Arguments:
//   - args: Configuration parameters specifying the backend and artifact location.
//
// Returns:
//   - model.Model: A loaded model implementing the Model interface.
//   - error: An error if the backend is unsupported or fails to load.
//
// Example:
//
// ```go
//
//	m, err := models.NewModel(model.NewModelArgs{
//	    Name: model.ModelNameONNX,
//	    Path: "/tmp/text_enhancer.onnx",
//	})
//	if err != nil {
//	    log.Fatalf("Failed to load model: %v", err)
//	}
//	defer m.Close()
//
// ```
func NewModel(args model.NewModelArgs) (model.Model, error) {
	switch args.Name {
	case model.ModelNameONNX:
		m, err := onnx.NewModel(args)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load onnx model")
		}
		return m, nil
	case model.ModelNameSharpen:
		m, err := sharpen.New(args.Strength)
		if err != nil {
			return nil, err
		}
		return m, nil
	case model.ModelNameIdentity:
		return identity.New(), nil
	default:
		return nil, errors.Errorf("unsupported model name: %q", args.Name)
	}
}

// NeedsArtifact reports whether the backend loads a file from storage.
func NeedsArtifact(name model.Name) bool {
	return name == model.ModelNameONNX
}
