// Package model - Definitions shared by every enhancement model backend.
package model

import (
	"context"

	"gorgonia.org/tensor"
)

// Name is the unique identifier of a model backend.
type Name string

const (
	// ModelNameONNX is a pretrained artifact executed with ONNX Runtime.
	ModelNameONNX Name = "onnx"
	// ModelNameSharpen is the in-process unsharp-mask graph.
	ModelNameSharpen Name = "sharpen"
	// ModelNameIdentity returns its input unchanged.
	ModelNameIdentity Name = "identity"
)

// Names lists every backend the registry can build.
var Names = []Name{ModelNameONNX, ModelNameSharpen, ModelNameIdentity}

// Model is a loaded enhancement model.
//
// Predict receives a float32 tensor of shape (1, H, W, 1) with values in
// [0, 1] and returns a tensor of shape (1, H', W', 1). A loaded model is
// read-only and may be shared by concurrent requests.
type Model interface {
	Name() string
	Predict(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error)
	Close() error
}

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	// Name selects the backend.
	Name Name `json:"name" yaml:"name"`
	// Path is the local path of the model artifact (onnx only).
	Path string `json:"path" yaml:"path"`
	// Inputs are the input node names; discovered from the artifact when empty.
	Inputs []string `json:"inputs" yaml:"inputs"`
	// Outputs are the output node names; discovered from the artifact when empty.
	Outputs []string `json:"outputs" yaml:"outputs"`
	// Provider is the ONNX Runtime execution provider (cpu, cuda, coreml, openvino).
	Provider string `json:"provider" yaml:"provider"`
	// ProviderOptions are passed to the execution provider as is.
	ProviderOptions map[string]string `json:"provider_options" yaml:"provider_options"`
	// LibraryPath is the path of the ONNX Runtime shared library.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// Strength is the unsharp amount of the sharpen backend.
	Strength float32 `json:"strength" yaml:"strength"`
}
