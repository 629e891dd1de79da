// Package onnx - Enhancement model artifacts executed with ONNX Runtime.
package onnx

import (
	"context"
	"log"
	"os"
	"sync"

	"github.com/nvr-ai/text-enhancer/inference/providers"
	"github.com/nvr-ai/text-enhancer/models/model"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

var (
	envMu       sync.Mutex
	envSessions int
)

// Model is a loaded ONNX artifact.
type Model struct {
	session  *ort.DynamicAdvancedSession
	provider providers.ProviderBackend
	input    string
	output   string

	// mu serializes Run and guards session against Close.
	mu sync.Mutex
}

// NewModel creates a new ONNX Runtime session for the artifact at args.Path.
//
// Order of operations:
//  1. Library path check: Ensures native runtime is accessible.
//  2. Environment setup: Shared by every session in the process.
//  3. Node discovery: Input/output names are read from the artifact when not configured.
//  4. Session options: Execution provider registration.
//  5. Session creation: A dynamic session, because the input size follows the upload.
//
// The artifact file may be removed once NewModel returns.
//
// Arguments:
//   - args: The model arguments.
//
// Returns:
//   - *Model: The loaded model.
//   - error: An error if the library, the artifact or the session setup fails.
func NewModel(args model.NewModelArgs) (*Model, error) {
	if args.Path == "" {
		return nil, errors.New("onnx model path is required")
	}
	if _, err := os.Stat(args.Path); err != nil {
		return nil, errors.Wrap(err, "onnx model not found")
	}

	backend, err := providers.ParseBackend(args.Provider)
	if err != nil {
		return nil, err
	}
	provider, err := providers.NewProvider(backend, args.ProviderOptions)
	if err != nil {
		return nil, err
	}

	if err := acquireEnvironment(args.LibraryPath); err != nil {
		return nil, err
	}

	m, err := newSession(args, provider)
	if err != nil {
		releaseEnvironment()
		return nil, err
	}
	return m, nil
}

func newSession(args model.NewModelArgs, provider providers.ExecutionProvider) (*Model, error) {
	input, output, err := resolveNodes(args)
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return nil, errors.Wrap(err, "error setting graph optimization level")
	}
	if err := provider.Append(options); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(args.Path, []string{input}, []string{output}, options)
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	log.Printf("[onnx] loaded %s (input=%s output=%s provider=%s)", args.Path, input, output, provider.Backend())

	return &Model{
		session:  session,
		provider: provider.Backend(),
		input:    input,
		output:   output,
	}, nil
}

// resolveNodes returns the configured node names, or the first input and
// output declared by the artifact.
func resolveNodes(args model.NewModelArgs) (string, string, error) {
	if len(args.Inputs) > 1 || len(args.Outputs) > 1 {
		return "", "", errors.New("enhancement models take exactly one input and one output")
	}
	if len(args.Inputs) == 1 && len(args.Outputs) == 1 {
		return args.Inputs[0], args.Outputs[0], nil
	}

	inputs, outputs, err := ort.GetInputOutputInfo(args.Path)
	if err != nil {
		return "", "", errors.Wrap(err, "error reading model inputs and outputs")
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return "", "", errors.Errorf("model declares %d inputs and %d outputs, want 1 and 1", len(inputs), len(outputs))
	}

	input, output := inputs[0].Name, outputs[0].Name
	if len(args.Inputs) == 1 {
		input = args.Inputs[0]
	}
	if len(args.Outputs) == 1 {
		output = args.Outputs[0]
	}
	return input, output, nil
}

// Name implements model.Model.
func (m *Model) Name() string {
	return string(model.ModelNameONNX)
}

// Provider returns the execution provider the session runs on.
func (m *Model) Provider() providers.ProviderBackend {
	return m.provider
}

// Predict runs the artifact on a (1, H, W, 1) tensor.
//
// Arguments:
//   - ctx: Checked before the call; a running inference is not interrupted.
//   - input: The batched input tensor.
//
// Returns:
//   - *tensor.Dense: The (1, H', W', 1) output, copied out of ORT memory.
//   - error: The error if any.
func (m *Model) Predict(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	height, width, err := model.BatchDims(input)
	if err != nil {
		return nil, err
	}
	data, err := model.Float32s(input)
	if err != nil {
		return nil, err
	}

	in, err := ort.NewTensor(ort.NewShape(1, int64(height), int64(width), 1), data)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	defer in.Destroy()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, errors.New("onnx session is closed")
	}

	outputs := []ort.ArbitraryTensor{nil}
	if err := m.session.Run([]ort.ArbitraryTensor{in}, outputs); err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Wrapf(model.ErrShape, "output tensor is %T", outputs[0])
	}

	return toDense(out.GetShape(), out.GetData())
}

// toDense copies ORT output memory into a gorgonia tensor.
func toDense(shape ort.Shape, data []float32) (*tensor.Dense, error) {
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}

	if len(dims) != 4 || dims[0] != 1 || dims[3] != 1 {
		return nil, errors.Wrapf(model.ErrShape, "model returned shape %v", dims)
	}
	if int(shape.FlattenedSize()) != len(data) {
		return nil, errors.Wrapf(model.ErrShape, "model returned %d values for shape %v", len(data), dims)
	}

	return model.NewBatch(dims[1], dims[2], append([]float32(nil), data...)), nil
}

// Close releases the session and, with the last session, the ORT environment.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	releaseEnvironment()
	if err != nil {
		return errors.Wrap(err, "error destroying ORT session")
	}
	return nil
}

func acquireEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envSessions == 0 && !ort.IsInitialized() {
		if libraryPath == "" {
			path, err := providers.GetSharedLibPath()
			if err != nil {
				return err
			}
			libraryPath = path
		}
		if _, err := os.Stat(libraryPath); err != nil {
			return errors.Wrapf(err, "ONNX Runtime library not found at %s", libraryPath)
		}

		ort.SetSharedLibraryPath(libraryPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return errors.Wrap(err, "error initializing ORT environment")
		}
	}
	envSessions++
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()

	envSessions--
	if envSessions == 0 && ort.IsInitialized() {
		if err := ort.DestroyEnvironment(); err != nil {
			log.Printf("[onnx] error destroying ORT environment: %v", err)
		}
	}
}
