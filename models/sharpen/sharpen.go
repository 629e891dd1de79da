// Package sharpen - An in-process unsharp-mask model built as a gorgonia graph.
//
// The model convolves the single-channel tensor with a 3x3 Laplacian
// sharpening kernel and clips the result to [0, 1]. It honours the same
// (1, H, W, 1) contract as a pretrained artifact and needs no download, so
// it is used for local development and demos.
package sharpen

import (
	"context"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/text-enhancer/models/model"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// DefaultStrength is the unsharp amount used when none is configured.
const DefaultStrength float32 = 0.5

// Model sharpens a tensor with a fixed convolution kernel.
type Model struct {
	strength float32
	kernel   []float32
}

// New creates a sharpen model.
//
// Arguments:
//   - strength: The unsharp amount. Zero selects DefaultStrength.
//
// Returns:
//   - *Model: The model.
//   - error: An error if strength is negative.
func New(strength float32) (*Model, error) {
	if strength < 0 {
		return nil, errors.Errorf("sharpen strength must be >= 0, got %v", strength)
	}
	if strength == 0 {
		strength = DefaultStrength
	}

	return &Model{strength: strength, kernel: Kernel(strength)}, nil
}

// Kernel returns the 3x3 sharpening kernel for the given amount. Its weights
// sum to one so flat regions are preserved.
func Kernel(strength float32) []float32 {
	s := strength
	return []float32{
		0, -s, 0,
		-s, 1 + 4*s, -s,
		0, -s, 0,
	}
}

// Name implements model.Model.
func (m *Model) Name() string {
	return string(model.ModelNameSharpen)
}

// Strength returns the configured unsharp amount.
func (m *Model) Strength() float32 {
	return m.strength
}

// Predict runs the convolution graph over input.
//
// The graph is built per call because its shape follows the upload. With a
// single channel the NHWC input and the NCHW layout Conv2d expects share the
// same memory order, so the input is only re-headed, not transposed.
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

	g := G.NewGraph()
	x := G.NewTensor(g, tensor.Float32, 4, G.WithShape(1, 1, height, width), G.WithName("x"))
	kernel := tensor.New(tensor.WithShape(1, 1, 3, 3), tensor.WithBacking(append([]float32(nil), m.kernel...)))
	k := G.NewTensor(g, tensor.Float32, 4, G.WithShape(1, 1, 3, 3), G.WithValue(kernel), G.WithName("kernel"))

	y, err := G.Conv2d(x, k, tensor.Shape{3, 3}, []int{1, 1}, []int{1, 1}, []int{1, 1})
	if err != nil {
		return nil, errors.Wrap(err, "failed to build sharpen graph")
	}

	vm := G.NewTapeMachine(g)
	defer vm.Close()

	nchw := tensor.New(tensor.WithShape(1, 1, height, width), tensor.WithBacking(data))
	if err := G.Let(x, nchw); err != nil {
		return nil, errors.Wrap(err, "failed to bind sharpen input")
	}
	if err := vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "failed to run sharpen graph")
	}

	value, ok := y.Value().(*tensor.Dense)
	if !ok || value.Dtype() != tensor.Float32 || value.Shape().TotalSize() != height*width {
		return nil, errors.Wrapf(model.ErrShape, "unexpected sharpen output %v", y.Shape())
	}
	result := value.Float32s()

	out := make([]float32, len(result))
	for i, v := range result {
		out[i] = math32.Max(0, math32.Min(1, v))
	}
	return model.NewBatch(height, width, out), nil
}

// Close implements model.Model.
func (m *Model) Close() error {
	return nil
}
