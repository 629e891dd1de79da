package model

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrShape is returned when a tensor does not have the (1, H, W, 1) float32 layout.
var ErrShape = errors.New("tensor must be float32 with shape (1, H, W, 1)")

// BatchDims validates a batched single-channel tensor and returns its
// spatial dimensions.
//
// Arguments:
//   - t: The tensor to validate.
//
// Returns:
//   - height: The H dimension.
//   - width: The W dimension.
//   - error: An error wrapping ErrShape if the layout is wrong.
func BatchDims(t *tensor.Dense) (height, width int, err error) {
	if t == nil {
		return 0, 0, errors.Wrap(ErrShape, "tensor is nil")
	}
	if t.Dtype() != tensor.Float32 {
		return 0, 0, errors.Wrapf(ErrShape, "dtype %v", t.Dtype())
	}

	shape := t.Shape()
	if len(shape) != 4 || shape[0] != 1 || shape[3] != 1 || shape[1] <= 0 || shape[2] <= 0 {
		return 0, 0, errors.Wrapf(ErrShape, "shape %v", shape)
	}
	return shape[1], shape[2], nil
}

// Float32s returns the backing data of a float32 tensor.
func Float32s(t *tensor.Dense) ([]float32, error) {
	if t == nil || t.Dtype() != tensor.Float32 {
		return nil, errors.Wrap(ErrShape, "tensor is not float32")
	}
	return t.Float32s(), nil
}

// NewBatch wraps data of length height*width into a (1, H, W, 1) tensor
// without copying.
func NewBatch(height, width int, data []float32) *tensor.Dense {
	return tensor.New(tensor.WithShape(1, height, width, 1), tensor.WithBacking(data))
}
