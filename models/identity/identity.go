// Package identity - A model that returns a copy of its input.
package identity

import (
	"context"

	"github.com/nvr-ai/text-enhancer/models/model"
	"gorgonia.org/tensor"
)

// Model returns its input unchanged.
type Model struct{}

// New creates an identity model.
func New() *Model {
	return &Model{}
}

// Name implements model.Model.
func (m *Model) Name() string {
	return string(model.ModelNameIdentity)
}

// Predict returns a copy of input after validating its layout.
func (m *Model) Predict(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, _, err := model.BatchDims(input); err != nil {
		return nil, err
	}
	return input.Clone().(*tensor.Dense), nil
}

// Close implements model.Model.
func (m *Model) Close() error {
	return nil
}
