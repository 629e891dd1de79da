package inference

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/text-enhancer/models/model"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

func errorShape(shape tensor.Shape) error {
	return errors.Wrapf(model.ErrShape, "got shape %v", shape)
}

// Postprocess converts a model output tensor back into an RGB image.
//
// It reverses Preprocess: the batch dimension is dropped, values are
// inverted, scaled to [0, 255], clipped and rounded, and the single channel
// is replicated into R, G and B. Alpha is opaque.
//
// Arguments:
//   - t: A float32 tensor of shape (1, H, W, 1).
//
// Returns:
//   - *image.RGBA: A W x H image.
//   - error: An error wrapping model.ErrShape if t has the wrong layout.
func Postprocess(t *tensor.Dense) (*image.RGBA, error) {
	height, width, err := model.BatchDims(t)
	if err != nil {
		return nil, err
	}
	data, err := model.Float32s(t)
	if err != nil {
		return nil, err
	}
	if len(data) != width*height {
		return nil, errorShape(t.Shape())
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, v := range data {
		g := toUint8(1 - v)
		p := i * 4
		img.Pix[p+0] = g
		img.Pix[p+1] = g
		img.Pix[p+2] = g
		img.Pix[p+3] = 0xff
	}
	return img, nil
}

// toUint8 maps a [0, 1] intensity to [0, 255], clipping out-of-range and NaN values.
func toUint8(v float32) uint8 {
	if math32.IsNaN(v) {
		return 0
	}
	scaled := math32.Round(v * 255)
	return uint8(math32.Max(0, math32.Min(255, scaled)))
}
