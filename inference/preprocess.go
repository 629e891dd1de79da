package inference

import (
	"image"
	"image/color"

	"github.com/nvr-ai/text-enhancer/models/model"
	"gorgonia.org/tensor"
)

// Preprocess converts an image into the tensor the enhancement model expects.
//
// Only the green channel is kept. Values are scaled from [0, 255] to [0, 1]
// and inverted so dark strokes become high values. Red and blue are
// discarded; the model was trained on near-grayscale input.
//
// Arguments:
//   - img: The image to convert.
//
// Returns:
//   - *tensor.Dense: A float32 tensor of shape (H, W, 1).
func Preprocess(img image.Image) *tensor.Dense {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	data := make([]float32, width*height)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			data[i] = 1 - float32(green(img.At(x, y)))/255.0
			i++
		}
	}

	return tensor.New(tensor.WithShape(height, width, 1), tensor.WithBacking(data))
}

// green returns the non-premultiplied 8-bit green component.
func green(c color.Color) uint8 {
	switch v := c.(type) {
	case color.Gray:
		return v.Y
	case color.NRGBA:
		return v.G
	default:
		return color.NRGBAModel.Convert(c).(color.NRGBA).G
	}
}

// Batch adds the leading batch dimension: (H, W, 1) becomes (1, H, W, 1).
// The result shares memory with t.
func Batch(t *tensor.Dense) (*tensor.Dense, error) {
	shape := t.Shape()
	if len(shape) != 3 || shape[2] != 1 {
		return nil, errorShape(shape)
	}
	data, err := model.Float32s(t)
	if err != nil {
		return nil, err
	}
	return model.NewBatch(shape[0], shape[1], data), nil
}
