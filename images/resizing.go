package images

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

// DefaultIterations is the number of doublings applied by "Increase Size".
const DefaultIterations = 1

// IncreaseSize resamples img to (W*2^iterations, H*2^iterations) using the
// Lanczos3 filter.
//
// The input is never modified. With zero iterations the result is a copy of
// the input with the same dimensions.
//
// Arguments:
//   - img: The image to upscale.
//   - iterations: The number of doublings, must be >= 0.
//
// Returns:
//   - image.Image: A new image with origin (0, 0).
func IncreaseSize(img image.Image, iterations int) image.Image {
	if iterations < 0 {
		panic(fmt.Sprintf("images: negative iteration count %d", iterations))
	}

	width, height := ScaledSize(img.Bounds().Dx(), img.Bounds().Dy(), iterations)
	if iterations == 0 {
		return Clone(img)
	}

	return resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
}

// ScaledSize returns the dimensions produced by IncreaseSize.
func ScaledSize(width, height, iterations int) (int, int) {
	factor := 1 << iterations
	return width * factor, height * factor
}

// Clone copies img into a new RGBA image anchored at (0, 0).
func Clone(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}
