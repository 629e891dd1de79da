package images

import (
	"crypto/md5"
	"fmt"
	"image"
	"image/color"
)

// ComputeChecksum generates a deterministic checksum over the pixels of an
// image, independent of its concrete type and origin.
//
// Arguments:
// - img: The image to compute checksum for.
//
// Returns:
// - A hex-encoded MD5 checksum string.
//
// Example:
//
// ```go
//
//	checksum := ComputeChecksum(enhanced)
//	log.Printf("output checksum: %s", checksum)
//
// ```
func ComputeChecksum(img image.Image) string {
	if img == nil || img.Bounds().Empty() {
		return "empty"
	}

	bounds := img.Bounds()
	hash := md5.New()
	fmt.Fprintf(hash, "%dx%d;", bounds.Dx(), bounds.Dy())

	px := make([]byte, 4)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			px[0], px[1], px[2], px[3] = c.R, c.G, c.B, c.A
			hash.Write(px)
		}
	}
	return fmt.Sprintf("%x", hash.Sum(nil))
}
