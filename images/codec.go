package images

import (
	"bytes"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"io"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

var (
	// ErrEmptyImage is returned when an upload carries no bytes.
	ErrEmptyImage = errors.New("image data is empty")
	// ErrDecode is returned when the bytes are not a supported image.
	ErrDecode = errors.New("image decoding failed")
	// ErrTooManyPixels is returned when the header declares more pixels
	// than the caller allows.
	ErrTooManyPixels = errors.New("image has too many pixels")
)

// Decode decodes an uploaded image and reports its metadata.
//
// Arguments:
//   - data: The raw bytes of the upload.
//
// Returns:
//   - image.Image: The decoded image.
//   - Image: Format, dimensions and encoded size of the upload.
//   - error: ErrEmptyImage, or an error wrapping ErrDecode.
func Decode(data []byte) (image.Image, Image, error) {
	return DecodeLimited(data, 0)
}

// DecodeLimited is Decode with a pixel budget. The header is read first and
// an image declaring more than maxPixels pixels is rejected with an error
// wrapping ErrTooManyPixels before any pixel is decoded. maxPixels <= 0
// disables the check.
func DecodeLimited(data []byte, maxPixels int64) (image.Image, Image, error) {
	if len(data) == 0 {
		return nil, Image{}, ErrEmptyImage
	}

	if maxPixels > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, Image{}, errors.Wrap(ErrDecode, err.Error())
		}
		if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
			return nil, Image{}, errors.Wrapf(ErrTooManyPixels, "%dx%d is %d pixels, limit %d",
				cfg.Width, cfg.Height, pixels, maxPixels)
		}
	}

	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Image{}, errors.Wrap(ErrDecode, err.Error())
	}

	format, ok := ParseFormat(name)
	if !ok {
		return nil, Image{}, errors.Wrapf(ErrDecode, "unsupported image format: %s", name)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, Image{}, errors.Wrapf(ErrDecode, "invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	return img, Image{
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Size:   len(data),
	}, nil
}

// EncodePNG writes img to w as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return errors.Wrap(err, "failed to encode PNG")
	}
	return nil
}

// PNGBytes encodes img as PNG and returns the bytes.
func PNGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
