package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	src := getTestImage(40, 30)

	var pngBuf, jpegBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, src))
	require.NoError(t, jpeg.Encode(&jpegBuf, src, &jpeg.Options{Quality: 90}))

	tests := []struct {
		name   string
		data   []byte
		format ImageFormat
	}{
		{name: "png", data: pngBuf.Bytes(), format: FormatPNG},
		{name: "jpeg", data: jpegBuf.Bytes(), format: FormatJPEG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, meta, err := Decode(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.format, meta.Format)
			assert.Equal(t, 40, meta.Width)
			assert.Equal(t, 30, meta.Height)
			assert.Equal(t, len(tt.data), meta.Size)
			assert.Equal(t, "40x30", meta.String())
			assert.Equal(t, image.Pt(40, 30), img.Bounds().Size())
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	_, _, err := Decode(nil)
	assert.True(t, errors.Is(err, ErrEmptyImage))

	_, _, err = Decode([]byte("definitely not an image"))
	assert.True(t, errors.Is(err, ErrDecode), "got %v", err)

	// Truncated PNG.
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, getTestImage(8, 8)))
	_, _, err = Decode(buf.Bytes()[:20])
	assert.True(t, errors.Is(err, ErrDecode), "got %v", err)
}

func TestDecodeLimited(t *testing.T) {
	// A flat image compresses to a few kilobytes whatever its size.
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4000, 3000))))
	require.Less(t, buf.Len(), 64<<10)

	_, _, err := DecodeLimited(buf.Bytes(), 4000*3000-1)
	assert.True(t, errors.Is(err, ErrTooManyPixels), "got %v", err)
	assert.False(t, errors.Is(err, ErrDecode))

	_, meta, err := DecodeLimited(buf.Bytes(), 4000*3000)
	require.NoError(t, err)
	assert.Equal(t, "4000x3000", meta.String())

	_, _, err = DecodeLimited(buf.Bytes(), 0)
	assert.NoError(t, err, "no limit")

	_, _, err = DecodeLimited([]byte("not an image"), 100)
	assert.True(t, errors.Is(err, ErrDecode), "got %v", err)
}

func TestPNGBytesRoundTrip(t *testing.T) {
	src := getTestImage(12, 7)

	data, err := PNGBytes(src)
	require.NoError(t, err)

	decoded, meta, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, meta.Format)
	assert.Equal(t, ComputeChecksum(src), ComputeChecksum(decoded))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]ImageFormat{
		"jpg": FormatJPEG, ".JPEG": FormatJPEG, "png": FormatPNG, "webp": FormatWebP, ".bmp": FormatBMP,
	} {
		got, ok := ParseFormat(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseFormat("tiff")
	assert.False(t, ok)
}

func TestComputeChecksum(t *testing.T) {
	a := getTestImage(5, 5)
	b := getTestImage(5, 5)
	assert.Equal(t, ComputeChecksum(a), ComputeChecksum(b))

	b.Pix[0]++
	assert.NotEqual(t, ComputeChecksum(a), ComputeChecksum(b))

	assert.Equal(t, "empty", ComputeChecksum(image.NewRGBA(image.Rect(0, 0, 0, 0))))
}
