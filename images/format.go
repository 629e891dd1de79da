package images

import "strings"

// ImageFormat represents supported image formats
type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
	FormatGIF  ImageFormat = "gif"
	FormatBMP  ImageFormat = "bmp"
	FormatWebP ImageFormat = "webp"
)

// Formats lists every format Decode accepts.
var Formats = []ImageFormat{FormatJPEG, FormatPNG, FormatGIF, FormatBMP, FormatWebP}

// ParseFormat maps a decoder name or file extension to an ImageFormat.
func ParseFormat(s string) (ImageFormat, bool) {
	s = strings.TrimPrefix(strings.ToLower(s), ".")
	if s == "jpg" {
		s = "jpeg"
	}
	for _, f := range Formats {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}
