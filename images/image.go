// Package images - decoding, encoding and resampling of uploaded images.
package images

import "fmt"

// Image describes a decoded upload.
type Image struct {
	// The format reported by the decoder.
	Format ImageFormat `json:"format" yaml:"format"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
	// The size of the encoded upload in bytes.
	Size int `json:"size" yaml:"size"`
}

// String returns the "WxH" form shown in the UI.
func (i Image) String() string {
	return fmt.Sprintf("%dx%d", i.Width, i.Height)
}
