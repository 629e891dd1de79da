// Package inference - The image enhancement pipeline.
package inference

import (
	"strings"

	"github.com/pkg/errors"
)

// Mode selects how an upload is enhanced.
type Mode int

const (
	// ModeIncreaseSize doubles the image with Lanczos resampling before inference.
	ModeIncreaseSize Mode = iota
	// ModeEnhanceQuality keeps the upload size and relies on the model alone.
	ModeEnhanceQuality
)

// DefaultMode is the mode selected when the client sends none.
const DefaultMode = ModeIncreaseSize

// Modes lists both modes in UI order.
var Modes = []Mode{ModeIncreaseSize, ModeEnhanceQuality}

// String returns the form value of the mode.
func (m Mode) String() string {
	switch m {
	case ModeIncreaseSize:
		return "increase_size"
	case ModeEnhanceQuality:
		return "enhance_quality"
	default:
		return "unknown"
	}
}

// Label returns the UI label of the mode.
func (m Mode) Label() string {
	switch m {
	case ModeIncreaseSize:
		return "Increase Size"
	case ModeEnhanceQuality:
		return "Enhance Quality"
	default:
		return "Unknown"
	}
}

// ResizesInput reports whether the mode upsamples before inference.
func (m Mode) ResizesInput() bool {
	return m == ModeIncreaseSize
}

// ParseMode maps a form value or UI label to a Mode. The empty string
// selects DefaultMode.
func ParseMode(s string) (Mode, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)

	switch normalized {
	case "":
		return DefaultMode, nil
	case "increase_size":
		return ModeIncreaseSize, nil
	case "enhance_quality":
		return ModeEnhanceQuality, nil
	default:
		return 0, errors.Errorf("unknown enhancement mode: %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
