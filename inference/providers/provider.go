// Package providers - ONNX Runtime execution providers.
package providers

import (
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers
type ProviderBackend string

// ExecutionProvider represents the contract that all execution providers must implement.
type ExecutionProvider interface {
	// Backend returns the provider name.
	Backend() ProviderBackend
	// Append registers the provider on the session options.
	Append(options *ort.SessionOptions) error
}

// Backends lists every supported provider.
var Backends = []ProviderBackend{
	CPUProviderBackend,
	CUDAProviderBackend,
	CoreMLProviderBackend,
	OpenVINOProviderBackend,
}

// ParseBackend maps a configured provider name to a ProviderBackend. An
// empty name selects the CPU provider.
func ParseBackend(name string) (ProviderBackend, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return CPUProviderBackend, nil
	}
	for _, b := range Backends {
		if string(b) == name {
			return b, nil
		}
	}
	return "", errors.Errorf("unsupported execution provider: %q", name)
}

// NewProvider creates a new provider based on the required backend.
//
// Arguments:
//   - backend: The backend to use.
//   - settings: Provider-specific key/value options, passed to ONNX Runtime as is.
//
// Returns:
//   - ExecutionProvider: The new provider.
//   - error: An error if the backend is unknown.
func NewProvider(backend ProviderBackend, settings map[string]string) (ExecutionProvider, error) {
	switch backend {
	case CPUProviderBackend, "":
		return NewCPUProvider(), nil
	case CUDAProviderBackend:
		return NewCUDAProvider(settings), nil
	case CoreMLProviderBackend:
		return NewCoreMLProvider(settings), nil
	case OpenVINOProviderBackend:
		return NewOpenVINOProvider(settings), nil
	default:
		return nil, errors.Errorf("unsupported execution provider: %q", backend)
	}
}

func copySettings(settings map[string]string) map[string]string {
	out := make(map[string]string, len(settings))
	for k, v := range settings {
		out[k] = v
	}
	return out
}
