package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// OpenVINOProvider implements the ExecutionProvider interface.
//
// The enhancement model takes a different input size for every upload, so
// dynamic shapes stay enabled unless "disable_dynamic_shapes" is set.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOProvider struct {
	settings map[string]string
}

// NewOpenVINOProvider creates a new OpenVINO provider.
func NewOpenVINOProvider(settings map[string]string) *OpenVINOProvider {
	s := copySettings(settings)
	if _, ok := s["device_type"]; !ok {
		s["device_type"] = "CPU"
	}
	return &OpenVINOProvider{settings: s}
}

// Backend returns the backend of the OpenVINO provider.
func (p *OpenVINOProvider) Backend() ProviderBackend {
	return OpenVINOProviderBackend
}

// Settings returns the options passed to ONNX Runtime.
func (p *OpenVINOProvider) Settings() map[string]string {
	return copySettings(p.settings)
}

// Append registers OpenVINO on the session options.
func (p *OpenVINOProvider) Append(options *ort.SessionOptions) error {
	if err := options.AppendExecutionProviderOpenVINO(p.settings); err != nil {
		return errors.Wrap(err, "error enabling OpenVINO")
	}
	return nil
}
