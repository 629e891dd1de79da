package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CUDAProviderBackend uses NVIDIA CUDA for inference optimization.
	CUDAProviderBackend ProviderBackend = "cuda"
)

// CUDAProvider implements the ExecutionProvider interface.
//
// Settings use the ONNX Runtime option names, for example "device_id" or
// "gpu_mem_limit".
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAProvider struct {
	settings map[string]string
}

// NewCUDAProvider creates a new CUDA provider.
func NewCUDAProvider(settings map[string]string) *CUDAProvider {
	return &CUDAProvider{settings: copySettings(settings)}
}

// Backend returns the backend of the CUDA provider.
func (p *CUDAProvider) Backend() ProviderBackend {
	return CUDAProviderBackend
}

// Append registers CUDA on the session options.
func (p *CUDAProvider) Append(options *ort.SessionOptions) error {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return errors.Wrap(err, "error creating CUDA provider options")
	}
	defer cuda.Destroy()

	if len(p.settings) > 0 {
		if err := cuda.Update(p.settings); err != nil {
			return errors.Wrap(err, "error updating CUDA provider options")
		}
	}
	if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
		return errors.Wrap(err, "error enabling CUDA")
	}
	return nil
}
