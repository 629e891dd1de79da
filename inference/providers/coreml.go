package providers

import (
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
)

// CoreMLProvider implements the ExecutionProvider interface.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLProvider struct {
	flags uint32
}

// NewCoreMLProvider creates a new CoreML provider. The "flags" setting is
// passed to ONNX Runtime as the COREML_FLAG bit set.
func NewCoreMLProvider(settings map[string]string) *CoreMLProvider {
	var flags uint32
	if v, err := strconv.ParseUint(settings["flags"], 10, 32); err == nil {
		flags = uint32(v)
	}
	return &CoreMLProvider{flags: flags}
}

// Backend returns the backend of the CoreML provider.
func (p *CoreMLProvider) Backend() ProviderBackend {
	return CoreMLProviderBackend
}

// Append registers CoreML on the session options.
func (p *CoreMLProvider) Append(options *ort.SessionOptions) error {
	if err := options.AppendExecutionProviderCoreML(p.flags); err != nil {
		return errors.Wrap(err, "error enabling CoreML")
	}
	return nil
}
