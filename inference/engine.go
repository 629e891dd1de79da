package inference

import (
	"context"
	"image"
	"io"
	"log"
	"time"

	"github.com/nvr-ai/text-enhancer/images"
	"github.com/nvr-ai/text-enhancer/models/model"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Metrics captures the size and stage timings of one enhancement.
type Metrics struct {
	Mode                Mode          `json:"mode"`
	InputSize           image.Point   `json:"input_size"`
	ModelInputSize      image.Point   `json:"model_input_size"`
	OutputSize          image.Point   `json:"output_size"`
	ResizeDuration      time.Duration `json:"resize_duration"`
	PreprocessDuration  time.Duration `json:"preprocess_duration"`
	InferenceDuration   time.Duration `json:"inference_duration"`
	PostProcessDuration time.Duration `json:"post_process_duration"`
	TotalDuration       time.Duration `json:"total_duration"`
}

// Engine runs the enhancement pipeline against one loaded model.
type Engine struct {
	model      model.Model
	iterations int
	logger     *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithIterations sets how many doublings ModeIncreaseSize applies.
func WithIterations(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.iterations = n
		}
	}
}

// WithLogger sets the logger used for per-request timings.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine bound to m.
//
// A nil model is a programming error and panics.
func NewEngine(m model.Model, opts ...Option) *Engine {
	if m == nil {
		panic("inference: NewEngine called with a nil model")
	}

	e := &Engine{
		model:      m,
		iterations: images.DefaultIterations,
		logger:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the model the engine runs.
func (e *Engine) Model() model.Model {
	return e.model
}

// Enhance runs the pipeline on img.
//
// Arguments:
//   - ctx: The context for the prediction.
//   - img: The decoded upload. It is not modified.
//   - mode: Whether to double the image before inference.
//
// Returns:
//   - image.Image: The enhanced RGB image.
//   - error: Inference or shape errors; there is no retry.
func (e *Engine) Enhance(ctx context.Context, img image.Image, mode Mode) (image.Image, error) {
	out, _, err := e.EnhanceWithMetrics(ctx, img, mode)
	return out, err
}

// EnhanceWithMetrics is Enhance, also reporting sizes and stage timings.
func (e *Engine) EnhanceWithMetrics(ctx context.Context, img image.Image, mode Mode) (image.Image, Metrics, error) {
	start := time.Now()
	metrics := Metrics{Mode: mode, InputSize: img.Bounds().Size()}

	input := img
	if mode.ResizesInput() {
		input = images.IncreaseSize(img, e.iterations)
	}
	metrics.ModelInputSize = input.Bounds().Size()
	metrics.ResizeDuration = time.Since(start)

	stage := time.Now()
	t := Preprocess(input)
	metrics.PreprocessDuration = time.Since(stage)

	stage = time.Now()
	prediction, err := Predict(ctx, e.model, t)
	metrics.InferenceDuration = time.Since(stage)
	if err != nil {
		return nil, metrics, err
	}

	stage = time.Now()
	out, err := Postprocess(prediction)
	metrics.PostProcessDuration = time.Since(stage)
	if err != nil {
		return nil, metrics, errors.Wrap(err, "postprocessing failed")
	}

	metrics.OutputSize = out.Bounds().Size()
	metrics.TotalDuration = time.Since(start)

	e.logger.Printf("[engine] mode=%s model=%s in=%v model_in=%v out=%v resize=%v infer=%v total=%v",
		mode, e.model.Name(), metrics.InputSize, metrics.ModelInputSize, metrics.OutputSize,
		metrics.ResizeDuration, metrics.InferenceDuration, metrics.TotalDuration)

	return out, metrics, nil
}

// Predict batches a (H, W, 1) tensor, runs the model once and checks that
// the result is a (1, H', W', 1) tensor.
func Predict(ctx context.Context, m model.Model, t *tensor.Dense) (*tensor.Dense, error) {
	batch, err := Batch(t)
	if err != nil {
		return nil, err
	}

	out, err := m.Predict(ctx, batch)
	if err != nil {
		return nil, errors.Wrapf(err, "%s prediction failed", m.Name())
	}
	if _, _, err := model.BatchDims(out); err != nil {
		return nil, errors.Wrapf(err, "%s returned an invalid tensor", m.Name())
	}
	return out, nil
}
