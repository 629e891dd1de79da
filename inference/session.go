package inference

import (
	"context"
	"sync"
	"time"

	"github.com/nvr-ai/text-enhancer/models/model"
	"gorgonia.org/tensor"
)

// ProfiledModel wraps a model with inference counters.
//
// It implements model.Model, so it can be handed to NewEngine in place of
// the model it wraps.
type ProfiledModel struct {
	model.Model

	mu             sync.RWMutex
	inferenceCount int64
	errorCount     int64
	totalTime      time.Duration
	lastTime       time.Duration
}

// NewProfiledModel wraps m.
func NewProfiledModel(m model.Model) *ProfiledModel {
	return &ProfiledModel{Model: m}
}

// Predict runs the wrapped model and records its latency.
func (p *ProfiledModel) Predict(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	start := time.Now()
	out, err := p.Model.Predict(ctx, input)
	duration := time.Since(start)

	p.mu.Lock()
	p.inferenceCount++
	p.totalTime += duration
	p.lastTime = duration
	if err != nil {
		p.errorCount++
	}
	p.mu.Unlock()

	return out, err
}

// PerformanceMetrics is a snapshot of the counters.
type PerformanceMetrics struct {
	Model          string  `json:"model"`
	InferenceCount int64   `json:"inferences"`
	ErrorCount     int64   `json:"errors"`
	TotalTimeMs    float64 `json:"total_time_ms"`
	AverageTimeMs  float64 `json:"average_ms"`
	LastTimeMs     float64 `json:"last_ms"`
}

// GetPerformanceMetrics returns the current counters.
func (p *ProfiledModel) GetPerformanceMetrics() PerformanceMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	metrics := PerformanceMetrics{
		Model:          p.Model.Name(),
		InferenceCount: p.inferenceCount,
		ErrorCount:     p.errorCount,
		TotalTimeMs:    milliseconds(p.totalTime),
		LastTimeMs:     milliseconds(p.lastTime),
	}
	if p.inferenceCount > 0 {
		metrics.AverageTimeMs = metrics.TotalTimeMs / float64(p.inferenceCount)
	}
	return metrics
}

// ResetMetrics clears all performance counters
func (p *ProfiledModel) ResetMetrics() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inferenceCount = 0
	p.errorCount = 0
	p.totalTime = 0
	p.lastTime = 0
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
