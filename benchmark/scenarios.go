package benchmark

import (
	"fmt"

	"github.com/nvr-ai/text-enhancer/inference"
)

// Resolution represents image dimensions for benchmarking
type Resolution struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Name   string `json:"name"`
}

// NewResolution names a width and height as "WxH".
func NewResolution(width, height int) Resolution {
	return Resolution{Width: width, Height: height, Name: fmt.Sprintf("%dx%d", width, height)}
}

// CommonResolutions are typical sizes of phone photos and scans of text.
var CommonResolutions = []Resolution{
	NewResolution(320, 240),
	NewResolution(640, 480),
	NewResolution(1024, 768),
	NewResolution(1280, 960),
}

// Scenario defines a specific test configuration.
type Scenario struct {
	Name       string         `json:"name"`
	Mode       inference.Mode `json:"mode"`
	Resolution Resolution     `json:"resolution"`
	Iterations int            `json:"iterations"`
	WarmupRuns int            `json:"warmup_runs"`
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Mode:       inference.DefaultMode,
			Resolution: CommonResolutions[0],
			Iterations: 10,
			WarmupRuns: 1,
		},
	}
}

// WithMode sets the enhancement mode
func (sb *ScenarioBuilder) WithMode(mode inference.Mode) *ScenarioBuilder {
	sb.scenario.Mode = mode
	return sb
}

// WithResolution sets the image resolution
func (sb *ScenarioBuilder) WithResolution(width, height int) *ScenarioBuilder {
	sb.scenario.Resolution = NewResolution(width, height)
	return sb
}

// WithIterations sets the number of test iterations
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of warmup runs
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured test scenario
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ModeScenarios crosses every mode with the given resolutions.
//
// Arguments:
//   - resolutions: The input sizes to benchmark.
//   - iterations: Timed runs per scenario.
//
// Returns:
//   - []Scenario: One scenario per mode and resolution, modes outermost.
func ModeScenarios(resolutions []Resolution, iterations int) []Scenario {
	scenarios := make([]Scenario, 0, len(inference.Modes)*len(resolutions))
	for _, mode := range inference.Modes {
		for _, res := range resolutions {
			scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("%s_%s", mode, res.Name)).
				WithMode(mode).
				WithResolution(res.Width, res.Height).
				WithIterations(iterations).
				Build())
		}
	}
	return scenarios
}
