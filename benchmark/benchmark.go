package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nfnt/resize"
	"github.com/nvr-ai/text-enhancer/images"
	"github.com/nvr-ai/text-enhancer/inference"
	"github.com/pkg/errors"
)

// Suite manages and executes benchmark scenarios against one engine.
type Suite struct {
	engine    *inference.Engine
	outputDir string
	logger    *log.Logger

	mu         sync.RWMutex
	scenarios  []Scenario
	testImages []image.Image
	results    []PerformanceMetrics
}

// NewSuite creates a new benchmark suite.
func NewSuite(engine *inference.Engine, outputDir string, logger *log.Logger) *Suite {
	if logger == nil {
		logger = log.Default()
	}
	return &Suite{
		engine:    engine,
		outputDir: outputDir,
		logger:    logger,
	}
}

// AddScenario adds a test scenario to the benchmark suite
func (s *Suite) AddScenario(scenario Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios = append(s.scenarios, scenario)
}

// LoadTestImages loads test images from a directory or a single file.
//
// Files that are not decodable images are skipped. Without any loaded
// image the suite benchmarks a synthetic page.
func (s *Suite) LoadTestImages(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "failed to stat image path")
	}

	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return errors.Wrap(err, "failed to read directory")
		}
		files = files[:0]
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if _, ok := images.ParseFormat(filepath.Ext(entry.Name())); ok {
				files = append(files, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(files)
	}

	loaded := make([]image.Image, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return errors.Wrap(err, "failed to read image file")
		}
		img, _, err := images.Decode(data)
		if err != nil {
			s.logger.Printf("[benchmark] skipping %s: %v", file, err)
			continue
		}
		loaded = append(loaded, img)
	}
	if len(loaded) == 0 {
		return errors.Errorf("no valid images found in %s", path)
	}

	s.mu.Lock()
	s.testImages = loaded
	s.mu.Unlock()
	return nil
}

// SyntheticPage draws dark horizontal strokes on a light background, a
// stand-in for a photographed line of text.
func SyntheticPage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 235, G: 232, B: 225, A: 255}}, image.Point{}, draw.Src)

	ink := &image.Uniform{C: color.RGBA{R: 30, G: 30, B: 40, A: 255}}
	lineHeight := max(height/12, 4)
	for y := lineHeight; y+lineHeight/3 < height; y += lineHeight {
		for x := width / 20; x < width-width/20; x += max(width/40, 3) {
			word := image.Rect(x, y, min(x+max(width/60, 2), width), y+max(lineHeight/3, 1))
			draw.Draw(img, word, ink, image.Point{}, draw.Src)
		}
	}
	return img
}

// inputFor returns the i-th test image scaled to the scenario resolution.
func (s *Suite) inputFor(i int, res Resolution) image.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.testImages) == 0 {
		return SyntheticPage(res.Width, res.Height)
	}
	img := s.testImages[i%len(s.testImages)]
	if img.Bounds().Dx() == res.Width && img.Bounds().Dy() == res.Height {
		return img
	}
	return resize.Resize(uint(res.Width), uint(res.Height), img, resize.Lanczos3)
}

// RunScenario executes a single benchmark scenario.
//
// Arguments:
//   - ctx: Cancels the run between iterations.
//   - scenario: The scenario to run.
//
// Returns:
//   - *PerformanceMetrics: Averaged stage timings and memory statistics.
//   - error: An error if the scenario is invalid or ctx is cancelled.
func (s *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if scenario.Iterations <= 0 {
		return nil, errors.Errorf("scenario %s: iterations must be > 0", scenario.Name)
	}
	if scenario.Resolution.Width <= 0 || scenario.Resolution.Height <= 0 {
		return nil, errors.Errorf("scenario %s: invalid resolution %s", scenario.Name, scenario.Resolution.Name)
	}

	inputs := make([]image.Image, scenario.Iterations)
	for i := range inputs {
		inputs[i] = s.inputFor(i, scenario.Resolution)
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := s.engine.Enhance(ctx, inputs[i%len(inputs)], scenario.Mode); err != nil {
			s.logger.Printf("[benchmark] warmup %s failed: %v", scenario.Name, err)
		}
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	metrics := &PerformanceMetrics{Scenario: scenario, Timestamp: time.Now()}
	failures := 0
	start := time.Now()

	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, m, err := s.engine.EnhanceWithMetrics(ctx, input, scenario.Mode)
		if err != nil {
			failures++
			continue
		}
		metrics.OutputSize = NewResolution(m.OutputSize.X, m.OutputSize.Y)
		metrics.ImageResizeDuration += m.ResizeDuration
		metrics.PreprocessDuration += m.PreprocessDuration
		metrics.InferenceDuration += m.InferenceDuration
		metrics.PostProcessDuration += m.PostProcessDuration
	}

	metrics.TotalDuration = time.Since(start)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	if ok := scenario.Iterations - failures; ok > 0 {
		n := time.Duration(ok)
		metrics.ImageResizeDuration /= n
		metrics.PreprocessDuration /= n
		metrics.InferenceDuration /= n
		metrics.PostProcessDuration /= n
	}
	metrics.ImagesPerSecond = float64(scenario.Iterations-failures) / metrics.TotalDuration.Seconds()
	metrics.ErrorRate = float64(failures) / float64(scenario.Iterations)

	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
		HeapSysBytes:    endMem.HeapSys,
	}
	metrics.CPUStats = CPUMetrics{
		NumCPU:     runtime.NumCPU(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
	}

	return metrics, nil
}

// RunAllScenarios executes all configured benchmark scenarios and saves
// the results. A failing scenario is logged and skipped.
func (s *Suite) RunAllScenarios(ctx context.Context) error {
	s.mu.RLock()
	scenarios := append([]Scenario(nil), s.scenarios...)
	s.mu.RUnlock()

	for _, scenario := range scenarios {
		metrics, err := s.RunScenario(ctx, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			s.logger.Printf("[benchmark] scenario %s failed: %v", scenario.Name, err)
			continue
		}

		s.mu.Lock()
		s.results = append(s.results, *metrics)
		s.mu.Unlock()

		s.logger.Printf("[benchmark] scenario %s completed: %.2f images/s, inference %v",
			scenario.Name, metrics.ImagesPerSecond, metrics.InferenceDuration)
	}

	return s.SaveResults()
}

// SaveResults persists benchmark results as JSON and a CSV summary.
func (s *Suite) SaveResults() error {
	results := s.GetResults()

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(s.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(s.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := os.WriteFile(summaryFile, []byte(SummaryCSV(results)), 0o644); err != nil {
		return errors.Wrap(err, "failed to save summary CSV")
	}

	s.logger.Printf("[benchmark] results saved to %s and %s", resultsFile, summaryFile)
	return nil
}

// SummaryCSV renders one line per result.
func SummaryCSV(results []PerformanceMetrics) string {
	var b strings.Builder
	b.WriteString("Scenario,Mode,Resolution,Output,Images_Per_Second,Total_Duration_ms,Inference_ms,Alloc_MB,Error_Rate\n")
	for _, result := range results {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%.2f,%.2f,%.2f,%.2f,%.4f\n",
			result.Scenario.Name,
			result.Scenario.Mode,
			result.Scenario.Resolution.Name,
			result.OutputSize.Name,
			result.ImagesPerSecond,
			float64(result.TotalDuration.Nanoseconds())/1e6,
			float64(result.InferenceDuration.Nanoseconds())/1e6,
			float64(result.MemoryStats.TotalAllocBytes)/(1024*1024),
			result.ErrorRate,
		)
	}
	return b.String()
}

// GetResults returns all benchmark results
func (s *Suite) GetResults() []PerformanceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]PerformanceMetrics, len(s.results))
	copy(results, s.results)
	return results
}
