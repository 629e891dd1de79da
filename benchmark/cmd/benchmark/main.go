package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nvr-ai/text-enhancer/benchmark"
	"github.com/nvr-ai/text-enhancer/config"
	"github.com/nvr-ai/text-enhancer/inference"
	"github.com/nvr-ai/text-enhancer/models"
	"github.com/nvr-ai/text-enhancer/models/model"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to the enhancer YAML config")
		backend     = flag.String("backend", "", "Model backend, overrides the config")
		outputDir   = flag.String("output", "./benchmark_results", "Output directory for results")
		testImages  = flag.String("images", "", "Test image file or directory; a synthetic page is used when empty")
		resolutions = flag.String("resolutions", "", "Comma separated WxH list, e.g. 640x480,1280x960")
		iterations  = flag.Int("iterations", 10, "Timed runs per scenario")
		timeout     = flag.Duration("timeout", 30*time.Minute, "Benchmark timeout duration")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *backend != "" {
		cfg.Model.Backend = model.Name(*backend)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	res, err := parseResolutions(*resolutions)
	if err != nil {
		log.Fatalf("Invalid -resolutions: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	m, err := load(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	defer m.Close()

	engine := inference.NewEngine(m, inference.WithIterations(cfg.Model.Iterations))
	suite := benchmark.NewSuite(engine, *outputDir, log.New(os.Stderr, "", log.LstdFlags))
	if *testImages != "" {
		if err := suite.LoadTestImages(*testImages); err != nil {
			log.Fatalf("Failed to load test images: %v", err)
		}
	}
	for _, scenario := range benchmark.ModeScenarios(res, *iterations) {
		suite.AddScenario(scenario)
	}

	log.Printf("Running benchmarks with %s model", m.Name())
	if err := suite.RunAllScenarios(ctx); err != nil {
		log.Fatalf("Benchmark failed: %v", err)
	}
}

func load(ctx context.Context, cfg *config.Config) (model.Model, error) {
	src, err := cfg.ArtifactSource(ctx)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return models.NewModel(cfg.ModelArgs(""))
	}

	var m model.Model
	err = src.Acquire(ctx, func(path string) error {
		m, err = models.NewModel(cfg.ModelArgs(path))
		return err
	})
	return m, err
}

func parseResolutions(list string) ([]benchmark.Resolution, error) {
	if list == "" {
		return benchmark.CommonResolutions, nil
	}

	var out []benchmark.Resolution
	for _, item := range strings.Split(list, ",") {
		w, h, ok := strings.Cut(strings.TrimSpace(item), "x")
		if !ok {
			return nil, strconv.ErrSyntax
		}
		width, err := strconv.Atoi(w)
		if err != nil {
			return nil, err
		}
		height, err := strconv.Atoi(h)
		if err != nil {
			return nil, err
		}
		out = append(out, benchmark.NewResolution(width, height))
	}
	return out, nil
}
