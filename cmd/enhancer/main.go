// Command enhancer serves the text image enhancer, or enhances one file when
// -input is given.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvr-ai/text-enhancer/config"
	"github.com/nvr-ai/text-enhancer/images"
	"github.com/nvr-ai/text-enhancer/inference"
	"github.com/nvr-ai/text-enhancer/models"
	"github.com/nvr-ai/text-enhancer/models/model"
	"github.com/nvr-ai/text-enhancer/server"
	"github.com/pkg/errors"
)

func main() {
	var (
		configPath string
		addr       string
		backend    string
		inputPath  string
		outputPath string
		modeName   string
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&addr, "addr", "", "Listen address, overrides the config")
	flag.StringVar(&backend, "backend", "", "Model backend (onnx, sharpen, identity), overrides the config")
	flag.StringVar(&inputPath, "input", "", "Enhance this image file and exit")
	flag.StringVar(&outputPath, "output", server.DownloadName, "Output PNG path for -input")
	flag.StringVar(&modeName, "mode", "", "Enhancement mode for -input (increase_size, enhance_quality)")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if backend != "" {
		cfg.Model.Backend = model.Name(backend)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	if err := run(cfg, logger, inputPath, outputPath, modeName); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(cfg *config.Config, logger *log.Logger, inputPath, outputPath, modeName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := loadModel(ctx, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "model unavailable")
	}
	defer m.Close()

	profiled := inference.NewProfiledModel(m)
	engine := inference.NewEngine(profiled,
		inference.WithIterations(cfg.Model.Iterations),
		inference.WithLogger(logger),
	)

	if inputPath != "" {
		return enhanceFile(ctx, engine, cfg, inputPath, outputPath, modeName)
	}

	handler := server.NewHandler(engine, server.Options{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		MaxPixels:      cfg.Server.MaxPixels,
		DefaultMode:    cfg.Model.DefaultMode,
		Stats:          profiled,
		Logger:         logger,
	})
	return serve(ctx, cfg.Server, handler.Routes(), logger)
}

// loadModel acquires the artifact, if the backend has one, and loads it.
// A downloaded artifact is removed once the session is built.
func loadModel(ctx context.Context, cfg *config.Config, logger *log.Logger) (model.Model, error) {
	src, err := cfg.ArtifactSource(ctx)
	if err != nil {
		return nil, err
	}
	if src == nil {
		logger.Printf("Loading %s model", cfg.Model.Backend)
		return models.NewModel(cfg.ModelArgs(""))
	}

	logger.Printf("Loading %s model from %s", cfg.Model.Backend, src)
	start := time.Now()

	var m model.Model
	err = src.Acquire(ctx, func(path string) error {
		loaded, err := models.NewModel(cfg.ModelArgs(path))
		if err != nil {
			return err
		}
		m = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Printf("Model loaded in %v", time.Since(start))
	return m, nil
}

func enhanceFile(ctx context.Context, engine *inference.Engine, cfg *config.Config, inputPath, outputPath, modeName string) error {
	mode := cfg.Model.DefaultMode
	if modeName != "" {
		parsed, err := inference.ParseMode(modeName)
		if err != nil {
			return err
		}
		mode = parsed
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return errors.Wrap(err, "failed to read input")
	}
	img, info, err := images.DecodeLimited(data, cfg.Server.MaxPixels)
	if err != nil {
		return errors.Wrapf(err, "failed to decode %s", inputPath)
	}

	out, metrics, err := engine.EnhanceWithMetrics(ctx, img, mode)
	if err != nil {
		return err
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return errors.Wrap(err, "failed to create output")
	}
	if err := images.EncodePNG(f, out); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "failed to write output")
	}

	log.Printf("Enhanced %s (%s, %s) -> %s (%dx%d) in %v",
		inputPath, info.Format, info, outputPath, metrics.OutputSize.X, metrics.OutputSize.Y, metrics.TotalDuration)
	return nil
}

func serve(ctx context.Context, cfg config.ServerConfig, handler http.Handler, logger *log.Logger) error {
	srv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     handler,
		ReadTimeout: cfg.ReadTimeout,
		ErrorLog:    logger,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Printf("Server starting on %s", cfg.Addr)
		logger.Println("Endpoints:")
		logger.Println("  GET  /        - Upload page")
		logger.Println("  POST /enhance - Enhance an uploaded image")
		logger.Println("  GET  /health  - Health check")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	logger.Printf("Shutting down (timeout %v)", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown failed")
	}
	return nil
}
