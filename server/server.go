// Package server - HTTP surface of the enhancer: upload page, enhance and
// health endpoints.
package server

import (
	"embed"
	"html/template"
	"io"
	"log"
	"net/http"

	"github.com/nvr-ai/text-enhancer/inference"
)

// DownloadName is the file name offered for the enhanced image.
const DownloadName = "enhanced_text_image.png"

// DefaultMaxUploadBytes bounds the multipart body when no limit is set.
const DefaultMaxUploadBytes = 10 << 20

// DefaultMaxPixels bounds the decoded upload when no limit is set.
const DefaultMaxPixels = 25_000_000

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// StatsProvider reports inference counters for the health endpoint.
type StatsProvider interface {
	GetPerformanceMetrics() inference.PerformanceMetrics
}

// Options configures a Handler.
type Options struct {
	// MaxUploadBytes bounds the request body of POST /enhance.
	MaxUploadBytes int64
	// MaxPixels bounds width*height of the decoded upload.
	MaxPixels int64
	// DefaultMode is used when the form carries no mode.
	DefaultMode inference.Mode
	// Stats feeds the health endpoint; nil reports the model name only.
	Stats StatsProvider
	// Logger receives access and error logs; nil discards them.
	Logger *log.Logger
}

// Handler serves the enhancer endpoints against one engine.
type Handler struct {
	engine         *inference.Engine
	stats          StatsProvider
	defaultMode    inference.Mode
	maxUploadBytes int64
	maxPixels      int64
	logger         *log.Logger
}

// NewHandler creates a handler bound to engine.
//
// Arguments:
//   - engine: The loaded pipeline, shared by every request.
//   - opts: Limits, defaults and logging.
//
// Returns:
//   - *Handler: The handler.
func NewHandler(engine *inference.Engine, opts Options) *Handler {
	h := &Handler{
		engine:         engine,
		stats:          opts.Stats,
		defaultMode:    opts.DefaultMode,
		maxUploadBytes: opts.MaxUploadBytes,
		maxPixels:      opts.MaxPixels,
		logger:         opts.Logger,
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = DefaultMaxUploadBytes
	}
	if h.maxPixels <= 0 {
		h.maxPixels = DefaultMaxPixels
	}
	if h.logger == nil {
		h.logger = log.New(io.Discard, "", 0)
	}
	return h
}

// Routes returns the mux with every endpoint and the middleware chain.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.Index)
	mux.HandleFunc("/enhance", h.Enhance)
	mux.HandleFunc("/health", h.Health)

	return requestID(accessLog(h.logger, corsMiddleware(mux)))
}
