package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/nvr-ai/text-enhancer/images"
	"github.com/nvr-ai/text-enhancer/inference"
	"github.com/pkg/errors"
)

// Error messages shown to the user.
const (
	msgNoUpload       = "please upload an image first"
	msgDecode         = "could not decode image, supported formats are png, jpg and jpeg"
	msgTooLarge       = "image is too large"
	msgTooManyPixels  = "image dimensions are too large"
	msgBadForm        = "failed to parse form"
	msgEnhanceFailed  = "enhancement failed"
	msgMethodNotAllow = "method not allowed"
)

type indexData struct {
	Modes       []inference.Mode
	DefaultMode inference.Mode
	MaxUploadMB int64
	Download    string
}

// Index serves the upload page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		respondError(w, msgMethodNotAllow, http.StatusMethodNotAllowed)
		return
	}

	var buf bytes.Buffer
	err := indexTemplate.Execute(&buf, indexData{
		Modes:       inference.Modes,
		DefaultMode: h.defaultMode,
		MaxUploadMB: h.maxUploadBytes >> 20,
		Download:    DownloadName,
	})
	if err != nil {
		h.logger.Printf("[server] request=%s template error: %v", RequestID(r.Context()), err)
		respondError(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// Enhance handles POST /enhance.
//
// The multipart form carries the upload in "image" and an optional "mode"
// ("increase_size" or "enhance_quality", UI labels accepted). The response
// is the enhanced PNG with its dimensions in X-Input-* and X-Output-*
// headers.
func (h *Handler) Enhance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, msgMethodNotAllow, http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		if isTooLarge(err) {
			respondError(w, msgTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, msgBadForm, http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, msgNoUpload, http.StatusBadRequest)
		return
	}
	defer file.Close()

	mode := h.defaultMode
	if value := r.FormValue("mode"); value != "" {
		mode, err = inference.ParseMode(value)
		if err != nil {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, msgBadForm, http.StatusBadRequest)
		return
	}

	img, info, err := images.DecodeLimited(data, h.maxPixels)
	if errors.Is(err, images.ErrEmptyImage) {
		respondError(w, msgNoUpload, http.StatusBadRequest)
		return
	}
	if errors.Is(err, images.ErrTooManyPixels) {
		h.logger.Printf("[server] request=%s rejected %q: %v", RequestID(r.Context()), header.Filename, err)
		respondError(w, msgTooManyPixels, http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		h.logger.Printf("[server] request=%s decode %q failed: %v", RequestID(r.Context()), header.Filename, err)
		respondError(w, msgDecode, http.StatusBadRequest)
		return
	}

	out, err := h.engine.Enhance(r.Context(), img, mode)
	if err != nil {
		h.logger.Printf("[server] request=%s enhance %s (%s, %s) failed: %v",
			RequestID(r.Context()), header.Filename, info.Format, info, err)
		respondError(w, msgEnhanceFailed, http.StatusInternalServerError)
		return
	}

	png, err := images.PNGBytes(out)
	if err != nil {
		h.logger.Printf("[server] request=%s encode failed: %v", RequestID(r.Context()), err)
		respondError(w, msgEnhanceFailed, http.StatusInternalServerError)
		return
	}

	size := out.Bounds().Size()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="`+DownloadName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("X-Input-Width", strconv.Itoa(info.Width))
	w.Header().Set("X-Input-Height", strconv.Itoa(info.Height))
	w.Header().Set("X-Output-Width", strconv.Itoa(size.X))
	w.Header().Set("X-Output-Height", strconv.Itoa(size.Y))
	w.Header().Set("X-Enhance-Mode", mode.String())
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string  `json:"status"`
	Model      string  `json:"model"`
	Inferences int64   `json:"inferences"`
	Errors     int64   `json:"errors"`
	AverageMs  float64 `json:"average_ms"`
}

// Health reports liveness and inference counters.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		respondError(w, msgMethodNotAllow, http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{Status: "ok", Model: h.engine.Model().Name()}
	if h.stats != nil {
		metrics := h.stats.GetPerformanceMetrics()
		resp.Model = metrics.Model
		resp.Inferences = metrics.InferenceCount
		resp.Errors = metrics.ErrorCount
		resp.AverageMs = metrics.AverageTimeMs
	}
	respondJSON(w, resp, http.StatusOK)
}

func isTooLarge(err error) bool {
	var maxBytes *http.MaxBytesError
	return errors.As(err, &maxBytes) || errors.Is(err, multipart.ErrMessageTooLarge)
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
