package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/nvr-ai/text-enhancer/inference"
	"github.com/nvr-ai/text-enhancer/models/identity"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

type failingModel struct{}

func (failingModel) Name() string { return "failing" }

func (failingModel) Predict(context.Context, *tensor.Dense) (*tensor.Dense, error) {
	return nil, errors.New("device lost")
}

func (failingModel) Close() error { return nil }

func pngUpload(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 10, G: uint8(20 * x), B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartBody(t *testing.T, file []byte, mode string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if file != nil {
		part, err := mw.CreateFormFile("image", "scan.png")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	if mode != "" {
		require.NoError(t, mw.WriteField("mode", mode))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func newTestHandler(opts Options) (*Handler, *inference.ProfiledModel) {
	profiled := inference.NewProfiledModel(identity.New())
	if opts.Stats == nil {
		opts.Stats = profiled
	}
	return NewHandler(inference.NewEngine(profiled), opts), profiled
}

func post(t *testing.T, h http.Handler, file []byte, mode string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, file, mode)
	req := httptest.NewRequest(http.MethodPost, "/enhance", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestEnhanceModes(t *testing.T) {
	h, _ := newTestHandler(Options{})
	routes := h.Routes()

	tests := []struct {
		mode       string
		wantMode   string
		wantWidth  string
		wantHeight string
	}{
		{"", "increase_size", "16", "10"},
		{"Increase Size", "increase_size", "16", "10"},
		{"enhance_quality", "enhance_quality", "8", "5"},
	}
	for _, tt := range tests {
		t.Run(tt.wantMode+"/"+tt.mode, func(t *testing.T) {
			rec := post(t, routes, pngUpload(t, 8, 5), tt.mode)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
			assert.Equal(t, `attachment; filename="enhanced_text_image.png"`, rec.Header().Get("Content-Disposition"))
			assert.Equal(t, "8", rec.Header().Get("X-Input-Width"))
			assert.Equal(t, "5", rec.Header().Get("X-Input-Height"))
			assert.Equal(t, tt.wantWidth, rec.Header().Get("X-Output-Width"))
			assert.Equal(t, tt.wantHeight, rec.Header().Get("X-Output-Height"))
			assert.Equal(t, tt.wantMode, rec.Header().Get("X-Enhance-Mode"))

			out, err := png.Decode(rec.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWidth, strconv.Itoa(out.Bounds().Dx()))
			assert.Equal(t, tt.wantHeight, strconv.Itoa(out.Bounds().Dy()))
		})
	}
}

func TestEnhanceOutputIsGray(t *testing.T) {
	h, _ := newTestHandler(Options{DefaultMode: inference.ModeEnhanceQuality})
	rec := post(t, h.Routes(), pngUpload(t, 6, 4), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "enhance_quality", rec.Header().Get("X-Enhance-Mode"), "configured default mode")

	out, err := png.Decode(rec.Body)
	require.NoError(t, err)
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			r, g, b, _ := out.At(x, y).RGBA()
			assert.Equal(t, r, g)
			assert.Equal(t, g, b)
		}
	}
}

func TestEnhanceErrors(t *testing.T) {
	h, profiled := newTestHandler(Options{MaxUploadBytes: 4 << 10})
	routes := h.Routes()

	t.Run("missing upload", func(t *testing.T) {
		rec := post(t, routes, nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "please upload an image first")
	})

	t.Run("empty upload", func(t *testing.T) {
		rec := post(t, routes, []byte{}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "please upload an image first")
	})

	t.Run("not an image", func(t *testing.T) {
		rec := post(t, routes, []byte("plain text, not pixels"), "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "could not decode image")
	})

	t.Run("unknown mode", func(t *testing.T) {
		rec := post(t, routes, pngUpload(t, 4, 4), "sideways")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "unknown enhancement mode")
	})

	t.Run("too large", func(t *testing.T) {
		rec := post(t, routes, bytes.Repeat([]byte{0xAB}, 16<<10), "")
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/enhance", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		routes.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/enhance", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	assert.Zero(t, profiled.GetPerformanceMetrics().InferenceCount, "rejected requests never reach the model")
}

func TestEnhanceRejectsOversizedDimensions(t *testing.T) {
	var logs bytes.Buffer
	h, profiled := newTestHandler(Options{MaxPixels: 100 * 100, Logger: log.New(&logs, "", 0)})
	routes := h.Routes()

	var flat bytes.Buffer
	require.NoError(t, png.Encode(&flat, image.NewGray(image.Rect(0, 0, 400, 300))))
	require.Less(t, flat.Len(), 4<<10, "compressed size is far below the upload limit")

	rec := post(t, routes, flat.Bytes(), "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "image dimensions are too large")
	assert.Contains(t, logs.String(), "400x300")
	assert.Zero(t, profiled.GetPerformanceMetrics().InferenceCount)

	rec = post(t, routes, pngUpload(t, 100, 100), "enhance_quality")
	assert.Equal(t, http.StatusOK, rec.Code, "exactly at the limit")
}

func TestEnhanceInferenceFailure(t *testing.T) {
	var logs bytes.Buffer
	profiled := inference.NewProfiledModel(failingModel{})
	h := NewHandler(inference.NewEngine(profiled), Options{
		Stats:  profiled,
		Logger: log.New(&logs, "", 0),
	})

	rec := post(t, h.Routes(), pngUpload(t, 4, 4), "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "enhancement failed")
	assert.Contains(t, logs.String(), "device lost")

	metrics := profiled.GetPerformanceMetrics()
	assert.Equal(t, int64(1), metrics.InferenceCount, "no retry")
	assert.Equal(t, int64(1), metrics.ErrorCount)
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(Options{})
	routes := h.Routes()

	require.Equal(t, http.StatusOK, post(t, routes, pngUpload(t, 3, 3), "").Code)

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "identity", resp.Model)
	assert.Equal(t, int64(1), resp.Inferences)
}

func TestIndex(t *testing.T) {
	h, _ := newTestHandler(Options{})
	routes := h.Routes()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	page := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, page, "Increase Size")
	assert.Contains(t, page, "Enhance Quality")
	assert.Contains(t, page, `value="increase_size" checked`)
	assert.Contains(t, page, "enhanced_text_image.png")
	assert.Contains(t, page, "How it works")
	assert.Contains(t, page, "naturalWidth", "input size shown on file pick")

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMiddleware(t *testing.T) {
	var logs bytes.Buffer
	h, _ := newTestHandler(Options{Logger: log.New(&logs, "", 0)})
	routes := h.Routes()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/enhance", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Output-Width")
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36, "generated uuid")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "client-id-1")
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, req)
	assert.Equal(t, "client-id-1", rec.Header().Get(RequestIDHeader))
	assert.Contains(t, logs.String(), "request=client-id-1 GET /health 200")
}
