package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvr-ai/text-enhancer/inference"
	"github.com/nvr-ai/text-enhancer/models/model"
	"github.com/nvr-ai/text-enhancer/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "ENHANCER_ADDR", "ENHANCER_MAX_UPLOAD_BYTES", "ENHANCER_MAX_PIXELS", "ENHANCER_MODEL_BACKEND",
	"ENHANCER_MODEL_PATH", "ENHANCER_PROVIDER", "ONNXRUNTIME_LIB", "ENHANCER_DEFAULT_MODE",
	"ENHANCER_S3_BUCKET", "ENHANCER_MODEL_FILE", "ENHANCER_S3_ENDPOINT",
	"AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, int64(DefaultMaxPixels), cfg.Server.MaxPixels)
	assert.Equal(t, model.ModelNameONNX, cfg.Model.Backend)
	assert.Equal(t, "cpu", cfg.Model.Provider)
	assert.Equal(t, inference.ModeIncreaseSize, cfg.Model.DefaultMode)
	assert.Equal(t, storage.DefaultRegion, cfg.S3.Region)

	assert.Error(t, cfg.Validate(), "onnx needs an artifact location")
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "enhancer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: "127.0.0.1:9000"
  shutdown_timeout: 3s
model:
  backend: sharpen
  strength: 0.8
  default_mode: enhance_quality
s3:
  bucket: models
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes, "unset keys keep defaults")
	assert.Equal(t, model.ModelNameSharpen, cfg.Model.Backend)
	assert.Equal(t, float32(0.8), cfg.Model.Strength)
	assert.Equal(t, inference.ModeEnhanceQuality, cfg.Model.DefaultMode)
	assert.Equal(t, "models", cfg.S3.Bucket)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7860")
	t.Setenv("ENHANCER_MODEL_FILE", "text_enhancer.onnx")
	t.Setenv("ENHANCER_S3_BUCKET", "weights")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIA")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_REGION", "eu-central-1")
	t.Setenv("ENHANCER_MAX_UPLOAD_BYTES", "2048")
	t.Setenv("ENHANCER_MAX_PIXELS", "1000000")
	t.Setenv("ENHANCER_DEFAULT_MODE", "Enhance Quality")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7860", cfg.Server.Addr)
	assert.Equal(t, int64(2048), cfg.Server.MaxUploadBytes)
	assert.Equal(t, int64(1000000), cfg.Server.MaxPixels)
	assert.Equal(t, "weights", cfg.S3.Bucket)
	assert.Equal(t, "text_enhancer.onnx", cfg.S3.Key)
	assert.Equal(t, "eu-central-1", cfg.S3.Region)
	assert.Equal(t, inference.ModeEnhanceQuality, cfg.Model.DefaultMode)
	require.NoError(t, cfg.Validate())

	t.Setenv("ENHANCER_ADDR", "0.0.0.0:9999")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.Server.Addr, "ENHANCER_ADDR wins over PORT")
}

func TestLoadEnvInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENHANCER_MAX_UPLOAD_BYTES", "lots")
	_, err := Load("")
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("ENHANCER_DEFAULT_MODE", "sideways")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"local path", func(c *Config) { c.Model.Path = "/models/text.onnx" }, true},
		{"s3 object", func(c *Config) { c.S3.Bucket, c.S3.Key = "b", "k" }, true},
		{"bucket without key", func(c *Config) { c.S3.Bucket = "b" }, false},
		{"identity needs nothing", func(c *Config) { c.Model.Backend = model.ModelNameIdentity }, true},
		{"unknown backend", func(c *Config) { c.Model.Backend = "keras" }, false},
		{"unknown provider", func(c *Config) {
			c.Model.Path = "/m.onnx"
			c.Model.Provider = "tpu"
		}, false},
		{"half credentials", func(c *Config) {
			c.S3.Bucket, c.S3.Key = "b", "k"
			c.S3.AccessKeyID = "AKIA"
		}, false},
		{"no addr", func(c *Config) {
			c.Model.Path = "/m.onnx"
			c.Server.Addr = ""
		}, false},
		{"zero upload limit", func(c *Config) {
			c.Model.Path = "/m.onnx"
			c.Server.MaxUploadBytes = 0
		}, false},
		{"zero pixel limit", func(c *Config) {
			c.Model.Path = "/m.onnx"
			c.Server.MaxPixels = 0
		}, false},
		{"negative iterations", func(c *Config) {
			c.Model.Path = "/m.onnx"
			c.Model.Iterations = -1
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestModelArgs(t *testing.T) {
	cfg := Default()
	cfg.Model.Provider = "cuda"
	cfg.Model.Inputs = []string{"in"}
	cfg.Model.ProviderOptions = map[string]string{"device_id": "1"}

	args := cfg.ModelArgs("/tmp/x/model.onnx")
	assert.Equal(t, model.ModelNameONNX, args.Name)
	assert.Equal(t, "/tmp/x/model.onnx", args.Path)
	assert.Equal(t, "cuda", args.Provider)
	assert.Equal(t, []string{"in"}, args.Inputs)
	assert.Equal(t, "1", args.ProviderOptions["device_id"])
}

func TestArtifactSource(t *testing.T) {
	ctx := context.Background()

	cfg := Default()
	cfg.Model.Backend = model.ModelNameSharpen
	cfg.Model.Path = "/ignored.onnx"
	src, err := cfg.ArtifactSource(ctx)
	require.NoError(t, err)
	assert.Nil(t, src, "sharpen loads no artifact")

	cfg = Default()
	cfg.Model.Path = "/models/text.onnx"
	src, err = cfg.ArtifactSource(ctx)
	require.NoError(t, err)
	assert.Equal(t, "file:///models/text.onnx", src.String())
}
