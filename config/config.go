// Package config - Startup configuration of the enhancer service.
package config

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/nvr-ai/text-enhancer/images"
	"github.com/nvr-ai/text-enhancer/inference"
	"github.com/nvr-ai/text-enhancer/inference/providers"
	"github.com/nvr-ai/text-enhancer/models"
	"github.com/nvr-ai/text-enhancer/models/model"
	"github.com/nvr-ai/text-enhancer/storage"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds everything the service reads at startup.
type Config struct {
	Server ServerConfig     `json:"server" yaml:"server"`
	Model  ModelConfig      `json:"model" yaml:"model"`
	S3     storage.S3Config `json:"s3" yaml:"s3"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `json:"addr" yaml:"addr"`
	MaxUploadBytes  int64         `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	MaxPixels       int64         `json:"max_pixels" yaml:"max_pixels"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ModelConfig selects and configures the model backend.
type ModelConfig struct {
	Backend         model.Name        `json:"backend" yaml:"backend"`
	Path            string            `json:"path" yaml:"path"`
	Inputs          []string          `json:"inputs" yaml:"inputs"`
	Outputs         []string          `json:"outputs" yaml:"outputs"`
	Provider        string            `json:"provider" yaml:"provider"`
	ProviderOptions map[string]string `json:"provider_options" yaml:"provider_options"`
	LibraryPath     string            `json:"library_path" yaml:"library_path"`
	Strength        float32           `json:"strength" yaml:"strength"`
	Iterations      int               `json:"iterations" yaml:"iterations"`
	DefaultMode     inference.Mode    `json:"default_mode" yaml:"default_mode"`
}

// DefaultMaxPixels bounds the decoded size of an upload, before doubling.
const DefaultMaxPixels = 25_000_000

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MaxUploadBytes:  10 << 20,
			MaxPixels:       DefaultMaxPixels,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Model: ModelConfig{
			Backend:     model.ModelNameONNX,
			Provider:    string(providers.CPUProviderBackend),
			Iterations:  images.DefaultIterations,
			DefaultMode: inference.DefaultMode,
		},
		S3: storage.S3Config{
			Region: storage.DefaultRegion,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in that order.
//
// Arguments:
//   - path: The YAML file to read; empty skips the file.
//
// Returns:
//   - *Config: The merged configuration, not yet validated.
//   - error: An error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	setString(&c.Server.Addr, "ENHANCER_ADDR")
	if err := setInt64(&c.Server.MaxUploadBytes, "ENHANCER_MAX_UPLOAD_BYTES"); err != nil {
		return err
	}
	if err := setInt64(&c.Server.MaxPixels, "ENHANCER_MAX_PIXELS"); err != nil {
		return err
	}

	if v := os.Getenv("ENHANCER_MODEL_BACKEND"); v != "" {
		c.Model.Backend = model.Name(v)
	}
	setString(&c.Model.Path, "ENHANCER_MODEL_PATH")
	setString(&c.Model.Provider, "ENHANCER_PROVIDER")
	setString(&c.Model.LibraryPath, "ONNXRUNTIME_LIB")
	if v := os.Getenv("ENHANCER_DEFAULT_MODE"); v != "" {
		mode, err := inference.ParseMode(v)
		if err != nil {
			return errors.Wrap(err, "invalid ENHANCER_DEFAULT_MODE")
		}
		c.Model.DefaultMode = mode
	}

	setString(&c.S3.Bucket, "ENHANCER_S3_BUCKET")
	setString(&c.S3.Key, "ENHANCER_MODEL_FILE")
	setString(&c.S3.Endpoint, "ENHANCER_S3_ENDPOINT")
	setString(&c.S3.Region, "AWS_REGION")
	setString(&c.S3.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&c.S3.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid %s", key)
	}
	*dst = n
	return nil
}

// Validate checks the configuration once at startup.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.Errorf("server.max_upload_bytes must be > 0, got %d", c.Server.MaxUploadBytes)
	}
	if c.Server.MaxPixels <= 0 {
		return errors.Errorf("server.max_pixels must be > 0, got %d", c.Server.MaxPixels)
	}
	if c.Model.Iterations < 0 {
		return errors.Errorf("model.iterations must be >= 0, got %d", c.Model.Iterations)
	}

	known := false
	for _, name := range model.Names {
		if c.Model.Backend == name {
			known = true
		}
	}
	if !known {
		return errors.Errorf("unsupported model backend: %q", c.Model.Backend)
	}
	if _, err := providers.ParseBackend(c.Model.Provider); err != nil {
		return err
	}

	if models.NeedsArtifact(c.Model.Backend) && c.Model.Path == "" {
		if c.S3.Bucket == "" || c.S3.Key == "" {
			return errors.New("model.path or s3.bucket and s3.key are required for the onnx backend")
		}
		if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
			return errors.New("s3.access_key_id and s3.secret_access_key must be set together")
		}
	}
	return nil
}

// ModelArgs returns the registry arguments for an artifact at path.
func (c *Config) ModelArgs(path string) model.NewModelArgs {
	return model.NewModelArgs{
		Name:            c.Model.Backend,
		Path:            path,
		Inputs:          c.Model.Inputs,
		Outputs:         c.Model.Outputs,
		Provider:        c.Model.Provider,
		ProviderOptions: c.Model.ProviderOptions,
		LibraryPath:     c.Model.LibraryPath,
		Strength:        c.Model.Strength,
	}
}

// ArtifactSource returns where the model artifact comes from: the local
// path when set, otherwise the S3 object. Backends without an artifact get
// a nil source.
func (c *Config) ArtifactSource(ctx context.Context) (storage.Source, error) {
	if !models.NeedsArtifact(c.Model.Backend) {
		return nil, nil
	}
	return storage.New(ctx, c.Model.Path, c.S3)
}
