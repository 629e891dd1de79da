package storage

import (
	"context"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// Downloader is the subset of manager.Downloader used by S3Source.
type Downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error)
}

// S3Config locates an artifact in an S3 compatible bucket.
type S3Config struct {
	Bucket          string `json:"bucket" yaml:"bucket"`
	Key             string `json:"key" yaml:"key"`
	Region          string `json:"region" yaml:"region"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	// Endpoint overrides the AWS endpoint, e.g. for MinIO. Path-style
	// addressing is used when set.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// S3Source downloads an artifact into a temporary directory for the
// duration of a load.
type S3Source struct {
	bucket     string
	key        string
	downloader Downloader
	tempDir    string
}

// NewS3Source builds an S3 client from cfg.
//
// Static credentials are used when both keys are set; otherwise the default
// AWS credential chain applies.
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, errors.New("s3 bucket and key are required")
	}

	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3SourceWithDownloader(cfg.Bucket, cfg.Key, manager.NewDownloader(client)), nil
}

// NewS3SourceWithDownloader creates a source around an existing downloader.
func NewS3SourceWithDownloader(bucket, key string, d Downloader) *S3Source {
	return &S3Source{bucket: bucket, key: key, downloader: d}
}

// Acquire downloads the object, calls load with the local path and removes
// the temporary directory afterwards, whether or not load succeeded.
//
// Arguments:
//   - ctx: Cancels the download.
//   - load: Receives the local path of the artifact.
//
// Returns:
//   - error: Download, load or cleanup errors, in that order of precedence.
func (s *S3Source) Acquire(ctx context.Context, load func(path string) error) (err error) {
	dir, err := os.MkdirTemp(s.tempDir, "enhancer-model-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary directory")
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil && err == nil {
			err = errors.Wrap(rmErr, "failed to remove temporary directory")
		}
	}()

	local := filepath.Join(dir, path.Base(s.key))
	if err := s.download(ctx, local); err != nil {
		return err
	}

	return load(local)
}

func (s *S3Source) download(ctx context.Context, local string) error {
	f, err := os.Create(local)
	if err != nil {
		return errors.Wrap(err, "failed to create artifact file")
	}

	n, err := s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return errors.Wrapf(err, "failed to download s3://%s/%s", s.bucket, s.key)
	}

	log.Printf("[storage] downloaded s3://%s/%s (%d bytes)", s.bucket, s.key, n)
	return nil
}

// String implements fmt.Stringer.
func (s *S3Source) String() string {
	return "s3://" + s.bucket + "/" + s.key
}
