package jsonfile

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/code19m/errx"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Sink is where the snapshot document is read from and written to.
type Sink interface {
	// Read returns the stored document, or nil when nothing was written yet.
	Read(ctx context.Context) ([]byte, error)
	// Write replaces the stored document.
	Write(ctx context.Context, data []byte) error
}

// FileSink stores the snapshot in a local file.
type FileSink struct {
	path string
}

// NewFileSink returns a sink writing to path. Parent directories are created
// on the first write.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Read implements Sink.
func (s *FileSink) Read(context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, errx.Wrap(err)
}

// Write implements Sink. The file is replaced atomically via a temporary file.
func (s *FileSink) Write(_ context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errx.Wrap(err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errx.Wrap(err)
	}
	return errx.Wrap(os.Rename(tmp, s.path))
}

// MinioConfig locates the snapshot object in MinIO or any S3 compatible store.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"   validate:"required"`
	AccessKey string `yaml:"access_key" validate:"required"`
	SecretKey string `yaml:"secret_key" validate:"required" mask:"true"`
	Bucket    string `yaml:"bucket"     validate:"required"`
	UseSSL    bool   `yaml:"use_ssl"    default:"false"`
}

// MinioSink stores the snapshot as one object.
type MinioSink struct {
	client *minio.Client
	bucket string
	key    string
}

const codeNoSuchKey = "NoSuchKey"

// NewMinioSink returns a sink writing the object key in cfg.Bucket.
func NewMinioSink(cfg MinioConfig, key string) (*MinioSink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errx.Wrap(err)
	}

	return &MinioSink{client: client, bucket: cfg.Bucket, key: key}, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (s *MinioSink) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errx.Wrap(err)
	}
	if exists {
		return nil
	}
	return errx.Wrap(s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}))
}

// Read implements Sink.
func (s *MinioSink) Read(ctx context.Context) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errx.Wrap(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == codeNoSuchKey {
			return nil, nil
		}
		return nil, errx.Wrap(err)
	}
	return data, nil
}

// Write implements Sink.
func (s *MinioSink) Write(ctx context.Context, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return errx.Wrap(err)
}
