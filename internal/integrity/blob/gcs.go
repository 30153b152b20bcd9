package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore stores blobs as objects in a Google Cloud Storage bucket.
type GCSStore struct {
	client          *storage.Client
	bucket          *storage.BucketHandle
	bucketName      string
	credentialsFile string
	logger          *slog.Logger
}

type GCSOption func(*GCSStore)

func WithCredentialsFile(path string) GCSOption {
	return func(s *GCSStore) {
		s.credentialsFile = path
	}
}

func WithGCSLogger(logger *slog.Logger) GCSOption {
	return func(s *GCSStore) {
		s.logger = logger
	}
}

// NewGCSStore connects to bucket. Credentials come from the given file or
// the ambient application default credentials.
func NewGCSStore(ctx context.Context, bucket string, opts ...GCSOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs blob: bucket not set")
	}
	s := &GCSStore{bucketName: bucket, logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(s)
	}

	clientOpts := []option.ClientOption{storage.WithDisabledClientMetrics()}
	if s.credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(s.credentialsFile))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gcs blob: create storage client: %w", err)
	}
	s.client = client
	s.bucket = client.Bucket(bucket)
	return s, nil
}

func (s *GCSStore) Write(ctx context.Context, path string, data []byte) (err error) {
	defer func() { observe("gcs", "write", err) }()
	path, err = cleanPath(path)
	if err != nil {
		return err
	}
	w := s.bucket.Object(path).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs blob: write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs blob: commit %s: %w", path, err)
	}
	s.logger.DebugContext(ctx, "blob written", "bucket", s.bucketName, "path", path, "bytes", len(data))
	return nil
}

func (s *GCSStore) Read(ctx context.Context, path string) (data []byte, err error) {
	defer func() { observe("gcs", "read", err) }()
	path, err = cleanPath(path)
	if err != nil {
		return nil, err
	}
	r, err := s.bucket.Object(path).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("gcs blob: open %s: %w", path, err)
	}
	defer r.Close()
	data, err = io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs blob: read %s: %w", path, err)
	}
	return data, nil
}

func (s *GCSStore) Delete(ctx context.Context, path string) (err error) {
	defer func() { observe("gcs", "delete", err) }()
	path, err = cleanPath(path)
	if err != nil {
		return err
	}
	err = s.bucket.Object(path).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs blob: delete %s: %w", path, err)
	}
	return nil
}

func (s *GCSStore) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
