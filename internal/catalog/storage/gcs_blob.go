package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"pimsync_api/internal/syncerr"
)

type GCSConfig struct {
	Bucket          string
	PublicBaseURL   string
	CredentialsFile string
	EmulatorHost    string
}

// GCSBlobStore keeps blobs in a Cloud Storage bucket.
type GCSBlobStore struct {
	client  *gcs.Client
	bucket  string
	baseURL string
}

func NewGCSBlobStore(ctx context.Context, cfg GCSConfig) (*GCSBlobStore, error) {
	var opts []option.ClientOption
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")

	switch {
	case cfg.EmulatorHost != "":
		endpoint := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
		_ = os.Setenv("STORAGE_EMULATOR_HOST", endpoint)
		opts = append(opts, option.WithoutAuthentication())
		if baseURL == "" {
			baseURL = endpoint + "/" + cfg.Bucket
		}
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile), option.WithScopes(gcs.ScopeReadWrite))
	default:
		opts = append(opts, option.WithScopes(gcs.ScopeReadWrite))
	}
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + cfg.Bucket
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, syncerr.Store("gcs-client", "failed to create storage client", err)
	}
	return &GCSBlobStore{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

func (s *GCSBlobStore) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", syncerr.Store("blob-write", "failed to write data to GCS", err)
	}
	if err := w.Close(); err != nil {
		return "", syncerr.Store("blob-write", "failed to close GCS writer", err)
	}
	return s.URL(key), nil
}

func (s *GCSBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	return false, syncerr.Store("blob-stat", "failed to read object attrs", err)
}

func (s *GCSBlobStore) URL(key string) string {
	return s.baseURL + "/" + key
}

func (s *GCSBlobStore) Close() error {
	return s.client.Close()
}
