package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pimsync_api/internal/syncerr"
)

// LocalBlobStore writes blobs below a directory.
type LocalBlobStore struct {
	dir     string
	baseURL string
}

func NewLocalBlobStore(dir, baseURL string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, syncerr.Store("blob-dir", "failed to create blob dir", err)
	}
	return &LocalBlobStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalBlobStore) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key))
}

func (s *LocalBlobStore) Put(_ context.Context, key, _ string, r io.Reader) (string, error) {
	dst := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", syncerr.Store("blob-dir", "failed to create blob dir", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", syncerr.Store("blob-write", "failed to create blob", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", syncerr.Store("blob-write", "failed to write blob", err)
	}
	if err := tmp.Close(); err != nil {
		return "", syncerr.Store("blob-write", "failed to close blob", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", syncerr.Store("blob-write", "failed to move blob in place", err)
	}
	return s.URL(key), nil
}

func (s *LocalBlobStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, syncerr.Store("blob-stat", "failed to stat blob", err)
}

func (s *LocalBlobStore) URL(key string) string {
	if s.baseURL == "" {
		return "file://" + filepath.ToSlash(s.path(key))
	}
	return s.baseURL + "/" + key
}

// MemoryBlobStore keeps blobs in memory.
type MemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	puts  int
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Put(_ context.Context, key, _ string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", syncerr.Store("blob-write", "failed to read blob", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = buf.Bytes()
	s.puts++
	return s.URL(key), nil
}

func (s *MemoryBlobStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[key]
	return ok, nil
}

func (s *MemoryBlobStore) URL(key string) string {
	return fmt.Sprintf("mem://%s", key)
}

// Puts counts uploads.
func (s *MemoryBlobStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}
