package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrTooLarge   = errors.New("blob exceeds maximum size")
	ErrInvalidKey = errors.New("invalid blob key")
	ErrNotFound   = errors.New("blob not found")
)

type Blob struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// BlobStore keeps uploaded files. URLs it returns are what resources persist.
type BlobStore interface {
	Store(ctx context.Context, name, contentType string, r io.Reader) (Blob, error)
	Open(ctx context.Context, url string) (io.ReadCloser, error)
	Delete(ctx context.Context, url string) error
}

// LocalStore writes blobs under a directory and serves them below PublicBaseURL.
type LocalStore struct {
	root    string
	baseURL string
	maxSize int64
}

func NewLocalStore(root, publicBaseURL string, maxSize int64) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &LocalStore{
		root:    root,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		maxSize: maxSize,
	}, nil
}

func (s *LocalStore) Store(ctx context.Context, name, contentType string, r io.Reader) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}

	key := uuid.New().String() + strings.ToLower(filepath.Ext(name))
	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return Blob{}, fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	size, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Blob{}, fmt.Errorf("write blob: %w", err)
	}
	if s.maxSize > 0 && size > s.maxSize {
		return Blob{}, ErrTooLarge
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.root, key)); err != nil {
		return Blob{}, fmt.Errorf("commit blob: %w", err)
	}

	return Blob{
		Key:         key,
		URL:         s.baseURL + "/" + key,
		Name:        filepath.Base(name),
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (s *LocalStore) Open(_ context.Context, url string) (io.ReadCloser, error) {
	key, ok := s.KeyFor(url)
	if !ok {
		return nil, ErrInvalidKey
	}
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Delete removes the blob behind url. Unknown blobs are not an error.
func (s *LocalStore) Delete(_ context.Context, url string) error {
	key, ok := s.KeyFor(url)
	if !ok {
		return ErrInvalidKey
	}
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// KeyFor extracts the key from a URL this store produced.
func (s *LocalStore) KeyFor(url string) (string, bool) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

func (s *LocalStore) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, key), nil
}
