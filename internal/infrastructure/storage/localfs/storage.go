package localfs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
)

// Storage serves photo files below basePath.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/photos"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrPhotoNotFound, "open photo file", err)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// LoadBase64 reads the photo's stored image and returns it base64 encoded.
func (s *Storage) LoadBase64(ctx context.Context, photo *domain.Photo) (string, error) {
	if photo == nil || strings.TrimSpace(photo.StoragePath) == "" {
		return "", nil
	}
	f, err := s.Open(ctx, photo.StoragePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read photo %s: %w", photo.ID, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (s *Storage) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimSpace(key))
	if clean == "/" {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve storage path", fmt.Errorf("empty key"))
	}
	return filepath.Join(s.basePath, clean), nil
}
