package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/straye-as/offer-pipeline-api/internal/config"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Open when the key does not exist
var ErrNotFound = errors.New("object not found")

// Storage holds activity archives and other exported documents under a
// slash separated key such as "activity/2025/03/2025-03-14.json"
type Storage interface {
	Save(ctx context.Context, key string, contentType string, data io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewStorage creates a new storage instance based on configuration.
// For local mode, files are stored on the local filesystem.
// For cloud/azure mode, files are stored in Azure Blob Storage.
func NewStorage(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (Storage, error) {
	switch cfg.Mode {
	case "local", "":
		return NewLocalStorage(cfg.LocalBasePath)
	case "cloud", "azure":
		if cfg.CloudConnectionString == "" {
			return nil, fmt.Errorf("cloud connection string required for azure storage")
		}
		return NewAzureBlobStorage(ctx, cfg.CloudConnectionString, cfg.CloudContainer, logger)
	default:
		return nil, fmt.Errorf("unsupported storage mode: %s", cfg.Mode)
	}
}

// SaveBytes stores an in-memory document
func SaveBytes(ctx context.Context, s Storage, key, contentType string, data []byte) (int64, error) {
	return s.Save(ctx, key, contentType, bytes.NewReader(data))
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+key)), "/")
	if key == "" || key == "." {
		return "", fmt.Errorf("empty storage key")
	}
	return key, nil
}

// LocalStorage implements Storage interface for local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if basePath == "" {
		basePath = "./storage"
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save writes data to key, replacing any existing object
func (s *LocalStorage) Save(ctx context.Context, key string, contentType string, data io.Reader) (int64, error) {
	key, err := cleanKey(key)
	if err != nil {
		return 0, err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temp file first so readers never see a partial archive
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	size, err := io.Copy(tmp, data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("failed to move file into place: %w", err)
	}

	return size, nil
}

// Open returns a reader for key
func (s *LocalStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.basePath, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete deletes a file from local storage
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.basePath, filepath.FromSlash(key))); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}
