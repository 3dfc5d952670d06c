package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrFileTooLarge is returned when an upload exceeds the configured limit
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")

	// ErrObjectNotFound is returned when a stored object does not exist
	ErrObjectNotFound = errors.New("stored object not found")

	// ErrInvalidPath is returned for storage paths outside the storage root
	ErrInvalidPath = errors.New("invalid storage path")
)

// Object describes a booking document to store
type Object struct {
	AgencyID    uuid.UUID
	BookingID   uuid.UUID
	Filename    string
	ContentType string
}

// Key returns a new unique storage path for the object, grouped by agency and booking
func (o Object) Key() string {
	ext := strings.ToLower(filepath.Ext(o.Filename))
	return path.Join("agencies", o.AgencyID.String(), "bookings", o.BookingID.String(), uuid.New().String()+ext)
}

// Storage stores booking documents
type Storage interface {
	Put(ctx context.Context, obj Object, data io.Reader) (storagePath string, size int64, err error)
	Open(ctx context.Context, storagePath string) (io.ReadCloser, error)
	Remove(ctx context.Context, storagePath string) error
}

// NewStorage creates a storage backend based on configuration.
// "local" writes to the filesystem; "cloud" or "azure" uses Azure Blob Storage.
func NewStorage(cfg *config.StorageConfig, logger *zap.Logger) (Storage, error) {
	maxBytes := int64(cfg.MaxUploadSizeMB) << 20
	switch cfg.Mode {
	case "local":
		return NewLocalStorage(cfg.LocalBasePath, maxBytes)
	case "cloud", "azure":
		if cfg.CloudConnectionString == "" {
			return nil, fmt.Errorf("cloud connection string required for azure storage")
		}
		return NewAzureBlobStorage(cfg.CloudConnectionString, cfg.CloudContainer, maxBytes, logger)
	default:
		return nil, fmt.Errorf("unsupported storage mode: %s", cfg.Mode)
	}
}

// limitReader fails with ErrFileTooLarge once more than max bytes were read.
// A max of zero or less disables the limit.
type limitReader struct {
	r     io.Reader
	max   int64
	count int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.count += int64(n)
	if l.max > 0 && l.count > l.max {
		return n, ErrFileTooLarge
	}
	return n, err
}

// LocalStorage stores documents on the local filesystem
type LocalStorage struct {
	basePath string
	maxBytes int64
}

// NewLocalStorage creates the base directory if needed
func NewLocalStorage(basePath string, maxBytes int64) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
		maxBytes: maxBytes,
	}, nil
}

func (s *LocalStorage) resolve(storagePath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(storagePath))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.basePath, clean), nil
}

// Put writes data under a new unique path
func (s *LocalStorage) Put(ctx context.Context, obj Object, data io.Reader) (string, int64, error) {
	storagePath := obj.Key()
	fullPath, err := s.resolve(storagePath)
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	size, err := io.Copy(file, &limitReader{r: data, max: s.maxBytes})
	if err != nil {
		os.Remove(fullPath)
		if errors.Is(err, ErrFileTooLarge) {
			return "", 0, err
		}
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}

	return storagePath, size, nil
}

// Open returns a reader for a stored document
func (s *LocalStorage) Open(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(storagePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Remove deletes a stored document. Removing a missing document is not an error.
func (s *LocalStorage) Remove(ctx context.Context, storagePath string) error {
	fullPath, err := s.resolve(storagePath)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}
