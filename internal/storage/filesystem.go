package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/campus-tf/trove/internal/domain"
)

// FilesystemBackend stores images as files under a data directory.
// Each image gets a random UUID-based filename so references are
// unguessable and never collide.
type FilesystemBackend struct {
	dataDir    string
	publicPath string
	maxSize    int64
	logger     zerolog.Logger
}

var _ Backend = (*FilesystemBackend)(nil)

// NewFilesystemBackend creates a filesystem backend rooted at dataDir.
// The directory is created if it does not exist.
func NewFilesystemBackend(dataDir, publicPath string, maxSize int64, logger zerolog.Logger) (*FilesystemBackend, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &FilesystemBackend{
		dataDir:    dataDir,
		publicPath: publicPath,
		maxSize:    maxSize,
		logger:     logger.With().Str("component", "fs_storage").Logger(),
	}, nil
}

// DataDir returns the directory images are stored in.
func (b *FilesystemBackend) DataDir() string {
	return b.dataDir
}

// Store writes the image to a new file and returns its reference.
func (b *FilesystemBackend) Store(ctx context.Context, reader io.Reader, size int64, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext, err := ValidateImageType(contentType)
	if err != nil {
		return "", err
	}
	if b.maxSize > 0 && size > b.maxSize {
		return "", domain.ErrImageTooLarge
	}

	ref := uuid.NewString() + ext
	dst := filepath.Join(b.dataDir, ref)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	// LimitReader guards against a lying Content-Length.
	limit := size
	if b.maxSize > 0 {
		limit = b.maxSize
	}
	written, err := io.Copy(f, io.LimitReader(reader, limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if b.maxSize > 0 && written > b.maxSize {
		_ = os.Remove(dst)
		return "", domain.ErrImageTooLarge
	}

	b.logger.Debug().Str("ref", ref).Int64("size", written).Msg("stored image")
	return ref, nil
}

// Retrieve opens the stored image for reading.
func (b *FilesystemBackend) Retrieve(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validRef(ref) {
		return nil, domain.ErrImageNotFound
	}

	f, err := os.Open(filepath.Join(b.dataDir, ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	return f, nil
}

// Delete removes the stored image.
func (b *FilesystemBackend) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validRef(ref) {
		return domain.ErrImageNotFound
	}

	if err := os.Remove(filepath.Join(b.dataDir, ref)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrImageNotFound
		}
		return fmt.Errorf("failed to delete image file: %w", err)
	}

	b.logger.Debug().Str("ref", ref).Msg("deleted image")
	return nil
}

// Exists checks whether the stored image is present on disk.
func (b *FilesystemBackend) Exists(ctx context.Context, ref string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !validRef(ref) {
		return false, nil
	}

	_, err := os.Stat(filepath.Join(b.dataDir, ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat image file: %w", err)
	}
	return true, nil
}

// List returns the references of all stored images.
func (b *FilesystemBackend) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(b.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var refs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		refs = append(refs, entry.Name())
	}
	return refs, nil
}

// URLPath returns the public URL path the server serves this image at.
func (b *FilesystemBackend) URLPath(ref string) string {
	return b.publicPath + "/" + ref
}
