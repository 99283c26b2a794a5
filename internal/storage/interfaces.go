// Package storage defines interfaces for item image storage backends.
// The storage layer persists and retrieves the raw image bytes attached to
// found item reports. Implementations include local filesystem and S3.
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/campus-tf/trove/internal/domain"
)

// AllowedImageTypes maps accepted content types to their file extensions.
var AllowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// Backend defines the interface for image storage backends.
// The interface is designed to be stateless and support horizontal scaling.
type Backend interface {
	// Store stores image content from a reader and returns an opaque
	// reference for later retrieval. The content type must be one of
	// AllowedImageTypes and size must not exceed the backend's limit.
	Store(ctx context.Context, reader io.Reader, size int64, contentType string) (ref string, err error)

	// Retrieve retrieves image content by its reference.
	// Returns a ReadCloser that must be closed after use.
	// Returns domain.ErrImageNotFound if the reference doesn't exist.
	Retrieve(ctx context.Context, ref string) (io.ReadCloser, error)

	// Delete removes image content by its reference.
	// Returns domain.ErrImageNotFound if the reference doesn't exist.
	Delete(ctx context.Context, ref string) error

	// Exists checks if image content with the given reference exists.
	Exists(ctx context.Context, ref string) (bool, error)

	// List returns the references of all stored images.
	// Used by the orphaned image sweeper.
	List(ctx context.Context) ([]string, error)

	// URLPath returns the public URL path for a stored reference.
	URLPath(ref string) string
}

// ValidateImageType checks that a content type is an accepted image format
// and returns the file extension for it.
func ValidateImageType(contentType string) (string, error) {
	// Strip parameters like "; charset=..." before matching.
	mediaType := strings.TrimSpace(strings.ToLower(contentType))
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}

	ext, ok := AllowedImageTypes[mediaType]
	if !ok {
		return "", domain.ErrImageTypeNotAllowed
	}
	return ext, nil
}

// validRef reports whether a reference is a bare filename with no path
// traversal in it. References come from the database but the check keeps a
// corrupted row from escaping the storage root.
func validRef(ref string) bool {
	if ref == "" {
		return false
	}
	return ref == path.Base(ref) && !strings.HasPrefix(ref, ".")
}
