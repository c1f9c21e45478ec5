package blob

import (
	"context"
	"errors"

	"github.com/mkrupp/library/internal/domain"
)

// ErrBlobNotFound is returned by Fetch and Delete for unknown IDs.
var ErrBlobNotFound = errors.New("blob not found")

// Repository stores opaque blobs, such as cover images and their resized variants.
type Repository interface {
	// Lock takes an advisory lock on id, shared or exclusive, and returns
	// the release function.
	Lock(ctx context.Context, id domain.BlobID, exclusive bool) (func(), error)

	Exists(ctx context.Context, id domain.BlobID) bool

	// Store writes blob, replacing any previous content under the same ID.
	Store(ctx context.Context, blob *domain.Blob) error

	// Fetch returns ErrBlobNotFound for unknown IDs.
	Fetch(ctx context.Context, id domain.BlobID) (*domain.Blob, error)

	Delete(ctx context.Context, id domain.BlobID) error

	// DeleteVariants removes every variant derived from id (see
	// domain.BlobID.Variant), leaving id itself in place.
	DeleteVariants(ctx context.Context, id domain.BlobID) error
}

// RepositoryFactory opens a Repository rooted at the named subdirectory,
// storing files with the given extension.
type RepositoryFactory func(ctx context.Context, name string, ext string) (Repository, error)
