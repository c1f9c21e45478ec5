package domain

import (
	"errors"
	"fmt"
)

var (
	ErrImageTypeNotSupported = fmt.Errorf("%w: image type not supported", ErrBadRequest)
	ErrImageCorrupt          = fmt.Errorf("%w: image cannot be decoded", ErrBadRequest)
	ErrCoverTooLarge         = errors.New("cover too large")
	ErrCoverNotFound         = fmt.Errorf("cover %w", ErrNotFound)
)

// Cover is a book cover image, either the original upload or a resized variant.
type Cover struct {
	BookID   int64
	MIMEType string
	Blob     *Blob
}

// Size returns the encoded image size in bytes.
func (c Cover) Size() int64 {
	return c.Blob.Size()
}

// CoverResponse is returned after a cover upload.
type CoverResponse struct {
	BookID  int64  `json:"book_id"`
	CoverID string `json:"cover_id"`
}

// MessageResponse is a plain acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}
