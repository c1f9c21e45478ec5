package domain

import (
	"bytes"
	"fmt"
	"io"
)

// Blob is a stored byte payload: a cover upload or one of its resized variants.
type Blob struct {
	ID   BlobID
	Body []byte
}

func NewBlob(id BlobID, body []byte) *Blob {
	return &Blob{ID: id, Body: body}
}

// NewContentBlob stores body under its content address, so identical uploads
// end up in the same file.
func NewContentBlob(body []byte) *Blob {
	return NewBlob(ContentBlobID(body), body)
}

// Derive wraps body as the variant of blob rendered at width.
func (blob *Blob) Derive(width int, body []byte) *Blob {
	return NewBlob(blob.ID.Variant(width), body)
}

func (blob *Blob) Size() int64 {
	return int64(len(blob.Body))
}

func (blob *Blob) Bytes() []byte {
	return blob.Body
}

// WriteTo implements io.WriterTo.
func (blob *Blob) WriteTo(w io.Writer) (int64, error) {
	n, err := bytes.NewReader(blob.Body).WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("write blob %s: %w", blob.ID, err)
	}

	return n, nil
}
