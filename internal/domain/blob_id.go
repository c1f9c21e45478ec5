package domain

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"
)

//nolint:gochecknoglobals
var crockford = base32.NewEncoding("0123456789abcdefghjkmnpqrstvwxyz").WithPadding(base32.NoPadding)

// BlobID identifies a stored blob. Content-addressed IDs are the lowercase
// Crockford Base32 encoding of the SHA-256 of the content.
type BlobID string

// ContentBlobID derives the content address of data.
func ContentBlobID(data []byte) BlobID {
	sum := sha256.Sum256(data)

	return BlobID(crockford.EncodeToString(sum[:]))
}

// Variant derives the ID of a derived rendition, e.g. a resized cover.
func (id BlobID) Variant(width int) BlobID {
	return BlobID(fmt.Sprintf("%s_w%d", id, width))
}

// String returns the string representation of the BlobID.
func (id BlobID) String() string {
	return string(id)
}
