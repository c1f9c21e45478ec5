package authclient

import (
	"context"

	"github.com/mkrupp/library/internal/domain"
)

// AuthClient verifies bearer tokens on behalf of services that do not hold
// the signing key.
type AuthClient interface {
	// Validate returns the identity carried by token and whether the token is
	// valid. A non-nil error means the verifier could not be asked.
	Validate(ctx context.Context, token string) (domain.Identity, bool, error)
}
