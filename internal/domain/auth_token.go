package domain

import "errors"

var (
	// ErrNoAuthToken is returned when an authentication token is required but not provided.
	ErrNoAuthToken = errors.New("no auth token")
	// ErrInvalidAuthToken is returned when a token's signature is invalid or it has expired.
	ErrInvalidAuthToken = errors.New("invalid auth token")
	// ErrUnauthenticated is returned when a request carries no usable identity.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// AuthToken is the signed payload of a bearer token.
type AuthToken struct {
	Username  string `json:"username"`  // Identifier of the authenticated user
	Role      Role   `json:"role"`      // Role designator at issue time
	IssuedAt  int64  `json:"issuedAt"`  // Unix timestamp when the token was created
	ExpiresAt int64  `json:"expiresAt"` // Unix timestamp when the token expires
}

// Identity returns the caller identity carried by the token.
func (t AuthToken) Identity() Identity {
	return Identity{Username: t.Username, Role: t.Role}
}

// AuthTokenResponse is the body returned by a successful login.
type AuthTokenResponse struct {
	AccessToken string `json:"access_token"`
}
