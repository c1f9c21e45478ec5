package authsvc

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/mkrupp/library/internal/domain"
)

// ClockSkew is how far in the future a token's issue time may lie.
const ClockSkew = 30 * time.Second

func invalidToken(reason string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidAuthToken, reason)
}

// splitToken separates a raw token into its JSON payload and the trailing
// signature of sigSize bytes.
func splitToken(tokenString string, sigSize int) (payload, signature []byte, err error) {
	raw, err := base64.URLEncoding.DecodeString(tokenString)
	if err != nil {
		return nil, nil, errors.Join(domain.ErrInvalidAuthToken, fmt.Errorf("decode token: %w", err))
	}

	if len(raw) <= sigSize {
		return nil, nil, invalidToken("token too short")
	}

	return raw[:len(raw)-sigSize], raw[len(raw)-sigSize:], nil
}

// ValidateToken checks a token minted by AuthService.IssueToken: the
// RSA-PSS/SHA-256 signature against publicKey, the validity window relative
// to now, and the identity it carries. Every failure wraps
// domain.ErrInvalidAuthToken.
func ValidateToken(
	_ context.Context,
	tokenString string,
	publicKey *rsa.PublicKey,
	now time.Time,
) (domain.AuthToken, error) {
	payload, signature, err := splitToken(tokenString, publicKey.Size())
	if err != nil {
		return domain.AuthToken{}, err
	}

	digest := sha256.Sum256(payload)
	if err := rsa.VerifyPSS(publicKey, crypto.SHA256, digest[:], signature, nil); err != nil {
		return domain.AuthToken{}, invalidToken("bad signature")
	}

	var token domain.AuthToken
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(payload, &token); err != nil {
		return domain.AuthToken{}, errors.Join(domain.ErrInvalidAuthToken, fmt.Errorf("unmarshal token: %w", err))
	}

	switch {
	case now.Unix() >= token.ExpiresAt:
		return domain.AuthToken{}, invalidToken("expired")
	case time.Unix(token.IssuedAt, 0).After(now.Add(ClockSkew)):
		return domain.AuthToken{}, invalidToken("issued in the future")
	case token.Username == "":
		return domain.AuthToken{}, invalidToken("no subject")
	case !token.Role.Valid():
		return domain.AuthToken{}, invalidToken("unknown role")
	}

	return token, nil
}
