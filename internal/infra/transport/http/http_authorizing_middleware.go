package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mkrupp/library/internal/domain"
	context_ "github.com/mkrupp/library/internal/infra/context"
	"github.com/mkrupp/library/internal/infra/logging"
	"github.com/mkrupp/library/internal/svc/authsvc/authclient"
)

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", domain.ErrNoAuthToken
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: expected bearer scheme", domain.ErrInvalidAuthToken)
	}

	return strings.TrimSpace(token), nil
}

// AuthorizingMiddleware verifies the bearer token through authClient and puts
// the resulting identity into the request context. Requests without a valid
// token are answered with 401; role checks are left to the handlers.
func AuthorizingMiddleware(
	next http.Handler,
	authClient authclient.AuthClient,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := BearerToken(r)
		if err != nil {
			log.WarnContext(r.Context(), "rejecting request", "error", err)
			WriteError(w, err)

			return
		}

		identity, ok, err := authClient.Validate(r.Context(), token)
		if err != nil {
			log.ErrorContext(r.Context(), "validate token failed", "error", err)
			WriteError(w, fmt.Errorf("validate token: %w", err))

			return
		} else if !ok {
			log.WarnContext(r.Context(), "invalid token")
			WriteError(w, domain.ErrInvalidAuthToken)

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithIdentity(r.Context(), identity)))
	})
}

// CallerIdentity returns the identity stored by AuthorizingMiddleware.
func CallerIdentity(r *http.Request) (domain.Identity, error) {
	identity, ok := context_.IdentityFromContext(r.Context())
	if !ok {
		return domain.Identity{}, domain.ErrUnauthenticated
	}

	return identity, nil
}
