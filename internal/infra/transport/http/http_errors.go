package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mkrupp/library/internal/domain"
)

// Problem is the JSON body of every error response.
type Problem struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type problemRule struct {
	target error
	status int
	kind   string
}

// First match wins, so narrower errors go before the ones they wrap.
//
//nolint:gochecknoglobals
var problemRules = []problemRule{
	{domain.ErrCoverTooLarge, http.StatusRequestEntityTooLarge, "cover_too_large"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{domain.ErrNoAuthToken, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrInvalidAuthToken, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrAlreadyBorrowed, http.StatusBadRequest, "already_borrowed"},
	{domain.ErrUnavailable, http.StatusBadRequest, "unavailable"},
	{domain.ErrUserAlreadyExists, http.StatusConflict, "conflict"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrBadRequest, http.StatusBadRequest, "bad_request"},
	{domain.ErrStoreUnavailable, http.StatusInternalServerError, "store_unavailable"},
}

// ProblemFor maps an error chain onto a status code and response body.
// Unknown errors become a generic 500 so that internals are not leaked.
func ProblemFor(err error) (int, Problem) {
	for _, rule := range problemRules {
		if !errors.Is(err, rule.target) {
			continue
		}

		if rule.status >= http.StatusInternalServerError {
			return rule.status, Problem{Kind: rule.kind, Message: http.StatusText(rule.status)}
		}

		return rule.status, Problem{Kind: rule.kind, Message: publicMessage(err, rule.target)}
	}

	return http.StatusInternalServerError, Problem{
		Kind:    "internal",
		Message: http.StatusText(http.StatusInternalServerError),
	}
}

// Joined chains may carry driver errors; only single-line messages are shown.
func publicMessage(err, target error) string {
	if msg := err.Error(); !strings.Contains(msg, "\n") {
		return msg
	}

	return target.Error()
}

// WriteError answers the request with the Problem matching err.
func WriteError(w http.ResponseWriter, err error) {
	status, problem := ProblemFor(err)

	_ = WriteJSON(w, status, problem)
}
