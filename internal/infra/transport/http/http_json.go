package http

import (
	"fmt"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/logging"
)

const maxJSONBodyBytes = 1 << 20

//nolint:gochecknoglobals
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}

// DecodeJSON decodes the request body into v. Malformed or oversized bodies
// and unknown fields yield domain.ErrBadRequest. The decoder's own message
// is only logged since it quotes parser internals.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		logging.GetLogger("infra.transport.http").DebugContext(r.Context(), "decode json failed", "error", err)

		return fmt.Errorf("%w: malformed JSON body", domain.ErrBadRequest)
	}

	return nil
}
