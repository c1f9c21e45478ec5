package http

import (
	"context"
	"net/http"

	"github.com/mkrupp/library/internal/domain"
)

// Pinger is implemented by *database.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler answers 200 while the store is reachable and 503 otherwise.
func HealthHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.PingContext(r.Context()); err != nil {
			_ = WriteJSON(w, http.StatusServiceUnavailable, Problem{
				Kind:    "store_unavailable",
				Message: domain.ErrStoreUnavailable.Error(),
			})

			return
		}

		_ = WriteJSON(w, http.StatusOK, domain.MessageResponse{Message: "ok"})
	}
}
