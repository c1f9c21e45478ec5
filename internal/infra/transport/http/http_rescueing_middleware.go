package http

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/mkrupp/library/internal/infra/logging"
)

// RescueingMiddleware recovers from handler panics, logs them with the stack
// trace and answers with a 500 problem.
func RescueingMiddleware(next http.Handler, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}

			if p == http.ErrAbortHandler { //nolint:errorlint,err113
				panic(p)
			}

			log.ErrorContext(r.Context(), "request panic", slog.Group("http",
				"uri", r.RequestURI,
				"method", r.Method,
			), slog.Group("error",
				"panic", p,
				"stack", string(debug.Stack()),
			))

			_ = WriteJSON(w, http.StatusInternalServerError, Problem{
				Kind:    "internal",
				Message: http.StatusText(http.StatusInternalServerError),
			})
		}()

		next.ServeHTTP(w, r)
	})
}
