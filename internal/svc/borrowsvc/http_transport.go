package borrowsvc

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/logging"
	http_ "github.com/mkrupp/library/internal/infra/transport/http"
	"github.com/mkrupp/library/internal/svc/authsvc/authclient"
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig
}

// HTTPTransport handles HTTP requests for the borrow service.
type HTTPTransport struct {
	borrowSvc *BorrowService
	log       logging.Logger
	cfg       HTTPTransportConfig
	handler   http.Handler
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
// Every route except GET /healthz requires a bearer token:
//   - POST /borrow/{bookId}/{userId}
//   - POST /return/{bookId}/{userId}
//   - GET /loans/{userId}?status=borrowed|returned
func NewHTTPTransport(
	borrowSvc *BorrowService,
	authClient authclient.AuthClient,
	cfg HTTPTransportConfig,
) *HTTPTransport {
	ht := &HTTPTransport{
		borrowSvc: borrowSvc,
		log:       logging.GetLogger("svc.borrowsvc.http_transport"),
		cfg:       cfg,
	}

	protected := http.NewServeMux()
	protected.HandleFunc("POST /borrow/{bookId}/{userId}", ht.HandleBorrow)
	protected.HandleFunc("POST /return/{bookId}/{userId}", ht.HandleReturn)
	protected.HandleFunc("GET /loans/{userId}", ht.HandleListLoans)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", http_.HealthHandler(borrowSvc.DB()))
	mux.Handle("/", http_.AuthorizingMiddleware(protected, authClient, ht.log))

	ht.handler = mux

	return ht
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.handler.ServeHTTP(w, r)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid %s %q", domain.ErrBadRequest, name, r.PathValue(name))
	}

	return id, nil
}

func loanPair(r *http.Request) (bookID, userID int64, err error) {
	if bookID, err = pathID(r, "bookId"); err != nil {
		return 0, 0, err
	}

	if userID, err = pathID(r, "userId"); err != nil {
		return 0, 0, err
	}

	return bookID, userID, nil
}

func (ht *HTTPTransport) writeJSON(ctx context.Context, w http.ResponseWriter, v any) {
	if err := http_.WriteJSON(w, http.StatusOK, v); err != nil {
		ht.log.ErrorContext(ctx, "write response failed", "error", err)
	}
}

// HandleBorrow lends a copy of the book to the user.
func (ht *HTTPTransport) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	if err := ht.handleBorrow(w, r); err != nil {
		http_.WriteError(w, err)
	}
}

func (ht *HTTPTransport) handleBorrow(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "borrow request failed", "error", err)
		} else {
			log.DebugContext(ctx, "borrow request done")
		}
	}(r.Context())

	bookID, userID, err := loanPair(r)
	if err != nil {
		return err
	}

	opened, err := ht.borrowSvc.BorrowBook(r.Context(), bookID, userID)
	if err != nil {
		return err
	}

	ht.writeJSON(r.Context(), w, domain.LoanResponse{Message: "Book borrowed successfully", Loan: *opened})

	return nil
}

// HandleReturn closes the user's active loan of the book.
func (ht *HTTPTransport) HandleReturn(w http.ResponseWriter, r *http.Request) {
	if err := ht.handleReturn(w, r); err != nil {
		http_.WriteError(w, err)
	}
}

func (ht *HTTPTransport) handleReturn(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "return request failed", "error", err)
		} else {
			log.DebugContext(ctx, "return request done")
		}
	}(r.Context())

	bookID, userID, err := loanPair(r)
	if err != nil {
		return err
	}

	returned, err := ht.borrowSvc.ReturnBook(r.Context(), bookID, userID)
	if err != nil {
		return err
	}

	ht.writeJSON(r.Context(), w, domain.LoanResponse{Message: "Book returned successfully", Loan: *returned})

	return nil
}

// HandleListLoans lists the user's loans, newest first.
func (ht *HTTPTransport) HandleListLoans(w http.ResponseWriter, r *http.Request) {
	if err := ht.handleListLoans(w, r); err != nil {
		http_.WriteError(w, err)
	}
}

func (ht *HTTPTransport) handleListLoans(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "list loans failed", "error", err)
		} else {
			log.DebugContext(ctx, "loans listed")
		}
	}(r.Context())

	userID, err := pathID(r, "userId")
	if err != nil {
		return err
	}

	status, err := domain.ParseLoanStatus(r.URL.Query().Get("status"))
	if err != nil {
		return err //nolint:wrapcheck
	}

	loans, err := ht.borrowSvc.ListLoans(r.Context(), userID, status)
	if err != nil {
		return err
	}

	ht.writeJSON(r.Context(), w, loans)

	return nil
}
