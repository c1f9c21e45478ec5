package catalogsvc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
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

	// MultipartFileName is the form field carrying a multipart cover upload.
	// Default is "upload".
	MultipartFileName string `env:"MULTIPART_FILE_NAME" default:"upload"`

	// URLWidthParam is the query parameter selecting a resized cover.
	// Default is "width".
	URLWidthParam string `env:"URL_WIDTH_PARAM" default:"width"`
}

// HTTPTransport handles HTTP requests for the catalog service.
type HTTPTransport struct {
	catalogSvc *CatalogService
	log        logging.Logger
	cfg        HTTPTransportConfig
	handler    http.Handler
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
// Every route except GET /healthz requires a bearer token; mutating routes
// additionally require the librarian role:
//   - POST /books, GET /books, GET /books/search?title=&author=
//   - GET, PUT, DELETE /books/{id}
//   - PUT /books/{id}/cover, GET /books/{id}/cover?width=
func NewHTTPTransport(
	catalogSvc *CatalogService,
	authClient authclient.AuthClient,
	cfg HTTPTransportConfig,
) *HTTPTransport {
	ht := &HTTPTransport{
		catalogSvc: catalogSvc,
		log:        logging.GetLogger("svc.catalogsvc.http_transport"),
		cfg:        cfg,
	}

	protected := http.NewServeMux()
	protected.HandleFunc("POST /books", ht.HandleAddBook)
	protected.HandleFunc("GET /books", ht.HandleListBooks)
	protected.HandleFunc("GET /books/search", ht.HandleSearchBooks)
	protected.HandleFunc("GET /books/{id}", ht.HandleGetBook)
	protected.HandleFunc("PUT /books/{id}", ht.HandleUpdateBook)
	protected.HandleFunc("DELETE /books/{id}", ht.HandleDeleteBook)
	protected.HandleFunc("PUT /books/{id}/cover", ht.HandleStoreCover)
	protected.HandleFunc("GET /books/{id}/cover", ht.HandleFetchCover)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", http_.HealthHandler(catalogSvc.DB()))
	mux.Handle("/", http_.AuthorizingMiddleware(protected, authClient, ht.log))

	ht.handler = mux

	return ht
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.handler.ServeHTTP(w, r)
}

func bookID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid book id %q", domain.ErrBadRequest, r.PathValue("id"))
	}

	return id, nil
}

func (ht *HTTPTransport) requestLog(r *http.Request) logging.Logger {
	return ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))
}

func (ht *HTTPTransport) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	if err := http_.WriteJSON(w, status, v); err != nil {
		ht.log.ErrorContext(ctx, "write response failed", "error", err)
	}
}

// HandleAddBook creates a book. Expects a JSON body with title, author, qty
// and publish_date.
func (ht *HTTPTransport) HandleAddBook(w http.ResponseWriter, r *http.Request) {
	if err := ht.handleAddBook(w, r); err != nil {
		http_.WriteError(w, err)
	}
}

func (ht *HTTPTransport) handleAddBook(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "add book failed", "error", err)
		} else {
			log.DebugContext(ctx, "add book done")
		}
	}(r.Context())

	caller, err := http_.CallerIdentity(r)
	if err != nil {
		return err //nolint:wrapcheck
	}

	// Role is checked before the body is decoded.
	if err := domain.Authorize(caller, domain.RoleLibrarian); err != nil {
		return err //nolint:wrapcheck
	}

	var input domain.BookPatch
	if err := http_.DecodeJSON(r, &input); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	created, err := ht.catalogSvc.AddBook(r.Context(), caller, input)
	if err != nil {
		return err
	}

	ht.writeJSON(r.Context(), w, http.StatusCreated, created)

	return nil
}

// HandleListBooks returns all live books.
func (ht *HTTPTransport) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	if err := ht.handleListBooks(w, r); err != nil {
		http_.WriteError(w, err)
	}
}

func (ht *HTTPTransport) handleListBooks(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "list books failed", "error", err)
		} else {
			log.DebugContext(ctx, "list books done")
		}
	}(r.Context())

	books, err := ht.catalogSvc.ListBooks(r.Context())
	if err != nil {
		return err
	}

	ht.writeJSON(r.Context(), w, http.StatusOK, books)

	return nil
}

// HandleSearchBooks filters live books by the title and author query parameters.
func (ht *HTTPTransport) HandleSearchBooks(w http.ResponseWriter, r *http.Request) {
	if err := ht.handleSearchBooks(w, r); err != nil {
		http_.WriteError(w, err)
	}
}

func (ht *HTTPTransport) handleSearchBooks(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "search books failed", "error", err)
		} else {
			log.DebugContext(ctx, "search books done")
		}
	}(r.Context())

	books, err := ht.catalogSvc.SearchBooks(r.Context(), domain.BookQuery{
		Title:  r.URL.Query().Get("title"),
		Author: r.URL.Query().Get("author"),
	})
	if err != nil {
		return err
	}

	ht.writeJSON(r.Context(), w, http.StatusOK, books)

	return nil
}

// HandleGetBook returns a single live book.
func (ht *HTTPTransport) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	if err := ht.handleGetBook(w, r); err != nil {
		http_.WriteError(w, err)
	}
}

func (ht *HTTPTransport) handleGetBook(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "get book failed", "error", err)
		} else {
			log.DebugContext(ctx, "get book done")
		}
	}(r.Context())

	id, err := bookID(r)
	if err != nil {
		return err
	}

	found, err := ht.catalogSvc.GetBook(r.Context(), id)
	if err != nil {
		return err
	}

	ht.writeJSON(r.Context(), w, http.StatusOK, found)

	return nil
}

// HandleUpdateBook applies a partial update. Fields missing from the JSON
// body stay unchanged.
func (ht *HTTPTransport) HandleUpdateBook(w http.ResponseWriter, r *http.Request) {
	if err := ht.handleUpdateBook(w, r); err != nil {
		http_.WriteError(w, err)
	}
}

func (ht *HTTPTransport) handleUpdateBook(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "update book failed", "error", err)
		} else {
			log.DebugContext(ctx, "update book done")
		}
	}(r.Context())

	caller, err := http_.CallerIdentity(r)
	if err != nil {
		return err //nolint:wrapcheck
	}

	// Role is checked before the body is decoded.
	if err := domain.Authorize(caller, domain.RoleLibrarian); err != nil {
		return err //nolint:wrapcheck
	}

	id, err := bookID(r)
	if err != nil {
		return err
	}

	var patch domain.BookPatch
	if err := http_.DecodeJSON(r, &patch); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	updated, err := ht.catalogSvc.UpdateBook(r.Context(), caller, id, patch)
	if err != nil {
		return err
	}

	ht.writeJSON(r.Context(), w, http.StatusOK, updated)

	return nil
}

// HandleDeleteBook soft-deletes a book.
func (ht *HTTPTransport) HandleDeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := ht.handleDeleteBook(w, r); err != nil {
		http_.WriteError(w, err)
	}
}

func (ht *HTTPTransport) handleDeleteBook(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "delete book failed", "error", err)
		} else {
			log.DebugContext(ctx, "delete book done")
		}
	}(r.Context())

	caller, err := http_.CallerIdentity(r)
	if err != nil {
		return err //nolint:wrapcheck
	}

	id, err := bookID(r)
	if err != nil {
		return err
	}

	if err := ht.catalogSvc.DeleteBook(r.Context(), caller, id); err != nil {
		return err
	}

	ht.writeJSON(r.Context(), w, http.StatusOK, domain.MessageResponse{Message: "Book deleted successfully"})

	return nil
}

// HandleStoreCover accepts the cover either as the raw request body or as a
// multipart form file named after MultipartFileName.
func (ht *HTTPTransport) HandleStoreCover(w http.ResponseWriter, r *http.Request) {
	if err := ht.handleStoreCover(w, r); err != nil {
		http_.WriteError(w, err)
	}
}

func (ht *HTTPTransport) handleStoreCover(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "store cover failed", "error", err)
		} else {
			log.DebugContext(ctx, "store cover done")
		}
	}(r.Context())

	caller, err := http_.CallerIdentity(r)
	if err != nil {
		return err //nolint:wrapcheck
	}

	id, err := bookID(r)
	if err != nil {
		return err
	}

	data, err := ht.readCover(w, r)
	if err != nil {
		return err
	}

	cover, err := ht.catalogSvc.StoreCover(r.Context(), caller, id, data)
	if err != nil {
		return err
	}

	ht.writeJSON(r.Context(), w, http.StatusOK, domain.CoverResponse{
		BookID:  cover.BookID,
		CoverID: cover.Blob.ID.String(),
	})

	return nil
}

// readCover reads at most one byte past the size limit, so that the
// service can reject oversized uploads.
func (ht *HTTPTransport) readCover(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := ht.catalogSvc.MaxCoverSize() + 1

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(io.LimitReader(r.Body, limit))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}

		return data, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	file, _, err := r.FormFile(ht.cfg.MultipartFileName)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.ErrCoverTooLarge
		}

		return nil, fmt.Errorf("%w: form file %q: %w", domain.ErrBadRequest, ht.cfg.MultipartFileName, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit))
	if err != nil {
		return nil, fmt.Errorf("read form file: %w", err)
	}

	return data, nil
}

// HandleFetchCover serves the cover image, optionally resized via the width
// query parameter.
func (ht *HTTPTransport) HandleFetchCover(w http.ResponseWriter, r *http.Request) {
	if err := ht.handleFetchCover(w, r); err != nil {
		http_.WriteError(w, err)
	}
}

func (ht *HTTPTransport) handleFetchCover(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "fetch cover failed", "error", err)
		} else {
			log.DebugContext(ctx, "fetch cover done")
		}
	}(r.Context())

	id, err := bookID(r)
	if err != nil {
		return err
	}

	width := 0
	if raw := r.URL.Query().Get(ht.cfg.URLWidthParam); raw != "" {
		if width, err = strconv.Atoi(raw); err != nil {
			return fmt.Errorf("%w: invalid width %q", domain.ErrBadRequest, raw)
		}
	}

	cover, err := ht.catalogSvc.FetchCover(r.Context(), id, width)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", cover.MIMEType)
	w.Header().Set("Content-Length", strconv.FormatInt(cover.Size(), 10))
	w.WriteHeader(http.StatusOK)

	if _, err := cover.Blob.WriteTo(w); err != nil {
		ht.log.ErrorContext(r.Context(), "write cover failed", "error", err)
	}

	return nil
}
