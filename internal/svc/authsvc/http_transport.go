package authsvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/logging"
	http_ "github.com/mkrupp/library/internal/infra/transport/http"
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HTTPTransport handles HTTP requests for the authentication service.
type HTTPTransport struct {
	authSvc *AuthService
	log     logging.Logger
	cfg     HTTPTransportConfig
	mux     *http.ServeMux
}

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
// Routes:
//   - POST /login: exchange credentials for a token
//   - POST /auth/validate: resolve a bearer token to its identity
//   - GET /healthz
func NewHTTPTransport(
	authSvc *AuthService,
	cfg HTTPTransportConfig,
) *HTTPTransport {
	ht := &HTTPTransport{
		authSvc: authSvc,
		log:     logging.GetLogger("svc.authsvc.http_transport"),
		cfg:     cfg,
		mux:     http.NewServeMux(),
	}

	ht.mux.HandleFunc("POST /login", ht.HandleLogin)
	ht.mux.HandleFunc("POST /auth/validate", ht.HandleValidate)
	ht.mux.HandleFunc("GET /healthz", http_.HealthHandler(authSvc.DB))

	return ht
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// HandleLogin processes user login requests.
// Expects a JSON body {"username", "password"}; returns {"access_token"}.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := ht.handleLogin(w, r); err != nil {
		http_.WriteError(w, err)
	}
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "user login failed", "error", err)
		} else {
			log.DebugContext(ctx, "user logged in")
		}
	}(r.Context())

	var req LoginRequest
	if err := http_.DecodeJSON(r, &req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	log = log.With(logging.Group("user", "username", req.Username))

	token, err := ht.authSvc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		return fmt.Errorf("login user: %w", err)
	}

	if err := http_.WriteJSON(w, http.StatusOK, domain.AuthTokenResponse{AccessToken: token}); err != nil {
		log.ErrorContext(r.Context(), "write response failed", "error", err)
	}

	return nil
}

// HandleValidate processes token validation requests.
// Expects the token in the Authorization header with Bearer scheme and
// returns the identity the token carries.
func (ht *HTTPTransport) HandleValidate(w http.ResponseWriter, r *http.Request) {
	if err := ht.handleValidate(w, r); err != nil {
		if errors.Is(err, domain.ErrNoAuthToken) {
			_ = http_.WriteJSON(w, http.StatusBadRequest, http_.Problem{
				Kind:    "bad_request",
				Message: domain.ErrNoAuthToken.Error(),
			})

			return
		}

		http_.WriteError(w, err)
	}
}

func (ht *HTTPTransport) handleValidate(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "user token validation failed", "error", err)
		} else {
			log.DebugContext(ctx, "user token validated")
		}
	}(r.Context())

	tokenString, err := http_.BearerToken(r)
	if err != nil {
		return fmt.Errorf("bearer token: %w", err)
	}

	token, err := ht.authSvc.ValidateToken(r.Context(), tokenString)
	if err != nil {
		return fmt.Errorf("validate token: %w", err)
	}

	if err := http_.WriteJSON(w, http.StatusOK, token.Identity()); err != nil {
		log.ErrorContext(r.Context(), "write response failed", "error", err)
	}

	return nil
}
