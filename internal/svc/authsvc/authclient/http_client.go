package authclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/mkrupp/library/internal/domain"
	context_ "github.com/mkrupp/library/internal/infra/context"
	"github.com/mkrupp/library/internal/infra/logging"
)

const (
	TraceIDHeader       = "X-Request-ID"
	AuthorizationHeader = "Authorization"
)

var ErrUnexpectedStatus = errors.New("unexpected status from auth service")

// HTTPClientConfig holds configuration for the HTTP auth client.
type HTTPClientConfig struct {
	// AuthURL is the endpoint for token validation requests
	AuthURL string `env:"AUTH_URL" default:"http://localhost:8080/auth/validate"`

	Timeout time.Duration `env:"AUTH_TIMEOUT" default:"5s"`
}

// HTTPClient implements AuthClient against the auth service's validate endpoint.
type HTTPClient struct {
	httpClient *http.Client
	log        logging.Logger
	cfg        HTTPClientConfig
}

var _ AuthClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTPClient. If httpClient is nil, a client with
// cfg.Timeout is used.
func NewHTTPClient(cfg HTTPClientConfig, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout} //nolint:exhaustruct
	}

	return &HTTPClient{
		httpClient: httpClient,
		log:        logging.GetLogger("svc.authsvc.authclient"),
		cfg:        cfg,
	}
}

// Validate implements AuthClient.Validate. 401 and 400 answers mean an
// invalid token; any other non-200 status is reported as an error.
func (c *HTTPClient) Validate(ctx context.Context, token string) (domain.Identity, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, nil)
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("new request: %w", err)
	}

	req.Header.Set(AuthorizationHeader, "Bearer "+token)

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(TraceIDHeader, traceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusBadRequest:
		c.log.DebugContext(ctx, "token rejected", "status", resp.StatusCode)

		return domain.Identity{}, false, nil
	default:
		return domain.Identity{}, false, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("read body: %w", err)
	}

	var identity domain.Identity
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(body, &identity); err != nil {
		return domain.Identity{}, false, fmt.Errorf("decode identity: %w", err)
	}

	if identity.Username == "" || !identity.Role.Valid() {
		return domain.Identity{}, false, nil
	}

	return identity, true, nil
}
