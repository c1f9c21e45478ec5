package borrowsvc_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/database/dbtest"
	"github.com/mkrupp/library/internal/svc/borrowsvc"
)

type stubAuthClient struct{}

func (stubAuthClient) Validate(_ context.Context, token string) (domain.Identity, bool, error) {
	if token != "valid" {
		return domain.Identity{}, false, nil
	}

	return domain.Identity{Username: "reader", Role: domain.RoleMember}, true, nil
}

func request(t *testing.T, srv *httptest.Server, method, path, token string) (int, []byte) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, srv.URL+path, nil)
	require.NoError(t, err)

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, raw
}

func kind(t *testing.T, raw []byte) string {
	t.Helper()

	var problem struct {
		Kind string `json:"kind"`
	}

	require.NoError(t, jsoniter.Unmarshal(raw, &problem), string(raw))

	return problem.Kind
}

func TestHTTPTransport(t *testing.T) {
	t.Parallel()

	db, svc := setup(t)
	srv := httptest.NewServer(borrowsvc.NewHTTPTransport(svc, stubAuthClient{}, borrowsvc.HTTPTransportConfig{}))
	t.Cleanup(srv.Close)

	userA := dbtest.InsertUser(t, db, "a", domain.RoleMember)
	userB := dbtest.InsertUser(t, db, "b", domain.RoleMember)
	b := dbtest.InsertBook(t, db, "Dune", "Frank Herbert", 1)

	borrowA := fmt.Sprintf("/borrow/%d/%d", b.ID, userA.ID)

	status, raw := request(t, srv, http.MethodPost, borrowA, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", kind(t, raw))

	status, raw = request(t, srv, http.MethodPost, borrowA, "valid")
	require.Equal(t, http.StatusOK, status, string(raw))

	var resp domain.LoanResponse
	require.NoError(t, jsoniter.Unmarshal(raw, &resp))
	assert.Equal(t, "Book borrowed successfully", resp.Message)
	assert.Equal(t, b.ID, resp.Loan.BookID)
	assert.Equal(t, userA.ID, resp.Loan.UserID)
	assert.Equal(t, domain.LoanBorrowed, resp.Loan.Status)

	status, raw = request(t, srv, http.MethodPost, borrowA, "valid")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "already_borrowed", kind(t, raw))

	status, raw = request(t, srv, http.MethodPost, fmt.Sprintf("/borrow/%d/%d", b.ID, userB.ID), "valid")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "unavailable", kind(t, raw))

	status, raw = request(t, srv, http.MethodPost, fmt.Sprintf("/borrow/%d/999", b.ID), "valid")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", kind(t, raw))

	status, raw = request(t, srv, http.MethodPost, "/borrow/x/1", "valid")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", kind(t, raw))

	status, raw = request(t, srv, http.MethodGet, fmt.Sprintf("/loans/%d?status=borrowed", userA.ID), "valid")
	require.Equal(t, http.StatusOK, status)

	var loans []domain.Loan
	require.NoError(t, jsoniter.Unmarshal(raw, &loans))
	require.Len(t, loans, 1)

	status, raw = request(t, srv, http.MethodGet, fmt.Sprintf("/loans/%d?status=lost", userA.ID), "valid")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", kind(t, raw))

	status, raw = request(t, srv, http.MethodPost, fmt.Sprintf("/return/%d/%d", b.ID, userA.ID), "valid")
	require.Equal(t, http.StatusOK, status, string(raw))
	require.NoError(t, jsoniter.Unmarshal(raw, &resp))
	assert.Equal(t, "Book returned successfully", resp.Message)
	assert.Equal(t, domain.LoanReturned, resp.Loan.Status)

	status, raw = request(t, srv, http.MethodPost, fmt.Sprintf("/return/%d/%d", b.ID, userA.ID), "valid")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", kind(t, raw))

	status, _ = request(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
}
