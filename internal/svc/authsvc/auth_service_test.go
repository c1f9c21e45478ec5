package authsvc_test

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/database"
	"github.com/mkrupp/library/internal/infra/database/dbtest"
	"github.com/mkrupp/library/internal/infra/logging"
	"github.com/mkrupp/library/internal/repo/user"
	"github.com/mkrupp/library/internal/svc/authsvc"
)

var errRepo = errors.New("repository error")

// failingUserRepository fails every call with errRepo.
type failingUserRepository struct {
	user.Repository
}

func (failingUserRepository) Create(context.Context, *database.Tx, *domain.User) error {
	return errRepo
}

func (failingUserRepository) GetByUsername(context.Context, database.Querier, string) (*domain.User, error) {
	return nil, errRepo
}

//nolint:gochecknoglobals
var testKey = sync.OnceValues(func() (*rsa.PrivateKey, error) {
	return authsvc.GeneratePrivateKey(2048)
})

func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := testKey()
	require.NoError(t, err)

	return key
}

func setupTestService(t *testing.T) *authsvc.AuthService {
	t.Helper()

	db := dbtest.Open(t)

	return &authsvc.AuthService{
		Config: authsvc.AuthConfig{
			TokenDuration: time.Hour,
			BcryptCost:    bcrypt.MinCost,
		},
		DB:         db,
		UserRepo:   user.NewSQLUserRepository(db),
		Log:        logging.GetLogger("test.authsvc"),
		SigningKey: signingKey(t),
	}
}

func TestAuthService_RegisterUser(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		role     domain.Role
		failRepo bool
		wantErr  error
	}{
		{name: "successful registration", username: "newuser", password: "password123", role: domain.RoleMember},
		{name: "librarian", username: "alice", password: "password123", role: domain.RoleLibrarian},
		{name: "duplicate username", username: "existinguser", password: "password123", role: domain.RoleMember, wantErr: domain.ErrUserAlreadyExists},
		{name: "empty username", username: "  ", password: "password123", role: domain.RoleMember, wantErr: domain.ErrBadRequest},
		{name: "empty password", username: "bob", password: "", role: domain.RoleMember, wantErr: domain.ErrBadRequest},
		{name: "unknown role", username: "bob", password: "password123", role: "admin", wantErr: domain.ErrBadRequest},
		{name: "repository error", username: "erroruser", password: "password123", role: domain.RoleMember, failRepo: true, wantErr: errRepo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := setupTestService(t)
			ctx := context.Background()

			_, err := svc.RegisterUser(ctx, "existinguser", "oldpass", domain.RoleMember)
			require.NoError(t, err)

			if tt.failRepo {
				svc.UserRepo = failingUserRepository{}
			}

			got, err := svc.RegisterUser(ctx, tt.username, tt.password, tt.role)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.NotZero(t, got.ID)
			assert.Equal(t, tt.role, got.Role)
			assert.NoError(t, bcrypt.CompareHashAndPassword(got.PasswordHash, []byte(tt.password)))

			users, err := svc.ListUsers(ctx)
			require.NoError(t, err)
			assert.Len(t, users, 2)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, "testuser", "testpass123", domain.RoleLibrarian)
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		failRepo bool
		wantErr  error
	}{
		{name: "successful login", username: "testuser", password: "testpass123"},
		{name: "wrong password", username: "testuser", password: "wrongpass", wantErr: domain.ErrInvalidCredentials},
		{name: "user not found", username: "nonexistent", password: "anypass", wantErr: domain.ErrInvalidCredentials},
		{name: "missing password", username: "testuser", password: "", wantErr: domain.ErrBadRequest},
		{name: "missing username", username: "", password: "testpass123", wantErr: domain.ErrBadRequest},
		{name: "repository error", username: "testuser", password: "testpass123", failRepo: true, wantErr: errRepo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := svc.UserRepo
			if tt.failRepo {
				svc.UserRepo = failingUserRepository{}
				t.Cleanup(func() { svc.UserRepo = repo })
			}

			token, err := svc.Login(ctx, tt.username, tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, token)

				return
			}

			require.NoError(t, err)

			got, err := svc.ValidateToken(ctx, token)
			require.NoError(t, err)
			assert.Equal(t, domain.Identity{Username: "testuser", Role: domain.RoleLibrarian}, got.Identity())
		})
	}
}

func TestAuthService_ValidateToken(t *testing.T) {
	t.Parallel()

	svc := setupTestService(t)
	ctx := context.Background()

	now := time.Now()
	issue := func(token domain.AuthToken) string {
		s, err := svc.IssueToken(token)
		require.NoError(t, err)

		return s
	}

	validToken := issue(domain.AuthToken{
		Username: "testuser", Role: domain.RoleMember,
		IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix(),
	})

	otherKey, err := authsvc.GeneratePrivateKey(1024)
	require.NoError(t, err)

	foreign := &authsvc.AuthService{SigningKey: otherKey, Log: logging.NewNopLogger()}
	foreignToken, err := foreign.IssueToken(domain.AuthToken{
		Username: "testuser", Role: domain.RoleLibrarian,
		IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	raw, err := base64.URLEncoding.DecodeString(validToken)
	require.NoError(t, err)

	raw[2] ^= 0x01
	tampered := base64.URLEncoding.EncodeToString(raw)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "valid token", token: validToken},
		{name: "invalid token format", token: "invalid-token!", wantErr: domain.ErrInvalidAuthToken},
		{name: "empty token", token: "", wantErr: domain.ErrInvalidAuthToken},
		{name: "tampered payload", token: tampered, wantErr: domain.ErrInvalidAuthToken},
		{name: "signed by another key", token: foreignToken, wantErr: domain.ErrInvalidAuthToken},
		{
			name: "expired",
			token: issue(domain.AuthToken{
				Username: "testuser", Role: domain.RoleMember,
				IssuedAt: now.Add(-2 * time.Hour).Unix(), ExpiresAt: now.Add(-time.Hour).Unix(),
			}),
			wantErr: domain.ErrInvalidAuthToken,
		},
		{
			name: "issued in the future",
			token: issue(domain.AuthToken{
				Username: "testuser", Role: domain.RoleMember,
				IssuedAt: now.Add(time.Hour).Unix(), ExpiresAt: now.Add(2 * time.Hour).Unix(),
			}),
			wantErr: domain.ErrInvalidAuthToken,
		},
		{
			name: "no subject",
			token: issue(domain.AuthToken{
				Role: domain.RoleMember, IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix(),
			}),
			wantErr: domain.ErrInvalidAuthToken,
		},
		{
			name: "unknown role",
			token: issue(domain.AuthToken{
				Username: "testuser", Role: "admin",
				IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix(),
			}),
			wantErr: domain.ErrInvalidAuthToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token, err := svc.ValidateToken(ctx, tt.token)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "testuser", token.Username)
			assert.Greater(t, token.ExpiresAt, time.Now().Unix())
		})
	}
}

func TestGetPrivateKey(t *testing.T) {
	t.Parallel()

	t.Run("creates and reloads", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "keys", "authsvc.key")

		created, err := authsvc.GetPrivateKey(path, authsvc.DefaultKeySize)
		require.NoError(t, err)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		loaded, err := authsvc.GetPrivateKey(path, authsvc.DefaultKeySize)
		require.NoError(t, err)
		assert.True(t, created.Equal(loaded))
	})

	t.Run("accepts PKCS #8", func(t *testing.T) {
		t.Parallel()

		der, err := x509.MarshalPKCS8PrivateKey(signingKey(t))
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "pkcs8.key")
		require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600))

		loaded, err := authsvc.GetPrivateKey(path, authsvc.DefaultKeySize)
		require.NoError(t, err)
		assert.True(t, signingKey(t).Equal(loaded))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "garbage.key")
		require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

		_, err := authsvc.GetPrivateKey(path, authsvc.DefaultKeySize)
		require.ErrorIs(t, err, authsvc.ErrInvalidKey)
	})

	t.Run("rejects weak key", func(t *testing.T) {
		t.Parallel()

		weak, err := authsvc.GeneratePrivateKey(1024)
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "weak.key")
		require.NoError(t, os.WriteFile(path, authsvc.EncodePrivateKey(weak), 0o600))

		_, err = authsvc.GetPrivateKey(path, authsvc.DefaultKeySize)
		require.ErrorIs(t, err, authsvc.ErrWeakKey)
	})
}
