package authsvc

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/database"
	"github.com/mkrupp/library/internal/infra/logging"
	"github.com/mkrupp/library/internal/repo/user"
)

// AuthConfig contains configuration parameters for the authentication service.
type AuthConfig struct {
	// SigningKeyFile is the path to the RSA private key file
	SigningKeyFile string `env:"SIGNING_KEY_FILE" default:"var/storage/authsvc.key"`

	// SigningKeySize is the RSA modulus size used when the key file is created
	SigningKeySize int `env:"SIGNING_KEY_SIZE" default:"2048"`

	// TokenDuration is the validity of issued tokens
	TokenDuration time.Duration `env:"TOKEN_DURATION" default:"1h"`

	BcryptCost int `env:"BCRYPT_COST" default:"10"`
}

// AuthService issues and verifies bearer tokens and manages user accounts.
type AuthService struct {
	Config     AuthConfig
	DB         *database.DB
	UserRepo   user.Repository
	Log        logging.Logger
	SigningKey *rsa.PrivateKey

	// compared against when the user does not exist, so that unknown
	// usernames cost as much as wrong passwords
	dummyHash []byte
	dummyOnce sync.Once
}

// NewAuthService loads (or creates) the signing key and wires the user repository.
func NewAuthService(db *database.DB, repoFactory user.RepositoryFactory, cfg AuthConfig) (*AuthService, error) {
	signingKey, err := GetPrivateKey(cfg.SigningKeyFile, cfg.SigningKeySize)
	if err != nil {
		return nil, fmt.Errorf("get private key: %w", err)
	}

	return &AuthService{
		Config:     cfg,
		DB:         db,
		UserRepo:   repoFactory(db),
		Log:        logging.GetLogger("svc.authsvc.auth_service"),
		SigningKey: signingKey,
	}, nil
}

func (s *AuthService) cost() int {
	if s.Config.BcryptCost < bcrypt.MinCost {
		return bcrypt.DefaultCost
	}

	return s.Config.BcryptCost
}

// RegisterUser creates an account with a bcrypt-hashed password.
// Returns ErrUserAlreadyExists if the username is taken.
func (s *AuthService) RegisterUser(ctx context.Context, username, password string, role domain.Role) (_ *domain.User, err error) {
	log := s.Log.With(logging.Group("user", "username", username, "role", role))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "register user failed", "error", err)
		} else {
			log.InfoContext(ctx, "user registered")
		}
	}()

	username = strings.TrimSpace(username)

	switch {
	case username == "":
		return nil, fmt.Errorf("%w: username must not be empty", domain.ErrBadRequest)
	case password == "":
		return nil, fmt.Errorf("%w: password must not be empty", domain.ErrBadRequest)
	case !role.Valid():
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrBadRequest, role)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	newUser := &domain.User{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().Unix(),
	}

	if err := s.DB.WithinTx(ctx, func(ctx context.Context, tx *database.Tx) error {
		return s.UserRepo.Create(ctx, tx, newUser)
	}); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return newUser, nil
}

// ListUsers returns all accounts ordered by username.
func (s *AuthService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.UserRepo.List(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

// Login authenticates a user and returns a signed token carrying the user's
// identity. Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (_ string, err error) {
	log := s.Log.With(logging.Group("user", "username", username))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "login failed", "error", err)
		} else {
			log.DebugContext(ctx, "login successful")
		}
	}()

	if username == "" || password == "" {
		return "", fmt.Errorf("%w: username and password are required", domain.ErrBadRequest)
	}

	account, err := s.UserRepo.GetByUsername(ctx, s.DB, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.burnCompare(password)

			return "", domain.ErrInvalidCredentials
		}

		return "", fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		return "", domain.ErrInvalidCredentials
	}

	now := time.Now()

	return s.IssueToken(domain.AuthToken{
		Username:  account.Username,
		Role:      account.Role,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.Config.TokenDuration).Unix(),
	})
}

func (s *AuthService) burnCompare(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("library"), s.cost())
	})

	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

// IssueToken serializes and signs token: base64url(JSON payload || RSA-PSS signature).
func (s *AuthService) IssueToken(token domain.AuthToken) (string, error) {
	tokenBytes, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("marshal token: %w", err)
	}

	hashed := sha256.Sum256(tokenBytes)

	signature, err := rsa.SignPSS(rand.Reader, s.SigningKey, crypto.SHA256, hashed[:], nil)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return base64.URLEncoding.EncodeToString(append(tokenBytes, signature...)), nil
}

// ValidateToken verifies a token's signature and expiration.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (token domain.AuthToken, err error) {
	defer func() {
		if err != nil {
			s.Log.WarnContext(ctx, "validate token failed", "error", err)
		} else {
			s.Log.DebugContext(ctx, "token validated", logging.Group("token",
				"username", token.Username,
				"role", token.Role,
				"exp", time.Unix(token.ExpiresAt, 0).UTC().Format(time.RFC3339),
			))
		}
	}()

	token, err = ValidateToken(ctx, tokenString, &s.SigningKey.PublicKey, time.Now())
	if err != nil {
		return domain.AuthToken{}, fmt.Errorf("validate token: %w", err)
	}

	return token, nil
}
