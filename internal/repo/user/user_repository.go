package user

import (
	"context"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/database"
)

// Repository defines the interface for user persistence.
type Repository interface {
	// Create inserts user and sets its ID.
	// Returns ErrUserAlreadyExists if the username is already taken.
	Create(ctx context.Context, tx *database.Tx, user *domain.User) error

	// GetByUsername returns ErrUserNotFound if no such user exists.
	GetByUsername(ctx context.Context, q database.Querier, username string) (*domain.User, error)

	// GetByID returns ErrUserNotFound if no such user exists.
	GetByID(ctx context.Context, q database.Querier, id int64) (*domain.User, error)

	// List returns all users ordered by username.
	List(ctx context.Context, q database.Querier) ([]domain.User, error)
}

// RepositoryFactory creates a Repository on top of an open database.
type RepositoryFactory func(db *database.DB) Repository
