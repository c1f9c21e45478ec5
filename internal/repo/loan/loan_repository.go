package loan

import (
	"context"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/database"
)

// Repository defines the interface for loan persistence.
type Repository interface {
	// HasActive reports whether userID currently holds bookID.
	HasActive(ctx context.Context, q database.Querier, userID, bookID int64) (bool, error)

	// GetActive returns the open loan of the pair, or ErrLoanNotFound.
	GetActive(ctx context.Context, q database.Querier, userID, bookID int64) (*domain.Loan, error)

	// Open records a new active loan and sets its ID.
	// Returns ErrAlreadyBorrowed if an active loan for the pair exists.
	Open(ctx context.Context, tx *database.Tx, loan *domain.Loan) error

	// Close marks the active loan of the pair as returned.
	// Returns ErrLoanNotFound if there is none.
	Close(ctx context.Context, tx *database.Tx, userID, bookID int64, returnedAt int64) error

	// ListByUser returns the loans of userID, newest first. An empty status
	// returns loans in any status.
	ListByUser(ctx context.Context, q database.Querier, userID int64, status domain.LoanStatus) ([]domain.Loan, error)
}

// RepositoryFactory creates a Repository on top of an open database.
type RepositoryFactory func(db *database.DB) Repository
