package book

import (
	"context"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/database"
)

// Repository defines the interface for catalog persistence. Soft-deleted
// books are invisible to every read except GetForUpdate.
type Repository interface {
	// List returns all live books ordered by ID.
	List(ctx context.Context, q database.Querier) ([]domain.Book, error)

	// Search returns live books whose title and author contain the
	// respective terms, case-insensitively. Empty terms match everything.
	Search(ctx context.Context, q database.Querier, query domain.BookQuery) ([]domain.Book, error)

	// Get returns ErrBookNotFound for absent and soft-deleted books.
	Get(ctx context.Context, q database.Querier, id int64) (*domain.Book, error)

	// GetForUpdate reads and locks the row, including soft-deleted books.
	// Returns ErrBookNotFound only if the row does not exist.
	GetForUpdate(ctx context.Context, tx *database.Tx, id int64) (*domain.Book, error)

	// Create inserts book and sets its ID and timestamps.
	Create(ctx context.Context, tx *database.Tx, book *domain.Book) error

	// Update writes the fields present in patch to a live book.
	Update(ctx context.Context, tx *database.Tx, id int64, patch domain.BookPatch) error

	// SoftDelete hides a live book from the catalog.
	SoftDelete(ctx context.Context, tx *database.Tx, id int64) error

	// SetCover records the cover blob of a live book.
	SetCover(ctx context.Context, tx *database.Tx, id int64, coverID domain.BlobID, coverType string) error

	// TakeCopy decrements the quantity of a live book if a copy is left and
	// returns ErrUnavailable otherwise.
	TakeCopy(ctx context.Context, tx *database.Tx, id int64) error

	// ReturnCopy increments the quantity, regardless of soft deletion.
	ReturnCopy(ctx context.Context, tx *database.Tx, id int64) error
}

// RepositoryFactory creates a Repository on top of an open database.
type RepositoryFactory func(db *database.DB) Repository
