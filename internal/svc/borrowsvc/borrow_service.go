package borrowsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/database"
	"github.com/mkrupp/library/internal/infra/logging"
	"github.com/mkrupp/library/internal/repo/book"
	"github.com/mkrupp/library/internal/repo/loan"
	"github.com/mkrupp/library/internal/repo/user"
)

// BorrowService lends and takes back copies. Each operation is one unit of
// work over the books and loans tables.
type BorrowService struct {
	db    *database.DB
	books book.Repository
	loans loan.Repository
	users user.Repository
	log   logging.Logger
	now   func() time.Time
}

// NewBorrowService wires the repositories on top of db.
func NewBorrowService(
	db *database.DB,
	bookFactory book.RepositoryFactory,
	loanFactory loan.RepositoryFactory,
	userFactory user.RepositoryFactory,
) *BorrowService {
	return &BorrowService{
		db:    db,
		books: bookFactory(db),
		loans: loanFactory(db),
		users: userFactory(db),
		log:   logging.GetLogger("svc.borrowsvc.borrow_service"),
		now:   time.Now,
	}
}

// DB returns the underlying store, e.g. for health checks.
func (svc *BorrowService) DB() *database.DB {
	return svc.db
}

// BorrowBook lends one copy of bookID to userID.
//
// Returns ErrUnavailable if the book is absent, soft-deleted or out of
// copies, ErrUserNotFound for unknown borrowers and ErrAlreadyBorrowed if
// the user still holds a copy. Nothing is written unless the loan opens.
func (svc *BorrowService) BorrowBook(ctx context.Context, bookID, userID int64) (opened *domain.Loan, err error) {
	log := svc.log.With(logging.Group("loan", "book_id", bookID, "user_id", userID))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "borrow failed", "error", err)
		} else {
			log.InfoContext(ctx, "book borrowed", "loan_id", opened.ID)
		}
	}()

	if err := svc.db.WithinTx(ctx, func(ctx context.Context, tx *database.Tx) error {
		l, err := svc.borrow(ctx, tx, bookID, userID)
		if err != nil {
			return err
		}

		opened = l

		return nil
	}); err != nil {
		return nil, fmt.Errorf("borrow book: %w", err)
	}

	return opened, nil
}

func (svc *BorrowService) borrow(ctx context.Context, tx *database.Tx, bookID, userID int64) (*domain.Loan, error) {
	b, err := svc.books.GetForUpdate(ctx, tx, bookID)
	if err != nil {
		if errors.Is(err, domain.ErrBookNotFound) {
			return nil, fmt.Errorf("%w: book %d does not exist", domain.ErrUnavailable, bookID)
		}

		return nil, err //nolint:wrapcheck
	} else if b.Deleted {
		return nil, fmt.Errorf("%w: book %d was removed", domain.ErrUnavailable, bookID)
	}

	if _, err := svc.users.GetByID(ctx, tx, userID); err != nil {
		return nil, err //nolint:wrapcheck
	}

	active, err := svc.loans.HasActive(ctx, tx, userID, bookID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	} else if active {
		return nil, domain.ErrAlreadyBorrowed
	}

	if b.Quantity < 1 {
		return nil, domain.ErrUnavailable
	}

	if err := svc.books.TakeCopy(ctx, tx, bookID); err != nil {
		return nil, err //nolint:wrapcheck
	}

	l := &domain.Loan{
		UserID:     userID,
		BookID:     bookID,
		BorrowedAt: svc.now().Unix(),
	}

	if err := svc.loans.Open(ctx, tx, l); err != nil {
		return nil, err //nolint:wrapcheck
	}

	return l, nil
}

// ReturnBook closes the active loan of userID for bookID and puts the copy
// back on the shelf, also for books removed from the catalog meanwhile.
// Returns ErrLoanNotFound if there is no active loan.
func (svc *BorrowService) ReturnBook(ctx context.Context, bookID, userID int64) (returned *domain.Loan, err error) {
	log := svc.log.With(logging.Group("loan", "book_id", bookID, "user_id", userID))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "return failed", "error", err)
		} else {
			log.InfoContext(ctx, "book returned", "loan_id", returned.ID)
		}
	}()

	if err := svc.db.WithinTx(ctx, func(ctx context.Context, tx *database.Tx) error {
		l, err := svc.loans.GetActive(ctx, tx, userID, bookID)
		if err != nil {
			return err //nolint:wrapcheck
		}

		returnedAt := svc.now().Unix()

		if err := svc.loans.Close(ctx, tx, userID, bookID, returnedAt); err != nil {
			return err //nolint:wrapcheck
		}

		if err := svc.books.ReturnCopy(ctx, tx, bookID); err != nil {
			return err //nolint:wrapcheck
		}

		l.Status = domain.LoanReturned
		l.ReturnedAt = &returnedAt
		returned = l

		return nil
	}); err != nil {
		return nil, fmt.Errorf("return book: %w", err)
	}

	return returned, nil
}

// ListLoans returns the loans of userID, newest first, optionally filtered
// by status.
func (svc *BorrowService) ListLoans(ctx context.Context, userID int64, status domain.LoanStatus) ([]domain.Loan, error) {
	if _, err := domain.ParseLoanStatus(string(status)); err != nil {
		return nil, err //nolint:wrapcheck
	}

	loans, err := svc.loans.ListByUser(ctx, svc.db, userID, status)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}

	return loans, nil
}
