package borrowsvc_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/database"
	"github.com/mkrupp/library/internal/infra/database/dbtest"
	"github.com/mkrupp/library/internal/repo/book"
	"github.com/mkrupp/library/internal/repo/loan"
	"github.com/mkrupp/library/internal/repo/user"
	"github.com/mkrupp/library/internal/svc/borrowsvc"
)

func setup(t *testing.T) (*database.DB, *borrowsvc.BorrowService) {
	t.Helper()

	db := dbtest.Open(t)

	return db, borrowsvc.NewBorrowService(
		db,
		book.SQLBookRepositoryFactory,
		loan.SQLLoanRepositoryFactory,
		user.SQLUserRepositoryFactory,
	)
}

func softDelete(t *testing.T, db *database.DB, bookID int64) {
	t.Helper()

	repo := book.NewSQLBookRepository(db)
	require.NoError(t, db.WithinTx(context.Background(), func(ctx context.Context, tx *database.Tx) error {
		return repo.SoftDelete(ctx, tx, bookID)
	}))
}

func TestBorrowService_BorrowBook(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		qty     int
		deleted bool
		holds   bool
		bookID  int64
		userID  int64
		wantErr error
	}{
		{name: "available copy", qty: 2},
		{name: "last copy", qty: 1},
		{name: "no copy left", qty: 0, wantErr: domain.ErrUnavailable},
		{name: "soft-deleted book", qty: 3, deleted: true, wantErr: domain.ErrUnavailable},
		{name: "unknown book", qty: 1, bookID: 999, wantErr: domain.ErrUnavailable},
		{name: "unknown user", qty: 1, userID: 999, wantErr: domain.ErrUserNotFound},
		{name: "already borrowed", qty: 2, holds: true, wantErr: domain.ErrAlreadyBorrowed},
		{name: "already borrowed beats unavailable", qty: 1, holds: true, wantErr: domain.ErrAlreadyBorrowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, svc := setup(t)
			ctx := context.Background()
			reader := dbtest.InsertUser(t, db, "reader", domain.RoleMember)
			b := dbtest.InsertBook(t, db, "Dune", "Frank Herbert", tt.qty)

			if tt.holds {
				_, err := svc.BorrowBook(ctx, b.ID, reader.ID)
				require.NoError(t, err)
			}

			if tt.deleted {
				softDelete(t, db, b.ID)
			}

			bookID, userID := b.ID, reader.ID
			if tt.bookID != 0 {
				bookID = tt.bookID
			}

			if tt.userID != 0 {
				userID = tt.userID
			}

			qtyBefore := dbtest.BookQuantity(t, db, b.ID)
			loansBefore := dbtest.CountLoans(t, db, "")

			opened, err := svc.BorrowBook(ctx, bookID, userID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, opened)
				assert.Equal(t, qtyBefore, dbtest.BookQuantity(t, db, b.ID), "quantity must not change")
				assert.Equal(t, loansBefore, dbtest.CountLoans(t, db, ""), "no loan may be written")

				return
			}

			require.NoError(t, err)
			assert.NotZero(t, opened.ID)
			assert.Equal(t, domain.LoanBorrowed, opened.Status)
			assert.Equal(t, b.ID, opened.BookID)
			assert.Equal(t, reader.ID, opened.UserID)
			assert.Equal(t, tt.qty-1, dbtest.BookQuantity(t, db, b.ID))
			assert.Equal(t, 1, dbtest.CountLoans(t, db, domain.LoanBorrowed))
		})
	}
}

func TestBorrowService_BookSevenScenario(t *testing.T) {
	t.Parallel()

	db, svc := setup(t)
	ctx := context.Background()
	userA := dbtest.InsertUser(t, db, "a", domain.RoleMember)
	userB := dbtest.InsertUser(t, db, "b", domain.RoleMember)

	var seven domain.Book
	for i := 1; i <= 7; i++ {
		seven = dbtest.InsertBook(t, db, fmt.Sprintf("Book %d", i), "Author", 1)
	}

	require.Equal(t, int64(7), seven.ID)

	_, err := svc.BorrowBook(ctx, 7, userA.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, dbtest.BookQuantity(t, db, 7))

	_, err = svc.BorrowBook(ctx, 7, userA.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyBorrowed)

	_, err = svc.BorrowBook(ctx, 7, userB.ID)
	require.ErrorIs(t, err, domain.ErrUnavailable)

	assert.Equal(t, 0, dbtest.BookQuantity(t, db, 7))
	assert.Equal(t, 1, dbtest.CountLoans(t, db, ""))
}

func TestBorrowService_ConcurrentLastCopy(t *testing.T) {
	t.Parallel()

	const borrowers = 16

	db, svc := setup(t)
	b := dbtest.InsertBook(t, db, "Dune", "Frank Herbert", 1)

	users := make([]domain.User, borrowers)
	for i := range users {
		users[i] = dbtest.InsertUser(t, db, fmt.Sprintf("user%d", i), domain.RoleMember)
	}

	var (
		wg   sync.WaitGroup
		errs = make([]error, borrowers)
	)

	start := make(chan struct{})

	for i := range borrowers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			<-start

			_, errs[i] = svc.BorrowBook(context.Background(), b.ID, users[i].ID)
		}()
	}

	close(start)
	wg.Wait()

	succeeded := 0

	for _, err := range errs {
		if err == nil {
			succeeded++

			continue
		}

		assert.ErrorIs(t, err, domain.ErrUnavailable)
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, dbtest.BookQuantity(t, db, b.ID))
	assert.Equal(t, 1, dbtest.CountLoans(t, db, domain.LoanBorrowed))
}

func TestBorrowService_ConcurrentSameUser(t *testing.T) {
	t.Parallel()

	const attempts = 8

	db, svc := setup(t)
	reader := dbtest.InsertUser(t, db, "reader", domain.RoleMember)
	b := dbtest.InsertBook(t, db, "Dune", "Frank Herbert", 5)

	var (
		wg   sync.WaitGroup
		errs = make([]error, attempts)
	)

	for i := range attempts {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, errs[i] = svc.BorrowBook(context.Background(), b.ID, reader.ID)
		}()
	}

	wg.Wait()

	succeeded := 0

	for _, err := range errs {
		if err == nil {
			succeeded++

			continue
		}

		assert.ErrorIs(t, err, domain.ErrAlreadyBorrowed)
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 4, dbtest.BookQuantity(t, db, b.ID))
	assert.Equal(t, 1, dbtest.CountLoans(t, db, domain.LoanBorrowed))
}

func TestBorrowService_ReturnBook(t *testing.T) {
	t.Parallel()

	db, svc := setup(t)
	ctx := context.Background()
	reader := dbtest.InsertUser(t, db, "reader", domain.RoleMember)
	b := dbtest.InsertBook(t, db, "Dune", "Frank Herbert", 1)

	_, err := svc.ReturnBook(ctx, b.ID, reader.ID)
	require.ErrorIs(t, err, domain.ErrLoanNotFound)
	assert.Equal(t, 1, dbtest.BookQuantity(t, db, b.ID))

	opened, err := svc.BorrowBook(ctx, b.ID, reader.ID)
	require.NoError(t, err)

	returned, err := svc.ReturnBook(ctx, b.ID, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, opened.ID, returned.ID)
	assert.Equal(t, domain.LoanReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, 1, dbtest.BookQuantity(t, db, b.ID))

	_, err = svc.ReturnBook(ctx, b.ID, reader.ID)
	require.ErrorIs(t, err, domain.ErrLoanNotFound)

	// the same user may borrow again once returned
	_, err = svc.BorrowBook(ctx, b.ID, reader.ID)
	require.NoError(t, err)

	softDelete(t, db, b.ID)

	_, err = svc.ReturnBook(ctx, b.ID, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, dbtest.BookQuantity(t, db, b.ID))
}

func TestBorrowService_ListLoans(t *testing.T) {
	t.Parallel()

	db, svc := setup(t)
	ctx := context.Background()
	reader := dbtest.InsertUser(t, db, "reader", domain.RoleMember)
	dune := dbtest.InsertBook(t, db, "Dune", "Frank Herbert", 1)
	emma := dbtest.InsertBook(t, db, "Emma", "Jane Austen", 1)

	_, err := svc.BorrowBook(ctx, dune.ID, reader.ID)
	require.NoError(t, err)
	_, err = svc.BorrowBook(ctx, emma.ID, reader.ID)
	require.NoError(t, err)
	_, err = svc.ReturnBook(ctx, dune.ID, reader.ID)
	require.NoError(t, err)

	all, err := svc.ListLoans(ctx, reader.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	borrowed, err := svc.ListLoans(ctx, reader.ID, domain.LoanBorrowed)
	require.NoError(t, err)
	require.Len(t, borrowed, 1)
	assert.Equal(t, emma.ID, borrowed[0].BookID)

	returned, err := svc.ListLoans(ctx, reader.ID, domain.LoanReturned)
	require.NoError(t, err)
	require.Len(t, returned, 1)
	assert.Equal(t, dune.ID, returned[0].BookID)

	_, err = svc.ListLoans(ctx, reader.ID, "lost")
	require.ErrorIs(t, err, domain.ErrBadRequest)
}
