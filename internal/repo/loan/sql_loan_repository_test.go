package loan_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/database"
	"github.com/mkrupp/library/internal/infra/database/dbtest"
	"github.com/mkrupp/library/internal/repo/loan"
)

func inTx(t *testing.T, db *database.DB, fn database.TxFunc) error {
	t.Helper()

	return db.WithinTx(context.Background(), fn)
}

func TestSQLLoanRepository_OpenAndClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := dbtest.Open(t)
	repo := loan.SQLLoanRepositoryFactory(db)
	user := dbtest.InsertUser(t, db, "alice", domain.RoleMember)
	book := dbtest.InsertBook(t, db, "Dune", "Herbert", 2)

	active, err := repo.HasActive(ctx, db, user.ID, book.ID)
	require.NoError(t, err)
	assert.False(t, active)

	l := &domain.Loan{UserID: user.ID, BookID: book.ID, BorrowedAt: 100}
	require.NoError(t, inTx(t, db, func(ctx context.Context, tx *database.Tx) error {
		return repo.Open(ctx, tx, l)
	}))
	assert.NotZero(t, l.ID)
	assert.True(t, l.Active())

	active, err = repo.HasActive(ctx, db, user.ID, book.ID)
	require.NoError(t, err)
	assert.True(t, active)

	open, err := repo.GetActive(ctx, db, user.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ID, open.ID)
	assert.Equal(t, int64(100), open.BorrowedAt)

	err = inTx(t, db, func(ctx context.Context, tx *database.Tx) error {
		return repo.Open(ctx, tx, &domain.Loan{UserID: user.ID, BookID: book.ID, BorrowedAt: 101})
	})
	require.ErrorIs(t, err, domain.ErrAlreadyBorrowed)

	require.NoError(t, inTx(t, db, func(ctx context.Context, tx *database.Tx) error {
		return repo.Close(ctx, tx, user.ID, book.ID, 200)
	}))

	active, err = repo.HasActive(ctx, db, user.ID, book.ID)
	require.NoError(t, err)
	assert.False(t, active)

	_, err = repo.GetActive(ctx, db, user.ID, book.ID)
	require.ErrorIs(t, err, domain.ErrLoanNotFound)

	err = inTx(t, db, func(ctx context.Context, tx *database.Tx) error {
		return repo.Close(ctx, tx, user.ID, book.ID, 300)
	})
	require.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestSQLLoanRepository_ListByUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := dbtest.Open(t)
	repo := loan.NewSQLLoanRepository(db)
	alice := dbtest.InsertUser(t, db, "alice", domain.RoleMember)
	bob := dbtest.InsertUser(t, db, "bob", domain.RoleMember)
	dune := dbtest.InsertBook(t, db, "Dune", "Herbert", 2)
	emma := dbtest.InsertBook(t, db, "Emma", "Austen", 2)

	require.NoError(t, inTx(t, db, func(ctx context.Context, tx *database.Tx) error {
		for _, l := range []*domain.Loan{
			{UserID: alice.ID, BookID: dune.ID, BorrowedAt: 10},
			{UserID: alice.ID, BookID: emma.ID, BorrowedAt: 20},
			{UserID: bob.ID, BookID: dune.ID, BorrowedAt: 30},
		} {
			if err := repo.Open(ctx, tx, l); err != nil {
				return err
			}
		}

		return repo.Close(ctx, tx, alice.ID, dune.ID, 40)
	}))

	all, err := repo.ListByUser(ctx, db, alice.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, emma.ID, all[0].BookID)
	assert.Equal(t, dune.ID, all[1].BookID)
	assert.Equal(t, domain.LoanReturned, all[1].Status)
	require.NotNil(t, all[1].ReturnedAt)
	assert.Equal(t, int64(40), *all[1].ReturnedAt)
	assert.Nil(t, all[0].ReturnedAt)

	borrowed, err := repo.ListByUser(ctx, db, alice.ID, domain.LoanBorrowed)
	require.NoError(t, err)
	require.Len(t, borrowed, 1)
	assert.Equal(t, emma.ID, borrowed[0].BookID)

	none, err := repo.ListByUser(ctx, db, 999, "")
	require.NoError(t, err)
	assert.Empty(t, none)
}
