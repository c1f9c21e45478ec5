package loan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/database"
	"github.com/mkrupp/library/internal/infra/logging"
)

const tableLoans = "loans"

//nolint:gochecknoglobals
var loanColumns = []any{"id", "user_id", "book_id", "status", "borrowed_at", "returned_at"}

// SQLLoanRepository implements Repository on the shared SQL store.
type SQLLoanRepository struct {
	db  *database.DB
	log logging.Logger
}

var _ Repository = (*SQLLoanRepository)(nil)

// SQLLoanRepositoryFactory implements RepositoryFactory.
func SQLLoanRepositoryFactory(db *database.DB) Repository {
	return NewSQLLoanRepository(db)
}

func NewSQLLoanRepository(db *database.DB) *SQLLoanRepository {
	return &SQLLoanRepository{
		db:  db,
		log: logging.GetLogger("repo.loan.sql"),
	}
}

func activeLoan(userID, bookID int64) exp.Expression {
	return goqu.Ex{
		"user_id": userID,
		"book_id": bookID,
		"status":  string(domain.LoanBorrowed),
	}
}

func (r *SQLLoanRepository) HasActive(ctx context.Context, q database.Querier, userID, bookID int64) (bool, error) {
	query, args, err := r.db.Builder().From(tableLoans).Select(goqu.COUNT("*")).
		Where(activeLoan(userID, bookID)).Prepared(true).ToSQL()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var n int
	if err := sqlx.GetContext(ctx, q, &n, query, args...); err != nil {
		return false, domain.StoreError("count active loans", err)
	}

	return n > 0, nil
}

func (r *SQLLoanRepository) GetActive(ctx context.Context, q database.Querier, userID, bookID int64) (*domain.Loan, error) {
	query, args, err := r.db.Builder().From(tableLoans).Select(loanColumns...).
		Where(activeLoan(userID, bookID)).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var loan domain.Loan
	if err := sqlx.GetContext(ctx, q, &loan, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}

		return nil, domain.StoreError("query active loan", err)
	}

	return &loan, nil
}

func (r *SQLLoanRepository) Open(ctx context.Context, tx *database.Tx, loan *domain.Loan) error {
	id, err := r.db.InsertReturningID(ctx, tx, r.db.Builder().Insert(tableLoans).Rows(goqu.Record{
		"user_id":     loan.UserID,
		"book_id":     loan.BookID,
		"status":      string(domain.LoanBorrowed),
		"borrowed_at": loan.BorrowedAt,
	}))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errors.Join(domain.ErrAlreadyBorrowed, err)
		}

		return domain.StoreError("insert loan", err)
	}

	loan.ID = id
	loan.Status = domain.LoanBorrowed
	loan.ReturnedAt = nil

	r.log.DebugContext(ctx, "loan opened", "id", id, "user_id", loan.UserID, "book_id", loan.BookID)

	return nil
}

func (r *SQLLoanRepository) Close(ctx context.Context, tx *database.Tx, userID, bookID int64, returnedAt int64) error {
	query, args, err := r.db.Builder().Update(tableLoans).
		Set(goqu.Record{
			"status":      string(domain.LoanReturned),
			"returned_at": returnedAt,
		}).
		Where(activeLoan(userID, bookID)).
		Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.StoreError("close loan", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.StoreError("close loan", err)
	}

	if affected == 0 {
		return domain.ErrLoanNotFound
	}

	r.log.DebugContext(ctx, "loan closed", "user_id", userID, "book_id", bookID)

	return nil
}

func (r *SQLLoanRepository) ListByUser(
	ctx context.Context,
	q database.Querier,
	userID int64,
	status domain.LoanStatus,
) ([]domain.Loan, error) {
	ds := r.db.Builder().From(tableLoans).
		Select(loanColumns...).
		Where(goqu.C("user_id").Eq(userID)).
		Order(goqu.C("borrowed_at").Desc(), goqu.C("id").Desc())

	if status != "" {
		ds = ds.Where(goqu.C("status").Eq(string(status)))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	loans := []domain.Loan{}
	if err := sqlx.SelectContext(ctx, q, &loans, query, args...); err != nil {
		return nil, domain.StoreError("query loans", err)
	}

	return loans, nil
}
