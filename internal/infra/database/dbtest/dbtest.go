// Package dbtest provides throwaway SQLite databases and row fixtures for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/database"
)

// Open creates a migrated database in a fresh temp file. It is closed when
// the test ends.
func Open(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Driver:           database.DriverSQLite,
		DSN:              filepath.Join(t.TempDir(), "library.db"),
		MaxOpenConns:     8,
		ConnMaxLifetime:  time.Minute,
		AutoMigrate:      true,
		TxMaxAttempts:    5,
		TxRetryBaseDelay: time.Millisecond,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// InsertUser adds a user row with a dummy password hash.
func InsertUser(t testing.TB, db *database.DB, username string, role domain.Role) domain.User {
	t.Helper()

	user := domain.User{
		Username:     username,
		PasswordHash: []byte("not-a-hash"),
		Role:         role,
		CreatedAt:    time.Now().Unix(),
	}

	id, err := db.InsertReturningID(context.Background(), db, db.Builder().Insert("users").Rows(goqu.Record{
		"username":      user.Username,
		"password_hash": user.PasswordHash,
		"role":          string(user.Role),
		"created_at":    user.CreatedAt,
	}))
	require.NoError(t, err)

	user.ID = id

	return user
}

// InsertBook adds a live book row.
func InsertBook(t testing.TB, db *database.DB, title, author string, qty int) domain.Book {
	t.Helper()

	now := time.Now().Unix()
	book := domain.Book{
		Title:       title,
		Author:      author,
		Quantity:    qty,
		PublishDate: "2001-02-03",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	id, err := db.InsertReturningID(context.Background(), db, db.Builder().Insert("books").Rows(goqu.Record{
		"title":        book.Title,
		"author":       book.Author,
		"quantity":     book.Quantity,
		"publish_date": book.PublishDate,
		"created_at":   book.CreatedAt,
		"updated_at":   book.UpdatedAt,
	}))
	require.NoError(t, err)

	book.ID = id

	return book
}

// BookQuantity reads the stored quantity of a book, ignoring soft deletion.
func BookQuantity(t testing.TB, db *database.DB, bookID int64) int {
	t.Helper()

	var qty int

	query, args, err := db.Builder().From("books").Select("quantity").
		Where(goqu.C("id").Eq(bookID)).Prepared(true).ToSQL()
	require.NoError(t, err)
	require.NoError(t, db.GetContext(context.Background(), &qty, query, args...))

	return qty
}

// CountLoans counts loan rows in the given status; an empty status counts all.
func CountLoans(t testing.TB, db *database.DB, status domain.LoanStatus) int {
	t.Helper()

	ds := db.Builder().From("loans").Select(goqu.COUNT("*"))
	if status != "" {
		ds = ds.Where(goqu.C("status").Eq(string(status)))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	require.NoError(t, err)

	var n int
	require.NoError(t, db.GetContext(context.Background(), &n, query, args...))

	return n
}
