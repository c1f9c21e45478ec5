package user

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

const tableUsers = "users"

//nolint:gochecknoglobals
var userColumns = []any{"id", "username", "password_hash", "role", "created_at"}

// SQLUserRepository implements Repository on the shared SQL store.
type SQLUserRepository struct {
	db  *database.DB
	log logging.Logger
}

var _ Repository = (*SQLUserRepository)(nil)

// SQLUserRepositoryFactory implements RepositoryFactory.
func SQLUserRepositoryFactory(db *database.DB) Repository {
	return NewSQLUserRepository(db)
}

func NewSQLUserRepository(db *database.DB) *SQLUserRepository {
	return &SQLUserRepository{
		db:  db,
		log: logging.GetLogger("repo.user.sql"),
	}
}

func (r *SQLUserRepository) Create(ctx context.Context, tx *database.Tx, user *domain.User) error {
	id, err := r.db.InsertReturningID(ctx, tx, r.db.Builder().Insert(tableUsers).Rows(goqu.Record{
		"username":      user.Username,
		"password_hash": user.PasswordHash,
		"role":          string(user.Role),
		"created_at":    user.CreatedAt,
	}))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("insert user %q: %w", user.Username, errors.Join(domain.ErrUserAlreadyExists, err))
		}

		return domain.StoreError("insert user", err)
	}

	user.ID = id

	r.log.DebugContext(ctx, "user created", "id", id, "username", user.Username)

	return nil
}

func (r *SQLUserRepository) GetByUsername(ctx context.Context, q database.Querier, username string) (*domain.User, error) {
	return r.getOne(ctx, q, goqu.C("username").Eq(username))
}

func (r *SQLUserRepository) GetByID(ctx context.Context, q database.Querier, id int64) (*domain.User, error) {
	return r.getOne(ctx, q, goqu.C("id").Eq(id))
}

func (r *SQLUserRepository) getOne(ctx context.Context, q database.Querier, where exp.Expression) (*domain.User, error) {
	query, args, err := r.db.Builder().From(tableUsers).Select(userColumns...).
		Where(where).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var user domain.User
	if err := sqlx.GetContext(ctx, q, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}

		return nil, domain.StoreError("query user", err)
	}

	return &user, nil
}

func (r *SQLUserRepository) List(ctx context.Context, q database.Querier) ([]domain.User, error) {
	query, args, err := r.db.Builder().From(tableUsers).Select(userColumns...).
		Order(goqu.C("username").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	users := []domain.User{}
	if err := sqlx.SelectContext(ctx, q, &users, query, args...); err != nil {
		return nil, domain.StoreError("query users", err)
	}

	return users, nil
}
