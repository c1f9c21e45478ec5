package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/database"
	"github.com/mkrupp/library/internal/infra/database/dbtest"
	"github.com/mkrupp/library/internal/repo/user"
)

func createUser(t *testing.T, db *database.DB, repo user.Repository, username string, role domain.Role) (*domain.User, error) {
	t.Helper()

	u := &domain.User{
		Username:     username,
		PasswordHash: []byte("hash-" + username),
		Role:         role,
		CreatedAt:    time.Now().Unix(),
	}

	err := db.WithinTx(context.Background(), func(ctx context.Context, tx *database.Tx) error {
		return repo.Create(ctx, tx, u)
	})

	return u, err
}

func TestSQLUserRepository_CreateAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := dbtest.Open(t)
	repo := user.SQLUserRepositoryFactory(db)

	created, err := createUser(t, db, repo, "alice", domain.RoleLibrarian)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	byName, err := repo.GetByUsername(ctx, db, "alice")
	require.NoError(t, err)
	assert.Equal(t, *created, *byName)

	byID, err := repo.GetByID(ctx, db, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleLibrarian, byID.Role)
	assert.Equal(t, []byte("hash-alice"), byID.PasswordHash)
}

func TestSQLUserRepository_DuplicateUsername(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	repo := user.NewSQLUserRepository(db)

	_, err := createUser(t, db, repo, "bob", domain.RoleMember)
	require.NoError(t, err)

	_, err = createUser(t, db, repo, "bob", domain.RoleLibrarian)
	require.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestSQLUserRepository_NotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := dbtest.Open(t)
	repo := user.NewSQLUserRepository(db)

	_, err := repo.GetByUsername(ctx, db, "nobody")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.GetByID(ctx, db, 42)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestSQLUserRepository_List(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := dbtest.Open(t)
	repo := user.NewSQLUserRepository(db)

	users, err := repo.List(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, users)

	for _, name := range []string{"carol", "alice", "bob"} {
		_, err := createUser(t, db, repo, name, domain.RoleMember)
		require.NoError(t, err)
	}

	users, err = repo.List(ctx, db)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
	assert.Equal(t, "carol", users[2].Username)
}
