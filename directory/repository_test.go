package directory_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	credentials "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-credentials/directory"
	"github.com/goliatone/hashid/pkg/hashid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

func setupRepository(t *testing.T) (*directory.Repository, *bun.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() {
		_ = bunDB.Close()
	})

	require.NoError(t, directory.CreateSchema(context.Background(), bunDB))

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := directory.NewRepository(bunDB,
		directory.WithClock(func() time.Time { return now }),
		directory.WithLogger(quietLogger{}),
	)
	return repo, bunDB
}

func TestRepositoryCreateAndFind(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	created, err := repo.CreateUser(ctx, credentials.DirectoryUser{
		Username:     "ada_l",
		Email:        "Ada@Example.com",
		PasswordHash: "hash-1",
	})
	require.NoError(t, err)

	expectedID, err := hashid.NewUUID("ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, expectedID.String(), created.ID)
	assert.Equal(t, "ada@example.com", created.Email)

	byEmail, err := repo.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, "ada_l", byEmail.Username)
	assert.Equal(t, "hash-1", byEmail.PasswordHash)

	byUsername, err := repo.FindByUsername(ctx, "ada_l")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byUsername.ID)
}

func TestRepositoryFindMissing(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	_, err := repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, credentials.ErrUserNotFound)

	_, err = repo.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, credentials.ErrUserNotFound)

	_, err = repo.FindByEmail(ctx, "  ")
	assert.ErrorIs(t, err, credentials.ErrUserNotFound)
}

func TestRepositoryCreateRejectsTakenIdentity(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, credentials.DirectoryUser{Username: "grace", Email: "grace@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, credentials.DirectoryUser{Username: "other", Email: "grace@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, credentials.ErrIdentityTaken)

	_, err = repo.CreateUser(ctx, credentials.DirectoryUser{Username: "grace", Email: "other@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, credentials.ErrIdentityTaken)

	_, err = repo.CreateUser(ctx, credentials.DirectoryUser{Username: "", Email: "x@example.com"})
	assert.ErrorIs(t, err, credentials.ErrNoEmptyString)
}

func TestRepositoryUpdatePassword(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, credentials.DirectoryUser{Username: "linus", Email: "linus@example.com", PasswordHash: "old"})
	require.NoError(t, err)

	require.NoError(t, repo.UpdatePassword(ctx, "linus@example.com", "new"))

	user, err := repo.FindByEmail(ctx, "linus@example.com")
	require.NoError(t, err)
	assert.Equal(t, "new", user.PasswordHash)

	err = repo.UpdatePassword(ctx, "missing@example.com", "new")
	assert.ErrorIs(t, err, credentials.ErrUserNotFound)

	err = repo.UpdatePassword(ctx, "linus@example.com", "")
	assert.ErrorIs(t, err, credentials.ErrNoEmptyString)
}
