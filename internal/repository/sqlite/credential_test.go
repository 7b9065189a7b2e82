package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/dnavault-client/internal/model"
)

func newMock(t *testing.T) (*CredentialRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, m.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewCredentialRepository(db, "dnavault.credential"), m
}

func TestCredentialRepository_Load(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta(`SELECT value FROM credentials WHERE name = ?`)

	t.Run("found", func(t *testing.T) {
		repo, m := newMock(t)
		m.ExpectQuery(query).WithArgs("dnavault.credential").
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("tok"))

		got, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok", got)
	})

	t.Run("empty slot", func(t *testing.T) {
		repo, m := newMock(t)
		m.ExpectQuery(query).WithArgs("dnavault.credential").WillReturnError(sql.ErrNoRows)

		_, err := repo.Load(ctx)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		repo, m := newMock(t)
		m.ExpectQuery(query).WithArgs("dnavault.credential").WillReturnError(errors.New("locked"))

		_, err := repo.Load(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, model.ErrNotFound)
		assert.Contains(t, err.Error(), "failed to load credential")
	})
}

func TestCredentialRepository_Save(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta(`INSERT INTO credentials (name, value, updated_at)`)

	t.Run("success", func(t *testing.T) {
		repo, m := newMock(t)
		m.ExpectExec(query).WithArgs("dnavault.credential", "tok", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		assert.NoError(t, repo.Save(ctx, "tok"))
	})

	t.Run("error", func(t *testing.T) {
		repo, m := newMock(t)
		m.ExpectExec(query).WillReturnError(errors.New("readonly"))

		err := repo.Save(ctx, "tok")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save credential")
	})
}

func TestCredentialRepository_Clear(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta(`DELETE FROM credentials WHERE name = ?`)

	t.Run("success", func(t *testing.T) {
		repo, m := newMock(t)
		m.ExpectExec(query).WithArgs("dnavault.credential").WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Clear(ctx))
	})

	t.Run("error", func(t *testing.T) {
		repo, m := newMock(t)
		m.ExpectExec(query).WillReturnError(errors.New("readonly"))

		assert.Error(t, repo.Clear(ctx))
	})
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dnavault.db")

	repo, err := Open(ctx, path, "slot")
	require.NoError(t, err)

	_, err = repo.Load(ctx)
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, repo.Save(ctx, "first"))
	require.NoError(t, repo.Save(ctx, "second"))
	require.NoError(t, repo.Close())

	reopened, err := Open(ctx, path, "slot")
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	other := reopened.WithKey("other-slot")
	assert.Same(t, reopened.writeLock, other.writeLock)
	_, err = other.Load(ctx)
	assert.ErrorIs(t, err, model.ErrNotFound)
	require.NoError(t, other.Save(ctx, "cookies"))

	got, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	require.NoError(t, reopened.Clear(ctx))
	_, err = reopened.Load(ctx)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
