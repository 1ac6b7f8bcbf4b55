package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, ok, err := st.Get(ctx, "attom.key")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Set(ctx, "attom.key", "first"))
	require.NoError(t, st.Set(ctx, "attom.key", "second"))

	v, ok, err := st.Get(ctx, "attom.key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestSQLite_EmptyKey(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.Error(t, st.Set(context.Background(), " ", "x"))
	_, _, err := st.Get(context.Background(), "")
	assert.Error(t, err)
}

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresWithPool(mock), mock
}

func TestPostgres_Get(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT value FROM settings WHERE key = \$1`).
		WithArgs("attom.key").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("secret"))

	v, ok, err := s.Get(context.Background(), "attom.key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "secret", v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Get_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT value FROM settings`).
		WithArgs("attom.key").
		WillReturnError(pgx.ErrNoRows)

	_, ok, err := s.Get(context.Background(), "attom.key")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Get_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT value FROM settings`).
		WithArgs("attom.key").
		WillReturnError(errors.New("connection reset"))

	_, _, err := s.Get(context.Background(), "attom.key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get setting attom.key")
}

func TestPostgres_SetAndMigrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS settings`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`INSERT INTO settings`).
		WithArgs("attom.key", "secret", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Set(context.Background(), "attom.key", "secret"))
	assert.NoError(t, s.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen(t *testing.T) {
	st, err := Open(context.Background(), "none", "")
	require.NoError(t, err)
	assert.Nil(t, st)

	st, err = Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "s.db"))
	require.NoError(t, err)
	assert.NoError(t, st.Close())

	_, err = Open(context.Background(), "mysql", "")
	assert.Error(t, err)
}
