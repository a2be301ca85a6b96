package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/vidtags/internal/repository"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func sqlRe(s string) string { return regexp.QuoteMeta(s) }

func TestDB_WithinTx_Commit(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(sqlRe(`DELETE FROM user_video_tags WHERE user_id=$1`)).
		WithArgs("u@example.com").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()

	var n int64
	err := db.WithinTx(ctx, func(ctx context.Context, r repository.Repositories) error {
		var err error
		n, err = r.Assoc.DeleteAllUserVideoTagsOfUser(ctx, "u@example.com")
		return err
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_WithinTx_RollbackOnError(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	ctx := context.Background()
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := db.WithinTx(ctx, func(context.Context, repository.Repositories) error { return boom })
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_WithinTx_BeginError(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	boom := errors.New("no conn")

	mock.ExpectBegin().WillReturnError(boom)
	called := false
	err := db.WithinTx(context.Background(), func(context.Context, repository.Repositories) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, boom)
	require.False(t, called)
}

func TestDB_Ping(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()

	mock.ExpectExec(sqlRe(`SELECT 1`)).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	require.NoError(t, db.Ping(context.Background()))

	mock.ExpectExec(sqlRe(`SELECT 1`)).WillReturnError(errors.New("conn refused"))
	require.Error(t, db.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
