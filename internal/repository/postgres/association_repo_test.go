package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/vidtags/internal/errs"
	"github.com/and161185/vidtags/internal/model"
)

const user = "u1@example.com"

func TestAssociationRepo_AddUserVideo(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssociationRepo(db.Pool)
	ctx := context.Background()
	const ins = `INSERT INTO user_videos (user_id, video_id) VALUES ($1, $2) ON CONFLICT (user_id, video_id) DO NOTHING`

	mock.ExpectExec(sqlRe(ins)).WithArgs(user, "vidA").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	created, err := r.AddUserVideo(ctx, user, "vidA")
	require.NoError(t, err)
	require.True(t, created)

	mock.ExpectExec(sqlRe(ins)).WithArgs(user, "vidA").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	created, err = r.AddUserVideo(ctx, user, "vidA")
	require.NoError(t, err)
	require.False(t, created)

	mock.ExpectExec(sqlRe(ins)).WithArgs(user, "gone").WillReturnError(&pgconn.PgError{Code: "23503"})
	_, err = r.AddUserVideo(ctx, user, "gone")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAssociationRepo_AddUserVideoTags(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssociationRepo(db.Pool)
	ctx := context.Background()
	tags := []string{"live", "music"}

	mock.ExpectQuery(sqlRe(`INSERT INTO user_video_tags (user_id, video_id, tag) SELECT $1, $2, unnest($3::text[]) ON CONFLICT (user_id, video_id, tag) DO NOTHING RETURNING tag`)).
		WithArgs(user, "vidA", tags).
		WillReturnRows(pgxmock.NewRows([]string{"tag"}).AddRow("music"))
	added, err := r.AddUserVideoTags(ctx, user, "vidA", tags)
	require.NoError(t, err)
	require.Equal(t, []string{"music"}, added)

	mock.ExpectQuery(sqlRe(`INSERT INTO user_video_tags`)).
		WithArgs(user, "unsaved", tags).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	_, err = r.AddUserVideoTags(ctx, user, "unsaved", tags)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAssociationRepo_DeleteUserVideoTags(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssociationRepo(db.Pool)
	ctx := context.Background()

	mock.ExpectQuery(sqlRe(`DELETE FROM user_video_tags WHERE user_id=$1 AND tag = ANY($2) AND video_id = ANY($3) RETURNING user_id, video_id, tag`)).
		WithArgs(user, []string{"music"}, []string{"vidA"}).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "video_id", "tag"}).AddRow(user, "vidA", "music"))
	got, err := r.DeleteUserVideoTags(ctx, user, []string{"music"}, []string{"vidA"})
	require.NoError(t, err)
	require.Equal(t, []model.UserVideoTag{{UserID: user, VideoID: "vidA", Tag: "music"}}, got)

	// empty inputs never hit the database
	got, err = r.DeleteUserVideoTags(ctx, user, nil, []string{"vidA"})
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssociationRepo_DeleteUserTagsIfUnused(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssociationRepo(db.Pool)

	mock.ExpectQuery(sqlRe(`DELETE FROM user_tags ut WHERE ut.user_id=$1 AND ut.tag = ANY($2) AND NOT EXISTS`)).
		WithArgs(user, []string{"b", "a"}).
		WillReturnRows(pgxmock.NewRows([]string{"tag"}).AddRow("b"))
	got, err := r.DeleteUserTagsIfUnused(context.Background(), user, []string{"b", "a"})
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, got)
}

func TestAssociationRepo_FindUnused(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssociationRepo(db.Pool)
	ctx := context.Background()

	mock.ExpectQuery(sqlRe(`SELECT c.id FROM unnest($1::text[]) AS c(id) WHERE NOT EXISTS (SELECT 1 FROM user_videos uv WHERE uv.video_id = c.id)`)).
		WithArgs([]string{"v1", "v2"}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("v2"))
	ids, err := r.FindVideoIDsUnusedAmong(ctx, []string{"v1", "v2"})
	require.NoError(t, err)
	require.Equal(t, []string{"v2"}, ids)

	mock.ExpectQuery(sqlRe(`SELECT c.tag FROM unnest($2::text[]) AS c(tag) WHERE NOT EXISTS (SELECT 1 FROM user_video_tags uvt WHERE uvt.user_id = $1 AND uvt.tag = c.tag)`)).
		WithArgs(user, []string{"a", "b"}).
		WillReturnRows(pgxmock.NewRows([]string{"tag"}).AddRow("b"))
	tags, err := r.FindTagsUnusedByUserAmong(ctx, user, []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, tags)

	mock.ExpectQuery(sqlRe(`SELECT c.tag FROM unnest($1::text[]) AS c(tag) WHERE NOT EXISTS (SELECT 1 FROM user_tags ut WHERE ut.tag = c.tag)`)).
		WithArgs([]string{"a", "b"}).
		WillReturnRows(pgxmock.NewRows([]string{"tag"}))
	tags, err = r.FindTagsUnusedGloballyAmong(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Empty(t, tags)

	tags, err = r.FindTagsUnusedGloballyAmong(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, tags)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssociationRepo_ListVideoIDsOfUser(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssociationRepo(db.Pool)
	ctx := context.Background()
	page := model.Page{Skip: 0, Limit: 50}

	mock.ExpectQuery(sqlRe(`SELECT video_id FROM user_videos WHERE user_id=$1 ORDER BY video_id OFFSET $2 LIMIT $3`)).
		WithArgs(user, 0, 50).
		WillReturnRows(pgxmock.NewRows([]string{"video_id"}).AddRow("a").AddRow("b"))
	ids, err := r.ListVideoIDsOfUser(ctx, user, model.VideoQuery{Page: page})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids)

	mock.ExpectQuery(sqlRe(`GROUP BY video_id HAVING COUNT(*) = $3`)).
		WithArgs(user, []string{"x", "y"}, 2, 0, 50).
		WillReturnRows(pgxmock.NewRows([]string{"video_id"}).AddRow("a"))
	ids, err = r.ListVideoIDsOfUser(ctx, user, model.VideoQuery{Tags: []string{"x", "y"}, MatchAll: true, Page: page})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, ids)

	mock.ExpectQuery(sqlRe(`SELECT DISTINCT video_id FROM user_video_tags WHERE user_id=$1 AND tag = ANY($2)`)).
		WithArgs(user, []string{"x", "y"}, 0, 50).
		WillReturnRows(pgxmock.NewRows([]string{"video_id"}).AddRow("a").AddRow("b"))
	ids, err = r.ListVideoIDsOfUser(ctx, user, model.VideoQuery{Tags: []string{"x", "y"}, Page: page})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssociationRepo_ListTagsOfUser(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssociationRepo(db.Pool)

	mock.ExpectQuery(sqlRe(`SELECT tag FROM user_tags WHERE user_id=$1 AND ($2 = '' OR starts_with(tag, $2))`)).
		WithArgs(user, "mu", 0, 50).
		WillReturnRows(pgxmock.NewRows([]string{"tag"}).AddRow("music"))
	tags, err := r.ListTagsOfUser(context.Background(), user, model.TagQuery{Prefix: "mu", Page: model.Page{Limit: 50}})
	require.NoError(t, err)
	require.Equal(t, []string{"music"}, tags)
}

func TestAssociationRepo_HasUserVideo(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssociationRepo(db.Pool)
	ctx := context.Background()
	const q = `SELECT EXISTS (SELECT 1 FROM user_videos WHERE user_id=$1 AND video_id=$2)`

	mock.ExpectQuery(sqlRe(q)).WithArgs(user, "vidA").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err := r.HasUserVideo(ctx, user, "vidA")
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectQuery(sqlRe(q)).WithArgs(user, "vidB").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	ok, err = r.HasUserVideo(ctx, user, "vidB")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssociationRepo_AddUserTags_MissingCatalogRow(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssociationRepo(db.Pool)

	mock.ExpectQuery(sqlRe(`INSERT INTO user_tags`)).
		WithArgs(user, []string{"gone"}).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	_, err := r.AddUserTags(context.Background(), user, []string{"gone"})
	require.ErrorIs(t, err, errs.ErrNotFound)
}
