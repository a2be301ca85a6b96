// Package postgres contains PostgreSQL implementations of repository interfaces.
package postgres

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/and161185/vidtags/internal/model"
	"github.com/and161185/vidtags/internal/repository"
)

// PgxPool is a minimal abstraction over a Postgres connection pool,
// used by repositories. It is implemented by *pgxpool.Pool and pgxmock.PgxPoolIface.
type PgxPool interface {
	Querier
	// BeginTx starts a transaction with the provided options.
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	// Close shuts down the pool and frees resources.
	Close()
}

// Querier is the statement surface shared by the pool and pgx.Tx.
type Querier interface {
	// Exec executes a SQL command and returns the command tag.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	// Query executes a SELECT and returns a rows iterator.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	// QueryRow executes a query expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB wraps pgxpool.Pool and implements repository.Store.
type DB struct{ Pool PgxPool }

var _ repository.Store = (*DB)(nil)

// New creates a new connection pool for the given DSN.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

// Close closes the underlying pool.
func (db *DB) Close() { db.Pool.Close() }

// Ping checks that a connection can run a statement.
func (db *DB) Ping(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `SELECT 1`)
	return err
}

// WithinTx runs fn inside one transaction; it commits when fn succeeds.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, r repository.Repositories) error) (err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()
	return fn(ctx, reposOn(tx))
}

// Repos returns repositories running each statement on the pool.
func (db *DB) Repos() repository.Repositories { return reposOn(db.Pool) }

func reposOn(q Querier) repository.Repositories {
	return repository.Repositories{
		Videos: NewVideoRepo(q),
		Users:  NewUserRepo(q),
		Tags:   NewTagRepo(q),
		Assoc:  NewAssociationRepo(q),
	}
}

// isUniqueViolation reports whether the error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23505"
}

// isForeignKeyViolation reports whether the error is a foreign key violation.
func isForeignKeyViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23503"
}

// scanStrings drains a single-column result set.
func scanStrings(rows pgx.Rows, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// scanSortedStrings is scanStrings for RETURNING clauses, whose order is unspecified.
func scanSortedStrings(rows pgx.Rows, err error) ([]string, error) {
	out, err := scanStrings(rows, err)
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// scanTriples drains (user_id, video_id, tag) rows.
func scanTriples(rows pgx.Rows, err error) ([]model.UserVideoTag, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.UserVideoTag{}
	for rows.Next() {
		var t model.UserVideoTag
		if err := rows.Scan(&t.UserID, &t.VideoID, &t.Tag); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
