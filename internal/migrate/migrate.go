// Package migrate applies the embedded SQL migrations and reports schema state.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/and161185/vidtags/migrations"
)

// ErrPending is returned by Check while the database lags the embedded schema.
var ErrPending = errors.New("schema migrations pending")

// Migrator owns a database/sql handle for goose; the pgx pool is separate.
type Migrator struct {
	p   *goose.Provider
	log *zap.Logger
}

// Open prepares a migrator for dsn. No connection is made until Up or Check.
func Open(dsn string, log *zap.Logger) (*Migrator, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{p: p, log: log}, nil
}

// Versions lists the embedded migration versions in apply order.
func (m *Migrator) Versions() []int64 {
	src := m.p.ListSources()
	out := make([]int64, 0, len(src))
	for _, s := range src {
		out = append(out, s.Version)
	}
	return out
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	res, err := m.p.Up(ctx)
	for _, r := range res {
		m.log.Info("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.String("file", filepath.Base(r.Source.Path)),
			zap.Duration("took", r.Duration))
	}
	if err != nil {
		return err
	}
	v, err := m.p.GetDBVersion(ctx)
	if err != nil {
		return err
	}
	m.log.Info("schema up to date", zap.Int64("version", v), zap.Int64s("embedded", m.Versions()), zap.Int("applied", len(res)))
	return nil
}

// Check fails with ErrPending if a migration has not been applied. Used by readiness.
func (m *Migrator) Check(ctx context.Context) error {
	pending, err := m.p.HasPending(ctx)
	if err != nil {
		return err
	}
	if pending {
		return ErrPending
	}
	return nil
}

// Close closes the database handle.
func (m *Migrator) Close() error { return m.p.Close() }
