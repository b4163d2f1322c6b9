// Package pg connects the SQL event store to PostgreSQL through a pgx pool
// and the Bun ORM.
package pg

import (
	"github.com/code19m/errx"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/extra/bunotel"

	"github.com/rise-and-shine/dddbase/observability/logger"
	"github.com/rise-and-shine/dddbase/pg/hooks"
)

// NewBunDB opens a pgx pool for cfg and wraps it in a Bun DB. Queries are
// traced with bunotel and, with cfg.Debug, logged through log.
func NewBunDB(cfg Config, log logger.Logger) (*bun.DB, error) {
	pool, err := NewPool(cfg)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	db := bun.NewDB(stdlib.OpenDBFromPool(pool), pgdialect.New())
	ApplyHooks(db, cfg.Debug, log)

	return db, nil
}

// ApplyHooks adds the debug logging hook and the OpenTelemetry hook to db.
func ApplyHooks(db *bun.DB, debug bool, log logger.Logger) {
	db.AddQueryHook(hooks.NewDebugHook(
		hooks.WithEnabled(debug),
		hooks.WithVerbose(true),
		hooks.WithLogger(log),
	))
	db.AddQueryHook(bunotel.NewQueryHook(bunotel.WithDBName(db.Dialect().Name().String())))
}
