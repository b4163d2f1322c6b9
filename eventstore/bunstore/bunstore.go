// Package bunstore persists events in an SQL table through Bun. It works on
// PostgreSQL (pg.NewBunDB) and on SQLite (OpenSQLite); storage order is the
// auto-incremented sequence column.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/code19m/errx"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/extra/bundebug"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/observability/logger"
	"github.com/rise-and-shine/dddbase/pg"
)

// Store is an event.Store backed by a Bun database.
type Store struct {
	db     *bun.DB
	logger logger.Logger
}

// New wraps db. Call Migrate before first use on a fresh database.
func New(db *bun.DB, log logger.Logger) *Store {
	return &Store{db: db, logger: log.Named("eventstore.bun")}
}

// OpenSQLite opens an SQLite database at dsn (":memory:" for a private
// in-memory database) with a Bun SQLite dialect.
func OpenSQLite(dsn string, debug bool) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	if strings.Contains(dsn, ":memory:") {
		// every pooled connection would otherwise get its own empty database
		sqldb.SetMaxOpenConns(1)
	}
	if err = sqldb.Ping(); err != nil {
		_ = sqldb.Close()
		return nil, errx.Wrap(err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	db.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(debug),
		bundebug.WithVerbose(true),
	))
	return db, nil
}

// Migrate creates the events table and its indexes when missing.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*eventModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return errx.Wrap(err)
	}

	_, err = s.db.NewCreateIndex().
		Model((*eventModel)(nil)).
		Index("events_time_ns_idx").
		Column("time_ns").
		IfNotExists().
		Exec(ctx)
	return errx.Wrap(err)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save implements event.Store.
func (s *Store) Save(ctx context.Context, e event.Event) (string, error) {
	if e.UUID == "" {
		return "", errx.New("[eventstore.bun]: event uuid is empty", errx.WithType(errx.T_Validation))
	}

	_, err := s.db.NewInsert().Model(toModel(e)).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return "", errx.New(
				"[eventstore.bun]: event already stored",
				errx.WithType(errx.T_Conflict),
				errx.WithDetails(errx.D{"event_uuid": e.UUID}),
			)
		}
		return "", errx.Wrap(err, errx.WithDetails(pg.ErrorDetails(err)))
	}
	return e.UUID, nil
}

// Get implements event.Store.
func (s *Store) Get(ctx context.Context, id string) (event.Event, error) {
	var m eventModel
	err := s.db.NewSelect().Model(&m).Where("uuid = ?", id).Scan(ctx)
	if pg.IsNotFound(err) {
		return event.Event{}, event.NotFound(id)
	}
	if err != nil {
		return event.Event{}, errx.Wrap(err)
	}
	return m.toEvent(), nil
}

// GetAll implements event.Store.
func (s *Store) GetAll(ctx context.Context) ([]event.Event, error) {
	return s.list(ctx, s.db.NewSelect())
}

// GetDateRange implements event.Store.
func (s *Store) GetDateRange(ctx context.Context, from time.Time, to *time.Time) ([]event.Event, error) {
	q := s.db.NewSelect().Where("time_ns >= ?", from.UTC().UnixNano())
	if to != nil {
		q = q.Where("time_ns < ?", to.UTC().UnixNano())
	}
	return s.list(ctx, q)
}

func (s *Store) list(ctx context.Context, q *bun.SelectQuery) ([]event.Event, error) {
	var models []eventModel
	err := q.Model(&models).Order("seq ASC").Scan(ctx)
	if err != nil && !pg.IsNotFound(err) {
		return nil, errx.Wrap(err)
	}

	events := make([]event.Event, 0, len(models))
	for i := range models {
		events = append(events, models[i].toEvent())
	}
	return events, nil
}

func isUniqueViolation(err error) bool {
	if pg.IsConflict(err) {
		return true
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
