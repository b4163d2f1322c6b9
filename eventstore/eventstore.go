// Package eventstore builds the event.Store selected by configuration.
package eventstore

import (
	"context"
	"time"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/eventstore/bunstore"
	"github.com/rise-and-shine/dddbase/eventstore/jsonfile"
	"github.com/rise-and-shine/dddbase/eventstore/memory"
	"github.com/rise-and-shine/dddbase/observability/logger"
	"github.com/rise-and-shine/dddbase/pg"
)

const (
	DriverMemory   = "memory"
	DriverJSONFile = "jsonfile"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	sinkFile  = "file"
	sinkMinio = "minio"
)

// Config selects and configures the event store backend.
type Config struct {
	Driver string `yaml:"driver" default:"memory" validate:"oneof=memory jsonfile postgres sqlite"`

	JSONFile JSONFileConfig `yaml:"jsonfile"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres *pg.Config     `yaml:"postgres" validate:"required_if=Driver postgres,omitempty"`
}

// JSONFileConfig configures the jsonfile driver.
type JSONFileConfig struct {
	// Sink is "file" or "minio".
	Sink string `yaml:"sink" default:"file" validate:"oneof=file minio"`
	// Path is the file path, or the object key for the minio sink.
	Path     string        `yaml:"path"     default:"./data/events.json"`
	Interval time.Duration `yaml:"interval" default:"5s"`

	Minio *jsonfile.MinioConfig `yaml:"minio" validate:"required_if=Sink minio,omitempty"`
}

// SQLiteConfig configures the sqlite driver.
type SQLiteConfig struct {
	DSN   string `yaml:"dsn"   default:"file:./data/events.db?_pragma=busy_timeout(5000)"`
	Debug bool   `yaml:"debug" default:"false"`
}

// Open builds the configured store. The returned close function flushes and
// releases it.
func Open(ctx context.Context, cfg Config, log logger.Logger) (event.Store, func(context.Context) error, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return memory.New(), func(context.Context) error { return nil }, nil

	case DriverJSONFile:
		sink, err := newSink(ctx, cfg.JSONFile)
		if err != nil {
			return nil, nil, err
		}
		s, err := jsonfile.Open(ctx, sink, cfg.JSONFile.Interval, log)
		if err != nil {
			return nil, nil, errx.Wrap(err)
		}
		return s, s.Close, nil

	case DriverPostgres:
		if cfg.Postgres == nil {
			return nil, nil, errx.New("[eventstore]: postgres config is missing", errx.WithType(errx.T_Validation))
		}
		db, err := pg.NewBunDB(*cfg.Postgres, log)
		if err != nil {
			return nil, nil, errx.Wrap(err)
		}
		return migrated(ctx, bunstore.New(db, log))

	case DriverSQLite:
		db, err := bunstore.OpenSQLite(cfg.SQLite.DSN, cfg.SQLite.Debug)
		if err != nil {
			return nil, nil, errx.Wrap(err)
		}
		return migrated(ctx, bunstore.New(db, log))

	default:
		return nil, nil, errx.New("[eventstore]: unknown driver: "+cfg.Driver, errx.WithType(errx.T_Validation))
	}
}

func migrated(ctx context.Context, s *bunstore.Store) (event.Store, func(context.Context) error, error) {
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, nil, errx.Wrap(err)
	}
	return s, func(context.Context) error { return s.Close() }, nil
}

func newSink(ctx context.Context, cfg JSONFileConfig) (jsonfile.Sink, error) {
	switch cfg.Sink {
	case sinkFile, "":
		return jsonfile.NewFileSink(cfg.Path), nil
	case sinkMinio:
		if cfg.Minio == nil {
			return nil, errx.New("[eventstore]: minio config is missing", errx.WithType(errx.T_Validation))
		}
		sink, err := jsonfile.NewMinioSink(*cfg.Minio, cfg.Path)
		if err != nil {
			return nil, errx.Wrap(err)
		}
		return sink, errx.Wrap(sink.EnsureBucket(ctx))
	default:
		return nil, errx.New("[eventstore]: unknown jsonfile sink: "+cfg.Sink, errx.WithType(errx.T_Validation))
	}
}
