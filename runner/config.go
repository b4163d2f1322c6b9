package runner

import (
	"time"

	"github.com/rise-and-shine/dddbase/bridge"
	"github.com/rise-and-shine/dddbase/eventstore"
	"github.com/rise-and-shine/dddbase/http/server"
	"github.com/rise-and-shine/dddbase/observability/alert"
	"github.com/rise-and-shine/dddbase/observability/logger"
	"github.com/rise-and-shine/dddbase/observability/tracing"
)

// Config aggregates the configuration of a service built on the runner. It is
// meant to be loaded with cfgloader.
type Config struct {
	Service    ServiceConfig     `yaml:"service"`
	Logger     logger.Config     `yaml:"logger"`
	Tracing    tracing.Config    `yaml:"tracing"`
	Alert      alert.Config      `yaml:"alert"`
	HTTP       server.Config     `yaml:"http"`
	EventStore eventstore.Config `yaml:"event_store"`
	Dispatcher DispatcherConfig  `yaml:"dispatcher"`
	Bridge     bridge.Config     `yaml:"bridge"`
}

type ServiceConfig struct {
	Name    string `yaml:"name"    validate:"required"`
	Version string `yaml:"version" default:"dev"`
}

// DispatcherConfig is the retry and saga policy.
type DispatcherConfig struct {
	CommandRetries  int           `yaml:"command_retries"   default:"5"     validate:"gte=0"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"     default:"200ms"`
	SagaTaskTimeout time.Duration `yaml:"saga_task_timeout" default:"1s"`
	// CommandTimeout bounds a handler's Execute. Zero leaves it unbounded.
	CommandTimeout time.Duration `yaml:"command_timeout" default:"5s"`
	// DisableHTTP keeps Start from serving the HTTP front-end.
	DisableHTTP bool `yaml:"disable_http"`
}
