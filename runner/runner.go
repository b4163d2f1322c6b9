// Package runner assembles a service: event store, dispatchers, saga
// orchestrator, broker bridge and HTTP front-end.
package runner

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/dddbase/bridge"
	"github.com/rise-and-shine/dddbase/cqrs/command"
	"github.com/rise-and-shine/dddbase/cqrs/command/wrapper"
	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/cqrs/saga"
	"github.com/rise-and-shine/dddbase/eventstore"
	"github.com/rise-and-shine/dddbase/http/handler"
	"github.com/rise-and-shine/dddbase/http/server"
	"github.com/rise-and-shine/dddbase/http/server/middleware"
	"github.com/rise-and-shine/dddbase/meta"
	"github.com/rise-and-shine/dddbase/observability/alert"
	"github.com/rise-and-shine/dddbase/observability/logger"
	"github.com/rise-and-shine/dddbase/observability/tracing"
	"github.com/rise-and-shine/dddbase/version"
)

var initTracer = tracing.InitGlobalTracer

// Deps is what roots and sagas need to subscribe themselves.
type Deps struct {
	Commands     *command.Dispatcher
	Events       *event.Dispatcher
	Orchestrator *saga.Orchestrator
	Logger       logger.Logger
	// Wrappers decorate every command handler attached through the runner.
	Wrappers []command.WrapFunc
}

// ReadModel is a projection served over HTTP.
type ReadModel interface {
	Name() string
	View(ctx context.Context) (any, error)
}

// Runner owns the components of a service.
type Runner struct {
	cfg    Config
	logger logger.Logger
	deps   Deps

	store      event.Store
	closeStore func(context.Context) error
	http       *server.HTTPServer
	pubsub     *bridge.PubSub
	relay      *bridge.Relay

	stopTracer func() error
	stopRelay  context.CancelFunc
	relayDone  chan struct{}

	mu       sync.Mutex
	roots    []string
	sagas    []string
	started  bool
	serving  bool
	stopOnce sync.Once
}

// New builds every component of cfg. Nothing is served until Start.
func New(ctx context.Context, cfg Config, log logger.Logger) (_ *Runner, err error) {
	meta.SetServiceInfo(cfg.Service.Name, cfg.Service.Version)

	r := &Runner{cfg: cfg, logger: log.Named("runner")}

	stopTracer, err := initTracer(cfg.Tracing)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	r.stopTracer = stopTracer
	defer func() {
		if err != nil {
			r.release(ctx)
		}
	}()

	alertProvider, err := alert.NewProvider(cfg.Alert, cfg.Service.Name, cfg.Service.Version)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	if err = alert.SetGlobal(alertProvider); err != nil {
		r.logger.Warn("global alert provider already set, keeping the former")
	}

	r.store, r.closeStore, err = eventstore.Open(ctx, cfg.EventStore, log)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	events := event.NewDispatcher(r.store, log)
	commands := command.NewDispatcher(events, log,
		command.WithDefaultRetries(cfg.Dispatcher.CommandRetries),
		command.WithBackoff(cfg.Dispatcher.RetryBackoff),
	)
	orchestrator := saga.NewOrchestrator(commands, log,
		saga.WithDefaultTimeout(cfg.Dispatcher.SagaTaskTimeout),
		saga.WithAlertProvider(alertProvider),
	)

	r.deps = Deps{
		Commands:     commands,
		Events:       events,
		Orchestrator: orchestrator,
		Logger:       log,
		Wrappers:     wrapper.Default(log, alertProvider, cfg.Service.Name, cfg.Service.Version, cfg.Dispatcher.CommandTimeout),
	}

	if err = r.openBridge(); err != nil {
		return nil, err
	}

	r.http = server.NewHTTPServer(cfg.HTTP, middleware.Default(log, cfg.HTTP, cfg.Service.Name, cfg.Service.Version))
	r.http.RegisterRouter(func(router fiber.Router) {
		handler.RegisterCommands(router, commands)
		handler.RegisterLastEvent(router, events)
	})

	return r, nil
}

// release undoes a partially built runner.
func (r *Runner) release(ctx context.Context) {
	if r.closeStore != nil {
		if err := r.closeStore(ctx); err != nil {
			r.logger.Warnx(err)
		}
	}
	if err := r.stopTracer(); err != nil {
		r.logger.Warnx(err)
	}
}

func (r *Runner) openBridge() error {
	ps, ok, err := bridge.Open(r.cfg.Bridge, r.deps.Logger)
	if err != nil {
		return errx.Wrap(err)
	}
	if !ok {
		return nil
	}
	r.pubsub = &ps

	if len(r.cfg.Bridge.Forward) > 0 {
		bridge.NewForwarder(ps.Publisher, r.cfg.Bridge.Topic, r.deps.Logger).
			SubscribeTo(r.deps.Events, r.cfg.Bridge.Forward...)
	}
	if r.cfg.Bridge.Relay && ps.Subscriber != nil {
		r.relay = bridge.NewRelay(ps.Subscriber, r.cfg.Bridge.Topic, r.deps.Events, r.deps.Logger,
			bridge.SkipSource(r.cfg.Service.Name),
		)
	}
	return nil
}

// Deps returns the dispatchers, orchestrator and wrappers of the runner.
func (r *Runner) Deps() Deps { return r.deps }

// Commands returns the command dispatcher.
func (r *Runner) Commands() *command.Dispatcher { return r.deps.Commands }

// Events returns the event dispatcher.
func (r *Runner) Events() *event.Dispatcher { return r.deps.Events }

// Store returns the event store.
func (r *Runner) Store() event.Store { return r.store }

// App exposes the HTTP app, mostly for tests.
func (r *Runner) App() *fiber.App { return r.http.App() }

// AttachRoot builds a root with the runner's dependencies. The root is
// expected to register its command and event functions while being built.
func AttachRoot[T version.Named](r *Runner, build func(Deps) T) T {
	root := build(r.deps)

	r.mu.Lock()
	r.roots = append(r.roots, root.EntityName())
	r.mu.Unlock()

	r.logger.With("entity", root.EntityName()).Debug("root entity attached")
	return root
}

// AttachSaga subscribes h's commands to the command dispatcher.
func (r *Runner) AttachSaga(h *saga.Handler) {
	h.SubscribeTo(r.deps.Commands, r.deps.Wrappers...)

	r.mu.Lock()
	r.sagas = append(r.sagas, h.Name())
	r.mu.Unlock()

	r.logger.With("saga", h.Name(), "commands", h.Commands()).Debug("saga attached")
}

// AttachReadModel serves rm at GET route, "/<name>" when route is empty.
func (r *Runner) AttachReadModel(route string, rm ReadModel) {
	if route == "" {
		route = "/" + strings.TrimPrefix(rm.Name(), "/")
	}
	r.http.RegisterRouter(func(router fiber.Router) {
		handler.RegisterView(router, route, rm)
	})
	r.logger.With("read_model", rm.Name(), "route", route).Debug("read model attached")
}

// ReplayHistory replays every stored event while live publishing is held.
func (r *Runner) ReplayHistory(ctx context.Context) error {
	r.deps.Events.Lock()
	defer r.deps.Events.Unlock()

	err := r.deps.Events.ReplayAll(ctx)
	if err != nil {
		return errx.Wrap(err)
	}
	r.logger.With("last_event", r.deps.Events.LastProcessedEventUUID()).Info("history replayed")
	return nil
}

// Start runs the relay and serves HTTP. It blocks until Stop, or returns the
// listener error.
func (r *Runner) Start() error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errx.New("[runner]: already started")
	}
	r.started = true
	r.mu.Unlock()

	if r.relay != nil {
		ctx, cancel := context.WithCancel(context.Background())
		r.stopRelay = cancel
		r.relayDone = make(chan struct{})
		go func() {
			defer close(r.relayDone)
			if err := r.relay.Run(ctx); err != nil {
				r.logger.Errorx(err)
			}
		}()
	}

	r.logger.With(
		"address", r.cfg.HTTP.Address(),
		"roots", r.roots,
		"sagas", r.sagas,
	).Infof("%s %s started", r.cfg.Service.Name, r.cfg.Service.Version)

	if r.cfg.Dispatcher.DisableHTTP {
		return nil
	}
	r.mu.Lock()
	r.serving = true
	r.mu.Unlock()
	return r.http.Start()
}

// Stop shuts every component down in reverse order of construction. It is
// safe to call more than once.
func (r *Runner) Stop(ctx context.Context) error {
	var errs []error
	r.stopOnce.Do(func() {
		r.mu.Lock()
		serving := r.serving
		r.mu.Unlock()
		if serving {
			errs = append(errs, r.http.Stop())
		}
		if r.stopRelay != nil {
			r.stopRelay()
			<-r.relayDone
		}
		if r.pubsub != nil {
			errs = append(errs, r.pubsub.Close())
		}
		errs = append(errs, r.closeStore(ctx), r.stopTracer())
		r.logger.Info("runner stopped")
	})
	return errx.Wrap(errors.Join(errs...))
}
