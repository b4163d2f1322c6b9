package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/code19m/errx"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/meta"
	"github.com/rise-and-shine/dddbase/observability/logger"
	"github.com/rise-and-shine/dddbase/observability/tracing"
	"github.com/rise-and-shine/dddbase/version"
)

const (
	// DefaultRetries is the number of extra attempts a conflicting command gets.
	DefaultRetries = 5
	// DefaultBackoff is the fixed delay between conflicting attempts.
	DefaultBackoff = 200 * time.Millisecond
)

var errOutdated = errors.New("outdated entities")

// EventPublisher receives the events of successful commands.
type EventPublisher interface {
	PublishMany(ctx context.Context, events []event.Event, opts ...event.PublishOption) error
}

type route struct {
	handler Handler
	retries int
}

// Dispatcher routes each command to its single handler and enforces optimistic
// concurrency on the entities the handler reports.
type Dispatcher struct {
	events  EventPublisher
	logger  logger.Logger
	tracer  trace.Tracer
	backoff time.Duration
	retries int

	mu     sync.RWMutex
	routes map[string]route

	// commit serializes the version check with VersionUp.
	commit sync.Mutex
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBackoff sets the delay between conflicting attempts.
func WithBackoff(d time.Duration) Option {
	return func(cd *Dispatcher) {
		if d >= 0 {
			cd.backoff = d
		}
	}
}

// WithDefaultRetries sets the retries used by Subscribe calls without WithRetries.
func WithDefaultRetries(n int) Option {
	return func(cd *Dispatcher) {
		if n >= 0 {
			cd.retries = n
		}
	}
}

// NewDispatcher creates a dispatcher forwarding events to events.
func NewDispatcher(events EventPublisher, log logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		events:  events,
		logger:  log.Named("cqrs.command.dispatcher"),
		tracer:  otel.Tracer("cqrs/command"),
		backoff: DefaultBackoff,
		retries: DefaultRetries,
		routes:  make(map[string]route),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SubscribeOption configures a single subscription.
type SubscribeOption func(*route)

// WithRetries sets how many extra attempts a conflicting command gets.
func WithRetries(n int) SubscribeOption {
	return func(r *route) {
		if n >= 0 {
			r.retries = n
		}
	}
}

// Subscribe makes h the handler of commands named name. A second subscription
// for the same name is ignored with a warning and the first handler is kept.
func (d *Dispatcher) Subscribe(name string, h Handler, opts ...SubscribeOption) {
	r := route{handler: h, retries: d.retries}
	for _, opt := range opts {
		opt(&r)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.routes[name]; ok {
		d.logger.With("command_name", name).
			Warnf("handler already registered for command: %s. Keeping the former", name)
		return
	}
	d.routes[name] = r
}

// Dispatch executes cmd through its handler. Version conflicts on the affected
// entities are retried after a fixed back-off; any other handler error is
// returned unchanged without retry. On success every affected entity is
// versioned up, cmd.SagaID is copied onto the events and they are forwarded to
// the event publisher. Forwarding failures are logged, not returned.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) ([]event.Event, error) {
	d.mu.RLock()
	r, ok := d.routes[cmd.Name]
	d.mu.RUnlock()

	if cmd.Name == "" || !ok {
		err := Unroutable(cmd.Name)
		d.logger.WithContext(ctx).Warnx(err)
		return nil, err
	}

	if cmd.Time.IsZero() {
		cmd.Time = time.Now().UTC()
	}

	ctx = meta.InjectMetaToContext(ctx, map[meta.ContextKey]string{
		meta.CommandName: cmd.Name,
		meta.SagaID:      cmd.SagaID,
	})
	ctx, span := d.tracer.Start(ctx, "command.dispatch "+cmd.Name, trace.WithAttributes(
		attribute.Int("command.retries", r.retries),
	))

	events, err := d.dispatch(ctx, cmd, r)
	tracing.EndSpan(span, err)
	return events, err
}

func (d *Dispatcher) dispatch(ctx context.Context, cmd Command, r route) ([]event.Event, error) {
	log := d.logger.WithContext(ctx)

	var (
		events   []event.Event
		outdated []string
		attempt  int
	)

	err := retry.Do(
		func() error {
			attempt++

			entities, err := r.handler.AffectedEntities(ctx, cmd)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			before := lo.Map(entities, func(e version.Entity, _ int) version.Version {
				return e.Version()
			})

			out, err := r.handler.Execute(ctx, cmd)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			d.commit.Lock()
			defer d.commit.Unlock()

			outdated = conflicting(entities, before)
			if len(outdated) > 0 {
				if attempt <= r.retries {
					log.With(
						"entities", outdated,
						"attempt", attempt,
						"retries", r.retries,
					).Warnf("outdated entities on %s, retrying in %s", cmd.Name, d.backoff)
				}
				return errOutdated
			}

			for _, e := range entities {
				e.VersionUp()
			}
			events = out
			return nil
		},
		retry.Attempts(uint(r.retries)+1),
		retry.Delay(d.backoff),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)

	if errors.Is(err, errOutdated) {
		oe := &OutdatedEntityError{Command: cmd.Name, Entities: outdated, Attempts: attempt}
		log.With("entities", outdated, "attempts", attempt).Error(oe.Error())
		return nil, oe
	}
	if err != nil {
		return nil, err
	}

	if cmd.SagaID != "" {
		for i := range events {
			events[i].SagaID = cmd.SagaID
		}
	}

	d.forward(ctx, events)

	log.With("attempts", attempt, "events", len(events)).Debug("command dispatched")
	return events, nil
}

func (d *Dispatcher) forward(ctx context.Context, events []event.Event) {
	if len(events) == 0 || d.events == nil {
		return
	}

	err := d.events.PublishMany(ctx, events)
	if err != nil {
		d.logger.WithContext(ctx).Errorx(errx.Wrap(err, errx.WithDetails(errx.D{
			"events": lo.Map(events, func(e event.Event, _ int) string { return e.Name }),
		})))
	}
}

func conflicting(entities []version.Entity, before []version.Version) []string {
	var names []string
	for i, e := range entities {
		if !e.Version().Equals(before[i]) {
			names = append(names, version.NameOf(e))
		}
	}
	return lo.Uniq(names)
}
