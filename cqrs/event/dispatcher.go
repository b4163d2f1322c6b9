package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/code19m/errx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rise-and-shine/dddbase/meta"
	"github.com/rise-and-shine/dddbase/observability/logger"
	"github.com/rise-and-shine/dddbase/observability/tracing"
)

// CodeUnroutableEvent tags the diagnostic logged for events nobody subscribed to.
const CodeUnroutableEvent = "UNROUTABLE_EVENT"

type publishOptions struct {
	persist bool
}

// PublishOption configures Publish and PublishMany.
type PublishOption func(*publishOptions)

// WithoutPersist delivers events to subscribers without saving them first.
func WithoutPersist() PublishOption {
	return func(o *publishOptions) {
		o.persist = false
	}
}

// Dispatcher routes events to every handler subscribed to their name and
// persists them through a Store.
type Dispatcher struct {
	store  Store
	logger logger.Logger
	tracer trace.Tracer

	mu       sync.RWMutex
	handlers map[string][]Handler

	gate     *gate
	lastUUID atomic.Value // string
}

// NewDispatcher creates a dispatcher persisting to store.
func NewDispatcher(store Store, log logger.Logger) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		logger:   log.Named("cqrs.event.dispatcher"),
		tracer:   otel.Tracer("cqrs/event"),
		handlers: make(map[string][]Handler),
		gate:     newGate(),
	}
	d.lastUUID.Store("")
	return d
}

// Subscribe adds h to the handlers of events named name. Subscriptions are
// expected to be made at setup time.
func (d *Dispatcher) Subscribe(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[name] = append(d.handlers[name], h)
}

// Lock suspends every subsequent Publish until Unlock. ReplayAll is not affected.
func (d *Dispatcher) Lock() {
	d.gate.lock()
	d.logger.Debug("event publishing locked")
}

// Unlock releases publishers suspended by Lock.
func (d *Dispatcher) Unlock() {
	d.gate.unlock()
	d.logger.Debug("event publishing unlocked")
}

// Locked reports whether publishing is currently suspended.
func (d *Dispatcher) Locked() bool {
	return d.gate.locked()
}

// LastProcessedEventUUID returns the uuid of the most recent event handed to
// Publish or delivered by ReplayAll.
func (d *Dispatcher) LastProcessedEventUUID() string {
	s, _ := d.lastUUID.Load().(string)
	return s
}

// Publish persists e (unless WithoutPersist is given) and delivers it to its
// subscribers. While the dispatcher is locked the call suspends until unlocked
// or ctx is done.
func (d *Dispatcher) Publish(ctx context.Context, e Event, opts ...PublishOption) error {
	o := publishOptions{persist: true}
	for _, opt := range opts {
		opt(&o)
	}

	err := d.gate.wait(ctx, func() {
		d.logger.WithContext(ctx).With("event_name", e.Name).Trace("event dispatcher is locked, waiting")
	})
	if err != nil {
		return errx.Wrap(err)
	}

	if e.UUID == "" {
		e.UUID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	d.lastUUID.Store(e.UUID)

	ctx = meta.InjectMetaToContext(ctx, map[meta.ContextKey]string{
		meta.EventName: e.Name,
		meta.EventUUID: e.UUID,
		meta.SagaID:    e.SagaID,
	})

	ctx, span := d.tracer.Start(ctx, "event.publish "+e.Name, trace.WithAttributes(
		attribute.String("event.uuid", e.UUID),
		attribute.Bool("event.persist", o.persist),
	))

	err = d.publish(ctx, e, o, opts)
	tracing.EndSpan(span, err)
	return err
}

func (d *Dispatcher) publish(ctx context.Context, e Event, o publishOptions, opts []PublishOption) error {
	if o.persist {
		id, err := d.store.Save(ctx, e)
		if err != nil {
			return errx.Wrap(err, errx.WithDetails(errx.D{"event_name": e.Name, "event_uuid": e.UUID}))
		}
		if id != "" {
			e.UUID = id
		}
	}

	chained, err := d.deliver(ctx, e)
	if err != nil {
		return err
	}
	if len(chained) == 0 {
		return nil
	}

	for i := range chained {
		if chained[i].SagaID == "" {
			chained[i].SagaID = e.SagaID
		}
	}
	return d.PublishMany(ctx, chained, opts...)
}

// PublishMany publishes events concurrently. No order is guaranteed between
// distinct events; each subscriber sees each matching event exactly once.
func (d *Dispatcher) PublishMany(ctx context.Context, events []Event, opts ...PublishOption) error {
	var g errgroup.Group
	for _, e := range events {
		g.Go(func() error {
			return d.Publish(ctx, e, opts...)
		})
	}
	return g.Wait()
}

// ReplayAll redelivers every stored event in storage order, one event at a
// time, without persisting anything. Events returned by handlers are dropped.
// It does not wait for the lock, so callers usually Lock before replaying.
func (d *Dispatcher) ReplayAll(ctx context.Context) error {
	ctx, span := d.tracer.Start(ctx, "event.replay_all")

	events, err := d.store.GetAll(ctx)
	if err != nil {
		err = errx.Wrap(err)
		tracing.EndSpan(span, err)
		return err
	}

	for _, e := range events {
		if err = ctx.Err(); err != nil {
			err = errx.Wrap(err)
			break
		}

		d.lastUUID.Store(e.UUID)
		ectx := meta.InjectMetaToContext(ctx, map[meta.ContextKey]string{
			meta.EventName: e.Name,
			meta.EventUUID: e.UUID,
			meta.SagaID:    e.SagaID,
		})
		if _, err = d.deliver(ectx, e); err != nil {
			break
		}
	}

	if err == nil {
		d.logger.WithContext(ctx).With("events", len(events)).Info("event history replayed")
	}
	tracing.EndSpan(span, err)
	return err
}

func (d *Dispatcher) deliver(ctx context.Context, e Event) ([]Event, error) {
	d.mu.RLock()
	handlers := d.handlers[e.Name]
	d.mu.RUnlock()

	if len(handlers) == 0 {
		d.logger.WithContext(ctx).
			With("error_code", CodeUnroutableEvent).
			Debugf("no handler for incoming event: %s", e.Name)
		return nil, nil
	}

	// A failing handler does not keep the event from the ones after it.
	var (
		chained []Event
		errs    []error
	)
	for _, h := range handlers {
		out, err := h.Apply(ctx, e.Clone())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		chained = append(chained, out...)
	}
	if len(errs) > 0 {
		return nil, errx.Wrap(errors.Join(errs...), errx.WithDetails(errx.D{
			"event_name":      e.Name,
			"event_uuid":      e.UUID,
			"failed_handlers": len(errs),
		}))
	}
	return chained, nil
}
