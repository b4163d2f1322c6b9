// Package saga coordinates several commands as one logical unit. Tasks run
// concurrently, each against its own timeout, and the tasks that took effect
// (or may have) are compensated when any task fails.
package saga

import (
	"context"
	"sync"
	"time"

	"github.com/code19m/errx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rise-and-shine/dddbase/cqrs/command"
	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/meta"
	"github.com/rise-and-shine/dddbase/observability/alert"
	"github.com/rise-and-shine/dddbase/observability/logger"
	"github.com/rise-and-shine/dddbase/observability/tracing"
)

// DefaultTaskTimeout applies to tasks added with a non-positive timeout.
const DefaultTaskTimeout = time.Second

// SeverityFatal is the severity field of rollback failure logs. A saga whose
// compensation failed leaves entities in a state that needs an operator.
const SeverityFatal = "fatal"

// Dispatcher is the part of command.Dispatcher the orchestrator needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd command.Command) ([]event.Event, error)
}

// Status is the state of a saga task.
type Status int

const (
	StatusAdded Status = iota
	StatusDone
	StatusFailed
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusAdded:
		return "added"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

type task struct {
	cmd      command.Command
	entity   string
	rollback func() command.Command
	timeout  time.Duration
	status   Status
	err      error
}

// RollbackFailure describes a compensating command that could not be dispatched.
type RollbackFailure struct {
	SagaID  string
	Entity  string
	Command command.Command
	Err     error
}

// Orchestrator provisions and runs sagas. A saga record lives from Provision
// until its Run returns and is never persisted.
type Orchestrator struct {
	dispatcher     Dispatcher
	logger         logger.Logger
	tracer         trace.Tracer
	alert          alert.Provider
	defaultTimeout time.Duration
	onRollbackFail func(ctx context.Context, f RollbackFailure)

	mu    sync.Mutex
	sagas map[string][]*task
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDefaultTimeout replaces DefaultTaskTimeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.defaultTimeout = d
		}
	}
}

// WithAlertProvider sets where rollback failures are escalated. The global
// alert provider is used by default.
func WithAlertProvider(p alert.Provider) Option {
	return func(o *Orchestrator) {
		o.alert = p
	}
}

// WithRollbackFailureHandler replaces the default escalation of rollback
// failures (error log plus alert).
func WithRollbackFailureHandler(fn func(ctx context.Context, f RollbackFailure)) Option {
	return func(o *Orchestrator) {
		o.onRollbackFail = fn
	}
}

// NewOrchestrator creates an orchestrator dispatching through d.
func NewOrchestrator(d Dispatcher, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		dispatcher:     d,
		logger:         log.Named("cqrs.saga.orchestrator"),
		tracer:         otel.Tracer("cqrs/saga"),
		alert:          alert.Global(),
		defaultTimeout: DefaultTaskTimeout,
		sagas:          make(map[string][]*task),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.onRollbackFail == nil {
		o.onRollbackFail = o.escalate
	}
	return o
}

// Provision allocates a new saga and returns its identifier.
func (o *Orchestrator) Provision() string {
	id := uuid.NewString()

	o.mu.Lock()
	defer o.mu.Unlock()

	o.sagas[id] = nil
	return id
}

// AddTask adds cmd to saga id. entity names the affected entity in errors,
// rollback produces the compensating command and timeout bounds how long Run
// waits for the dispatch (non-positive means the default).
func (o *Orchestrator) AddTask(
	id string,
	cmd command.Command,
	entity string,
	rollback func() command.Command,
	timeout time.Duration,
) error {
	if timeout <= 0 {
		timeout = o.defaultTimeout
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	tasks, ok := o.sagas[id]
	if !ok {
		return notFound(id)
	}
	o.sagas[id] = append(tasks, &task{
		cmd:      cmd,
		entity:   entity,
		rollback: rollback,
		timeout:  timeout,
		status:   StatusAdded,
	})
	return nil
}

// Run dispatches every task of saga id concurrently and removes the saga. When
// a task fails or times out, every done or timed-out task is compensated and a
// *SagaError listing the failed tasks is returned. Cancelling ctx stops the
// waiting like a timeout would; dispatches already started keep running.
func (o *Orchestrator) Run(ctx context.Context, id string) error {
	o.mu.Lock()
	tasks, ok := o.sagas[id]
	delete(o.sagas, id)
	o.mu.Unlock()

	if !ok {
		return notFound(id)
	}

	ctx = meta.InjectMetaToContext(ctx, map[meta.ContextKey]string{meta.SagaID: id})
	ctx, span := o.tracer.Start(ctx, "saga.run", trace.WithAttributes(
		attribute.String("saga.id", id),
		attribute.Int("saga.tasks", len(tasks)),
	))

	err := o.run(ctx, id, tasks)
	tracing.EndSpan(span, err)
	return err
}

func (o *Orchestrator) run(ctx context.Context, id string, tasks []*task) error {
	var wg sync.WaitGroup
	for _, t := range tasks {
		t.cmd.SagaID = id
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.settle(ctx, t)
		}()
	}
	wg.Wait()

	sagaErr := &SagaError{SagaID: id}
	for _, t := range tasks {
		if t.status == StatusFailed || t.status == StatusTimedOut {
			sagaErr.Add(t.entity, t.err)
		}
	}

	if !sagaErr.HasErrors() {
		o.logger.WithContext(ctx).With("tasks", len(tasks)).Debug("saga completed")
		return nil
	}

	o.compensate(ctx, id, tasks)
	return sagaErr
}

// settle races the dispatch of t against its timer. The dispatch is detached
// from ctx so a timeout never aborts a command halfway through.
func (o *Orchestrator) settle(ctx context.Context, t *task) {
	result := make(chan error, 1)
	go func() {
		_, err := o.dispatcher.Dispatch(context.WithoutCancel(ctx), t.cmd)
		result <- err
	}()

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case err := <-result:
		if err != nil {
			t.status, t.err = StatusFailed, err
			return
		}
		t.status = StatusDone
	case <-timer.C:
		t.status = StatusTimedOut
		t.err = errx.New(
			"saga task timed out",
			errx.WithCode(CodeTaskTimeout),
			errx.WithType(errx.T_Internal),
			errx.WithDetails(errx.D{
				"command_name": t.cmd.Name,
				"entity":       t.entity,
				"timeout":      t.timeout.String(),
			}),
		)
	case <-ctx.Done():
		t.status = StatusTimedOut
		t.err = errx.Wrap(ctx.Err(), errx.WithCode(CodeTaskTimeout))
	}
}

func (o *Orchestrator) compensate(ctx context.Context, id string, tasks []*task) {
	ctx = context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for _, t := range tasks {
		if t.rollback == nil || (t.status != StatusDone && t.status != StatusTimedOut) {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			cmd := t.rollback()
			cmd.SagaID = id
			if _, err := o.dispatcher.Dispatch(ctx, cmd); err != nil {
				o.onRollbackFail(ctx, RollbackFailure{SagaID: id, Entity: t.entity, Command: cmd, Err: err})
			}
		}()
	}
	wg.Wait()
}

func (o *Orchestrator) escalate(ctx context.Context, f RollbackFailure) {
	err := errx.Wrap(f.Err,
		errx.WithCode(CodeRollbackFailed),
		errx.WithDetails(errx.D{
			"saga_id":      f.SagaID,
			"entity":       f.Entity,
			"command_name": f.Command.Name,
		}),
	)
	o.logger.WithContext(ctx).With("severity", SeverityFatal).Errorx(err)

	sendErr := o.alert.SendError(ctx, CodeRollbackFailed, f.Err.Error(), "saga rollback: "+f.Command.Name, map[string]string{
		"saga_id": f.SagaID,
		"entity":  f.Entity,
	})
	if sendErr != nil {
		o.logger.With("alert_send_error", sendErr).Warn("failed to send rollback failure alert")
	}
}
