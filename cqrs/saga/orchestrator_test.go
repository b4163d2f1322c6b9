package saga_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/rise-and-shine/dddbase/cqrs/command"
	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/cqrs/saga"
	"github.com/rise-and-shine/dddbase/observability/logger"
)

// fakeDispatcher answers each command by name.
type fakeDispatcher struct {
	mu         sync.Mutex
	behaviours map[string]func(ctx context.Context) error
	dispatched []command.Command
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{behaviours: make(map[string]func(ctx context.Context) error)}
}

func (f *fakeDispatcher) on(name string, fn func(ctx context.Context) error) {
	f.behaviours[name] = fn
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, cmd command.Command) ([]event.Event, error) {
	f.mu.Lock()
	f.dispatched = append(f.dispatched, cmd)
	fn := f.behaviours[cmd.Name]
	f.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return nil, fn(ctx)
}

func (f *fakeDispatcher) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.dispatched {
		if c.Name == name {
			n++
		}
	}
	return n
}

func (f *fakeDispatcher) sagaIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.dispatched))
	for _, c := range f.dispatched {
		ids = append(ids, c.SagaID)
	}
	return ids
}

type alertSpy struct {
	mu    sync.Mutex
	codes []string
}

func (a *alertSpy) SendError(_ context.Context, code, _, _ string, _ map[string]string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.codes = append(a.codes, code)
	return nil
}

func rollbackOf(name string) func() command.Command {
	return func() command.Command { return command.New(name, nil) }
}

func TestRunAllTasksSucceed(t *testing.T) {
	d := newFakeDispatcher()
	o := saga.NewOrchestrator(d, logger.NewNop())

	id := o.Provision()
	require.NoError(t, o.AddTask(id, command.New("Hotel.bookRoom", nil), "Hotel", rollbackOf("Hotel.cancelRoom"), 0))
	require.NoError(t, o.AddTask(id, command.New("Airline.bookSeat", nil), "Airline", rollbackOf("Airline.cancelSeat"), 0))

	require.NoError(t, o.Run(t.Context(), id))

	assert.Equal(t, 1, d.count("Hotel.bookRoom"))
	assert.Equal(t, 1, d.count("Airline.bookSeat"))
	assert.Zero(t, d.count("Hotel.cancelRoom"))
	for _, sagaID := range d.sagaIDs() {
		assert.Equal(t, id, sagaID)
	}
}

func TestRunRollsBackDoneTasksOnFailure(t *testing.T) {
	d := newFakeDispatcher()
	d.on("Airline.bookSeat", func(context.Context) error {
		return errx.New("no seats", errx.WithType(errx.T_Validation))
	})
	o := saga.NewOrchestrator(d, logger.NewNop())

	id := o.Provision()
	require.NoError(t, o.AddTask(id, command.New("Hotel.bookRoom", nil), "Hotel", rollbackOf("Hotel.cancelRoom"), 0))
	require.NoError(t, o.AddTask(id, command.New("Airline.bookSeat", nil), "Airline", rollbackOf("Airline.cancelSeat"), 0))

	err := o.Run(t.Context(), id)
	require.Error(t, err)

	var sagaErr *saga.SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, "Errors on entity Airline", sagaErr.Error())
	require.Len(t, sagaErr.Errors(), 1)
	assert.Equal(t, "Airline", sagaErr.Errors()[0].Entity)
	assert.Equal(t, errx.T_Validation, sagaErr.Type())

	assert.Equal(t, 1, d.count("Hotel.cancelRoom"))
	assert.Zero(t, d.count("Airline.cancelSeat"))
}

func TestRunRollsBackTimedOutTasks(t *testing.T) {
	d := newFakeDispatcher()
	release := make(chan struct{})
	defer close(release)
	d.on("Hotel.bookRoom", func(context.Context) error {
		<-release
		return nil
	})
	o := saga.NewOrchestrator(d, logger.NewNop())

	id := o.Provision()
	require.NoError(t, o.AddTask(id, command.New("Hotel.bookRoom", nil), "Hotel",
		rollbackOf("Hotel.cancelRoom"), 20*time.Millisecond))

	start := time.Now()
	err := o.Run(t.Context(), id)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	var sagaErr *saga.SagaError
	require.ErrorAs(t, err, &sagaErr)
	require.Len(t, sagaErr.Errors(), 1)
	assert.True(t, errx.IsCodeIn(sagaErr.Errors()[0].Err, saga.CodeTaskTimeout))
	assert.Equal(t, errx.T_Internal, sagaErr.Type())
	assert.Equal(t, 1, d.count("Hotel.cancelRoom"))
}

func TestRollbackFailureIsEscalatedNotReturned(t *testing.T) {
	l, logs := logger.NewObserved(zapcore.DebugLevel)
	spy := &alertSpy{}

	d := newFakeDispatcher()
	d.on("Airline.bookSeat", func(context.Context) error { return errors.New("airline down") })
	d.on("Hotel.cancelRoom", func(context.Context) error { return errors.New("hotel down") })

	o := saga.NewOrchestrator(d, l, saga.WithAlertProvider(spy))

	id := o.Provision()
	require.NoError(t, o.AddTask(id, command.New("Hotel.bookRoom", nil), "Hotel", rollbackOf("Hotel.cancelRoom"), 0))
	require.NoError(t, o.AddTask(id, command.New("Airline.bookSeat", nil), "Airline", rollbackOf("Airline.cancelSeat"), 0))

	err := o.Run(t.Context(), id)

	var sagaErr *saga.SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, []string{"Airline"}, sagaErr.Entities())
	assert.NotContains(t, err.Error(), "Hotel")

	assert.Equal(t, []string{saga.CodeRollbackFailed}, spy.codes)
	errLogs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errLogs, 1)
	assert.Equal(t, saga.SeverityFatal, errLogs[0].ContextMap()["severity"])
}

func TestRunRemovesSaga(t *testing.T) {
	o := saga.NewOrchestrator(newFakeDispatcher(), logger.NewNop())

	id := o.Provision()
	require.NoError(t, o.Run(t.Context(), id))

	err := o.Run(t.Context(), id)
	assert.True(t, errx.IsCodeIn(err, saga.CodeSagaNotFound))

	err = o.AddTask(id, command.New("x", nil), "X", nil, 0)
	assert.True(t, errx.IsCodeIn(err, saga.CodeSagaNotFound))
}

func TestRunHonoursContext(t *testing.T) {
	d := newFakeDispatcher()
	release := make(chan struct{})
	defer close(release)
	d.on("slow", func(context.Context) error {
		<-release
		return nil
	})
	o := saga.NewOrchestrator(d, logger.NewNop())

	id := o.Provision()
	require.NoError(t, o.AddTask(id, command.New("slow", nil), "Slow", rollbackOf("undo"), time.Minute))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	err := o.Run(ctx, id)
	var sagaErr *saga.SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, 1, d.count("undo"))
}

func TestSagaErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		entities []string
		want     string
	}{
		{name: "single", entities: []string{"A"}, want: "Errors on entity A"},
		{name: "plural", entities: []string{"A", "B"}, want: "Errors on entities A, B"},
		{name: "distinct first seen", entities: []string{"B", "A", "B"}, want: "Errors on entities B, A"},
		{name: "same entity twice", entities: []string{"A", "A"}, want: "Errors on entity A"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := &saga.SagaError{}
			for _, name := range tc.entities {
				e.Add(name, errors.New("x"))
			}
			assert.Equal(t, tc.want, e.Error())
		})
	}
}

func TestSagaErrorType(t *testing.T) {
	validation := errx.New("bad", errx.WithType(errx.T_Validation))
	conflict := &command.OutdatedEntityError{Command: "x", Entities: []string{"A"}, Attempts: 6}

	clientOnly := &saga.SagaError{}
	clientOnly.Add("A", validation)
	clientOnly.Add("B", conflict)
	assert.Equal(t, errx.T_Validation, clientOnly.Type())
	assert.ErrorIs(t, clientOnly, validation)

	mixed := &saga.SagaError{}
	mixed.Add("A", validation)
	mixed.Add("B", errors.New("db down"))
	assert.Equal(t, errx.T_Internal, mixed.Type())
}
