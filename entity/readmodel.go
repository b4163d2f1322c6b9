package entity

import (
	"context"
	"sync"

	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/cqrs/query"
	"github.com/rise-and-shine/dddbase/cqrs/query/wrapper"
	"github.com/rise-and-shine/dddbase/observability/logger"
)

// ReadFunc folds e into state.
type ReadFunc[S any] func(ctx context.Context, state *S, e event.Event) error

// ReadModel is a projection of events into a state of type S. Events are
// applied under a write lock; the state is read through Query.
type ReadModel[S any] struct {
	name    string
	logger  logger.Logger
	events  EventSubscriber
	project func(S) any

	mu    sync.RWMutex
	state S
	funcs map[string]ReadFunc[S]
}

// ReadModelOption configures a ReadModel.
type ReadModelOption[S any] func(*ReadModel[S])

// WithProjection sets how the state is turned into the value served by View.
// It runs under the read lock, so it should copy any maps or slices it returns.
func WithProjection[S any](fn func(S) any) ReadModelOption[S] {
	return func(m *ReadModel[S]) {
		m.project = fn
	}
}

// NewReadModel creates a read model named name starting from initial.
func NewReadModel[S any](
	name string,
	events EventSubscriber,
	log logger.Logger,
	initial S,
	opts ...ReadModelOption[S],
) *ReadModel[S] {
	m := &ReadModel[S]{
		name:    name,
		logger:  log.Named("entity.readmodel").With("read_model", name),
		events:  events,
		project: func(s S) any { return s },
		state:   initial,
		funcs:   make(map[string]ReadFunc[S]),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the read model name.
func (m *ReadModel[S]) Name() string { return m.name }

// RegisterEvent makes fn the model's handler of events named name.
// Registering the same name twice keeps the first function.
func (m *ReadModel[S]) RegisterEvent(name string, fn ReadFunc[S]) {
	m.mu.Lock()
	if _, ok := m.funcs[name]; ok {
		m.mu.Unlock()
		m.logger.Warnf("two functions registered as event handler for %s. Keeping the former", name)
		return
	}
	m.funcs[name] = fn
	m.mu.Unlock()

	m.events.Subscribe(name, m)
}

// Apply implements event.Handler. Read models never produce events.
func (m *ReadModel[S]) Apply(ctx context.Context, e event.Event) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn, ok := m.funcs[e.Name]
	if !ok {
		m.logger.WithContext(ctx).Warnf("cannot apply incoming event %s", e.Name)
		return nil, nil
	}
	return nil, fn(ctx, &m.state, e)
}

// Query returns the projected state.
func (m *ReadModel[S]) Query() query.Query[struct{}, any] {
	return query.Chain(
		query.Func[struct{}, any](func(context.Context, struct{}) (any, error) {
			m.mu.RLock()
			defer m.mu.RUnlock()
			return m.project(m.state), nil
		}),
		wrapper.NewTracing[struct{}, any](m.name),
	)
}

// View executes Query.
func (m *ReadModel[S]) View(ctx context.Context) (any, error) {
	return m.Query().Execute(ctx, struct{}{})
}
