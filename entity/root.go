package entity

import (
	"context"
	"sync"

	"github.com/rise-and-shine/dddbase/cqrs/command"
	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/observability/logger"
	"github.com/rise-and-shine/dddbase/version"
)

// CommandFunc handles one command on behalf of a Root.
type CommandFunc func(ctx context.Context, cmd command.Command) ([]event.Event, error)

// AffectedFunc resolves the entities a command changes.
type AffectedFunc func(ctx context.Context, cmd command.Command) ([]version.Entity, error)

// EventFunc applies one event on behalf of a Root or ReadModel.
type EventFunc func(ctx context.Context, e event.Event) ([]event.Event, error)

type commandEntry struct {
	exec     CommandFunc
	affected AffectedFunc
}

// Root is an aggregate root. Embed it in a domain type and register its
// command and event functions; the root subscribes itself to the dispatchers.
// Unless a command says otherwise, the root itself is the affected entity.
type Root struct {
	version.BaseEntity

	name     string
	logger   logger.Logger
	commands CommandSubscriber
	events   EventSubscriber
	wrappers []command.WrapFunc

	mu       sync.RWMutex
	cmdFuncs map[string]commandEntry
	evtFuncs map[string]EventFunc
}

// RootOption configures a Root.
type RootOption func(*Root)

// WithWrappers decorates the handler the root subscribes for its commands.
func WithWrappers(wrappers ...command.WrapFunc) RootOption {
	return func(r *Root) {
		r.wrappers = append(r.wrappers, wrappers...)
	}
}

// NewRoot creates a root named name.
func NewRoot(
	name string,
	commands CommandSubscriber,
	events EventSubscriber,
	log logger.Logger,
	opts ...RootOption,
) *Root {
	r := &Root{
		name:     name,
		logger:   log.Named("entity.root").With("entity", name),
		commands: commands,
		events:   events,
		cmdFuncs: make(map[string]commandEntry),
		evtFuncs: make(map[string]EventFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EntityName implements version.Named.
func (r *Root) EntityName() string { return r.name }

// CommandOption configures a registered command.
type CommandOption func(*commandEntry, *[]command.SubscribeOption)

// Affects overrides the entities reported for the command.
func Affects(fn AffectedFunc) CommandOption {
	return func(e *commandEntry, _ *[]command.SubscribeOption) {
		e.affected = fn
	}
}

// Retries sets the conflict retries of the command.
func Retries(n int) CommandOption {
	return func(_ *commandEntry, opts *[]command.SubscribeOption) {
		*opts = append(*opts, command.WithRetries(n))
	}
}

// RegisterCommand makes fn the handler of commands named name. Registering the
// same name twice on one root keeps the first function.
func (r *Root) RegisterCommand(name string, fn CommandFunc, opts ...CommandOption) {
	entry := commandEntry{exec: fn}
	var subOpts []command.SubscribeOption
	for _, opt := range opts {
		opt(&entry, &subOpts)
	}

	r.mu.Lock()
	if _, ok := r.cmdFuncs[name]; ok {
		r.mu.Unlock()
		r.logger.Warnf("two functions registered as command handler for %s. Keeping the former", name)
		return
	}
	r.cmdFuncs[name] = entry
	r.mu.Unlock()

	r.commands.Subscribe(name, command.Chain(r, r.wrappers...), subOpts...)
	r.logger.With("command_name", name).Debug("registered command handler function")
}

// RegisterEvent makes fn the root's handler of events named name. Registering
// the same name twice on one root keeps the first function.
func (r *Root) RegisterEvent(name string, fn EventFunc) {
	r.mu.Lock()
	if _, ok := r.evtFuncs[name]; ok {
		r.mu.Unlock()
		r.logger.Warnf("two functions registered as event handler for %s. Keeping the former", name)
		return
	}
	r.evtFuncs[name] = fn
	r.mu.Unlock()

	r.events.Subscribe(name, r)
	r.logger.With("event_name", name).Debug("registered event handler function")
}

// AffectedEntities implements command.Handler.
func (r *Root) AffectedEntities(ctx context.Context, cmd command.Command) ([]version.Entity, error) {
	r.mu.RLock()
	entry, ok := r.cmdFuncs[cmd.Name]
	r.mu.RUnlock()

	if !ok || entry.affected == nil {
		return []version.Entity{r}, nil
	}
	return entry.affected(ctx, cmd)
}

// Execute implements command.Handler.
func (r *Root) Execute(ctx context.Context, cmd command.Command) ([]event.Event, error) {
	r.mu.RLock()
	entry, ok := r.cmdFuncs[cmd.Name]
	r.mu.RUnlock()

	if !ok {
		return nil, command.Unroutable(cmd.Name)
	}

	r.logger.WithContext(ctx).With("payload", cmd.Payload).Trace("executing command")
	return entry.exec(ctx, cmd)
}

// Apply implements event.Handler.
func (r *Root) Apply(ctx context.Context, e event.Event) ([]event.Event, error) {
	r.mu.RLock()
	fn, ok := r.evtFuncs[e.Name]
	r.mu.RUnlock()

	if !ok {
		r.logger.WithContext(ctx).Warnf("cannot apply incoming event %s", e.Name)
		return nil, nil
	}

	r.logger.WithContext(ctx).With("payload", e.Payload).Trace("applying event")
	return fn(ctx, e)
}
