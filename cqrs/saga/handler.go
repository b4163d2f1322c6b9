package saga

import (
	"context"
	"sync"

	"github.com/rise-and-shine/dddbase/cqrs/command"
	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/observability/logger"
	"github.com/rise-and-shine/dddbase/version"
)

// Func handles a command by provisioning and running sagas on o.
type Func func(ctx context.Context, o *Orchestrator, cmd command.Command) ([]event.Event, error)

// Handler is a command.Handler whose commands are implemented as sagas. It owns
// no entity, so the dispatcher performs no version check for its commands;
// each task command is checked on its own.
type Handler struct {
	name         string
	orchestrator *Orchestrator
	logger       logger.Logger

	mu    sync.RWMutex
	funcs map[string]Func
}

// NewHandler creates a saga handler called name.
func NewHandler(name string, o *Orchestrator, log logger.Logger) *Handler {
	return &Handler{
		name:         name,
		orchestrator: o,
		logger:       log.Named("cqrs.saga.handler").With("saga", name),
		funcs:        make(map[string]Func),
	}
}

// Name returns the handler name.
func (h *Handler) Name() string { return h.name }

// Handle registers fn for commands named cmdName. A second registration of the
// same name is ignored with a warning.
func (h *Handler) Handle(cmdName string, fn Func) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.funcs[cmdName]; ok {
		h.logger.Warnf("saga function already registered for command: %s. Keeping the former", cmdName)
		return
	}
	h.funcs[cmdName] = fn
}

// Commands returns the names of the registered commands.
func (h *Handler) Commands() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.funcs))
	for name := range h.funcs {
		names = append(names, name)
	}
	return names
}

// SubscribeTo subscribes every registered command to d, wrapped with wrappers.
// Saga commands get no conflict retries of their own.
func (h *Handler) SubscribeTo(d *command.Dispatcher, wrappers ...command.WrapFunc) {
	handler := command.Chain(h, wrappers...)
	for _, name := range h.Commands() {
		d.Subscribe(name, handler, command.WithRetries(0))
	}
}

// AffectedEntities implements command.Handler.
func (h *Handler) AffectedEntities(context.Context, command.Command) ([]version.Entity, error) {
	return nil, nil
}

// Execute implements command.Handler.
func (h *Handler) Execute(ctx context.Context, cmd command.Command) ([]event.Event, error) {
	h.mu.RLock()
	fn, ok := h.funcs[cmd.Name]
	h.mu.RUnlock()

	if !ok {
		return nil, command.Unroutable(cmd.Name)
	}
	return fn(ctx, h.orchestrator, cmd)
}
