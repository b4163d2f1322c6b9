// Package hooks holds Bun query hooks.
package hooks

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/rise-and-shine/dddbase/observability/logger"
)

var _ bun.QueryHook = (*DebugHook)(nil)

// DebugHook logs queries through the project logger and flags slow ones.
type DebugHook struct {
	enabled            bool
	verbose            bool
	slowQueryThreshold time.Duration
	logger             logger.Logger
}

// DebugHookOption configures a DebugHook.
type DebugHookOption func(*DebugHook)

// NewDebugHook creates an enabled, verbose hook with a 100ms slow query threshold
// logging through the global logger.
func NewDebugHook(opts ...DebugHookOption) *DebugHook {
	hook := &DebugHook{
		enabled:            true,
		verbose:            true,
		slowQueryThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(hook)
	}
	if hook.logger == nil {
		hook.logger = logger.L()
	}
	hook.logger = hook.logger.Named("bun_debug_hook")
	return hook
}

// WithEnabled turns the hook on or off.
func WithEnabled(enabled bool) DebugHookOption {
	return func(h *DebugHook) { h.enabled = enabled }
}

// WithVerbose logs successful queries too, not only failures and slow queries.
func WithVerbose(verbose bool) DebugHookOption {
	return func(h *DebugHook) { h.verbose = verbose }
}

// WithSlowQueryThreshold sets the duration from which queries are logged at
// warn level. Zero disables slow query detection.
func WithSlowQueryThreshold(threshold time.Duration) DebugHookOption {
	return func(h *DebugHook) { h.slowQueryThreshold = threshold }
}

// WithLogger sets the logger. A nil logger keeps the global one.
func WithLogger(l logger.Logger) DebugHookOption {
	return func(h *DebugHook) { h.logger = l }
}

// BeforeQuery implements bun.QueryHook.
func (h *DebugHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery implements bun.QueryHook.
func (h *DebugHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if !h.enabled {
		return
	}

	duration := time.Since(event.StartTime)
	noRows := errors.Is(event.Err, sql.ErrNoRows)
	failed := event.Err != nil && !noRows && !errors.Is(event.Err, sql.ErrTxDone)
	slow := h.slowQueryThreshold > 0 && duration >= h.slowQueryThreshold

	if !h.verbose && !failed && !noRows && !slow {
		return
	}

	log := h.logger.
		WithContext(ctx).
		With("query", strings.ReplaceAll(event.Query, "\"", "")).
		With("duration", duration.Round(time.Microsecond))

	msg := "[bun-debug] - " + event.Operation()
	switch {
	case failed:
		log.With("error", event.Err).Error(msg)
	case noRows:
		log.With("error", event.Err).Warn(msg)
	case slow:
		log.Warn(msg)
	default:
		log.Debug(msg)
	}
}
