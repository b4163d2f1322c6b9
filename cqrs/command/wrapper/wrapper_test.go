package wrapper_test

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
	"github.com/rise-and-shine/dddbase/cqrs/command/wrapper"
	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/meta"
	"github.com/rise-and-shine/dddbase/observability/logger"
	"github.com/rise-and-shine/dddbase/version"
)

type stubHandler struct {
	exec func(ctx context.Context, cmd command.Command) ([]event.Event, error)
}

func (stubHandler) AffectedEntities(context.Context, command.Command) ([]version.Entity, error) {
	return nil, nil
}

func (s stubHandler) Execute(ctx context.Context, cmd command.Command) ([]event.Event, error) {
	return s.exec(ctx, cmd)
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

func (a *alertSpy) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.codes)
}

func TestRecoveryTurnsPanicIntoError(t *testing.T) {
	h := command.Chain(stubHandler{exec: func(context.Context, command.Command) ([]event.Event, error) {
		panic("kaboom")
	}}, wrapper.NewRecovery(logger.NewNop()))

	events, err := h.Execute(t.Context(), command.New("Hotel.bookRoom", nil))
	require.Error(t, err)
	assert.Nil(t, events)
	assert.True(t, errx.IsCodeIn(err, wrapper.CodePanicRecovered))
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) command.WrapFunc {
		return func(next command.Handler) command.Handler {
			return stubHandler{exec: func(ctx context.Context, cmd command.Command) ([]event.Event, error) {
				order = append(order, name)
				return next.Execute(ctx, cmd)
			}}
		}
	}

	h := command.Chain(stubHandler{exec: func(context.Context, command.Command) ([]event.Event, error) {
		order = append(order, "handler")
		return nil, nil
	}}, mark("outer"), mark("inner"))

	_, err := h.Execute(t.Context(), command.Command{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestMetaInjectAndTimeout(t *testing.T) {
	var (
		service  string
		traceID  string
		deadline bool
	)
	h := command.Chain(stubHandler{exec: func(ctx context.Context, _ command.Command) ([]event.Event, error) {
		service, _ = meta.ShouldGetMeta(ctx, meta.ServiceKey)
		traceID, _ = meta.ShouldGetMeta(ctx, meta.TraceID)
		_, deadline = ctx.Deadline()
		return nil, nil
	}}, wrapper.NewMetaInject("hotel", "1.0.0"), wrapper.NewTimeout(time.Second))

	_, err := h.Execute(t.Context(), command.Command{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, "hotel", service)
	assert.NotEmpty(t, traceID)
	assert.True(t, deadline)
}

func TestLoggerWrapper(t *testing.T) {
	l, logs := logger.NewObserved(zapcore.DebugLevel)
	failing := errors.New("no rooms left")

	h := command.Chain(stubHandler{exec: func(context.Context, command.Command) ([]event.Event, error) {
		return nil, failing
	}}, wrapper.NewLogger(l), wrapper.NewTracing())

	_, err := h.Execute(t.Context(), command.Command{Name: "Hotel.bookRoom"})
	require.ErrorIs(t, err, failing)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestAlertOnlyForInternalErrors(t *testing.T) {
	spy := &alertSpy{}

	run := func(err error) {
		h := command.Chain(stubHandler{exec: func(context.Context, command.Command) ([]event.Event, error) {
			return nil, err
		}}, wrapper.NewAlert(logger.NewNop(), spy))
		_, _ = h.Execute(t.Context(), command.Command{Name: "Hotel.bookRoom"})
	}

	run(errx.New("bad input", errx.WithType(errx.T_Validation)))
	run(errx.New("db down", errx.WithCode("DB_DOWN")))

	assert.Eventually(t, func() bool { return spy.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"DB_DOWN"}, spy.codes)
}

func TestDefaultCommandTimeout(t *testing.T) {
	tests := []struct {
		name         string
		timeout      time.Duration
		wantDeadline bool
	}{
		{name: "bounded", timeout: time.Second, wantDeadline: true},
		{name: "disabled", timeout: 0, wantDeadline: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var deadline bool
			h := command.Chain(stubHandler{exec: func(ctx context.Context, _ command.Command) ([]event.Event, error) {
				_, deadline = ctx.Deadline()
				return nil, nil
			}}, wrapper.Default(logger.NewNop(), &alertSpy{}, "hotel", "1.0.0", tc.timeout)...)

			_, err := h.Execute(t.Context(), command.Command{Name: "Hotel.bookRoom"})
			require.NoError(t, err)
			assert.Equal(t, tc.wantDeadline, deadline)
		})
	}
}
