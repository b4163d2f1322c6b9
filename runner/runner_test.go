package runner_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/dddbase/bridge"
	"github.com/rise-and-shine/dddbase/cqrs/command"
	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/cqrs/saga"
	"github.com/rise-and-shine/dddbase/entity"
	"github.com/rise-and-shine/dddbase/eventstore"
	"github.com/rise-and-shine/dddbase/http/server"
	"github.com/rise-and-shine/dddbase/observability/logger"
	"github.com/rise-and-shine/dddbase/observability/tracing"
	"github.com/rise-and-shine/dddbase/runner"
)

type counter struct {
	*entity.Root

	mu sync.Mutex
	n  int
}

func newCounter(d runner.Deps) *counter {
	c := &counter{Root: entity.NewRoot("Counter", d.Commands, d.Events, d.Logger, entity.WithWrappers(d.Wrappers...))}

	c.RegisterCommand("Counter.increment", func(_ context.Context, cmd command.Command) ([]event.Event, error) {
		return []event.Event{entity.NewEvent("Counter.incremented", event.Payload{"by": cmd.Payload["by"]})}, nil
	})
	c.RegisterEvent("Counter.incremented", func(context.Context, event.Event) ([]event.Event, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.n++
		return nil, nil
	})
	return c
}

func (c *counter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newTotals(d runner.Deps) *entity.ReadModel[int] {
	rm := entity.NewReadModel("totals", d.Events, d.Logger, 0,
		entity.WithProjection(func(n int) any { return map[string]int{"count": n} }),
	)
	rm.RegisterEvent("Counter.incremented", func(_ context.Context, n *int, _ event.Event) error {
		*n++
		return nil
	})
	return rm
}

func testConfig(path string) runner.Config {
	return runner.Config{
		Service: runner.ServiceConfig{Name: "counter", Version: "test"},
		Tracing: tracing.Config{Disable: true},
		HTTP:    server.Config{Host: "127.0.0.1", Port: 0, BodyLimit: 1 << 20, HandleTimeout: time.Second},
		EventStore: eventstore.Config{
			Driver: eventstore.DriverJSONFile,
			JSONFile: eventstore.JSONFileConfig{
				Sink:     "file",
				Path:     path,
				Interval: time.Hour,
			},
		},
		Dispatcher: runner.DispatcherConfig{
			CommandRetries:  1,
			RetryBackoff:    time.Millisecond,
			SagaTaskTimeout: time.Second,
			DisableHTTP:     true,
		},
		Bridge: bridge.Config{Driver: bridge.DriverNone},
	}
}

func request(t *testing.T, r *runner.Runner, method, path, body string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestRunner_CommandsAndReadModels(t *testing.T) {
	r, err := runner.New(t.Context(), testConfig(filepath.Join(t.TempDir(), "events.json")), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Stop(context.Background()) })

	c := runner.AttachRoot(r, newCounter)
	r.AttachReadModel("", newTotals(r.Deps()))
	require.NoError(t, r.Start())

	status, body := request(t, r, http.MethodPost, "/command", `{"name":"Counter.increment","payload":{"by":1}}`)
	require.Equal(t, http.StatusAccepted, status, body)
	assert.Equal(t, []any{"Counter.incremented"}, body["events"])
	assert.Equal(t, 1, c.value())

	status, body = request(t, r, http.MethodGet, "/totals", "")
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 1, body["count"], 0)

	status, body = request(t, r, http.MethodGet, "/events/last", "")
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["uuid"])

	status, _ = request(t, r, http.MethodPost, "/command", `{"name":"Counter.reset"}`)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRunner_ReplayHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")

	first, err := runner.New(t.Context(), testConfig(path), logger.NewNop())
	require.NoError(t, err)
	runner.AttachRoot(first, newCounter)

	for range 3 {
		_, err = first.Commands().Dispatch(t.Context(), command.New("Counter.increment", command.Payload{"by": 1}))
		require.NoError(t, err)
	}
	require.NoError(t, first.Stop(t.Context()))

	second, err := runner.New(t.Context(), testConfig(path), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Stop(context.Background()) })

	c := runner.AttachRoot(second, newCounter)
	totals := newTotals(second.Deps())

	require.NoError(t, second.ReplayHistory(t.Context()))

	assert.Equal(t, 3, c.value())
	view, err := totals.View(t.Context())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"count": 3}, view)
	assert.False(t, second.Events().Locked())

	all, err := second.Store().GetAll(t.Context())
	require.NoError(t, err)
	assert.Len(t, all, 3, "replay must not persist again")
}

func TestRunner_AttachSaga(t *testing.T) {
	r, err := runner.New(t.Context(), testConfig(filepath.Join(t.TempDir(), "events.json")), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Stop(context.Background()) })

	c := runner.AttachRoot(r, newCounter)

	h := saga.NewHandler("Twice", r.Deps().Orchestrator, logger.NewNop())
	h.Handle("Twice.increment", func(ctx context.Context, o *saga.Orchestrator, _ command.Command) ([]event.Event, error) {
		id := o.Provision()
		for range 2 {
			err := o.AddTask(id, command.New("Counter.increment", nil), "Counter", nil, 0)
			if err != nil {
				return nil, err
			}
		}
		return nil, o.Run(ctx, id)
	})
	r.AttachSaga(h)

	_, err = r.Commands().Dispatch(t.Context(), command.New("Twice.increment", nil))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return c.value() == 2 }, time.Second, 10*time.Millisecond)
}

func TestRunner_StartTwice(t *testing.T) {
	r, err := runner.New(t.Context(), testConfig(filepath.Join(t.TempDir(), "events.json")), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Stop(context.Background()) })

	require.NoError(t, r.Start())
	require.Error(t, r.Start())
}

func TestNew_ReleasesTracerOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*runner.Config)
	}{
		{
			name:   "event store",
			mutate: func(c *runner.Config) { c.EventStore.Driver = "cassandra" },
		},
		{
			name:   "bridge",
			mutate: func(c *runner.Config) { c.Bridge.Driver = "rabbit" },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stopped int
			restore := runner.SetTracerInit(func(tracing.Config) (func() error, error) {
				return func() error {
					stopped++
					return nil
				}, nil
			})
			t.Cleanup(restore)

			cfg := testConfig(filepath.Join(t.TempDir(), "events.json"))
			tc.mutate(&cfg)

			r, err := runner.New(t.Context(), cfg, logger.NewNop())
			require.Error(t, err)
			assert.Nil(t, r)
			assert.Equal(t, 1, stopped)
		})
	}
}
