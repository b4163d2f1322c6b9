package memory_test

import (
	"testing"
	"time"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/eventstore/memory"
)

func at(minute int) time.Time {
	return time.Date(2024, 5, 1, 10, minute, 0, 0, time.UTC)
}

func TestSaveGetAll(t *testing.T) {
	s := memory.New()
	ctx := t.Context()

	for i, name := range []string{"a", "b", "c"} {
		id, err := s.Save(ctx, event.Event{UUID: name + "-id", Name: name, Time: at(i)})
		require.NoError(t, err)
		assert.Equal(t, name+"-id", id)
	}

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].Name)
	assert.Equal(t, "c", all[2].Name)

	got, err := s.Get(ctx, "b-id")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Name)

	_, err = s.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errx.IsCodeIn(err, event.CodeEventNotFound))
}

func TestSaveRejectsDuplicatesAndEmptyUUID(t *testing.T) {
	s := memory.New()

	_, err := s.Save(t.Context(), event.Event{Name: "a"})
	require.Error(t, err)

	_, err = s.Save(t.Context(), event.Event{UUID: "1", Name: "a"})
	require.NoError(t, err)
	_, err = s.Save(t.Context(), event.Event{UUID: "1", Name: "a"})
	require.Error(t, err)
	assert.Equal(t, errx.T_Conflict, errx.GetType(err))
}

func TestStoredPayloadIsIsolated(t *testing.T) {
	s := memory.New()
	payload := event.Payload{"room": 42, "tags": map[string]any{"vip": true}}

	_, err := s.Save(t.Context(), event.Event{UUID: "1", Name: "a", Payload: payload})
	require.NoError(t, err)

	payload["room"] = 7
	payload["tags"].(map[string]any)["vip"] = false

	got, err := s.Get(t.Context(), "1")
	require.NoError(t, err)
	assert.Equal(t, 42, got.Payload["room"])
	assert.Equal(t, true, got.Payload["tags"].(map[string]any)["vip"])
}

func TestGetDateRange(t *testing.T) {
	s := memory.New()
	for i := range 5 {
		_, err := s.Save(t.Context(), event.Event{UUID: string(rune('a' + i)), Name: "tick", Time: at(i)})
		require.NoError(t, err)
	}

	to := at(3)
	tests := []struct {
		name string
		from time.Time
		to   *time.Time
		want []string
	}{
		{name: "open ended", from: at(2), want: []string{"c", "d", "e"}},
		{name: "bounded", from: at(1), to: &to, want: []string{"b", "c"}},
		{name: "empty window", from: at(9), want: []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.GetDateRange(t.Context(), tc.from, tc.to)
			require.NoError(t, err)

			ids := make([]string, 0, len(got))
			for _, e := range got {
				ids = append(ids, e.UUID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}
}
