// Package memory is an in-process event store. Events are deep-copied on the
// way in and out, so callers cannot mutate stored history.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/dddbase/cqrs/event"
)

// Store keeps events in a slice in append order.
type Store struct {
	mu     sync.RWMutex
	events []event.Event
	index  map[string]int
}

// New returns an empty store.
func New() *Store {
	return &Store{index: make(map[string]int)}
}

// Save implements event.Store.
func (s *Store) Save(_ context.Context, e event.Event) (string, error) {
	if e.UUID == "" {
		return "", errx.New("[eventstore.memory]: event uuid is empty", errx.WithType(errx.T_Validation))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[e.UUID]; ok {
		return "", errx.New(
			"[eventstore.memory]: event already stored",
			errx.WithType(errx.T_Conflict),
			errx.WithDetails(errx.D{"event_uuid": e.UUID}),
		)
	}

	s.index[e.UUID] = len(s.events)
	s.events = append(s.events, e.Clone())
	return e.UUID, nil
}

// Get implements event.Store.
func (s *Store) Get(_ context.Context, id string) (event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return event.Event{}, event.NotFound(id)
	}
	return s.events[i].Clone(), nil
}

// GetAll implements event.Store.
func (s *Store) GetAll(_ context.Context) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]event.Event, len(s.events))
	for i := range s.events {
		out[i] = s.events[i].Clone()
	}
	return out, nil
}

// GetDateRange implements event.Store.
func (s *Store) GetDateRange(_ context.Context, from time.Time, to *time.Time) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]event.Event, 0)
	for i := range s.events {
		if event.InRange(s.events[i].Time, from, to) {
			out = append(out, s.events[i].Clone())
		}
	}
	return out, nil
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Load replaces the stored history with events, keeping their order.
func (s *Store) Load(events []event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = make([]event.Event, 0, len(events))
	s.index = make(map[string]int, len(events))
	for _, e := range events {
		s.index[e.UUID] = len(s.events)
		s.events = append(s.events, e.Clone())
	}
}
