// Package jsonfile keeps events in memory and periodically writes the whole
// history as one JSON document to a Sink (a local file or a MinIO object).
// Events saved after the last write are lost if the process dies, so call
// Close on shutdown.
package jsonfile

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/eventstore/memory"
	"github.com/rise-and-shine/dddbase/observability/logger"
)

// DefaultInterval is the default time between two writes.
const DefaultInterval = 5 * time.Second

type document struct {
	Events []event.Event `json:"events"`
}

// Store is an event.Store flushed to a Sink.
type Store struct {
	*memory.Store

	sink   Sink
	logger logger.Logger
	dirty  atomic.Bool

	mu       sync.Mutex
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// Open loads the existing document from sink and starts saving every interval
// (DefaultInterval when not positive).
func Open(ctx context.Context, sink Sink, interval time.Duration, log logger.Logger) (*Store, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s := &Store{
		Store:    memory.New(),
		sink:     sink,
		logger:   log.Named("eventstore.jsonfile"),
		interval: interval,
	}

	data, err := sink.Read(ctx)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	if len(data) > 0 {
		var doc document
		if err = json.Unmarshal(data, &doc); err != nil {
			return nil, errx.Wrap(err, errx.WithDetails(errx.D{"reason": "corrupt event document"}))
		}
		s.Load(doc.Events)
	}

	s.StartSaving(0)
	return s, nil
}

// Save implements event.Store.
func (s *Store) Save(ctx context.Context, e event.Event) (string, error) {
	id, err := s.Store.Save(ctx, e)
	if err == nil {
		s.dirty.Store(true)
	}
	return id, err
}

// StartSaving (re)starts the periodic writer. A positive interval replaces the
// current one.
func (s *Store) StartSaving(interval time.Duration) {
	s.StopSaving()

	s.mu.Lock()
	defer s.mu.Unlock()

	if interval > 0 {
		s.interval = interval
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.interval, s.stop, s.done)
}

// StopSaving stops the periodic writer and waits for it to exit.
func (s *Store) StopSaving() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// SaveNow writes the whole history to the sink.
func (s *Store) SaveNow(ctx context.Context) error {
	s.dirty.Store(false)

	events, err := s.GetAll(ctx)
	if err != nil {
		return errx.Wrap(err)
	}

	data, err := json.MarshalIndent(document{Events: events}, "", "  ")
	if err != nil {
		return errx.Wrap(err)
	}

	if err = s.sink.Write(ctx, data); err != nil {
		s.dirty.Store(true)
		return errx.Wrap(err)
	}
	return nil
}

// Close stops the writer and flushes pending events.
func (s *Store) Close(ctx context.Context) error {
	s.StopSaving()
	return s.SaveNow(ctx)
}

func (s *Store) loop(interval time.Duration, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !s.dirty.Load() {
				continue
			}
			if err := s.SaveNow(context.Background()); err != nil {
				s.logger.Errorx(err)
			}
		}
	}
}
