package event

import (
	"context"
	"time"

	"github.com/code19m/errx"
)

// CodeEventNotFound is returned by Store.Get for unknown ids.
const CodeEventNotFound = "EVENT_NOT_FOUND"

// Store is append-only event persistence.
type Store interface {
	// Save appends e and returns its stable identifier.
	Save(ctx context.Context, e Event) (string, error)
	// Get returns the event stored under id.
	Get(ctx context.Context, id string) (Event, error)
	// GetAll returns every stored event in storage order.
	GetAll(ctx context.Context) ([]Event, error)
	// GetDateRange returns stored events with from <= Time, and Time < to when
	// to is non-nil, in storage order.
	GetDateRange(ctx context.Context, from time.Time, to *time.Time) ([]Event, error)
}

// NotFound builds the error stores return for an unknown event id.
func NotFound(id string) error {
	return errx.New(
		"event not found",
		errx.WithCode(CodeEventNotFound),
		errx.WithType(errx.T_NotFound),
		errx.WithDetails(errx.D{"event_uuid": id}),
	)
}

// InRange reports whether t falls into the [from, to) window used by GetDateRange.
func InRange(t, from time.Time, to *time.Time) bool {
	if t.Before(from) {
		return false
	}
	return to == nil || t.Before(*to)
}
