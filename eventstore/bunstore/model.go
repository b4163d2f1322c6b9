package bunstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/rise-and-shine/dddbase/cqrs/event"
)

// eventModel is one row of the events table. Time is stored as Unix
// nanoseconds so that range filters compare integers in every dialect.
type eventModel struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	Seq     int64          `bun:"seq,pk,autoincrement"`
	UUID    string         `bun:"uuid,notnull,unique"`
	Name    string         `bun:"name,notnull"`
	TimeNS  int64          `bun:"time_ns,notnull"`
	SagaID  string         `bun:"saga_id,nullzero"`
	Payload map[string]any `bun:"payload,type:jsonb"`
}

func toModel(e event.Event) *eventModel {
	return &eventModel{
		UUID:    e.UUID,
		Name:    e.Name,
		TimeNS:  e.Time.UTC().UnixNano(),
		SagaID:  e.SagaID,
		Payload: e.Payload,
	}
}

func (m *eventModel) toEvent() event.Event {
	return event.Event{
		UUID:    m.UUID,
		Name:    m.Name,
		Time:    time.Unix(0, m.TimeNS).UTC(),
		SagaID:  m.SagaID,
		Payload: m.Payload,
	}
}
