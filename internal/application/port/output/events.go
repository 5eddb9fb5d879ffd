package output

import "shopping-agent/internal/domain/entity"

// EventSink receives progress events. Publish must not block indefinitely.
type EventSink interface {
	Publish(ev entity.Event)
}

type EventSinkFunc func(ev entity.Event)

func (f EventSinkFunc) Publish(ev entity.Event) { f(ev) }
