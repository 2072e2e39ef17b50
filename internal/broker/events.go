package broker

import (
	"log/slog"
	"time"
)

// EventType identifies a broker lifecycle event stream.
type EventType string

const (
	EventConnected      EventType = "connected"
	EventDisconnected   EventType = "disconnected"
	EventOrderUpdate    EventType = "order_update"
	EventPositionUpdate EventType = "position_update"
	EventBalanceUpdate  EventType = "balance_update"
	EventError          EventType = "error"
)

// Event is a broker lifecycle notification. Data depends on the event type:
// a domain.Order value for order updates, domain.Position for position
// updates, domain.AccountInfo for balance updates, and a string message for
// errors. Order updates carry a copy so listeners cannot mutate broker state.
type Event struct {
	Type EventType
	Data any
	Time time.Time
}

// Listener receives broker events. Listeners run synchronously in the
// operation that triggered the event.
type Listener func(Event)

// listenerSet holds listeners keyed by event type.
type listenerSet struct {
	log       *slog.Logger
	listeners map[EventType][]Listener
}

func newListenerSet(log *slog.Logger) *listenerSet {
	return &listenerSet{
		log:       log,
		listeners: make(map[EventType][]Listener),
	}
}

func (s *listenerSet) add(t EventType, fn Listener) {
	s.listeners[t] = append(s.listeners[t], fn)
}

// emit dispatches an event to every listener registered for its type. Each
// listener is isolated: a panicking listener is logged and the remaining
// listeners (and the triggering operation) still run.
func (s *listenerSet) emit(t EventType, data any) {
	ev := Event{Type: t, Data: data, Time: time.Now()}
	for _, fn := range s.listeners[t] {
		s.dispatch(t, fn, ev)
	}
}

func (s *listenerSet) dispatch(t EventType, fn Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("broker event listener panicked",
				"event", string(t), "panic", r)
		}
	}()
	fn(ev)
}
