package manager

import (
	"sync"

	"github.com/rs/zerolog"
)

// DefaultEventLogSize is the number of events an EventLog keeps.
const DefaultEventLogSize = 256

// EventLog writes every lifecycle event to a logger and keeps the most recent
// ones in memory.
type EventLog struct {
	log zerolog.Logger
	max int

	mu     sync.Mutex
	events []Event
}

func NewEventLog(log zerolog.Logger, size int) *EventLog {
	if size <= 0 {
		size = DefaultEventLogSize
	}
	return &EventLog{log: log, max: size}
}

func (l *EventLog) Publish(e Event) {
	ev := l.log.Info()
	if e.Name == EventLoadFailed || e.Name == EventReloadFailed {
		ev = l.log.Warn()
	}
	ev.Str("event", e.Name).Str("model", e.Model).Fields(e.Fields).Msg("runtime event")

	l.mu.Lock()
	if len(l.events) == l.max {
		copy(l.events, l.events[1:])
		l.events = l.events[:l.max-1]
	}
	l.events = append(l.events, e)
	l.mu.Unlock()
}

// Recent returns the retained events, oldest first.
func (l *EventLog) Recent() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// Names returns the retained event names, oldest first.
func (l *EventLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.Name
	}
	return out
}
