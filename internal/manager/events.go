package manager

// Event represents a runtime lifecycle event.
// Minimal and stable: name + model name and optional fields via key/values.
type Event struct {
	Name   string
	Model  string
	Fields map[string]any
}

// Event names published by the runtime.
const (
	EventLoadStart    = "load_start"
	EventLoadDone     = "load_done"
	EventLoadFailed   = "load_failed"
	EventReloadStart  = "reload_start"
	EventReloadDone   = "reload_done"
	EventReloadFailed = "reload_failed"
	EventDrainStart   = "drain_start"
	EventFinalized    = "finalized"
)

// EventPublisher receives events from the runtime. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
