package session

// Event represents a session-table lifecycle event.
// Minimal and stable: name + slot + network id with optional fields.
type Event struct {
	Name    string
	Slot    int
	Network string
	Fields  map[string]any
}

// EventPublisher receives events from the table. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
