package service

// Broadcaster sends side-channel events to observers.
// Implemented by the WebSocket hub and the Redis publisher.
type Broadcaster interface {
	BroadcastEvent(eventType string, data any)
}

// NoopBroadcaster is a no-op implementation for testing or when visualization is disabled.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastEvent(string, any) {}

// MultiBroadcaster fans each event out to every wrapped broadcaster in order.
type MultiBroadcaster []Broadcaster

func (m MultiBroadcaster) BroadcastEvent(eventType string, data any) {
	for _, b := range m {
		if b != nil {
			b.BroadcastEvent(eventType, data)
		}
	}
}
