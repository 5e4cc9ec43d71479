package bus

import "time"

// Event represents a domain event published on the bus.
//
// Kinds are dot-namespaced: "channel." for events parsed off the push
// connection, "session." for lifecycle changes, "chat." for store updates
// that the presentation layer renders from.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
