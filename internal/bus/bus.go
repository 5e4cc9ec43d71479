package bus

import (
	"strings"
	"sync"
)

// Bus carries events between the messaging subsystem's layers: the
// transport publishes under "channel.", the state machine under
// "session.", and the engine under "chat.". Subscribers filter by
// namespace prefix so a presentation surface can watch "chat." without
// seeing raw wire traffic.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
}

type subscription struct {
	namespace string
	ch        chan Event
}

// New creates an empty bus. One instance is shared per session.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish delivers evt to every subscriber whose namespace prefixes
// evt.Kind. Delivery never blocks: a subscriber whose buffer is full
// misses the event and is expected to re-read the stores it renders from.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			select {
			case sub.ch <- evt:
			default:
			}
		}
	}
}

// Subscribe registers interest in a namespace prefix ("channel.",
// "chat.", "session.", or "" for everything) and returns the receiving
// channel plus an unsubscribe function. bufSize bounds how far the
// subscriber may lag before it starts dropping.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = &subscription{namespace: namespace, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
