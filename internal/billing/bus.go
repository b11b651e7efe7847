package billing

import (
	"sync"

	"github.com/google/uuid"
)

const subscriberBuffer = 100

// Subscriber is one observer's inbound queue on the bus: a bounded ring of
// up to 100 pending events. A slow or dead consumer only ever loses its own
// oldest messages — it never slows down the publisher.
type Subscriber struct {
	id string
	ch chan Event
}

func (s *Subscriber) ID() string          { return s.id }
func (s *Subscriber) Events() <-chan Event { return s.ch }

// Bus is the multi-producer, multi-subscriber broadcast of billing events.
// It is a process-wide singleton; publishers never observe per-subscriber
// delivery errors.
type Bus struct {
	mu   sync.Mutex
	subs map[string]*Subscriber
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]*Subscriber)}
}

// Subscribe registers a new observer and returns its handle. Callers must
// Unsubscribe on disconnect.
func (b *Bus) Subscribe() *Subscriber {
	sub := &Subscriber{
		id: uuid.NewString(),
		ch: make(chan Event, subscriberBuffer),
	}
	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub
}

// Unsubscribe drops a subscriber, e.g. after its socket send fails.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// Publish fans e out to every current subscriber without blocking. A
// subscriber whose ring is full has its oldest pending event dropped to make
// room for the new one.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- e:
			continue
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- e:
		default:
		}
	}
}
