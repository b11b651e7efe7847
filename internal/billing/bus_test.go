package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub.ID())

	bus.Publish(Event{Type: "billing", Model: "qwen-plus", Cost: 0.0006})

	select {
	case e := <-sub.Events():
		assert.Equal(t, "billing", e.Type)
		assert.Equal(t, "qwen-plus", e.Model)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestBusFanOutToMultipleSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe()
	defer bus.Unsubscribe(a.ID())
	defer bus.Unsubscribe(b.ID())

	bus.Publish(Event{Type: "billing", Cost: 1})

	for _, sub := range []*Subscriber{a, b} {
		select {
		case e := <-sub.Events():
			assert.Equal(t, float64(1), e.Cost)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive fan-out event")
		}
	}
}

func TestBusOverflowDropsOldest(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub.ID())

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(Event{Type: "billing", Cost: float64(i)})
	}

	require.Len(t, sub.ch, subscriberBuffer)

	first := <-sub.Events()
	assert.Greater(t, first.Cost, float64(0), "oldest events must have been dropped to make room")
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	bus.Unsubscribe(sub.ID())

	_, ok := <-sub.Events()
	assert.False(t, ok, "channel should be closed after unsubscribe")
}
