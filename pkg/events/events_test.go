package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBroker_PublishDeliversToSubscribers(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&Event{Type: EventRoleChanged, Message: "became leader"})

	select {
	case evt := <-sub:
		assert.Equal(t, EventRoleChanged, evt.Type)
		assert.False(t, evt.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroker_FanOutToMultipleSubscribers(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	subA := broker.Subscribe()
	subB := broker.Subscribe()
	defer broker.Unsubscribe(subA)
	defer broker.Unsubscribe(subB)

	broker.Publish(&Event{Type: EventTransitionDone})

	for _, sub := range []Subscriber{subA, subB} {
		select {
		case evt := <-sub:
			assert.Equal(t, EventTransitionDone, evt.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBroker_UnsubscribeStopsDelivery(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	assert.Equal(t, 1, broker.SubscriberCount())

	broker.Unsubscribe(sub)
	assert.Equal(t, 0, broker.SubscriberCount())

	_, ok := <-sub
	assert.False(t, ok, "unsubscribed channel should be closed")
}
