package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	bus := New()
	_, events := bus.Subscribe(1)

	bus.Publish(Event{Type: EventFillRequestReceived, ChainID: 1, TakerAddress: "0xabc"})

	select {
	case e := <-events:
		assert.Equal(t, EventFillRequestReceived, e.Type)
		assert.Equal(t, "0xabc", e.TakerAddress)
	case <-time.After(time.Second):
		t.Fatal("expected to receive the published event")
	}
}

func TestPublishDoesNotCrossChains(t *testing.T) {
	bus := New()
	_, chain1Events := bus.Subscribe(1)
	_, chain2Events := bus.Subscribe(2)

	bus.Publish(Event{Type: EventCancelRequestAccepted, ChainID: 1})

	select {
	case <-chain1Events:
	case <-time.After(time.Second):
		t.Fatal("chain 1 subscriber should have received the event")
	}

	select {
	case e := <-chain2Events:
		t.Fatalf("chain 2 subscriber should not have received anything, got %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	id, events := bus.Subscribe(1)
	require.Equal(t, 1, bus.SubscriberCount(1))

	bus.Unsubscribe(1, id)
	require.Equal(t, 0, bus.SubscriberCount(1))

	_, ok := <-events
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	bus := New()
	_, events := bus.Subscribe(1)

	// Fill the subscriber's buffer well past capacity without draining it;
	// Publish must never block the caller.
	for i := 0; i < subscriberBufferSize+10; i++ {
		bus.Publish(Event{Type: EventFillRequestReceived, ChainID: 1})
	}

	assert.Equal(t, subscriberBufferSize, len(events))
}

func TestSubscriberCountTracksMultipleSubscribers(t *testing.T) {
	bus := New()
	assert.Equal(t, 0, bus.SubscriberCount(5))

	id1, _ := bus.Subscribe(5)
	_, _ = bus.Subscribe(5)
	assert.Equal(t, 2, bus.SubscriberCount(5))

	bus.Unsubscribe(5, id1)
	assert.Equal(t, 1, bus.SubscriberCount(5))
}
