// Package eventbus fans out pending and confirmed approval events to
// every listener subscribed on a given chain id.
//
// The per-subscriber buffered channel and "drop the update rather than
// block the publisher" discipline is grounded on
// WebSocketRPCClient.subscriptions in
// src/chainadapter/rpc/websocket.go: a map of subscription id to
// buffered chan, written to with a non-blocking select that drops on a
// full channel.
package eventbus

import (
	"sync"

	"github.com/google/uuid"
)

// EventType distinguishes why an event is being published.
type EventType string

const (
	EventFillRequestReceived   EventType = "FILL_REQUEST_RECEIVED"
	EventFillRequestAccepted   EventType = "FILL_REQUEST_ACCEPTED"
	EventCancelRequestAccepted EventType = "CANCEL_REQUEST_ACCEPTED"
)

// Event is one notification broadcast to chain subscribers.
type Event struct {
	Type         EventType
	ChainID      int64
	OrderHashes  []string
	TakerAddress string

	// TransactionHash identifies the meta-transaction this event concerns.
	TransactionHash string
	// Populated on FillRequestAccepted only.
	FunctionName          string
	ApprovalSignatures    []string
	ExpirationTimeSeconds int64
}

const subscriberBufferSize = 64

// Bus fans events out per chain id. A Bus is safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int64]map[string]chan Event
}

// New creates an empty event bus.
func New() *Bus {
	return &Bus{subscribers: make(map[int64]map[string]chan Event)}
}

// Subscribe registers a new listener for chainID and returns its id and
// receive channel. Unsubscribe must be called to release it.
func (b *Bus) Subscribe(chainID int64) (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, subscriberBufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers[chainID] == nil {
		b.subscribers[chainID] = make(map[string]chan Event)
	}
	b.subscribers[chainID][id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber's channel.
func (b *Bus) Unsubscribe(chainID int64, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[chainID]
	if subs == nil {
		return
	}
	if ch, ok := subs[id]; ok {
		delete(subs, id)
		close(ch)
	}
}

// Publish broadcasts event to every subscriber on event.ChainID. A
// subscriber whose channel is full has the event dropped rather than
// blocking the publisher.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[event.ChainID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports how many listeners are currently registered
// for chainID, for diagnostics.
func (b *Bus) SubscriberCount(chainID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[chainID])
}
