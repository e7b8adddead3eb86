package feed

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// subscriptionBuffer is the per-subscription event buffer. A consumer
// this far behind loses events rather than blocking every publisher.
const subscriptionBuffer = 256

// Hub is the in-process change feed. Writers publish each row right
// after its insert commits, so per-collection delivery order equals
// commit order as observed in this process.
type Hub struct {
	mu     sync.Mutex
	subs   map[string][]*Subscription
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[string][]*Subscription),
		logger: logger,
	}
}

// Subscribe opens a stream of insert events for a collection. The
// subscription closes itself when ctx is cancelled.
func (h *Hub) Subscribe(ctx context.Context, collection string) (*Subscription, error) {
	sub := &Subscription{
		collection: collection,
		events:     make(chan Event, subscriptionBuffer),
		done:       make(chan struct{}),
		detach:     h.remove,
	}

	h.mu.Lock()
	h.subs[collection] = append(h.subs[collection], sub)
	h.mu.Unlock()

	// The watcher exits on Close too, so a closed subscription does not
	// park a goroutine for the lifetime of ctx.
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Publish delivers one insert event to every open subscription for the
// collection, in the order Publish is called. Delivery happens under the
// hub lock, so a subscription removed by Close never receives a later
// event.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs[ev.Collection] {
		select {
		case sub.events <- ev:
		default:
			h.logger.Warn("feed: dropping event for slow subscriber",
				zap.String("collection", ev.Collection))
		}
	}
}

// remove detaches sub so no later Publish can reach it.
func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[sub.collection]
	for i, s := range subs {
		if s == sub {
			h.subs[sub.collection] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}
