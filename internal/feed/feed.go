// Package feed provides the change-feed capability: server-pushed insert
// events for named collections, delivered in commit order.
package feed

import (
	"context"
	"sync"
)

// Event is one insert delivered from a change feed.
type Event struct {
	Collection string
	Row        any
}

// Feed is the subscription capability consumed by synchronizers.
type Feed interface {
	// Subscribe opens a stream of insert events for a collection. The
	// subscription delivers events in commit order until Close is called
	// or ctx is cancelled.
	Subscribe(ctx context.Context, collection string) (*Subscription, error)
}

// Subscription is one open change-feed stream. Close is idempotent;
// once Close returns, no further event is delivered on Events.
type Subscription struct {
	collection string
	events     chan Event
	done       chan struct{}
	closeOnce  sync.Once
	detach     func(*Subscription)
}

// Events returns the event stream. The channel is closed by Close.
func (s *Subscription) Events() <-chan Event { return s.events }

// Collection returns the collection this subscription covers.
func (s *Subscription) Collection() string { return s.collection }

// Close detaches the subscription from its source and closes the event
// channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		if s.detach != nil {
			s.detach(s)
		}
		if s.done != nil {
			close(s.done)
		}
		close(s.events)
	})
}
