// Package pairsync keeps one live conversation current: it reconciles a
// point-in-time historical read with a concurrently arriving insert feed
// for a single unordered identity pair, without duplication, reordering,
// or cross-pair leakage.
package pairsync

import (
	"context"
	"fmt"
	"sync"

	"github.com/medihelp/carewire/internal/feed"
	"github.com/medihelp/carewire/internal/models"
	"github.com/medihelp/carewire/internal/store"
	"go.uber.org/zap"
)

// Synchronizer presents a continuously updated, ordered, duplicate-free
// message sequence for the pair {a, b}. Create one per active
// conversation view and Close it before opening one for another pair.
type Synchronizer struct {
	store  store.Store
	feed   feed.Feed
	logger *zap.Logger
	a, b   string

	mu      sync.Mutex
	msgs    []models.LiveMessage
	seen    map[string]struct{}
	loaded  bool
	err     error
	closed  bool
	sub     *feed.Subscription
	updates chan struct{}
}

// New creates a synchronizer for the unordered pair {a, b}. Call Start
// to begin syncing.
func New(st store.Store, fd feed.Feed, logger *zap.Logger, a, b string) *Synchronizer {
	return &Synchronizer{
		store:   st,
		feed:    fd,
		logger:  logger,
		a:       a,
		b:       b,
		seen:    make(map[string]struct{}),
		updates: make(chan struct{}, 1),
	}
}

// Start opens the change feed and issues the historical read. The two
// race deliberately; identity dedup reconciles either arrival order. A
// feed subscription failure disables live updates but is not fatal; a
// historical read failure is terminal for this pair and surfaces via Err.
func (s *Synchronizer) Start(ctx context.Context) {
	sub, err := s.feed.Subscribe(ctx, store.LiveMessages)
	if err != nil {
		s.logger.Warn("pairsync: feed subscription failed, live updates disabled",
			zap.String("pair_a", s.a), zap.String("pair_b", s.b), zap.Error(err))
	} else {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			sub.Close()
		} else {
			s.sub = sub
			s.mu.Unlock()
			go s.consume(sub)
		}
	}

	go s.loadHistory(ctx)
}

// consume drains feed events until the subscription closes.
func (s *Synchronizer) consume(sub *feed.Subscription) {
	for ev := range sub.Events() {
		msg, ok := ev.Row.(models.LiveMessage)
		if !ok {
			continue
		}
		s.accept(msg)
	}
}

// accept merges one feed event. The pair filter is applied here, not at
// the transport: the feed is unfiltered and every event is checked
// against {a, b} in either direction.
func (s *Synchronizer) accept(msg models.LiveMessage) {
	if !msg.InPair(s.a, s.b) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.err != nil {
		return
	}
	if _, dup := s.seen[msg.ID]; dup {
		// The historical read raced past this insert and already holds it.
		return
	}
	s.seen[msg.ID] = struct{}{}
	s.msgs = append(s.msgs, msg)
	s.notifyLocked()
}

// loadHistory performs the point-in-time fetch and merges it under the
// sequence already built from feed events. Snapshot rows come first in
// their stored order; feed-only rows follow in delivery order. Identity
// dedup makes both arrival orders converge on the same sequence.
func (s *Synchronizer) loadHistory(ctx context.Context) {
	var rows []models.LiveMessage
	err := s.store.Read(ctx, store.Query{
		Collection: store.LiveMessages,
		Pair: &store.PairFilter{
			SenderField:   "sender_id",
			ReceiverField: "receiver_id",
			A:             s.a,
			B:             s.b,
		},
		OrderBy: &store.Order{Field: "created_at"},
	}, &rows)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if err != nil {
		// Terminal for this pair: expose the error, drop any partial
		// state, and stop live merging. Recovery is a full reactivation,
		// which re-runs the historical read.
		s.err = fmt.Errorf("pairsync: historical read for pair {%s, %s}: %w", s.a, s.b, err)
		s.msgs = nil
		s.seen = make(map[string]struct{})
		sub := s.sub
		s.sub = nil
		s.notifyLocked()
		s.mu.Unlock()

		s.logger.Error("pairsync: historical read failed", zap.Error(err))
		if sub != nil {
			sub.Close()
		}
		return
	}

	merged := make([]models.LiveMessage, 0, len(rows)+len(s.msgs))
	seen := make(map[string]struct{}, len(rows)+len(s.msgs))
	for _, m := range rows {
		if _, dup := seen[m.ID]; !dup {
			seen[m.ID] = struct{}{}
			merged = append(merged, m)
		}
	}
	for _, m := range s.msgs {
		if _, dup := seen[m.ID]; !dup {
			seen[m.ID] = struct{}{}
			merged = append(merged, m)
		}
	}
	s.msgs = merged
	s.seen = seen
	s.loaded = true
	s.notifyLocked()
	s.mu.Unlock()
}

// Messages returns a copy of the current ordered sequence.
func (s *Synchronizer) Messages() []models.LiveMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LiveMessage, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Loaded reports whether the historical read has completed, which
// distinguishes an empty conversation from one still loading.
func (s *Synchronizer) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Err returns the terminal error for this pair, if any.
func (s *Synchronizer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Updates returns a channel that signals after each change to the
// exposed state. Signals coalesce; consumers re-read Messages.
func (s *Synchronizer) Updates() <-chan struct{} { return s.updates }

// Pair returns the two identities this synchronizer serves.
func (s *Synchronizer) Pair() (string, string) { return s.a, s.b }

// Close tears the synchronizer down. Once Close returns, no event
// mutates the exposed sequence, not even one already in flight from
// the old subscription.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// notifyLocked signals Updates without blocking. Callers hold mu.
func (s *Synchronizer) notifyLocked() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
