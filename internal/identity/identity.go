// Package identity resolves authenticated sessions to role-tagged
// profiles. The resolver is process-wide state with a single writer;
// every reader gets an immutable snapshot, never a live reference.
package identity

import (
	"context"
	"sync"

	"github.com/medihelp/carewire/internal/models"
	"github.com/medihelp/carewire/internal/store"
	"go.uber.org/zap"
)

// State classifies an identity snapshot.
type State int

const (
	// NoIdentity means no authenticated principal, or the profile lookup
	// failed.
	NoIdentity State = iota
	// PendingProvisioning means the principal is authenticated but the
	// profile row is not visible yet. Callers re-resolve on the next
	// auth transition; this is not an error.
	PendingProvisioning
	// Ready means a profile was resolved.
	Ready
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case PendingProvisioning:
		return "pending-provisioning"
	case Ready:
		return "ready"
	default:
		return "no-identity"
	}
}

// Snapshot is an immutable view of the resolved identity. Profile is
// meaningful only when State is Ready.
type Snapshot struct {
	State   State
	Profile models.Profile
}

// AuthEvent is one transition from the identity provider: a sign-in or
// token refresh carries the principal's user ID, a sign-out carries none.
type AuthEvent struct {
	UserID string
}

// Resolver maps auth-state transitions to profile snapshots. It owns no
// mutation beyond its own snapshot; a lookup failure degrades to
// NoIdentity rather than propagating.
type Resolver struct {
	store  store.Store
	logger *zap.Logger

	mu       sync.RWMutex
	current  Snapshot
	watchers []chan Snapshot
}

// NewResolver creates a resolver in the NoIdentity state.
func NewResolver(st store.Store, logger *zap.Logger) *Resolver {
	return &Resolver{store: st, logger: logger}
}

// Apply processes one auth transition and returns the new snapshot.
func (r *Resolver) Apply(ctx context.Context, ev AuthEvent) Snapshot {
	snap := r.resolve(ctx, ev)

	r.mu.Lock()
	r.current = snap
	watchers := r.watchers
	r.mu.Unlock()

	for _, w := range watchers {
		select {
		case w <- snap:
		default:
			// A watcher that hasn't drained the previous snapshot only
			// cares about the latest one anyway.
			select {
			case <-w:
			default:
			}
			select {
			case w <- snap:
			default:
			}
		}
	}
	return snap
}

func (r *Resolver) resolve(ctx context.Context, ev AuthEvent) Snapshot {
	if ev.UserID == "" {
		return Snapshot{State: NoIdentity}
	}

	// Read without expecting exactly one row: right after enrollment the
	// profile may not have replicated yet.
	var profiles []models.Profile
	err := r.store.Read(ctx, store.Query{
		Collection: store.Profiles,
		Where:      []store.Cond{{Field: "id", Value: ev.UserID}},
	}, &profiles)
	if err != nil {
		r.logger.Error("identity: profile lookup failed",
			zap.String("user_id", ev.UserID), zap.Error(err))
		return Snapshot{State: NoIdentity}
	}
	if len(profiles) == 0 {
		r.logger.Warn("identity: no profile yet for authenticated user",
			zap.String("user_id", ev.UserID))
		return Snapshot{State: PendingProvisioning}
	}
	return Snapshot{State: Ready, Profile: profiles[0]}
}

// Current returns the latest snapshot.
func (r *Resolver) Current() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Watch returns a channel receiving each new snapshot. The channel holds
// only the most recent unread snapshot.
func (r *Resolver) Watch() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	r.mu.Lock()
	r.watchers = append(r.watchers, ch)
	r.mu.Unlock()
	return ch
}
