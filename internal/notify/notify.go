// Package notify pushes care-team notifications to chat platforms
// (Slack, Discord, etc.). Delivery is best effort: a failed send is
// logged and never blocks or fails the write that triggered it.
package notify

import (
	"context"
	"fmt"

	"github.com/medihelp/carewire/internal/feed"
	"github.com/medihelp/carewire/internal/models"
	"github.com/medihelp/carewire/internal/store"
	"go.uber.org/zap"
)

// Notifier is the interface platform adapters must satisfy.
type Notifier interface {
	// Connect establishes the platform connection.
	Connect(ctx context.Context) error

	// Send delivers one notification.
	Send(ctx context.Context, n Notification) error

	// Close shuts the adapter down.
	Close() error
}

// Severity classifies a notification for platform-side rendering.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Notification is one care-team alert.
type Notification struct {
	Title    string
	Body     string
	Severity Severity
}

// Watcher turns committed inserts into notifications. It subscribes to
// the change feed and fans each notification out to every adapter.
type Watcher struct {
	store     store.Store
	feed      feed.Feed
	notifiers []Notifier
	logger    *zap.Logger
}

// NewWatcher creates a watcher over the given adapters.
func NewWatcher(st store.Store, fd feed.Feed, notifiers []Notifier, logger *zap.Logger) *Watcher {
	return &Watcher{store: st, feed: fd, notifiers: notifiers, logger: logger}
}

// Run subscribes to the notifying collections and blocks until ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	collections := []string{store.TriageSessions, store.Prescriptions, store.LiveMessages}
	for _, collection := range collections {
		sub, err := w.feed.Subscribe(ctx, collection)
		if err != nil {
			return fmt.Errorf("notify: subscribe %s: %w", collection, err)
		}
		go w.consume(ctx, sub)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (w *Watcher) consume(ctx context.Context, sub *feed.Subscription) {
	defer sub.Close()
	for ev := range sub.Events() {
		n, ok := w.render(ctx, ev)
		if !ok {
			continue
		}
		w.deliver(ctx, n)
	}
}

// render maps a feed event to a notification. Not every event notifies:
// live messages only alert when the receiver is a clinician.
func (w *Watcher) render(ctx context.Context, ev feed.Event) (Notification, bool) {
	switch ev.Collection {
	case store.TriageSessions:
		session, ok := ev.Row.(models.TriageSession)
		if !ok {
			return Notification{}, false
		}
		return Notification{
			Title:    "New triage session",
			Body:     fmt.Sprintf("Patient %s completed a triage session: %s", session.PatientID, session.Summary),
			Severity: SeverityInfo,
		}, true

	case store.Prescriptions:
		p, ok := ev.Row.(models.Prescription)
		if !ok {
			return Notification{}, false
		}
		return Notification{
			Title:    "Prescription issued",
			Body:     fmt.Sprintf("%s %s for patient %s", p.Medication, p.Dosage, p.PatientID),
			Severity: SeverityInfo,
		}, true

	case store.LiveMessages:
		msg, ok := ev.Row.(models.LiveMessage)
		if !ok {
			return Notification{}, false
		}
		if !w.receiverIsDoctor(ctx, msg.ReceiverID) {
			return Notification{}, false
		}
		return Notification{
			Title:    "Message waiting",
			Body:     fmt.Sprintf("Patient %s sent a message to clinician %s", msg.SenderID, msg.ReceiverID),
			Severity: SeverityWarning,
		}, true
	}
	return Notification{}, false
}

func (w *Watcher) receiverIsDoctor(ctx context.Context, receiverID string) bool {
	var profiles []models.Profile
	err := w.store.Read(ctx, store.Query{
		Collection: store.Profiles,
		Where:      []store.Cond{{Field: "id", Value: receiverID}},
	}, &profiles)
	if err != nil {
		w.logger.Warn("notify: receiver lookup failed",
			zap.String("receiver", receiverID), zap.Error(err))
		return false
	}
	return len(profiles) == 1 && profiles[0].Role == models.RoleDoctor
}

func (w *Watcher) deliver(ctx context.Context, n Notification) {
	for _, notifier := range w.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			w.logger.Warn("notify: send failed",
				zap.String("title", n.Title), zap.Error(err))
		}
	}
}
