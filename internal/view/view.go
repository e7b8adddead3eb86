// Package view holds the per-user session state machines: the patient
// app session that moves between the dashboard and an in-progress
// triage, and the clinician detail session with its tabbed view over one
// patient.
package view

import (
	"context"
	"fmt"
	"sync"

	"github.com/medihelp/carewire/internal/models"
	"github.com/medihelp/carewire/internal/mutate"
	"go.uber.org/zap"
)

// AppView is the top-level screen of a patient session.
type AppView string

const (
	ViewDashboard AppView = "dashboard"
	ViewTriage    AppView = "triage"
)

// Session is one patient's app session. It starts on the dashboard. A
// triage in progress lives only in memory; abandoning it persists
// nothing.
type Session struct {
	userID  string
	gateway *mutate.Gateway
	logger  *zap.Logger

	mu    sync.Mutex
	view  AppView
	draft []models.ChatTurn
}

// NewSession creates a session for userID, entered at the dashboard.
func NewSession(userID string, gw *mutate.Gateway, logger *zap.Logger) *Session {
	return &Session{userID: userID, gateway: gw, logger: logger, view: ViewDashboard}
}

// View returns the current screen.
func (s *Session) View() AppView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// StartTriage enters the triage screen with an empty draft.
func (s *Session) StartTriage() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view != ViewDashboard {
		return fmt.Errorf("view: start triage: not on dashboard (current %s)", s.view)
	}
	s.view = ViewTriage
	s.draft = nil
	return nil
}

// AddTurn appends one turn to the triage draft.
func (s *Session) AddTurn(role, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view != ViewTriage {
		return fmt.Errorf("view: add turn: no triage in progress")
	}
	s.draft = append(s.draft, models.ChatTurn{Role: role, Text: text})
	return nil
}

// Draft returns a copy of the in-progress triage turns.
func (s *Session) Draft() []models.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatTurn, len(s.draft))
	copy(out, s.draft)
	return out
}

// CompleteTriage persists the draft as a triage record and returns to
// the dashboard. On failure the session stays on the triage screen with
// the draft intact so the user can retry.
func (s *Session) CompleteTriage(ctx context.Context, summary string) (*models.TriageSession, error) {
	s.mu.Lock()
	if s.view != ViewTriage {
		s.mu.Unlock()
		return nil, fmt.Errorf("view: complete triage: no triage in progress")
	}
	draft := make([]models.ChatTurn, len(s.draft))
	copy(draft, s.draft)
	s.mu.Unlock()

	session, err := s.gateway.CompleteTriage(ctx, s.userID, summary, draft)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.view = ViewDashboard
	s.draft = nil
	s.mu.Unlock()

	s.logger.Info("view: triage completed",
		zap.String("user", s.userID), zap.String("session", session.ID))
	return session, nil
}

// AbandonTriage discards the draft and returns to the dashboard.
// Nothing is persisted.
func (s *Session) AbandonTriage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view != ViewTriage {
		return
	}
	s.view = ViewDashboard
	s.draft = nil
}
