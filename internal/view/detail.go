package view

import (
	"context"
	"sync"

	"github.com/medihelp/carewire/internal/aggregate"
	"github.com/medihelp/carewire/internal/feed"
	"github.com/medihelp/carewire/internal/models"
	"github.com/medihelp/carewire/internal/mutate"
	"github.com/medihelp/carewire/internal/pairsync"
	"github.com/medihelp/carewire/internal/store"
	"go.uber.org/zap"
)

// Tab is one pane of the clinician detail view.
type Tab string

const (
	TabTriage        Tab = "triage"
	TabChat          Tab = "chat"
	TabPrescriptions Tab = "prescriptions"
)

// DetailSession is a clinician's view of one patient. Each session owns
// exactly one synchronizer for the doctor/patient pair; switching
// patients tears the old one down before the new one starts.
type DetailSession struct {
	doctorID string
	store    store.Store
	feed     feed.Feed
	gateway  *mutate.Gateway
	agg      *aggregate.Aggregator
	logger   *zap.Logger

	mu        sync.Mutex
	patientID string
	tab       Tab
	chat      *pairsync.Synchronizer
	chatInput string
}

// OpenDetail activates the detail view for one patient, entering on the
// triage tab with the pair synchronizer already running.
func OpenDetail(ctx context.Context, st store.Store, fd feed.Feed, gw *mutate.Gateway, agg *aggregate.Aggregator, logger *zap.Logger, doctorID, patientID string) *DetailSession {
	d := &DetailSession{
		doctorID:  doctorID,
		store:     st,
		feed:      fd,
		gateway:   gw,
		agg:       agg,
		logger:    logger,
		patientID: patientID,
		tab:       TabTriage,
	}
	d.chat = pairsync.New(st, fd, logger, doctorID, patientID)
	d.chat.Start(ctx)
	return d
}

// PatientID returns the patient this session currently shows.
func (d *DetailSession) PatientID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.patientID
}

// Tab returns the active tab.
func (d *DetailSession) Tab() Tab {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tab
}

// SwitchTab changes the active tab. Unknown tabs are ignored.
func (d *DetailSession) SwitchTab(tab Tab) {
	switch tab {
	case TabTriage, TabChat, TabPrescriptions:
	default:
		return
	}
	d.mu.Lock()
	d.tab = tab
	d.mu.Unlock()
}

// SwitchPatient retargets the session to another patient. The old
// synchronizer is closed before the new one starts, so no message for
// the old pair can reach the new sequence.
func (d *DetailSession) SwitchPatient(ctx context.Context, patientID string) {
	d.mu.Lock()
	if patientID == d.patientID {
		d.mu.Unlock()
		return
	}
	old := d.chat
	d.patientID = patientID
	d.chatInput = ""
	d.mu.Unlock()

	old.Close()

	next := pairsync.New(d.store, d.feed, d.logger, d.doctorID, patientID)
	next.Start(ctx)

	d.mu.Lock()
	d.chat = next
	d.mu.Unlock()
}

// Fetch runs the concurrent detail reads for the current patient.
func (d *DetailSession) Fetch(ctx context.Context) aggregate.Result {
	d.mu.Lock()
	patientID := d.patientID
	d.mu.Unlock()
	return d.agg.FetchAll(ctx, aggregate.PatientDetail(d.doctorID, patientID))
}

// Messages returns the live conversation for the current pair.
func (d *DetailSession) Messages() []models.LiveMessage {
	d.mu.Lock()
	s := d.chat
	d.mu.Unlock()
	return s.Messages()
}

// ChatLoaded reports whether the conversation history has arrived.
func (d *DetailSession) ChatLoaded() bool {
	d.mu.Lock()
	s := d.chat
	d.mu.Unlock()
	return s.Loaded()
}

// SetChatInput updates the unsent message buffer.
func (d *DetailSession) SetChatInput(text string) {
	d.mu.Lock()
	d.chatInput = text
	d.mu.Unlock()
}

// ChatInput returns the unsent message buffer.
func (d *DetailSession) ChatInput() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chatInput
}

// SendChat sends the buffered message to the patient. The buffer is
// cleared only when the send succeeds; on failure it stays so the
// clinician can retry.
func (d *DetailSession) SendChat(ctx context.Context) (*models.LiveMessage, error) {
	d.mu.Lock()
	text := d.chatInput
	patientID := d.patientID
	d.mu.Unlock()

	msg, err := d.gateway.SendMessage(ctx, d.doctorID, patientID, text)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if d.patientID == patientID {
		d.chatInput = ""
	}
	d.mu.Unlock()
	return msg, nil
}

// SaveNote writes the clinician note for one triage session.
func (d *DetailSession) SaveNote(ctx context.Context, sessionID, note string) (*models.TriageSession, error) {
	return d.gateway.SaveNote(ctx, sessionID, note)
}

// Close tears the session down.
func (d *DetailSession) Close() {
	d.mu.Lock()
	s := d.chat
	d.mu.Unlock()
	s.Close()
}
