// Package mutate is the single write path. Every mutation validates its
// required fields locally, issues the store write, and returns the
// authoritative row the store produced. A failed write changes nothing:
// no feed event, no partial state.
package mutate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/medihelp/carewire/internal/feed"
	"github.com/medihelp/carewire/internal/models"
	"github.com/medihelp/carewire/internal/store"
	"go.uber.org/zap"
)

// ValidationError reports a mutation rejected before reaching the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mutate: invalid %s: %s", e.Field, e.Reason)
}

// Publisher receives an event for each committed insert. May be nil when
// another component (the feed tailer) is responsible for publishing.
type Publisher interface {
	Publish(ev feed.Event)
}

// Gateway performs validated writes against the store.
type Gateway struct {
	store  store.Store
	pub    Publisher
	logger *zap.Logger
}

// NewGateway creates the write gateway. pub may be nil.
func NewGateway(st store.Store, pub Publisher, logger *zap.Logger) *Gateway {
	return &Gateway{store: st, pub: pub, logger: logger}
}

// SendMessage appends one live message to the pair conversation. Text is
// trimmed and must be non-empty; callers clear their input buffer only
// when this returns nil error.
func (g *Gateway) SendMessage(ctx context.Context, senderID, receiverID, text string) (*models.LiveMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if senderID == "" {
		return nil, &ValidationError{Field: "sender_id", Reason: "must not be empty"}
	}
	if receiverID == "" {
		return nil, &ValidationError{Field: "receiver_id", Reason: "must not be empty"}
	}
	if senderID == receiverID {
		return nil, &ValidationError{Field: "receiver_id", Reason: "must differ from sender"}
	}

	msg := models.LiveMessage{SenderID: senderID, ReceiverID: receiverID, Text: text}
	if err := g.store.Insert(ctx, store.LiveMessages, &msg); err != nil {
		return nil, fmt.Errorf("mutate: send message: %w", err)
	}

	g.publish(store.LiveMessages, msg)
	g.logger.Debug("mutate: message sent",
		zap.String("id", msg.ID), zap.String("sender", senderID), zap.String("receiver", receiverID))
	return &msg, nil
}

// SaveNote replaces the clinician note on a triage session. Saving the
// same text again still round-trips to the store; there is no
// client-side dirty check.
func (g *Gateway) SaveNote(ctx context.Context, sessionID, note string) (*models.TriageSession, error) {
	if sessionID == "" {
		return nil, &ValidationError{Field: "session_id", Reason: "must not be empty"}
	}

	if err := g.store.Update(ctx, store.TriageSessions, sessionID, map[string]any{
		"doctor_notes": note,
	}); err != nil {
		return nil, fmt.Errorf("mutate: save note: %w", err)
	}

	var rows []models.TriageSession
	err := g.store.Read(ctx, store.Query{
		Collection: store.TriageSessions,
		Where:      []store.Cond{{Field: "id", Value: sessionID}},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("mutate: save note: read back: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("mutate: save note: session %s vanished after update", sessionID)
	}
	return &rows[0], nil
}

// CompleteTriage persists a finished triage conversation as one
// write-once record. The chat history is immutable after this point;
// only the clinician note may change later.
func (g *Gateway) CompleteTriage(ctx context.Context, patientID, summary string, turns []models.ChatTurn) (*models.TriageSession, error) {
	if patientID == "" {
		return nil, &ValidationError{Field: "patient_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(summary) == "" {
		return nil, &ValidationError{Field: "summary", Reason: "must not be empty"}
	}
	if len(turns) == 0 {
		return nil, &ValidationError{Field: "chat_history", Reason: "must contain at least one turn"}
	}

	session := models.TriageSession{PatientID: patientID, Summary: summary}
	if err := session.SetTurns(turns); err != nil {
		return nil, fmt.Errorf("mutate: complete triage: %w", err)
	}
	if err := g.store.Insert(ctx, store.TriageSessions, &session); err != nil {
		return nil, fmt.Errorf("mutate: complete triage: %w", err)
	}

	g.publish(store.TriageSessions, session)
	return &session, nil
}

// CreatePrescription records a prescription issued by a clinician.
func (g *Gateway) CreatePrescription(ctx context.Context, patientID, doctorID, medication, dosage, instructions string) (*models.Prescription, error) {
	if patientID == "" {
		return nil, &ValidationError{Field: "patient_id", Reason: "must not be empty"}
	}
	if doctorID == "" {
		return nil, &ValidationError{Field: "doctor_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(medication) == "" {
		return nil, &ValidationError{Field: "medication", Reason: "must not be empty"}
	}
	if strings.TrimSpace(dosage) == "" {
		return nil, &ValidationError{Field: "dosage", Reason: "must not be empty"}
	}

	p := models.Prescription{
		PatientID:    patientID,
		DoctorID:     doctorID,
		Medication:   medication,
		Dosage:       dosage,
		Instructions: instructions,
	}
	if err := g.store.Insert(ctx, store.Prescriptions, &p); err != nil {
		return nil, fmt.Errorf("mutate: create prescription: %w", err)
	}

	g.publish(store.Prescriptions, p)
	return &p, nil
}

// ScheduleAppointment books a pending appointment between a patient and
// a clinician.
func (g *Gateway) ScheduleAppointment(ctx context.Context, patientID, doctorID string, at time.Time, reason string) (*models.Appointment, error) {
	if patientID == "" {
		return nil, &ValidationError{Field: "patient_id", Reason: "must not be empty"}
	}
	if doctorID == "" {
		return nil, &ValidationError{Field: "doctor_id", Reason: "must not be empty"}
	}
	if at.IsZero() {
		return nil, &ValidationError{Field: "scheduled_at", Reason: "must be set"}
	}

	appt := models.Appointment{
		PatientID:   patientID,
		DoctorID:    doctorID,
		ScheduledAt: at,
		Reason:      reason,
		Status:      models.AppointmentPending,
	}
	if err := g.store.Insert(ctx, store.Appointments, &appt); err != nil {
		return nil, fmt.Errorf("mutate: schedule appointment: %w", err)
	}

	g.publish(store.Appointments, appt)
	return &appt, nil
}

// SetAppointmentStatus moves an appointment to a new status.
func (g *Gateway) SetAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus) (*models.Appointment, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	if err := g.store.Update(ctx, store.Appointments, id, map[string]any{
		"status": string(status),
	}); err != nil {
		return nil, fmt.Errorf("mutate: set appointment status: %w", err)
	}

	var rows []models.Appointment
	err := g.store.Read(ctx, store.Query{
		Collection: store.Appointments,
		Where:      []store.Cond{{Field: "id", Value: id}},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("mutate: set appointment status: read back: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("mutate: set appointment status: appointment %s vanished after update", id)
	}
	return &rows[0], nil
}

func (g *Gateway) publish(collection string, row any) {
	if g.pub == nil {
		return
	}
	g.pub.Publish(feed.Event{Collection: collection, Row: row})
}
