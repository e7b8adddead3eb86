package dashboard

import (
	"time"

	"github.com/medihelp/carewire/internal/aggregate"
	"github.com/medihelp/carewire/internal/identity"
	"github.com/medihelp/carewire/internal/models"
)

type sessionRequest struct {
	UserID string `json:"user_id"`
}

// snapshotPayload is the JSON form of an identity snapshot. Profile is
// present only when the state is ready.
type snapshotPayload struct {
	State   string          `json:"state"`
	Profile *models.Profile `json:"profile,omitempty"`
}

func renderSnapshot(snap identity.Snapshot) snapshotPayload {
	p := snapshotPayload{State: snap.State.String()}
	if snap.State == identity.Ready {
		profile := snap.Profile
		p.Profile = &profile
	}
	return p
}

type sendMessageRequest struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Text       string `json:"text"`
}

type completeTriageRequest struct {
	PatientID   string            `json:"patient_id"`
	Summary     string            `json:"summary"`
	ChatHistory []models.ChatTurn `json:"chat_history"`
}

type saveNoteRequest struct {
	Notes string `json:"notes"`
}

type createPrescriptionRequest struct {
	PatientID    string `json:"patient_id"`
	DoctorID     string `json:"doctor_id"`
	Medication   string `json:"medication"`
	Dosage       string `json:"dosage"`
	Instructions string `json:"instructions"`
}

type scheduleAppointmentRequest struct {
	PatientID   string    `json:"patient_id"`
	DoctorID    string    `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Reason      string    `json:"reason"`
}

type appointmentStatusRequest struct {
	Status models.AppointmentStatus `json:"status"`
}

// sourcePayload is one source's slot in an aggregated response. A source
// carries either rows or an error string, never both; siblings are
// unaffected by each other's failures.
type sourcePayload struct {
	Rows  any    `json:"rows,omitempty"`
	Error string `json:"error,omitempty"`
}

func renderResult(res aggregate.Result) map[string]sourcePayload {
	out := make(map[string]sourcePayload, len(res.Outcomes))
	for name, outcome := range res.Outcomes {
		if outcome.OK() {
			out[name] = sourcePayload{Rows: outcome.Rows}
		} else {
			out[name] = sourcePayload{Error: outcome.Err.Error()}
		}
	}
	return out
}

// countPayload is one counting source's slot in the stats response.
type countPayload struct {
	Count int64  `json:"count"`
	Error string `json:"error,omitempty"`
}

func renderCounts(counts map[string]aggregate.CountOutcome) map[string]countPayload {
	out := make(map[string]countPayload, len(counts))
	for name, outcome := range counts {
		p := countPayload{Count: outcome.Count}
		if outcome.Err != nil {
			p.Error = outcome.Err.Error()
		}
		out[name] = p
	}
	return out
}
