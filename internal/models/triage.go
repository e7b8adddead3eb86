package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Chat turn roles. The triage conversation is an opaque sequence of
// role-tagged turns; Carewire stores and relays it without interpreting it.
const (
	TurnUser      = "user"
	TurnAssistant = "assistant"
)

// ChatTurn is one turn of the AI triage conversation.
type ChatTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// TriageSession is one completed triage conversation for a patient.
// The chat history is write-once at creation; only DoctorNotes may
// change afterwards, and only by a clinician.
type TriageSession struct {
	ID          string  `gorm:"primaryKey;size:36"`
	PatientID   string  `gorm:"size:36;not null;index"`
	Summary     string  `gorm:"type:text;not null"`
	ChatHistory string  `gorm:"type:json"`
	DoctorNotes *string `gorm:"type:text"`
	CreatedAt   time.Time
}

// BeforeCreate assigns the session's UUID.
func (t *TriageSession) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Turns decodes the stored chat history.
func (t *TriageSession) Turns() ([]ChatTurn, error) {
	if t.ChatHistory == "" {
		return nil, nil
	}
	var turns []ChatTurn
	if err := json.Unmarshal([]byte(t.ChatHistory), &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

// SetTurns encodes the chat history. Only valid before the row is created.
func (t *TriageSession) SetTurns(turns []ChatTurn) error {
	data, err := json.Marshal(turns)
	if err != nil {
		return err
	}
	t.ChatHistory = string(data)
	return nil
}
