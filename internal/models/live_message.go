package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LiveMessage is one direct chat message between two users. Rows are
// append-only: never updated, never deleted. A conversation is the set
// of rows whose unordered {sender, receiver} pair matches; direction is
// carried by the two ID fields.
type LiveMessage struct {
	ID         string `gorm:"primaryKey;size:36"`
	Seq        uint64 `gorm:"uniqueIndex"`
	SenderID   string `gorm:"size:36;not null;index"`
	ReceiverID string `gorm:"size:36;not null;index"`
	Text       string `gorm:"type:text;not null"`
	CreatedAt  time.Time
}

// TableName keeps the table name the hosted backend used.
func (LiveMessage) TableName() string { return "live_chat_messages" }

// BeforeCreate assigns the message UUID and its insert sequence. Seq is
// taken as max(seq)+1 inside the insert transaction, so feed consumers
// can tail the table in commit order. Under concurrent inserts two
// transactions can compute the same value; the unique index rejects the
// loser and the store retries with a fresh sequence.
func (m *LiveMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Seq == 0 {
		var next uint64
		if err := tx.Model(&LiveMessage{}).
			Select("COALESCE(MAX(seq), 0) + 1").Scan(&next).Error; err != nil {
			return err
		}
		m.Seq = next
	}
	return nil
}

// ResetSeq clears the insert sequence so the next create attempt
// recomputes it.
func (m *LiveMessage) ResetSeq() { m.Seq = 0 }

// InPair reports whether the message belongs to the unordered pair {a, b}.
func (m *LiveMessage) InPair(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) ||
		(m.SenderID == b && m.ReceiverID == a)
}
