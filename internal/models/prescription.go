package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Prescription records medication prescribed to a patient. Append-only.
type Prescription struct {
	ID           string `gorm:"primaryKey;size:36"`
	PatientID    string `gorm:"size:36;not null;index"`
	DoctorID     string `gorm:"size:36;not null;index"`
	Medication   string `gorm:"size:256;not null"`
	Dosage       string `gorm:"size:128;not null"`
	Instructions string `gorm:"type:text"`
	CreatedAt    time.Time
}

// BeforeCreate assigns the prescription UUID.
func (p *Prescription) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
