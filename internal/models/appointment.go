package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AppointmentStatus is the scheduling state of an appointment.
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "Pending"
	AppointmentConfirmed AppointmentStatus = "Confirmed"
	AppointmentCancelled AppointmentStatus = "Cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentPending, AppointmentConfirmed, AppointmentCancelled:
		return true
	}
	return false
}

// Appointment is a scheduled visit between a patient and a clinician.
type Appointment struct {
	ID          string            `gorm:"primaryKey;size:36"`
	PatientID   string            `gorm:"size:36;not null;index"`
	DoctorID    string            `gorm:"size:36;not null;index"`
	ScheduledAt time.Time         `gorm:"index"`
	Reason      string            `gorm:"size:256"`
	Status      AppointmentStatus `gorm:"size:16;default:Pending;index"`
}

// BeforeCreate assigns the appointment UUID.
func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
