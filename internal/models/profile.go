// Package models defines the GORM row types shared across Carewire.
package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role identifies what kind of user a profile belongs to.
type Role string

const (
	RolePatient Role = "Patient"
	RoleDoctor  Role = "Doctor"
	RoleAdmin   Role = "Admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// Profile represents an enrolled user. ID and Role are assigned by the
// identity provider at enrollment and never change afterwards.
type Profile struct {
	ID      string `gorm:"primaryKey;size:36"`
	Name    string `gorm:"size:128;not null"`
	Role    Role   `gorm:"size:16;not null;index"`
	Details string `gorm:"type:text"`
}

// BeforeCreate assigns a UUID when the identity provider did not supply one.
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
