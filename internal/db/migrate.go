package db

import (
	"fmt"

	"github.com/medihelp/carewire/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&models.Profile{},
		&models.TriageSession{},
		&models.LiveMessage{},
		&models.Prescription{},
		&models.Appointment{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
