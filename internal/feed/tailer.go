package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/medihelp/carewire/internal/models"
	"github.com/medihelp/carewire/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultTailInterval is the default polling interval for the tailer.
const DefaultTailInterval = 2 * time.Second

// Tailer polls the live message table for rows past the last seen insert
// sequence and publishes them to the hub. It covers writers outside this
// process when no Redis bridge is deployed. Rows already published
// locally may be delivered a second time; consumers deduplicate by
// identity.
type Tailer struct {
	db       *gorm.DB
	hub      *Hub
	interval time.Duration
	logger   *zap.Logger
}

// NewTailer creates a tailer over the live message table.
func NewTailer(db *gorm.DB, hub *Hub, interval time.Duration, logger *zap.Logger) *Tailer {
	if interval <= 0 {
		interval = DefaultTailInterval
	}
	return &Tailer{db: db, hub: hub, interval: interval, logger: logger}
}

// Run polls until ctx is cancelled. Only rows inserted after Run starts
// are published; history belongs to the historical read, not the feed.
func (t *Tailer) Run(ctx context.Context) error {
	var lastSeen uint64
	if err := t.db.Model(&models.LiveMessage{}).
		Select("COALESCE(MAX(seq), 0)").Scan(&lastSeen).Error; err != nil {
		return fmt.Errorf("feed: tailer init: %w", err)
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			var rows []models.LiveMessage
			if err := t.db.Where("seq > ?", lastSeen).
				Order("seq ASC").Find(&rows).Error; err != nil {
				t.logger.Warn("feed: tailer poll failed", zap.Error(err))
				continue
			}
			for _, row := range rows {
				t.hub.Publish(Event{Collection: store.LiveMessages, Row: row})
			}
			if len(rows) > 0 {
				lastSeen = rows[len(rows)-1].Seq
			}
		}
	}
}
