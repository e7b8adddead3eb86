package feed

import (
	"context"
	"testing"
	"time"

	"github.com/medihelp/carewire/internal/models"
	"github.com/medihelp/carewire/internal/store"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := gdb.AutoMigrate(&models.LiveMessage{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func TestTailer_PublishesNewRowsInSeqOrder(t *testing.T) {
	gdb := openTestDB(t)
	hub := newTestHub()

	// A row inserted before the tailer starts is history, not feed.
	pre := models.LiveMessage{SenderID: "a", ReceiverID: "b", Text: "old"}
	if err := gdb.Create(&pre).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tailer := NewTailer(gdb, hub, 10*time.Millisecond, zap.NewNop())
	go tailer.Run(ctx)

	sub, _ := hub.Subscribe(ctx, store.LiveMessages)
	defer sub.Close()

	// Give the tailer a moment to record its starting sequence.
	time.Sleep(50 * time.Millisecond)

	m1 := models.LiveMessage{SenderID: "a", ReceiverID: "b", Text: "first"}
	m2 := models.LiveMessage{SenderID: "b", ReceiverID: "a", Text: "second"}
	if err := gdb.Create(&m1).Error; err != nil {
		t.Fatalf("create m1: %v", err)
	}
	if err := gdb.Create(&m2).Error; err != nil {
		t.Fatalf("create m2: %v", err)
	}

	events := collectEvents(t, sub, 2)
	first := events[0].Row.(models.LiveMessage)
	second := events[1].Row.(models.LiveMessage)

	if first.ID == pre.ID || second.ID == pre.ID {
		t.Error("tailer replayed a pre-start row")
	}
	if first.Seq >= second.Seq {
		t.Errorf("events out of seq order: %d then %d", first.Seq, second.Seq)
	}
	if first.Text != "first" || second.Text != "second" {
		t.Errorf("unexpected rows: %q, %q", first.Text, second.Text)
	}
}

func TestTailer_DefaultInterval(t *testing.T) {
	tailer := NewTailer(openTestDB(t), newTestHub(), 0, zap.NewNop())
	if tailer.interval != DefaultTailInterval {
		t.Errorf("interval = %v, want %v", tailer.interval, DefaultTailInterval)
	}
}

func TestTailer_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tailer := NewTailer(openTestDB(t), newTestHub(), 10*time.Millisecond, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- tailer.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tailer did not stop on cancel")
	}
}
