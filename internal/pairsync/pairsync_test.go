package pairsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medihelp/carewire/internal/feed"
	"github.com/medihelp/carewire/internal/models"
	"github.com/medihelp/carewire/internal/store"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestStore(t *testing.T) *store.GormStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.LiveMessage{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.NewGormStore(db)
}

// gateStore holds historical reads until released, so tests can deliver
// feed events while the snapshot is still in flight.
type gateStore struct {
	store.Store
	gate chan struct{}
}

func (g *gateStore) Read(ctx context.Context, q store.Query, dest any) error {
	<-g.gate
	return g.Store.Read(ctx, q, dest)
}

type errStore struct {
	store.Store
}

func (e *errStore) Read(ctx context.Context, q store.Query, dest any) error {
	return errors.New("connection refused")
}

func insertMessage(t *testing.T, st store.Store, sender, receiver, text string) models.LiveMessage {
	t.Helper()

	msg := models.LiveMessage{SenderID: sender, ReceiverID: receiver, Text: text}
	if err := st.Insert(context.Background(), store.LiveMessages, &msg); err != nil {
		t.Fatalf("insert message: %v", err)
	}
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached within deadline")
}

func texts(msgs []models.LiveMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func TestSynchronizer_HistoryOnly(t *testing.T) {
	st := openTestStore(t)
	insertMessage(t, st, "alice", "bob", "first")
	insertMessage(t, st, "bob", "alice", "second")

	hub := feed.NewHub(zap.NewNop())
	s := New(st, hub, zap.NewNop(), "alice", "bob")
	defer s.Close()
	s.Start(context.Background())

	waitFor(t, s.Loaded)

	got := texts(s.Messages())
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("messages = %v, want [first second]", got)
	}
}

func TestSynchronizer_FeedEventDuringHistoryRead_NoDuplicate(t *testing.T) {
	st := openTestStore(t)
	m1 := insertMessage(t, st, "alice", "bob", "m1")
	m2 := insertMessage(t, st, "bob", "alice", "m2")

	gated := &gateStore{Store: st, gate: make(chan struct{})}
	hub := feed.NewHub(zap.NewNop())
	s := New(gated, hub, zap.NewNop(), "alice", "bob")
	defer s.Close()
	s.Start(context.Background())

	// m2 arrives on the feed while the snapshot, which also contains it,
	// is still pending.
	hub.Publish(feed.Event{Collection: store.LiveMessages, Row: m2})
	waitFor(t, func() bool { return len(s.Messages()) == 1 })

	close(gated.gate)
	waitFor(t, s.Loaded)

	got := s.Messages()
	if len(got) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(got))
	}
	if got[0].ID != m1.ID || got[1].ID != m2.ID {
		t.Fatalf("messages = %v, want [m1 m2]", texts(got))
	}
}

func TestSynchronizer_FeedAppendsAfterLoad(t *testing.T) {
	st := openTestStore(t)
	insertMessage(t, st, "alice", "bob", "first")

	hub := feed.NewHub(zap.NewNop())
	s := New(st, hub, zap.NewNop(), "alice", "bob")
	defer s.Close()
	s.Start(context.Background())
	waitFor(t, s.Loaded)

	m2 := insertMessage(t, st, "bob", "alice", "second")
	m3 := insertMessage(t, st, "alice", "bob", "third")
	hub.Publish(feed.Event{Collection: store.LiveMessages, Row: m2})
	hub.Publish(feed.Event{Collection: store.LiveMessages, Row: m3})

	waitFor(t, func() bool { return len(s.Messages()) == 3 })
	got := texts(s.Messages())
	if got[1] != "second" || got[2] != "third" {
		t.Fatalf("messages = %v, want feed rows appended in delivery order", got)
	}
}

func TestSynchronizer_IgnoresOtherPairs(t *testing.T) {
	st := openTestStore(t)
	hub := feed.NewHub(zap.NewNop())
	s := New(st, hub, zap.NewNop(), "alice", "bob")
	defer s.Close()
	s.Start(context.Background())
	waitFor(t, s.Loaded)

	other := insertMessage(t, st, "alice", "carol", "wrong pair")
	mine := insertMessage(t, st, "bob", "alice", "right pair")
	hub.Publish(feed.Event{Collection: store.LiveMessages, Row: other})
	hub.Publish(feed.Event{Collection: store.LiveMessages, Row: mine})

	waitFor(t, func() bool { return len(s.Messages()) == 1 })
	if got := s.Messages()[0].Text; got != "right pair" {
		t.Fatalf("kept message %q, want %q", got, "right pair")
	}
}

func TestSynchronizer_EmptyConversationLoads(t *testing.T) {
	st := openTestStore(t)
	hub := feed.NewHub(zap.NewNop())
	s := New(st, hub, zap.NewNop(), "alice", "bob")
	defer s.Close()

	if s.Loaded() {
		t.Fatal("loaded before Start")
	}
	s.Start(context.Background())
	waitFor(t, s.Loaded)

	if got := s.Messages(); len(got) != 0 {
		t.Fatalf("messages = %v, want empty", texts(got))
	}
}

func TestSynchronizer_HistoryErrorIsTerminal(t *testing.T) {
	st := openTestStore(t)
	hub := feed.NewHub(zap.NewNop())
	s := New(&errStore{Store: st}, hub, zap.NewNop(), "alice", "bob")
	defer s.Close()
	s.Start(context.Background())

	waitFor(t, func() bool { return s.Err() != nil })
	if s.Loaded() {
		t.Fatal("loaded despite history failure")
	}

	// Live events after the failure must not build a partial sequence.
	msg := insertMessage(t, st, "alice", "bob", "late")
	hub.Publish(feed.Event{Collection: store.LiveMessages, Row: msg})
	time.Sleep(20 * time.Millisecond)
	if got := s.Messages(); len(got) != 0 {
		t.Fatalf("messages = %v, want none after terminal error", texts(got))
	}
}

func TestSynchronizer_NoCrossTalkAfterSwitch(t *testing.T) {
	st := openTestStore(t)
	hub := feed.NewHub(zap.NewNop())

	old := New(st, hub, zap.NewNop(), "alice", "bob")
	old.Start(context.Background())
	waitFor(t, old.Loaded)
	old.Close()

	next := New(st, hub, zap.NewNop(), "alice", "carol")
	defer next.Close()
	next.Start(context.Background())
	waitFor(t, next.Loaded)

	oldMsg := insertMessage(t, st, "bob", "alice", "for the old pair")
	newMsg := insertMessage(t, st, "carol", "alice", "for the new pair")
	hub.Publish(feed.Event{Collection: store.LiveMessages, Row: oldMsg})
	hub.Publish(feed.Event{Collection: store.LiveMessages, Row: newMsg})

	waitFor(t, func() bool { return len(next.Messages()) == 1 })
	if got := next.Messages()[0].Text; got != "for the new pair" {
		t.Fatalf("new synchronizer holds %q", got)
	}
	if got := old.Messages(); len(got) != 0 {
		t.Fatalf("closed synchronizer mutated: %v", texts(got))
	}
}

func TestSynchronizer_CloseBeforeHistoryDiscardsResult(t *testing.T) {
	st := openTestStore(t)
	insertMessage(t, st, "alice", "bob", "first")

	gated := &gateStore{Store: st, gate: make(chan struct{})}
	hub := feed.NewHub(zap.NewNop())
	s := New(gated, hub, zap.NewNop(), "alice", "bob")
	s.Start(context.Background())

	s.Close()
	close(gated.gate)

	time.Sleep(20 * time.Millisecond)
	if s.Loaded() {
		t.Fatal("history applied after Close")
	}
	if got := s.Messages(); len(got) != 0 {
		t.Fatalf("messages = %v after Close", texts(got))
	}
}

func TestSynchronizer_CloseIdempotent(t *testing.T) {
	st := openTestStore(t)
	hub := feed.NewHub(zap.NewNop())
	s := New(st, hub, zap.NewNop(), "alice", "bob")
	s.Start(context.Background())
	waitFor(t, s.Loaded)

	s.Close()
	s.Close()
}

func TestSynchronizer_UpdatesSignals(t *testing.T) {
	st := openTestStore(t)
	hub := feed.NewHub(zap.NewNop())
	s := New(st, hub, zap.NewNop(), "alice", "bob")
	defer s.Close()
	s.Start(context.Background())

	select {
	case <-s.Updates():
	case <-time.After(2 * time.Second):
		t.Fatal("no update signal after history load")
	}
	if !s.Loaded() {
		t.Fatal("signal fired before state was observable")
	}
}
