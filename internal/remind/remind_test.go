package remind

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/medihelp/carewire/internal/models"
	"github.com/medihelp/carewire/internal/notify"
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
	if err := db.AutoMigrate(&models.Appointment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.NewGormStore(db)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Connect(ctx context.Context) error { return nil }

func (r *recordingNotifier) Send(ctx context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) Close() error { return nil }

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func insertAppointment(t *testing.T, st store.Store, status models.AppointmentStatus, at time.Time) models.Appointment {
	t.Helper()

	appt := models.Appointment{
		PatientID:   "pat-1",
		DoctorID:    "doc-1",
		ScheduledAt: at,
		Status:      status,
	}
	if err := st.Insert(context.Background(), store.Appointments, &appt); err != nil {
		t.Fatalf("insert appointment: %v", err)
	}
	return appt
}

func newTestScheduler(t *testing.T, st store.Store, rec *recordingNotifier) *Scheduler {
	t.Helper()

	s, err := NewScheduler(SchedulerOpts{
		Store:     st,
		Notifiers: []notify.Notifier{rec},
		Logger:    zap.NewNop(),
		Schedule:  "*/15 * * * *",
		Lead:      time.Hour,
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return s
}

func TestNewScheduler_Validation(t *testing.T) {
	st := openTestStore(t)

	if _, err := NewScheduler(SchedulerOpts{Schedule: "* * * * *", Lead: time.Hour}); err == nil {
		t.Fatal("missing store accepted")
	}
	if _, err := NewScheduler(SchedulerOpts{Store: st, Schedule: "not a cron", Lead: time.Hour}); err == nil {
		t.Fatal("bad schedule accepted")
	}
	if _, err := NewScheduler(SchedulerOpts{Store: st, Schedule: "* * * * *", Lead: 0}); err == nil {
		t.Fatal("zero lead accepted")
	}
}

func TestSweep_RemindsWithinLeadWindow(t *testing.T) {
	st := openTestStore(t)
	rec := &recordingNotifier{}
	s := newTestScheduler(t, st, rec)

	insertAppointment(t, st, models.AppointmentConfirmed, time.Now().Add(30*time.Minute))
	insertAppointment(t, st, models.AppointmentConfirmed, time.Now().Add(3*time.Hour))
	insertAppointment(t, st, models.AppointmentPending, time.Now().Add(30*time.Minute))
	insertAppointment(t, st, models.AppointmentConfirmed, time.Now().Add(-time.Hour))

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("sent %d reminders, want 1", rec.count())
	}
}

func TestSweep_RemindsOnlyOnce(t *testing.T) {
	st := openTestStore(t)
	rec := &recordingNotifier{}
	s := newTestScheduler(t, st, rec)

	insertAppointment(t, st, models.AppointmentConfirmed, time.Now().Add(30*time.Minute))

	for i := 0; i < 3; i++ {
		if err := s.Sweep(context.Background()); err != nil {
			t.Fatalf("Sweep %d: %v", i+1, err)
		}
	}
	if rec.count() != 1 {
		t.Fatalf("sent %d reminders, want 1", rec.count())
	}
}

func TestSweep_PrunesPastReminders(t *testing.T) {
	st := openTestStore(t)
	rec := &recordingNotifier{}
	s := newTestScheduler(t, st, rec)

	upcoming := insertAppointment(t, st, models.AppointmentConfirmed, time.Now().Add(30*time.Minute))
	s.mu.Lock()
	s.reminded["past-visit"] = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminded["past-visit"]; ok {
		t.Error("past visit still tracked after sweep")
	}
	if _, ok := s.reminded[upcoming.ID]; !ok {
		t.Error("upcoming visit not tracked after reminding")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	st := openTestStore(t)
	rec := &recordingNotifier{}
	s := newTestScheduler(t, st, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
