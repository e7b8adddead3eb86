// Package remind sweeps upcoming appointments and notifies the care
// team ahead of each confirmed visit.
package remind

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/medihelp/carewire/internal/models"
	"github.com/medihelp/carewire/internal/notify"
	"github.com/medihelp/carewire/internal/store"
	"go.uber.org/zap"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// SchedulerOpts holds configuration for the reminder scheduler.
type SchedulerOpts struct {
	Store     store.Store
	Notifiers []notify.Notifier
	Logger    *zap.Logger
	Schedule  string        // 5-field cron expression controlling sweep times
	Lead      time.Duration // how far ahead of the visit a reminder fires
}

// Scheduler periodically scans for confirmed appointments entering the
// lead window and sends one reminder per appointment.
type Scheduler struct {
	store     store.Store
	notifiers []notify.Notifier
	logger    *zap.Logger
	schedule  cron.Schedule
	lead      time.Duration

	mu       sync.Mutex
	reminded map[string]time.Time
}

// NewScheduler validates opts and creates the scheduler.
func NewScheduler(opts SchedulerOpts) (*Scheduler, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("remind: store is required")
	}
	if opts.Lead <= 0 {
		return nil, fmt.Errorf("remind: lead must be positive")
	}
	sched, err := cronParser.Parse(opts.Schedule)
	if err != nil {
		return nil, fmt.Errorf("remind: parse schedule %q: %w", opts.Schedule, err)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Scheduler{
		store:     opts.Store,
		notifiers: opts.Notifiers,
		logger:    opts.Logger,
		schedule:  sched,
		lead:      opts.Lead,
		reminded:  make(map[string]time.Time),
	}, nil
}

// Run sweeps on the cron schedule until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next := s.schedule.Next(time.Now())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}

		if err := s.Sweep(ctx); err != nil {
			s.logger.Warn("remind: sweep failed", zap.Error(err))
		}
	}
}

// Sweep finds confirmed appointments scheduled within the lead window
// and sends a reminder for each one not already reminded.
func (s *Scheduler) Sweep(ctx context.Context) error {
	var appts []models.Appointment
	err := s.store.Read(ctx, store.Query{
		Collection: store.Appointments,
		Where:      []store.Cond{{Field: "status", Value: models.AppointmentConfirmed}},
		OrderBy:    &store.Order{Field: "scheduled_at"},
	}, &appts)
	if err != nil {
		return fmt.Errorf("remind: read appointments: %w", err)
	}

	now := time.Now()
	cutoff := now.Add(s.lead)
	s.prune(now)
	for _, appt := range appts {
		if appt.ScheduledAt.Before(now) || appt.ScheduledAt.After(cutoff) {
			continue
		}
		if s.alreadyReminded(appt.ID, appt.ScheduledAt) {
			continue
		}
		s.deliver(ctx, appt)
	}
	return nil
}

// prune drops reminded entries for visits that have already happened,
// keeping the set bounded over the daemon's lifetime.
func (s *Scheduler) prune(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, at := range s.reminded {
		if at.Before(now) {
			delete(s.reminded, id)
		}
	}
}

func (s *Scheduler) alreadyReminded(id string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminded[id]; ok {
		return true
	}
	s.reminded[id] = at
	return false
}

func (s *Scheduler) deliver(ctx context.Context, appt models.Appointment) {
	n := notify.Notification{
		Title: "Upcoming appointment",
		Body: fmt.Sprintf("Patient %s sees clinician %s at %s",
			appt.PatientID, appt.DoctorID, appt.ScheduledAt.Format(time.RFC1123)),
		Severity: notify.SeverityInfo,
	}
	for _, notifier := range s.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			s.logger.Warn("remind: send failed",
				zap.String("appointment", appt.ID), zap.Error(err))
		}
	}
}
