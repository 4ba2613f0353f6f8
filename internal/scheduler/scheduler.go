// Package scheduler runs the periodic jobs of the server: expiry reminders to
// account holders and the pending payment digest for administrators.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mmynk/tontine/internal/ledger"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/storage"
)

// jobTimeout bounds one run of a job.
const jobTimeout = 5 * time.Minute

// Config holds the job schedules, in six-field cron syntax.
type Config struct {
	ReminderSpec      string
	DigestSpec        string
	ExpiryWarningDays int
	ReminderMessage   string
	Location          *time.Location
}

// DigestNotifier receives the pending payment count.
type DigestNotifier interface {
	PendingDigest(ctx context.Context, pending int)
}

// Scheduler owns a cron runner and the job bodies.
type Scheduler struct {
	store    storage.Store
	ledger   *ledger.Ledger
	notifier DigestNotifier
	cfg      Config
	cron     *cron.Cron
}

// New creates a scheduler. notifier may be nil.
func New(store storage.Store, l *ledger.Ledger, notifier DigestNotifier, cfg Config) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Scheduler{
		store:    store,
		ledger:   l,
		notifier: notifier,
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Location)),
	}
}

// Start registers the jobs and starts the runner.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.ReminderSpec, s.job("expiry reminder", s.RemindExpiring)); err != nil {
		return fmt.Errorf("failed to add reminder job: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.DigestSpec, s.job("pending digest", s.Digest)); err != nil {
		return fmt.Errorf("failed to add digest job: %w", err)
	}
	s.cron.Start()
	slog.Info("Scheduler started", "reminder", s.cfg.ReminderSpec, "digest", s.cfg.DigestSpec)
	return nil
}

// Stop waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		slog.Info("Scheduler stopped")
	case <-ctx.Done():
		slog.Warn("Scheduler forced to stop", "error", ctx.Err())
	}
}

func (s *Scheduler) job(name string, fn func(context.Context) (int, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		n, err := fn(ctx)
		if err != nil {
			slog.Error("Job failed", "job", name, "error", err)
			return
		}
		slog.Info("Job finished", "job", name, "count", n, "duration_ms", time.Since(start).Milliseconds())
	}
}

// RemindExpiring sends a payment alert to every member account whose
// subscription expires within the warning window. An account gets at most
// one unseen reminder. It returns the number of reminders sent.
func (s *Scheduler) RemindExpiring(ctx context.Context) (int, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return 0, err
	}
	members := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		members[a.ID] = !a.IsAdmin()
	}

	subs, err := s.store.ListSubscriptions(ctx)
	if err != nil {
		return 0, err
	}

	now := s.ledger.Now()
	horizon := now.AddDate(0, 0, s.cfg.ExpiryWarningDays)
	sent := 0
	for _, sub := range subs {
		if !members[sub.AccountID] || !Expiring(sub, now, horizon) {
			continue
		}
		reminded, err := s.hasUnseenReminder(ctx, sub.AccountID)
		if err != nil {
			return sent, err
		}
		if reminded {
			continue
		}
		if _, err := s.ledger.SendAlert(ctx, sub.AccountID, s.cfg.ReminderMessage); err != nil {
			return sent, fmt.Errorf("failed to remind %s: %w", sub.AccountID, err)
		}
		sent++
	}
	return sent, nil
}

// Expiring reports whether an active, unblocked subscription expires in
// [now, horizon].
func Expiring(sub *models.Subscription, now, horizon time.Time) bool {
	if sub.Blocked() || sub.ExpiresAt == nil {
		return false
	}
	return !sub.ExpiresAt.Before(now) && !sub.ExpiresAt.After(horizon)
}

func (s *Scheduler) hasUnseenReminder(ctx context.Context, accountID string) (bool, error) {
	alerts, err := s.store.ListAlerts(ctx, accountID)
	if err != nil {
		return false, err
	}
	message := s.cfg.ReminderMessage
	if message == "" {
		message = s.ledger.Config().DefaultAlertMessage
	}
	for _, a := range alerts {
		if !a.Seen && a.Message == message {
			return true, nil
		}
	}
	return false, nil
}

// Digest sends the number of payments awaiting validation to the notifier.
func (s *Scheduler) Digest(ctx context.Context) (int, error) {
	pending, err := s.store.ListPayments(ctx, true)
	if err != nil {
		return 0, err
	}
	if s.notifier != nil {
		s.notifier.PendingDigest(ctx, len(pending))
	}
	return len(pending), nil
}
