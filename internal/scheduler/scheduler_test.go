package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tontine/internal/ledger"
	"github.com/mmynk/tontine/internal/lock"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/realtime"
	"github.com/mmynk/tontine/internal/storage/sqlite"
)

var now = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type countingNotifier struct {
	calls   int
	pending int
}

func (n *countingNotifier) PendingDigest(_ context.Context, pending int) {
	n.calls++
	n.pending = pending
}

type fixture struct {
	store    *sqlite.SQLiteStore
	ledger   *ledger.Ledger
	notifier *countingNotifier
	sched    *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	broker := realtime.NewMemoryBroker()
	t.Cleanup(func() {
		broker.Close()
		store.Close()
	})
	l := ledger.New(store, lock.NewLocal(), broker, ledger.DefaultConfig(), ledger.WithClock(func() time.Time { return now }))
	n := &countingNotifier{}
	return &fixture{
		store:    store,
		ledger:   l,
		notifier: n,
		sched: New(store, l, n, Config{
			ReminderSpec:      "0 0 8 * * *",
			DigestSpec:        "0 0 10 * * *",
			ExpiryWarningDays: 3,
		}),
	}
}

func (f *fixture) account(t *testing.T, role models.Role, expiresAt *time.Time, status models.SubscriptionStatus) *models.Account {
	t.Helper()
	account := models.NewAccount(uuid.New().String(), "hash")
	account.Role = role
	sub := models.NewSubscription(account.ID, expiresAt, now)
	sub.Status = status
	if err := f.store.CreateAccount(context.Background(), account, sub, nil); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return account
}

func at(t time.Time) *time.Time { return &t }

func TestExpiring(t *testing.T) {
	horizon := now.AddDate(0, 0, 3)
	tests := []struct {
		name string
		sub  *models.Subscription
		want bool
	}{
		{"within window", &models.Subscription{Status: models.StatusActive, ExpiresAt: at(now.AddDate(0, 0, 2))}, true},
		{"on horizon", &models.Subscription{Status: models.StatusActive, ExpiresAt: at(horizon)}, true},
		{"beyond window", &models.Subscription{Status: models.StatusActive, ExpiresAt: at(now.AddDate(0, 0, 10))}, false},
		{"already expired", &models.Subscription{Status: models.StatusActive, ExpiresAt: at(now.Add(-time.Hour))}, false},
		{"never expires", &models.Subscription{Status: models.StatusActive}, false},
		{"blocked", &models.Subscription{Status: models.StatusBlocked, ExpiresAt: at(now.AddDate(0, 0, 1))}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expiring(tt.sub, now, horizon); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRemindExpiring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	soon := f.account(t, models.RoleMember, at(now.AddDate(0, 0, 1)), models.StatusActive)
	f.account(t, models.RoleMember, at(now.AddDate(0, 0, 20)), models.StatusActive)
	f.account(t, models.RoleMember, at(now.AddDate(0, 0, 1)), models.StatusBlocked)
	f.account(t, models.RoleSuperAdmin, at(now.AddDate(0, 0, 1)), models.StatusActive)

	sent, err := f.sched.RemindExpiring(ctx)
	if err != nil {
		t.Fatalf("RemindExpiring failed: %v", err)
	}
	if sent != 1 {
		t.Fatalf("Expected 1 reminder, got %d", sent)
	}

	t.Run("no duplicate while unseen", func(t *testing.T) {
		sent, err := f.sched.RemindExpiring(ctx)
		if err != nil {
			t.Fatalf("RemindExpiring failed: %v", err)
		}
		if sent != 0 {
			t.Errorf("Expected no reminder, got %d", sent)
		}
	})

	t.Run("reminds again once seen", func(t *testing.T) {
		alerts, err := f.store.ListAlerts(ctx, soon.ID)
		if err != nil {
			t.Fatalf("ListAlerts failed: %v", err)
		}
		if len(alerts) != 1 {
			t.Fatalf("Expected 1 alert, got %d", len(alerts))
		}
		if err := f.ledger.AckAlert(ctx, soon.ID, alerts[0].ID); err != nil {
			t.Fatalf("AckAlert failed: %v", err)
		}
		sent, err := f.sched.RemindExpiring(ctx)
		if err != nil {
			t.Fatalf("RemindExpiring failed: %v", err)
		}
		if sent != 1 {
			t.Errorf("Expected 1 reminder, got %d", sent)
		}
	})
}

func TestDigest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.account(t, models.RoleMember, at(now), models.StatusActive)
	for _, ref := range []string{"OM-1", "OM-2"} {
		if _, err := f.ledger.Submit(ctx, a.ID, ref); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	n, err := f.sched.Digest(ctx)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	if n != 2 || f.notifier.pending != 2 || f.notifier.calls != 1 {
		t.Errorf("Expected digest of 2 pending payments, got n=%d notifier=%+v", n, f.notifier)
	}
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	if err := f.sched.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f.sched.Stop(ctx)

	bad := New(f.store, f.ledger, nil, Config{ReminderSpec: "not a spec", DigestSpec: "0 0 10 * * *"})
	if err := bad.Start(); err == nil {
		t.Error("Expected error for invalid cron spec")
	}
}
