package access

import (
	"testing"
	"time"

	"github.com/mmynk/tontine/internal/models"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestCompute(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		sub     *models.Subscription
		signals Signals
		want    Outcome
	}{
		{
			name: "active with past expiration is expired",
			sub:  &models.Subscription{Status: models.StatusActive, ExpiresAt: date(2020, 1, 1)},
			want: DeniedExpired,
		},
		{
			name: "blocked wins over future expiration",
			sub:  &models.Subscription{Status: models.StatusBlocked, ExpiresAt: date(2099, 1, 1)},
			want: DeniedBlocked,
		},
		{
			name: "blocked wins over past expiration",
			sub:  &models.Subscription{Status: models.StatusBlocked, ExpiresAt: date(2020, 1, 1)},
			want: DeniedBlocked,
		},
		{
			name: "null expiration never expires",
			sub:  &models.Subscription{Status: models.StatusActive},
			want: Granted,
		},
		{
			name: "expiration equal to now is not past",
			sub:  &models.Subscription{Status: models.StatusActive, ExpiresAt: &now},
			want: Granted,
		},
		{
			name:    "deleted profile terminates even when active",
			sub:     &models.Subscription{Status: models.StatusActive},
			signals: Signals{ProfileDeleted: true},
			want:    Terminated,
		},
		{
			name: "missing subscription terminates",
			want: Terminated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.sub, tt.signals, now)
			if got.Outcome != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got.Outcome)
			}
			if again := Compute(tt.sub, tt.signals, now); again != got {
				t.Errorf("Compute is not idempotent: %v then %v", got, again)
			}
		})
	}
}

func TestScreens(t *testing.T) {
	denied := Decision{Outcome: DeniedBlocked}
	if !Allows(denied, ScreenPayment) || Allows(denied, ScreenDashboard) {
		t.Error("Denied decision must only reach the payment screen")
	}
	if DefaultScreen(Decision{Outcome: Granted}) != ScreenDashboard {
		t.Error("Granted default screen must be the dashboard")
	}
	if DefaultScreen(Decision{Outcome: Terminated}) != ScreenLogin {
		t.Error("Terminated default screen must be login")
	}
}

func TestTrackerNavigatesOnce(t *testing.T) {
	now := time.Now()
	blocked := &models.Subscription{Status: models.StatusBlocked}
	active := &models.Subscription{Status: models.StatusActive}

	tr := NewTracker()

	tr.Update(active, Signals{}, now)
	if _, ok := tr.ConsumeNavigation(); ok {
		t.Fatal("Initial grant must not force navigation")
	}

	tr.Update(blocked, Signals{}, now)
	tr.Update(active, Signals{}, now)
	screen, ok := tr.ConsumeNavigation()
	if !ok || screen != ScreenDashboard {
		t.Fatalf("Expected navigation to dashboard, got %q %v", screen, ok)
	}
	if _, ok := tr.ConsumeNavigation(); ok {
		t.Error("Navigation must be consumed once")
	}

	tr.Update(active, Signals{}, now)
	if _, ok := tr.ConsumeNavigation(); ok {
		t.Error("Re-applying the same state must not re-fire")
	}
}

func TestTrackerExpiredThenExtended(t *testing.T) {
	now := time.Now()
	tr := NewTracker()

	tr.Update(&models.Subscription{Status: models.StatusActive, ExpiresAt: date(2020, 1, 1)}, Signals{}, now)
	d := tr.Update(&models.Subscription{Status: models.StatusActive, ExpiresAt: date(2099, 1, 1)}, Signals{}, now)
	if !d.Granted() {
		t.Fatalf("Expected granted, got %s", d.Outcome)
	}
	if _, ok := tr.ConsumeNavigation(); !ok {
		t.Error("Expected forced navigation after extension")
	}
}

func TestTrackerPendingNavigationDroppedWhenDeniedAgain(t *testing.T) {
	now := time.Now()
	tr := NewTracker()
	tr.Update(&models.Subscription{Status: models.StatusBlocked}, Signals{}, now)
	tr.Update(&models.Subscription{Status: models.StatusActive}, Signals{}, now)
	tr.Update(&models.Subscription{Status: models.StatusBlocked}, Signals{}, now)
	if _, ok := tr.ConsumeNavigation(); ok {
		t.Error("Pending navigation must be dropped when access is denied again")
	}
}
