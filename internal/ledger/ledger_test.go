package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/lock"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/realtime"
	"github.com/mmynk/tontine/internal/storage/sqlite"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store  *sqlite.SQLiteStore
	broker *realtime.MemoryBroker
	ledger *Ledger
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
	return &fixture{
		store:  store,
		broker: broker,
		ledger: New(store, lock.NewLocal(), broker, DefaultConfig(), WithClock(func() time.Time { return now })),
	}
}

func (f *fixture) account(t *testing.T, expiresAt *time.Time) *models.Account {
	t.Helper()
	account := models.NewAccount(uuid.New().String(), "hash")
	if err := f.store.CreateAccount(context.Background(), account, models.NewSubscription(account.ID, expiresAt, now), nil); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return account
}

func at(t time.Time) *time.Time { return &t }

func TestExtendFrom(t *testing.T) {
	tests := []struct {
		name    string
		current *time.Time
		want    time.Time
	}{
		{"null expiration extends from now", nil, now.AddDate(0, 0, 30)},
		{"past expiration extends from now", at(now.AddDate(0, 0, -10)), now.AddDate(0, 0, 30)},
		{"future expiration keeps remaining days", at(now.AddDate(0, 0, 5)), now.AddDate(0, 0, 35)},
		{"expiration equal to now extends from now", at(now), now.AddDate(0, 0, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtendFrom(tt.current, now, 30); !got.Equal(tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.account(t, at(now))

	t.Run("blank reference is rejected", func(t *testing.T) {
		_, err := f.ledger.Submit(ctx, account.ID, "   \t")
		if !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Expected ErrValidation, got %v", err)
		}
		payments, _ := f.store.ListPaymentsByAccount(ctx, account.ID)
		if len(payments) != 0 {
			t.Errorf("Expected no payment to be recorded, got %d", len(payments))
		}
	})

	t.Run("amount is the configured price", func(t *testing.T) {
		p, err := f.ledger.Submit(ctx, account.ID, "  OM-4411  ")
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if p.Amount != 700 || p.Reference != "OM-4411" || p.Validated {
			t.Errorf("Unexpected payment: %+v", p)
		}
	})
}

func TestValidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("extends from now when expired", func(t *testing.T) {
		account := f.account(t, at(now.AddDate(0, 0, -3)))
		p, _ := f.ledger.Submit(ctx, account.ID, "ref")

		payment, sub, changed, err := f.ledger.Validate(ctx, p.ID, account.ID)
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if !changed || !payment.Validated {
			t.Fatal("Expected payment to be validated")
		}

		stored, _ := f.store.GetSubscription(ctx, account.ID)
		want := now.AddDate(0, 0, 30)
		if !stored.Active || stored.Status != models.StatusActive || !stored.ExpiresAt.Equal(want) {
			t.Errorf("Unexpected subscription: %+v (expires %v)", stored, stored.ExpiresAt)
		}
		if !sub.ExpiresAt.Equal(want) {
			t.Errorf("Returned subscription differs from stored one")
		}
	})

	t.Run("keeps remaining days and reactivates blocked", func(t *testing.T) {
		account := f.account(t, at(now.AddDate(0, 0, 4)))
		if _, err := f.ledger.SetStatus(ctx, account.ID, models.StatusBlocked); err != nil {
			t.Fatalf("SetStatus failed: %v", err)
		}
		p, _ := f.ledger.Submit(ctx, account.ID, "ref")
		if _, _, _, err := f.ledger.Validate(ctx, p.ID, ""); err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		stored, _ := f.store.GetSubscription(ctx, account.ID)
		if stored.Status != models.StatusActive || !stored.ExpiresAt.Equal(now.AddDate(0, 0, 34)) {
			t.Errorf("Unexpected subscription: %s %v", stored.Status, stored.ExpiresAt)
		}
	})

	t.Run("revalidation never extends twice", func(t *testing.T) {
		account := f.account(t, nil)
		p, _ := f.ledger.Submit(ctx, account.ID, "ref")
		if _, _, _, err := f.ledger.Validate(ctx, p.ID, ""); err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		first, _ := f.store.GetSubscription(ctx, account.ID)

		_, _, changed, err := f.ledger.Validate(ctx, p.ID, "")
		if err != nil {
			t.Fatalf("Second Validate failed: %v", err)
		}
		if changed {
			t.Error("Expected second validation to be a no-op")
		}
		second, _ := f.store.GetSubscription(ctx, account.ID)
		if !second.ExpiresAt.Equal(*first.ExpiresAt) {
			t.Errorf("Expiration moved from %v to %v", first.ExpiresAt, second.ExpiresAt)
		}
	})

	t.Run("concurrent validations extend once", func(t *testing.T) {
		account := f.account(t, nil)
		p, _ := f.ledger.Submit(ctx, account.ID, "ref")

		var wg sync.WaitGroup
		var mu sync.Mutex
		changes := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, changed, err := f.ledger.Validate(ctx, p.ID, "")
				if err != nil {
					t.Errorf("Validate failed: %v", err)
					return
				}
				if changed {
					mu.Lock()
					changes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if changes != 1 {
			t.Errorf("Expected exactly one effective validation, got %d", changes)
		}
	})

	t.Run("wrong account", func(t *testing.T) {
		owner := f.account(t, nil)
		other := f.account(t, nil)
		p, _ := f.ledger.Submit(ctx, owner.ID, "ref")
		_, _, _, err := f.ledger.Validate(ctx, p.ID, other.ID)
		if !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Expected ErrValidation, got %v", err)
		}
	})

	t.Run("missing payment", func(t *testing.T) {
		_, _, _, err := f.ledger.Validate(ctx, "missing", "")
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestValidatePublishesSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.account(t, nil)
	p, _ := f.ledger.Submit(ctx, account.ID, "ref")

	h, _ := f.broker.Open(ctx, realtime.ForAccount(account.ID))
	defer h.Close()

	if _, _, _, err := f.ledger.Validate(ctx, p.ID, ""); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	f.ledger.Validate(ctx, p.ID, "")

	select {
	case ev := <-h.Events():
		if ev.Type != realtime.EventPaymentUpdated || ev.Subscription == nil || !ev.Subscription.Active {
			t.Errorf("Unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("No event received")
	}
	select {
	case ev := <-h.Events():
		t.Errorf("Revalidation must not publish, got %+v", ev)
	default:
	}
}

func TestExtend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("null expiration becomes now plus days and active", func(t *testing.T) {
		account := f.account(t, nil)
		f.ledger.SetStatus(ctx, account.ID, models.StatusBlocked)

		sub, err := f.ledger.Extend(ctx, account.ID, 30)
		if err != nil {
			t.Fatalf("Extend failed: %v", err)
		}
		if !sub.ExpiresAt.Equal(now.AddDate(0, 0, 30)) || sub.Status != models.StatusActive {
			t.Errorf("Unexpected subscription: %s %v", sub.Status, sub.ExpiresAt)
		}
	})

	t.Run("non-positive days", func(t *testing.T) {
		account := f.account(t, nil)
		for _, days := range []int{0, -5} {
			if _, err := f.ledger.Extend(ctx, account.ID, days); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("Extend(%d): expected ErrValidation, got %v", days, err)
			}
		}
	})

	t.Run("missing account", func(t *testing.T) {
		if _, err := f.ledger.Extend(ctx, "missing", 10); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestSetStatusKeepsExpiration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exp := now.AddDate(0, 1, 0)
	account := f.account(t, &exp)

	sub, err := f.ledger.SetStatus(ctx, account.ID, models.StatusBlocked)
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if !sub.Blocked() || !sub.ExpiresAt.Equal(exp) {
		t.Errorf("Unexpected subscription: %+v", sub)
	}
	if _, err := f.ledger.SetStatus(ctx, account.ID, "paused"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected ErrValidation for unknown status, got %v", err)
	}
}

func TestAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.account(t, nil)

	alert, err := f.ledger.SendAlert(ctx, account.ID, "")
	if err != nil {
		t.Fatalf("SendAlert failed: %v", err)
	}
	if alert.Message != DefaultConfig().DefaultAlertMessage {
		t.Errorf("Expected default message, got %q", alert.Message)
	}
	if err := f.ledger.AckAlert(ctx, account.ID, alert.ID); err != nil {
		t.Fatalf("AckAlert failed: %v", err)
	}
	alerts, _ := f.store.ListAlerts(ctx, account.ID)
	if len(alerts) != 1 || !alerts[0].Seen {
		t.Errorf("Unexpected alerts: %+v", alerts)
	}

	if _, err := f.ledger.SendAlert(ctx, "missing", "hello"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// cancelingBroker cancels the caller's context right before publishing, as
// when a client disconnects after the commit.
type cancelingBroker struct {
	*realtime.MemoryBroker
	cancel context.CancelFunc
}

func (b *cancelingBroker) Publish(ctx context.Context, ev realtime.Event) error {
	b.cancel()
	return b.MemoryBroker.Publish(ctx, ev)
}

func TestPublishSurvivesCancelledRequest(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, at(now.Add(time.Hour)))

	feed, err := f.broker.Open(context.Background(), realtime.ForAccount(account.ID))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer feed.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broker := &cancelingBroker{MemoryBroker: f.broker, cancel: cancel}
	l := New(f.store, lock.NewLocal(), broker, DefaultConfig(), WithClock(func() time.Time { return now }))

	if _, err := l.SetStatus(ctx, account.ID, models.StatusBlocked); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	select {
	case ev := <-feed.Events():
		if ev.Type != realtime.EventProfileUpdated || ev.Subscription == nil {
			t.Errorf("Unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected the committed change to be published")
	}
}
