package accounts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/auth"
	"github.com/mmynk/tontine/internal/lock"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/realtime"
	"github.com/mmynk/tontine/internal/storage/sqlite"
)

type recordingNotifier struct {
	registered []string
}

func (n *recordingNotifier) AccountRegistered(_ context.Context, account *models.Account) {
	n.registered = append(n.registered, account.ID)
}

type fixture struct {
	store    *sqlite.SQLiteStore
	broker   *realtime.MemoryBroker
	jwt      *auth.JWTManager
	notifier *recordingNotifier
	svc      *Service
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
	f := &fixture{
		store:    store,
		broker:   broker,
		jwt:      auth.NewJWTManager("test-secret", time.Hour),
		notifier: &recordingNotifier{},
	}
	f.svc = NewService(store, auth.NewPINAuthenticator(store), f.jwt, lock.NewLocal(), broker, f.notifier, DefaultConfig())
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	feed, err := f.broker.Open(ctx, realtime.Filter{All: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer feed.Close()

	session, err := f.svc.Register(ctx, "+225 07 08 09 10 11", "1234")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	account := session.Account
	if account.Phone != "2250708091011" {
		t.Errorf("Expected normalized phone, got %q", account.Phone)
	}
	if account.Role != models.RoleMember {
		t.Errorf("Expected member role, got %s", account.Role)
	}

	t.Run("trial subscription", func(t *testing.T) {
		sub, err := f.store.GetSubscription(ctx, account.ID)
		if err != nil {
			t.Fatalf("GetSubscription failed: %v", err)
		}
		want := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
		if sub.ExpiresAt == nil || !sub.ExpiresAt.Equal(want) {
			t.Errorf("Expected expiry %v, got %v", want, sub.ExpiresAt)
		}
		if !sub.Active || sub.Status != models.StatusActive {
			t.Errorf("Expected active subscription, got %+v", sub)
		}
	})

	t.Run("default group", func(t *testing.T) {
		group, err := f.store.GetGroupByAccount(ctx, account.ID)
		if err != nil {
			t.Fatalf("GetGroupByAccount failed: %v", err)
		}
		if group.Name != "Ma Tontine" || group.ContributionAmount != 5000 || group.CurrentTurnIndex != 0 {
			t.Errorf("Unexpected default group: %+v", group)
		}
	})

	t.Run("token", func(t *testing.T) {
		claims, err := f.jwt.Validate(session.Token)
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if claims.AccountID != account.ID {
			t.Errorf("Expected claims for %s, got %s", account.ID, claims.AccountID)
		}
	})

	t.Run("feed and notifier", func(t *testing.T) {
		ev := <-feed.Events()
		if ev.Type != realtime.EventProfileCreated || ev.AccountID != account.ID {
			t.Errorf("Unexpected event: %+v", ev)
		}
		if len(f.notifier.registered) != 1 {
			t.Errorf("Expected one notification, got %d", len(f.notifier.registered))
		}
	})

	t.Run("duplicate phone", func(t *testing.T) {
		_, err := f.svc.Register(ctx, "2250708091011", "9999")
		if !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("Expected ErrConflict, got %v", err)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		if _, err := f.svc.Register(ctx, "", "1234"); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Empty phone: expected ErrValidation, got %v", err)
		}
		if _, err := f.svc.Register(ctx, "0102", "12"); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Short PIN: expected ErrValidation, got %v", err)
		}
	})
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registered, err := f.svc.Register(ctx, "0102030405", "4321")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	session, err := f.svc.Login(ctx, "01 02 03 04 05", "4321")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if session.Account.ID != registered.Account.ID {
		t.Errorf("Expected %s, got %s", registered.Account.ID, session.Account.ID)
	}

	if _, err := f.svc.Login(ctx, "0102030405", "0000"); !auth.IsUnauthenticated(err) {
		t.Errorf("Expected unauthenticated error, got %v", err)
	}
}

func TestRevokeSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Register(ctx, "0505050505", "1111")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	claims, err := f.jwt.Validate(session.Token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	handle, err := f.broker.Open(ctx, realtime.ForAccount(session.Account.ID))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer handle.Close()

	if err := f.svc.RevokeSessions(ctx, session.Account.ID); err != nil {
		t.Fatalf("RevokeSessions failed: %v", err)
	}

	account, err := f.svc.Account(ctx, session.Account.ID)
	if err != nil {
		t.Fatalf("Account failed: %v", err)
	}
	if err := auth.CheckSession(claims, account); !errors.Is(err, auth.ErrRevokedToken) {
		t.Errorf("Expected ErrRevokedToken, got %v", err)
	}
	if ev := <-handle.Events(); ev.Type != realtime.EventSessionRevoked {
		t.Errorf("Expected session.revoked, got %s", ev.Type)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Register(ctx, "0606060606", "2222")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	handle, err := f.broker.Open(ctx, realtime.ForAccount(session.Account.ID))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer handle.Close()

	if err := f.svc.Delete(ctx, session.Account.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := f.store.GetAccount(ctx, session.Account.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := f.store.GetGroupByAccount(ctx, session.Account.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected group to be deleted, got %v", err)
	}
	if ev := <-handle.Events(); ev.Type != realtime.EventProfileDeleted {
		t.Errorf("Expected profile.deleted, got %s", ev.Type)
	}
}

func TestEnsureAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.svc.EnsureAdmin(ctx, "0700000000", "9876")
	if err != nil {
		t.Fatalf("EnsureAdmin failed: %v", err)
	}
	if !admin.IsAdmin() {
		t.Errorf("Expected super_admin, got %s", admin.Role)
	}
	sub, err := f.store.GetSubscription(ctx, admin.ID)
	if err != nil {
		t.Fatalf("GetSubscription failed: %v", err)
	}
	if sub.ExpiresAt != nil {
		t.Errorf("Expected admin subscription to never expire, got %v", sub.ExpiresAt)
	}

	again, err := f.svc.EnsureAdmin(ctx, "0700000000", "5555")
	if err != nil {
		t.Fatalf("Second EnsureAdmin failed: %v", err)
	}
	if again.ID != admin.ID {
		t.Errorf("Expected same account id %s, got %s", admin.ID, again.ID)
	}
	if _, err := f.svc.Login(ctx, "0700000000", "5555"); err != nil {
		t.Errorf("Login with new PIN failed: %v", err)
	}
}

type cancelingBroker struct {
	*realtime.MemoryBroker
	cancel context.CancelFunc
}

func (b *cancelingBroker) Publish(ctx context.Context, ev realtime.Event) error {
	b.cancel()
	return b.MemoryBroker.Publish(ctx, ev)
}

func TestDeletePublishesAfterCancel(t *testing.T) {
	f := newFixture(t)

	session, err := f.svc.Register(context.Background(), "0707070707", "3333")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	handle, err := f.broker.Open(context.Background(), realtime.ForAccount(session.Account.ID))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer handle.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := NewService(f.store, auth.NewPINAuthenticator(f.store), f.jwt, lock.NewLocal(),
		&cancelingBroker{MemoryBroker: f.broker, cancel: cancel}, nil, DefaultConfig())

	if err := svc.Delete(ctx, session.Account.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	select {
	case ev := <-handle.Events():
		if ev.Type != realtime.EventProfileDeleted {
			t.Errorf("Expected profile.deleted, got %s", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected profile.deleted after the request was cancelled")
	}
}
