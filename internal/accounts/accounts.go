// Package accounts registers account holders, bootstraps administrators and
// deletes accounts with everything they own.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/auth"
	"github.com/mmynk/tontine/internal/lock"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/realtime"
	"github.com/mmynk/tontine/internal/storage"
)

// Config holds registration defaults.
type Config struct {
	TrialDays           int
	DefaultGroupName    string
	DefaultContribution int64
}

// DefaultConfig returns the registration defaults of the client app.
func DefaultConfig() Config {
	return Config{
		TrialDays:           7,
		DefaultGroupName:    "Ma Tontine",
		DefaultContribution: 5000,
	}
}

// Notifier receives best-effort administrator notifications.
type Notifier interface {
	AccountRegistered(ctx context.Context, account *models.Account)
}

// Service implements account lifecycle operations.
type Service struct {
	store  storage.Store
	authn  auth.Authenticator
	jwt    *auth.JWTManager
	locker lock.Locker
	broker realtime.Broker
	notify Notifier
	cfg    Config
	now    func() time.Time
}

// NewService creates an account service. notify may be nil.
func NewService(store storage.Store, authn auth.Authenticator, jwt *auth.JWTManager, locker lock.Locker, broker realtime.Broker, notify Notifier, cfg Config) *Service {
	return &Service{
		store:  store,
		authn:  authn,
		jwt:    jwt,
		locker: locker,
		broker: broker,
		notify: notify,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Session is an authenticated account with its token.
type Session struct {
	Account *models.Account
	Token   string
}

// Register creates an account with a trial subscription and a default group.
func (s *Service) Register(ctx context.Context, phone, pin string) (*Session, error) {
	phone = models.NormalizePhone(phone)
	if phone == "" {
		return nil, apperr.Validation("phone number is required")
	}
	hash, err := s.authn.HashCredential(pin)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Second)
	account := models.NewAccount(phone, hash)
	account.CreatedAt = now
	expires := now.AddDate(0, 0, s.cfg.TrialDays)
	sub := models.NewSubscription(account.ID, &expires, now)
	group := models.NewGroup(account.ID, s.cfg.DefaultGroupName, s.cfg.DefaultContribution)
	group.CreatedAt = now

	if err := s.store.CreateAccount(ctx, account, sub, group); err != nil {
		return nil, err
	}

	ev := realtime.NewEvent(realtime.EventProfileCreated, account.ID)
	ev.Subscription = realtime.SnapshotOf(sub)
	s.publish(ctx, ev)
	if s.notify != nil {
		s.notify.AccountRegistered(ctx, account)
	}

	return s.issue(account)
}

// Login authenticates a phone and PIN. Blocked and expired accounts may log
// in; the access gate restricts them to the payment screen.
func (s *Service) Login(ctx context.Context, phone, pin string) (*Session, error) {
	account, err := s.authn.Authenticate(ctx, phone, pin)
	if err != nil {
		return nil, err
	}
	return s.issue(account)
}

func (s *Service) issue(account *models.Account) (*Session, error) {
	token, err := s.jwt.Generate(account)
	if err != nil {
		return nil, err
	}
	return &Session{Account: account, Token: token}, nil
}

// Account re-reads an account from storage.
func (s *Service) Account(ctx context.Context, accountID string) (*models.Account, error) {
	return s.store.GetAccount(ctx, accountID)
}

// RevokeSessions invalidates every token issued to the account and tells its
// open channels to sign out.
func (s *Service) RevokeSessions(ctx context.Context, accountID string) error {
	unlock, err := s.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return err
	}
	defer unlock()

	version, err := s.store.BumpSessionVersion(ctx, accountID)
	if err != nil {
		return err
	}
	slog.Info("Sessions revoked", "account_id", accountID, "session_version", version)
	s.publish(ctx, realtime.NewEvent(realtime.EventSessionRevoked, accountID))
	return nil
}

// Delete removes an account and everything it owns in one transaction. The
// profile.deleted event terminates the account's sessions.
func (s *Service) Delete(ctx context.Context, accountID string) error {
	unlock, err := s.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.store.DeleteAccount(ctx, accountID); err != nil {
		return err
	}
	s.publish(ctx, realtime.NewEvent(realtime.EventProfileDeleted, accountID))
	return nil
}

// EnsureAdmin creates or updates a super_admin whose subscription never expires.
func (s *Service) EnsureAdmin(ctx context.Context, phone, pin string) (*models.Account, error) {
	phone = models.NormalizePhone(phone)
	if phone == "" {
		return nil, apperr.Validation("phone number is required")
	}
	hash, err := s.authn.HashCredential(pin)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Second)
	account := models.NewAccount(phone, hash)
	account.Role = models.RoleSuperAdmin
	account.CreatedAt = now
	sub := models.NewSubscription(account.ID, nil, now)

	if err := s.store.SaveAdmin(ctx, account, sub); err != nil {
		return nil, fmt.Errorf("failed to save admin: %w", err)
	}
	return account, nil
}

// IsPrivilegeEscalation reports whether err is a role check failure that
// must force the caller to sign out.
func IsPrivilegeEscalation(err error) bool {
	return errors.Is(err, apperr.ErrAuthDenied)
}

func (s *Service) publish(ctx context.Context, ev realtime.Event) {
	if err := s.broker.Publish(context.WithoutCancel(ctx), ev); err != nil {
		slog.Warn("Failed to publish event", "type", ev.Type, "account_id", ev.AccountID, "error", err)
	}
}
