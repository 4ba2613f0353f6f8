// Package ledger records payment proofs and applies every administrator
// mutation of a subscription: validation, manual extension, block status
// and payment alerts.
//
// All subscription mutations of one account run under the account lock and
// publish their event before releasing it, so the account's realtime channel
// sees events in commit order.
package ledger

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/lock"
	"github.com/mmynk/tontine/internal/metrics"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/realtime"
	"github.com/mmynk/tontine/internal/storage"
)

// Config holds the subscription constants.
type Config struct {
	// Price is the fixed amount of one payment, in FCFA.
	Price int64

	// ExtensionDays is added by each validated payment.
	ExtensionDays int

	// DefaultAlertMessage is sent when an administrator gives no message.
	DefaultAlertMessage string
}

// DefaultConfig matches the published offer: 700 FCFA for 30 days.
func DefaultConfig() Config {
	return Config{
		Price:               700,
		ExtensionDays:       30,
		DefaultAlertMessage: "Votre abonnement arrive à échéance. Merci d'effectuer votre paiement de 700 FCFA.",
	}
}

// ExtendFrom returns the new expiration after adding days. Remaining days
// are kept when current is in the future; otherwise the extension starts now.
func ExtendFrom(current *time.Time, now time.Time, days int) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.AddDate(0, 0, days)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithMetrics records submitted and validated payments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// Ledger is the payment and subscription mutation service.
type Ledger struct {
	store   storage.Store
	locker  lock.Locker
	broker  realtime.Broker
	metrics *metrics.Metrics
	cfg     Config
	now     func() time.Time
}

// New creates a Ledger.
func New(store storage.Store, locker lock.Locker, broker realtime.Broker, cfg Config, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		locker: locker,
		broker: broker,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config returns the ledger constants.
func (l *Ledger) Config() Config { return l.cfg }

// clock returns the current time at the storage precision.
func (l *Ledger) clock() time.Time {
	return l.now().UTC().Truncate(time.Second)
}

// Submit records a payment proof. The amount is the configured price.
func (l *Ledger) Submit(ctx context.Context, accountID, reference string) (*models.Payment, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, apperr.Validation("payment reference is required")
	}

	unlock, err := l.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	payment := models.NewPayment(accountID, l.cfg.Price, reference, l.clock())
	if err := l.store.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}
	l.metrics.PaymentSubmitted()

	ev := realtime.NewEvent(realtime.EventPaymentSubmitted, accountID)
	ev.PaymentID = payment.ID
	l.publish(ctx, ev)
	return payment, nil
}

// Validate marks a payment validated and extends the subscription in one
// transaction. Validating an already validated payment changes nothing and
// reports changed=false. A non-empty accountID must own the payment.
func (l *Ledger) Validate(ctx context.Context, paymentID, accountID string) (payment *models.Payment, sub *models.Subscription, changed bool, err error) {
	existing, err := l.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, nil, false, err
	}
	if accountID != "" && existing.AccountID != accountID {
		return nil, nil, false, apperr.Validation("payment %s does not belong to account %s", paymentID, accountID)
	}

	unlock, err := l.locker.Lock(ctx, lock.AccountKey(existing.AccountID))
	if err != nil {
		return nil, nil, false, err
	}
	defer unlock()

	payment, sub, err = l.store.ValidatePayment(ctx, paymentID, func(p *models.Payment, s *models.Subscription) error {
		if p.Validated {
			return nil
		}
		now := l.clock()
		p.Validated = true
		p.ValidatedAt = &now
		l.extend(s, now, l.cfg.ExtensionDays)
		changed = true
		return nil
	})
	if err != nil {
		return nil, nil, false, err
	}
	if !changed {
		return payment, sub, false, nil
	}

	l.metrics.PaymentValidated()
	ev := realtime.NewEvent(realtime.EventPaymentUpdated, payment.AccountID)
	ev.PaymentID = payment.ID
	ev.Subscription = realtime.SnapshotOf(sub)
	l.publish(ctx, ev)
	return payment, sub, true, nil
}

// Extend grants days of access without a payment.
func (l *Ledger) Extend(ctx context.Context, accountID string, days int) (*models.Subscription, error) {
	if days <= 0 {
		return nil, apperr.Validation("extension days must be positive, got %d", days)
	}
	return l.mutate(ctx, accountID, func(sub *models.Subscription) error {
		l.extend(sub, l.clock(), days)
		return nil
	})
}

// SetStatus blocks or unblocks an account. Blocking keeps the expiration.
func (l *Ledger) SetStatus(ctx context.Context, accountID string, status models.SubscriptionStatus) (*models.Subscription, error) {
	if !status.Valid() {
		return nil, apperr.Validation("unknown subscription status %q", status)
	}
	return l.mutate(ctx, accountID, func(sub *models.Subscription) error {
		sub.Status = status
		return nil
	})
}

// extend is the single date-extension primitive shared by validation and
// manual extension.
func (l *Ledger) extend(sub *models.Subscription, now time.Time, days int) {
	expires := ExtendFrom(sub.ExpiresAt, now, days)
	sub.ExpiresAt = &expires
	sub.Active = true
	sub.Status = models.StatusActive
}

func (l *Ledger) mutate(ctx context.Context, accountID string, fn storage.SubscriptionFunc) (*models.Subscription, error) {
	unlock, err := l.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	sub, err := l.store.UpdateSubscription(ctx, accountID, fn)
	if err != nil {
		return nil, err
	}
	ev := realtime.NewEvent(realtime.EventProfileUpdated, accountID)
	ev.Subscription = realtime.SnapshotOf(sub)
	l.publish(ctx, ev)
	return sub, nil
}

// SendAlert nudges an account holder to pay.
func (l *Ledger) SendAlert(ctx context.Context, accountID, message string) (*models.PaymentAlert, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = l.cfg.DefaultAlertMessage
	}
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	unlock, err := l.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	alert := models.NewPaymentAlert(accountID, message, l.clock())
	if err := l.store.CreateAlert(ctx, alert); err != nil {
		return nil, err
	}
	ev := realtime.NewEvent(realtime.EventAlertCreated, accountID)
	ev.AlertID = alert.ID
	ev.Message = alert.Message
	l.publish(ctx, ev)
	return alert, nil
}

// AckAlert marks an alert of the account as seen.
func (l *Ledger) AckAlert(ctx context.Context, accountID, alertID string) error {
	unlock, err := l.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return err
	}
	defer unlock()

	if err := l.store.MarkAlertSeen(ctx, accountID, alertID); err != nil {
		return err
	}
	ev := realtime.NewEvent(realtime.EventAlertSeen, accountID)
	ev.AlertID = alertID
	l.publish(ctx, ev)
	return nil
}

// Snapshot returns the current subscription of an account.
func (l *Ledger) Snapshot(ctx context.Context, accountID string) (*models.Subscription, error) {
	return l.store.GetSubscription(ctx, accountID)
}

// Now returns the ledger clock.
func (l *Ledger) Now() time.Time { return l.clock() }

// publish never fails the caller: the mutation is committed and clients
// resync on reconnect. Cancelling the request after the commit does not drop
// the event.
func (l *Ledger) publish(ctx context.Context, ev realtime.Event) {
	if err := l.broker.Publish(context.WithoutCancel(ctx), ev); err != nil {
		slog.Warn("Failed to publish event", "type", ev.Type, "account_id", ev.AccountID, "error", err)
	}
}
