package models

import (
	"time"

	"github.com/mmynk/tontine/internal/apperr"
)

// SubscriptionStatus is the administrator-controlled part of a subscription.
type SubscriptionStatus string

const (
	StatusActive  SubscriptionStatus = "active"
	StatusBlocked SubscriptionStatus = "blocked"
)

// Valid reports whether s is a known status.
func (s SubscriptionStatus) Valid() bool {
	return s == StatusActive || s == StatusBlocked
}

// Subscription is the per-account record every access decision reads.
type Subscription struct {
	AccountID string
	Status    SubscriptionStatus

	// Active is set when a payment was validated or an administrator extended
	// the subscription.
	Active bool

	// ExpiresAt is nil for accounts that never expire (super admins).
	ExpiresAt *time.Time

	CreatedAt time.Time
}

// NewSubscription creates an active subscription. expiresAt nil means the
// subscription never expires.
func NewSubscription(accountID string, expiresAt *time.Time, now time.Time) *Subscription {
	return &Subscription{
		AccountID: accountID,
		Status:    StatusActive,
		Active:    true,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
}

// Expired reports whether the expiration date is strictly before now.
func (s *Subscription) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

// Blocked reports whether an administrator blocked the account.
func (s *Subscription) Blocked() bool {
	return s.Status == StatusBlocked
}

// Clone returns a deep copy so callers can mutate without aliasing ExpiresAt.
func (s *Subscription) Clone() *Subscription {
	c := *s
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

// Validate checks required fields and the status enum.
func (s *Subscription) Validate() error {
	if s.AccountID == "" {
		return apperr.Validation("subscription account id is required")
	}
	if !s.Status.Valid() {
		return apperr.Validation("unknown subscription status %q", s.Status)
	}
	return nil
}
