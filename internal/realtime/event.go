// Package realtime propagates committed state changes to the clients of the
// affected account.
//
// Events for one account are published in commit order by the mutating
// domain package (which publishes while still holding the account lock).
// Delivery is at-least-once with no replay. A client that (re)opens a channel
// must re-fetch its state; server streams start with a sync event carrying it.
package realtime

import (
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tontine/internal/models"
)

// EventType names a committed mutation.
type EventType string

const (
	EventSync             EventType = "sync"
	EventProfileCreated   EventType = "profile.created"
	EventProfileUpdated   EventType = "profile.updated"
	EventProfileDeleted   EventType = "profile.deleted"
	EventPaymentSubmitted EventType = "payment.submitted"
	EventPaymentUpdated   EventType = "payment.updated"
	EventAlertCreated     EventType = "alert.created"
	EventAlertSeen        EventType = "alert.seen"
	EventGroupUpdated     EventType = "group.updated"
	EventMembersChanged   EventType = "members.changed"
	EventTurnAdvanced     EventType = "turn.advanced"
	EventSessionRevoked   EventType = "session.revoked"
)

// Snapshot is the subscription state carried by sync and profile events.
type Snapshot struct {
	Status    models.SubscriptionStatus `json:"status"`
	Active    bool                      `json:"active"`
	ExpiresAt *time.Time                `json:"expiresAt,omitempty"`
}

// SnapshotOf converts a subscription to its wire snapshot.
func SnapshotOf(sub *models.Subscription) *Snapshot {
	if sub == nil {
		return nil
	}
	c := sub.Clone()
	return &Snapshot{Status: c.Status, Active: c.Active, ExpiresAt: c.ExpiresAt}
}

// Subscription rebuilds the model for accountID from the snapshot.
func (s *Snapshot) Subscription(accountID string) *models.Subscription {
	return &models.Subscription{
		AccountID: accountID,
		Status:    s.Status,
		Active:    s.Active,
		ExpiresAt: s.ExpiresAt,
	}
}

// Event is one change notification. Handling the same event twice must be a
// no-op for the receiver.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	AccountID string    `json:"accountId"`
	At        time.Time `json:"at"`

	Subscription *Snapshot `json:"subscription,omitempty"`
	PaymentID    string    `json:"paymentId,omitempty"`
	AlertID      string    `json:"alertId,omitempty"`
	Message      string    `json:"message,omitempty"`
	GroupID      string    `json:"groupId,omitempty"`
	TurnNumber   int64     `json:"turnNumber,omitempty"`
}

// NewEvent creates an event with a generated ID.
func NewEvent(t EventType, accountID string) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      t,
		AccountID: accountID,
		At:        time.Now().UTC(),
	}
}

// Filter selects the events delivered to a handle.
type Filter struct {
	// AccountID restricts delivery to one account.
	AccountID string

	// All delivers every account's events (administrator feed).
	All bool
}

// ForAccount returns the filter of one account's channel.
func ForAccount(accountID string) Filter {
	return Filter{AccountID: accountID}
}

// Match reports whether ev passes the filter.
func (f Filter) Match(ev Event) bool {
	return f.All || (f.AccountID != "" && f.AccountID == ev.AccountID)
}
