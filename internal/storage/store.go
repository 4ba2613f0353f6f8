// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/mmynk/tontine/internal/models"
)

// AdvanceFunc computes the turn record for a consistent snapshot of a group
// and its members (ordered by Order ascending). It must not perform I/O.
type AdvanceFunc func(group *models.Group, members []*models.Member) (*models.TurnRecord, error)

// SubscriptionFunc mutates a subscription inside a transaction. Returning an
// error rolls the transaction back and the error is returned unchanged.
type SubscriptionFunc func(sub *models.Subscription) error

// ValidateFunc mutates a payment and its account's subscription inside one
// transaction. Returning an error rolls both back.
type ValidateFunc func(payment *models.Payment, sub *models.Subscription) error

// Store defines the interface for tontine storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the domain packages.
//
// Missing rows are reported with apperr.ErrNotFound and lost races with
// apperr.ErrConflict. Every entity is validated before it is written and
// after it is read.
type Store interface {
	// CreateAccount persists a new account together with its initial
	// subscription and, when group is non-nil, its default group.
	CreateAccount(ctx context.Context, account *models.Account, sub *models.Subscription, group *models.Group) error

	// GetAccount retrieves an account by ID.
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)

	// GetAccountByPhone retrieves an account by its normalized phone number.
	GetAccountByPhone(ctx context.Context, phone string) (*models.Account, error)

	// ListAccounts returns every account, newest first.
	ListAccounts(ctx context.Context) ([]*models.Account, error)

	// SaveAdmin creates or updates a super_admin account and its subscription.
	SaveAdmin(ctx context.Context, account *models.Account, sub *models.Subscription) error

	// BumpSessionVersion increments the account's session version and returns it.
	BumpSessionVersion(ctx context.Context, accountID string) (int64, error)

	// DeleteAccount removes the account and everything it owns in one transaction.
	DeleteAccount(ctx context.Context, accountID string) error

	// GetSubscription retrieves the subscription of an account.
	GetSubscription(ctx context.Context, accountID string) (*models.Subscription, error)

	// ListSubscriptions returns every subscription.
	ListSubscriptions(ctx context.Context) ([]*models.Subscription, error)

	// UpdateSubscription reads, mutates and writes a subscription atomically.
	UpdateSubscription(ctx context.Context, accountID string, fn SubscriptionFunc) (*models.Subscription, error)

	// GetGroup retrieves a group by ID.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// GetGroupByAccount retrieves the group owned by an account.
	GetGroupByAccount(ctx context.Context, accountID string) (*models.Group, error)

	// UpdateGroupSettings writes name, contribution amount and dates.
	// The current turn index is never written by this method.
	UpdateGroupSettings(ctx context.Context, group *models.Group) error

	// ListMembers returns the members of a group ordered by Order ascending.
	ListMembers(ctx context.Context, groupID string) ([]*models.Member, error)

	// AddMember appends a member at Order = N+1. member.Order is populated.
	AddMember(ctx context.Context, member *models.Member) error

	// UpdateMember writes the name and phone of a member.
	UpdateMember(ctx context.Context, member *models.Member) error

	// DeleteMember removes a member and renumbers the remaining members to a
	// dense 1..N sequence preserving their relative order, in one transaction.
	DeleteMember(ctx context.Context, groupID, memberID string) error

	// AdvanceTurn reads the group and its members in one transaction, calls fn,
	// then persists the returned record and sets the group's current turn index
	// to the record's turn number. A concurrent advance makes it fail with
	// apperr.ErrConflict.
	AdvanceTurn(ctx context.Context, groupID string, fn AdvanceFunc) (*models.TurnRecord, error)

	// ListTurns returns the turn records of a group ordered by turn number.
	ListTurns(ctx context.Context, groupID string) ([]*models.TurnRecord, error)

	// CreatePayment persists a new payment.
	CreatePayment(ctx context.Context, payment *models.Payment) error

	// GetPayment retrieves a payment by ID.
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)

	// ListPaymentsByAccount returns an account's payments, newest first.
	ListPaymentsByAccount(ctx context.Context, accountID string) ([]*models.Payment, error)

	// ListPayments returns all payments, newest first, optionally only unvalidated ones.
	ListPayments(ctx context.Context, pendingOnly bool) ([]*models.Payment, error)

	// ValidatePayment reads a payment and its account's subscription, calls fn
	// and writes both in one transaction.
	ValidatePayment(ctx context.Context, paymentID string, fn ValidateFunc) (*models.Payment, *models.Subscription, error)

	// CreateAlert persists a payment alert.
	CreateAlert(ctx context.Context, alert *models.PaymentAlert) error

	// ListAlerts returns an account's alerts, newest first.
	ListAlerts(ctx context.Context, accountID string) ([]*models.PaymentAlert, error)

	// MarkAlertSeen sets the seen flag of an alert owned by accountID.
	MarkAlertSeen(ctx context.Context, accountID, alertID string) error

	// Close releases any resources held by the store.
	Close() error
}
