package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tontine/internal/apperr"
)

// Payment is a proof of a manual mobile-money transfer submitted by the
// account holder. Validated moves from false to true exactly once.
type Payment struct {
	ID          string
	AccountID   string
	Amount      int64
	Reference   string
	SubmittedAt time.Time
	Validated   bool
	ValidatedAt *time.Time
}

// NewPayment creates an unvalidated payment with a generated ID.
func NewPayment(accountID string, amount int64, reference string, now time.Time) *Payment {
	return &Payment{
		ID:          uuid.New().String(),
		AccountID:   accountID,
		Amount:      amount,
		Reference:   reference,
		SubmittedAt: now,
	}
}

// Pending reports whether the payment still awaits validation.
func (p *Payment) Pending() bool {
	return !p.Validated
}

// Validate checks required fields.
func (p *Payment) Validate() error {
	if p.ID == "" || p.AccountID == "" {
		return apperr.Validation("payment id and account are required")
	}
	if p.Amount <= 0 {
		return apperr.Validation("payment amount must be positive")
	}
	if p.Validated && p.ValidatedAt == nil {
		return apperr.Validation("validated payment without validation date")
	}
	return nil
}

// PaymentAlert is a nudge sent by an administrator asking the account holder
// to pay. It is an ephemeral signal, not part of the business record.
type PaymentAlert struct {
	ID        string
	AccountID string
	Message   string
	Seen      bool
	SentAt    time.Time
}

// NewPaymentAlert creates an unseen alert with a generated ID.
func NewPaymentAlert(accountID, message string, now time.Time) *PaymentAlert {
	return &PaymentAlert{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Message:   message,
		SentAt:    now,
	}
}

// Validate checks required fields.
func (a *PaymentAlert) Validate() error {
	if a.ID == "" || a.AccountID == "" {
		return apperr.Validation("alert id and account are required")
	}
	if a.Message == "" {
		return apperr.Validation("alert message is required")
	}
	return nil
}
