package models

import (
	"time"

	"github.com/mmynk/tontine/internal/apperr"
)

// TurnRecord is one payout of the rotation. It is immutable once created and
// only removed by full account deletion.
type TurnRecord struct {
	ID        string
	GroupID   string
	AccountID string
	MemberID  string

	// TurnNumber is 1-based: the group's CurrentTurnIndex after this turn.
	TurnNumber int64

	// Amount is ContributionAmount × member count at the time of the turn.
	Amount int64

	// BeneficiaryName is a snapshot; renaming the member later does not change it.
	BeneficiaryName string

	Date time.Time
}

// Validate checks required fields.
func (r *TurnRecord) Validate() error {
	if r.ID == "" || r.GroupID == "" || r.MemberID == "" {
		return apperr.Validation("turn record ids are required")
	}
	if r.TurnNumber < 1 {
		return apperr.Validation("turn number must be positive")
	}
	if r.Amount <= 0 {
		return apperr.Validation("turn amount must be positive")
	}
	return nil
}
