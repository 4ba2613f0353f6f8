package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tontine/internal/apperr"
)

// Group represents a tontine owned exclusively by one account.
//
// CurrentTurnIndex only ever increases, by exactly one, through the rotation
// engine. It counts the turns already paid out.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// AccountID is the owner of the group.
	AccountID string

	// Name is the display name (e.g., "Tontine du quartier").
	Name string

	// ContributionAmount is what each member pays per turn, in FCFA.
	ContributionAmount int64

	// CurrentTurnIndex is the number of turns already advanced.
	CurrentTurnIndex int64

	// CycleStartDate and NextTurnDate are optional, set from the settings screen.
	CycleStartDate *time.Time
	NextTurnDate   *time.Time

	CreatedAt time.Time
}

// NewGroup creates a group with a generated ID and no turns advanced.
func NewGroup(accountID, name string, contribution int64) *Group {
	return &Group{
		ID:                 uuid.New().String(),
		AccountID:          accountID,
		Name:               name,
		ContributionAmount: contribution,
		CreatedAt:          time.Now().UTC(),
	}
}

// Validate checks required fields.
func (g *Group) Validate() error {
	if g.ID == "" || g.AccountID == "" {
		return apperr.Validation("group id and owner are required")
	}
	if g.Name == "" {
		return apperr.Validation("group name is required")
	}
	if g.ContributionAmount <= 0 {
		return apperr.Validation("contribution amount must be positive")
	}
	if g.CurrentTurnIndex < 0 {
		return apperr.Validation("current turn index must not be negative")
	}
	return nil
}

// Member is a participant of a group. Order is dense 1..N within the group
// and defines the rotation order.
type Member struct {
	ID        string
	GroupID   string
	AccountID string
	Name      string

	// Phone is optional; empty means none.
	Phone string

	Order     int
	CreatedAt time.Time
}

// NewMember creates a member with a generated ID. Order is assigned by storage.
func NewMember(group *Group, name, phone string) *Member {
	return &Member{
		ID:        uuid.New().String(),
		GroupID:   group.ID,
		AccountID: group.AccountID,
		Name:      name,
		Phone:     phone,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks required fields.
func (m *Member) Validate() error {
	if m.ID == "" || m.GroupID == "" {
		return apperr.Validation("member id and group are required")
	}
	if m.Name == "" {
		return apperr.Validation("member name is required")
	}
	if m.Order < 1 {
		return apperr.Validation("member order must be positive")
	}
	return nil
}
