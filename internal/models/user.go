package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tontine/internal/apperr"
)

// Role is the privilege level of an account.
type Role string

const (
	RoleMember     Role = "member"
	RoleSuperAdmin Role = "super_admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleMember || r == RoleSuperAdmin
}

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// Account represents a registered user of the client app or the admin console.
type Account struct {
	// ID is the unique identifier for the account (UUID format).
	ID string

	// Phone is the normalized (digits only) phone number used to log in.
	Phone string

	// PinHash is the bcrypt hash of the 4-digit PIN.
	PinHash string

	// Role is immutable after assignment except by direct administrative edit.
	Role Role

	// SessionVersion is embedded in issued tokens. Bumping it revokes every
	// outstanding session of the account.
	SessionVersion int64

	// CreatedAt is when the account registered.
	CreatedAt time.Time
}

// NewAccount creates an account with a generated ID and the member role.
func NewAccount(phone, pinHash string) *Account {
	return &Account{
		ID:             uuid.New().String(),
		Phone:          phone,
		PinHash:        pinHash,
		Role:           RoleMember,
		SessionVersion: 1,
		CreatedAt:      time.Now().UTC(),
	}
}

// IsAdmin reports whether the account holds the super_admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleSuperAdmin
}

// Validate checks required fields.
func (a *Account) Validate() error {
	if a.ID == "" {
		return apperr.Validation("account id is required")
	}
	if a.Phone == "" {
		return apperr.Validation("phone is required")
	}
	if a.PinHash == "" {
		return apperr.Validation("pin hash is required")
	}
	if !a.Role.Valid() {
		return apperr.Validation("unknown role %q", a.Role)
	}
	return nil
}

// NormalizePhone strips everything but digits from a phone number.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidatePIN checks that pin is exactly four digits.
func ValidatePIN(pin string) error {
	if !pinPattern.MatchString(pin) {
		return apperr.Validation("PIN must be exactly 4 digits")
	}
	return nil
}
