package auth

import (
	"context"

	"github.com/mmynk/tontine/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// This abstraction allows swapping the credential method (PIN today, OTP by
// SMS later) without changing the service layer code.
type Authenticator interface {
	// Authenticate verifies the credential of the account registered with
	// phone and returns the account if successful.
	Authenticate(ctx context.Context, phone, credential string) (*models.Account, error)

	// ValidateCredential checks if the credential meets the format requirements.
	ValidateCredential(credential string) error

	// HashCredential returns the value stored as Account.PinHash.
	HashCredential(credential string) (string, error)
}
