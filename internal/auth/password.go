package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/models"
)

// ErrInvalidCredentials is returned for an unknown phone or a wrong PIN.
var ErrInvalidCredentials = fmt.Errorf("%w: invalid phone number or PIN", apperr.ErrUnauthenticated)

// AccountStorage defines the account lookups the authenticator needs.
type AccountStorage interface {
	GetAccountByPhone(ctx context.Context, phone string) (*models.Account, error)
}

// PINAuthenticator implements phone + 4-digit PIN authentication using bcrypt.
type PINAuthenticator struct {
	storage AccountStorage
}

// NewPINAuthenticator creates a new PIN-based authenticator.
func NewPINAuthenticator(storage AccountStorage) *PINAuthenticator {
	return &PINAuthenticator{
		storage: storage,
	}
}

// ValidateCredential checks that the PIN is exactly four digits.
func (a *PINAuthenticator) ValidateCredential(credential string) error {
	return models.ValidatePIN(credential)
}

// HashCredential hashes a PIN with bcrypt.
func (a *PINAuthenticator) HashCredential(credential string) (string, error) {
	if err := a.ValidateCredential(credential); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash PIN: %w", err)
	}
	return string(hash), nil
}

// Authenticate verifies the phone and PIN, returning the account if valid.
func (a *PINAuthenticator) Authenticate(ctx context.Context, phone, credential string) (*models.Account, error) {
	account, err := a.storage.GetAccountByPhone(ctx, models.NormalizePhone(phone))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PinHash), []byte(credential)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return account, nil
}
