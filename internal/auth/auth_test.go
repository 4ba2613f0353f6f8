package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/models"
)

type memAccounts map[string]*models.Account

func (m memAccounts) GetAccountByPhone(_ context.Context, phone string) (*models.Account, error) {
	if a, ok := m[phone]; ok {
		return a, nil
	}
	return nil, apperr.NotFound("account", phone)
}

func TestPINAuthenticator(t *testing.T) {
	accounts := memAccounts{}
	a := NewPINAuthenticator(accounts)

	hash, err := a.HashCredential("1234")
	if err != nil {
		t.Fatalf("HashCredential failed: %v", err)
	}
	account := models.NewAccount("2250102030405", hash)
	accounts[account.Phone] = account

	t.Run("valid PIN with formatted phone", func(t *testing.T) {
		got, err := a.Authenticate(context.Background(), "+225 01 02 03 04 05", "1234")
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if got.ID != account.ID {
			t.Errorf("Expected %s, got %s", account.ID, got.ID)
		}
	})

	t.Run("wrong PIN", func(t *testing.T) {
		_, err := a.Authenticate(context.Background(), account.Phone, "0000")
		if !errors.Is(err, ErrInvalidCredentials) || !errors.Is(err, apperr.ErrUnauthenticated) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown phone", func(t *testing.T) {
		_, err := a.Authenticate(context.Background(), "999", "1234")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("credential format", func(t *testing.T) {
		for _, pin := range []string{"", "123", "12345", "12a4"} {
			if err := a.ValidateCredential(pin); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("PIN %q: expected ErrValidation, got %v", pin, err)
			}
		}
	})
}

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	account := models.NewAccount("1", "hash")

	token, err := m.Generate(account)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.AccountID != account.ID || claims.Role != models.RoleMember || claims.SessionVersion != 1 {
		t.Errorf("Unexpected claims: %+v", claims)
	}

	t.Run("session version mismatch", func(t *testing.T) {
		if err := CheckSession(claims, account); err != nil {
			t.Fatalf("CheckSession failed: %v", err)
		}
		account.SessionVersion++
		if err := CheckSession(claims, account); !errors.Is(err, ErrRevokedToken) {
			t.Errorf("Expected ErrRevokedToken, got %v", err)
		}
	})

	t.Run("foreign secret", func(t *testing.T) {
		other := NewJWTManager("other", time.Hour)
		if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		expired := NewJWTManager("test-secret", -time.Minute)
		tok, _ := expired.Generate(account)
		if _, err := m.Validate(tok); !IsUnauthenticated(err) {
			t.Errorf("Expected unauthenticated error, got %v", err)
		}
	})
}

func TestAuthorize(t *testing.T) {
	member := models.NewAccount("1", "hash")
	admin := models.NewAccount("2", "hash")
	admin.Role = models.RoleSuperAdmin

	if err := Authorize(member, ActionValidate); !errors.Is(err, apperr.ErrAuthDenied) {
		t.Errorf("Expected ErrAuthDenied for member, got %v", err)
	}
	if err := Authorize(admin, ActionValidate); err != nil {
		t.Errorf("Expected admin to be allowed, got %v", err)
	}
	if err := Authorize(nil, ActionValidate); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("Expected ErrUnauthenticated without account, got %v", err)
	}
}
