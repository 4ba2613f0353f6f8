package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/models"
)

// newTestStore connects to TONTINE_TEST_POSTGRES_DSN or skips the test.
func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TONTINE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TONTINE_TEST_POSTGRES_DSN not set")
	}
	store, err := New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedGroup(t *testing.T, store *PostgresStore, names ...string) (*models.Account, *models.Group) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	account := models.NewAccount(uuid.New().String(), "hash")
	expires := now.AddDate(0, 0, 7)
	group := models.NewGroup(account.ID, "Ma Tontine", 5000)
	if err := store.CreateAccount(ctx, account, models.NewSubscription(account.ID, &expires, now), group); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	for _, name := range names {
		if err := store.AddMember(ctx, models.NewMember(group, name, "")); err != nil {
			t.Fatalf("AddMember failed: %v", err)
		}
	}
	t.Cleanup(func() { _ = store.DeleteAccount(context.Background(), account.ID) })
	return account, group
}

func nextTurn(group *models.Group, members []*models.Member) (*models.TurnRecord, error) {
	if len(members) == 0 {
		return nil, apperr.ErrEmptyGroup
	}
	m := members[group.CurrentTurnIndex%int64(len(members))]
	return &models.TurnRecord{
		ID:              uuid.New().String(),
		GroupID:         group.ID,
		AccountID:       group.AccountID,
		MemberID:        m.ID,
		TurnNumber:      group.CurrentTurnIndex + 1,
		Amount:          group.ContributionAmount * int64(len(members)),
		BeneficiaryName: m.Name,
		Date:            time.Now().UTC(),
	}, nil
}

func TestAdvanceTurnConcurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, group := seedGroup(t, store, "A", "B", "C", "D")

	const calls = 20
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.AdvanceTurn(ctx, group.ID, nextTurn); err != nil {
				t.Errorf("AdvanceTurn failed: %v", err)
			}
		}()
	}
	wg.Wait()

	turns, err := store.ListTurns(ctx, group.ID)
	if err != nil {
		t.Fatalf("ListTurns failed: %v", err)
	}
	if len(turns) != calls {
		t.Fatalf("Expected %d turns, got %d", calls, len(turns))
	}
	for i, rec := range turns {
		if rec.TurnNumber != int64(i+1) {
			t.Errorf("Expected turn %d, got %d", i+1, rec.TurnNumber)
		}
		if rec.Amount != 20000 {
			t.Errorf("Expected amount 20000, got %d", rec.Amount)
		}
	}
}

func TestDeleteMemberRenumbers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, group := seedGroup(t, store, "A", "B", "C", "D")

	members, _ := store.ListMembers(ctx, group.ID)
	if err := store.DeleteMember(ctx, group.ID, members[0].ID); err != nil {
		t.Fatalf("DeleteMember failed: %v", err)
	}
	got, _ := store.ListMembers(ctx, group.ID)
	want := []string{"B", "C", "D"}
	for i, m := range got {
		if m.Name != want[i] || m.Order != i+1 {
			t.Errorf("Position %d: got %s at order %d", i, m.Name, m.Order)
		}
	}
}

func TestValidatePaymentOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	account, _ := seedGroup(t, store)

	payment := models.NewPayment(account.ID, 700, "ref", time.Now().UTC())
	if err := store.CreatePayment(ctx, payment); err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	var extended int
	validate := func(p *models.Payment, sub *models.Subscription) error {
		if p.Validated {
			return nil
		}
		extended++
		now := time.Now().UTC()
		p.Validated = true
		p.ValidatedAt = &now
		expires := sub.ExpiresAt.AddDate(0, 0, 30)
		sub.ExpiresAt = &expires
		return nil
	}
	for i := 0; i < 2; i++ {
		if _, _, err := store.ValidatePayment(ctx, payment.ID, validate); err != nil {
			t.Fatalf("ValidatePayment failed: %v", err)
		}
	}
	if extended != 1 {
		t.Errorf("Expected one extension, got %d", extended)
	}

	if _, _, err := store.ValidatePayment(ctx, uuid.New().String(), validate); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
