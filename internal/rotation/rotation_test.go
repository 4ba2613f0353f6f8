package rotation

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/lock"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/realtime"
	"github.com/mmynk/tontine/internal/storage/sqlite"
)

type fixture struct {
	store  *sqlite.SQLiteStore
	broker *realtime.MemoryBroker
	engine *Engine
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	broker := realtime.NewMemoryBroker()
	t.Cleanup(func() {
		broker.Close()
		store.Close()
	})
	return &fixture{
		store:  store,
		broker: broker,
		engine: NewEngine(store, lock.NewLocal(), broker, opts...),
	}
}

func (f *fixture) group(t *testing.T, contribution int64, names ...string) *models.Group {
	t.Helper()
	ctx := context.Background()
	account := models.NewAccount(uuid.New().String(), "hash")
	group := models.NewGroup(account.ID, "Ma Tontine", contribution)
	if err := f.store.CreateAccount(ctx, account, models.NewSubscription(account.ID, nil, time.Now()), group); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	for _, name := range names {
		if _, err := f.engine.AddMember(ctx, group, name, ""); err != nil {
			t.Fatalf("AddMember failed: %v", err)
		}
	}
	return group
}

func TestNextTurn(t *testing.T) {
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	group := &models.Group{ID: "g", AccountID: "a", ContributionAmount: 5000}
	members := []*models.Member{
		{ID: "m1", Name: "Awa", Order: 1},
		{ID: "m2", Name: "Bintou", Order: 2},
		{ID: "m3", Name: "Chantal", Order: 3},
		{ID: "m4", Name: "Djeneba", Order: 4},
	}

	t.Run("first turn", func(t *testing.T) {
		rec, err := NextTurn(group, members, now)
		if err != nil {
			t.Fatalf("NextTurn failed: %v", err)
		}
		if rec.TurnNumber != 1 || rec.Amount != 20000 || rec.MemberID != "m1" || rec.BeneficiaryName != "Awa" {
			t.Errorf("Unexpected record: %+v", rec)
		}
	})

	t.Run("wraps around", func(t *testing.T) {
		g := *group
		g.CurrentTurnIndex = 5
		rec, _ := NextTurn(&g, members, now)
		if rec.MemberID != "m2" || rec.TurnNumber != 6 {
			t.Errorf("Expected m2 on turn 6, got %s on %d", rec.MemberID, rec.TurnNumber)
		}
	})

	t.Run("empty group", func(t *testing.T) {
		_, err := NextTurn(group, nil, now)
		if !errors.Is(err, apperr.ErrEmptyGroup) {
			t.Errorf("Expected ErrEmptyGroup, got %v", err)
		}
	})
}

func TestAdvanceTurnScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := f.group(t, 5000, "A", "B", "C", "D")
	members, _ := f.store.ListMembers(ctx, group.ID)

	rec, err := f.engine.AdvanceTurn(ctx, group.ID)
	if err != nil {
		t.Fatalf("AdvanceTurn failed: %v", err)
	}
	if rec.TurnNumber != 1 || rec.Amount != 20000 || rec.MemberID != members[0].ID {
		t.Errorf("Unexpected record: %+v", rec)
	}
	got, _ := f.store.GetGroup(ctx, group.ID)
	if got.CurrentTurnIndex != 1 {
		t.Errorf("Expected index 1, got %d", got.CurrentTurnIndex)
	}
}

func TestAdvanceTurnIsCyclic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := f.group(t, 1000, "A", "B", "C")
	members, _ := f.store.ListMembers(ctx, group.ID)

	for i := 0; i < 7; i++ {
		rec, err := f.engine.AdvanceTurn(ctx, group.ID)
		if err != nil {
			t.Fatalf("AdvanceTurn %d failed: %v", i, err)
		}
		want := members[i%len(members)]
		if rec.MemberID != want.ID {
			t.Errorf("Turn %d: expected %s, got %s", i+1, want.Name, rec.BeneficiaryName)
		}
		if rec.TurnNumber != int64(i+1) {
			t.Errorf("Expected turn number %d, got %d", i+1, rec.TurnNumber)
		}
	}
}

func TestAdvanceTurnEmptyGroup(t *testing.T) {
	f := newFixture(t)
	group := f.group(t, 1000)
	_, err := f.engine.AdvanceTurn(context.Background(), group.ID)
	if !errors.Is(err, apperr.ErrEmptyGroup) {
		t.Errorf("Expected ErrEmptyGroup, got %v", err)
	}
}

func TestAdvanceTurnConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := f.group(t, 2000, "A", "B", "C", "D", "E")

	const calls = 25
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.AdvanceTurn(ctx, group.ID); err != nil {
				t.Errorf("AdvanceTurn failed: %v", err)
			}
		}()
	}
	wg.Wait()

	turns, _ := f.store.ListTurns(ctx, group.ID)
	if len(turns) != calls {
		t.Fatalf("Expected %d turns, got %d", calls, len(turns))
	}
	seen := map[int64]bool{}
	for i, rec := range turns {
		if seen[rec.TurnNumber] {
			t.Errorf("Duplicate turn number %d", rec.TurnNumber)
		}
		seen[rec.TurnNumber] = true
		if rec.TurnNumber != int64(i+1) {
			t.Errorf("Skipped turn: expected %d, got %d", i+1, rec.TurnNumber)
		}
	}
}

func TestAdvanceTurnPublishesEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := f.group(t, 1000, "A")

	h, _ := f.broker.Open(ctx, realtime.ForAccount(group.AccountID))
	defer h.Close()

	if _, err := f.engine.AdvanceTurn(ctx, group.ID); err != nil {
		t.Fatalf("AdvanceTurn failed: %v", err)
	}
	select {
	case ev := <-h.Events():
		if ev.Type != realtime.EventTurnAdvanced || ev.TurnNumber != 1 {
			t.Errorf("Unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("No event received")
	}
}

func TestDeleteMemberKeepsOrderDense(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := f.group(t, 1000, "A", "B", "C", "D", "E")

	for k := 1; k <= 5; k++ {
		t.Run("", func(t *testing.T) {
			g := f.group(t, 1000, "A", "B", "C", "D", "E")
			members, _ := f.store.ListMembers(ctx, g.ID)
			if err := f.engine.DeleteMember(ctx, g, members[k-1].ID); err != nil {
				t.Fatalf("DeleteMember failed: %v", err)
			}
			got, _ := f.store.ListMembers(ctx, g.ID)
			var want []*models.Member
			want = append(want, members[:k-1]...)
			want = append(want, members[k:]...)
			if len(got) != len(want) {
				t.Fatalf("Expected %d members, got %d", len(want), len(got))
			}
			for i, m := range got {
				if m.ID != want[i].ID || m.Order != i+1 {
					t.Errorf("Position %d: got %s at order %d", i, m.Name, m.Order)
				}
			}
		})
	}

	if err := f.engine.DeleteMember(ctx, group, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemberValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := f.group(t, 1000)

	if _, err := f.engine.AddMember(ctx, group, "  ", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected ErrValidation for blank name, got %v", err)
	}
	m, err := f.engine.AddMember(ctx, group, " Awa ", " 0102 ")
	if err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if m.Name != "Awa" || m.Phone != "0102" || m.Order != 1 {
		t.Errorf("Unexpected member: %+v", m)
	}
	if err := f.engine.UpdateMember(ctx, group, m.ID, "", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected ErrValidation on update, got %v", err)
	}
}

func TestUpdateSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := f.group(t, 1000, "A")
	if _, err := f.engine.AdvanceTurn(ctx, group.ID); err != nil {
		t.Fatalf("AdvanceTurn failed: %v", err)
	}

	next := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	got, err := f.engine.UpdateSettings(ctx, group.ID, Settings{Name: "Famille", ContributionAmount: 2500, NextTurnDate: &next})
	if err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	if got.Name != "Famille" || got.ContributionAmount != 2500 || got.CurrentTurnIndex != 1 {
		t.Errorf("Unexpected group: %+v", got)
	}

	_, err = f.engine.UpdateSettings(ctx, group.ID, Settings{Name: "Famille", ContributionAmount: 0})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
}

type cancelingBroker struct {
	*realtime.MemoryBroker
	cancel context.CancelFunc
}

func (b *cancelingBroker) Publish(ctx context.Context, ev realtime.Event) error {
	b.cancel()
	return b.MemoryBroker.Publish(ctx, ev)
}

func TestAdvanceTurnPublishesAfterCancel(t *testing.T) {
	f := newFixture(t)
	group := f.group(t, 5000, "Awa")

	feed, err := f.broker.Open(context.Background(), realtime.ForAccount(group.AccountID))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer feed.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine := NewEngine(f.store, lock.NewLocal(), &cancelingBroker{MemoryBroker: f.broker, cancel: cancel})

	if _, err := engine.AdvanceTurn(ctx, group.ID); err != nil {
		t.Fatalf("AdvanceTurn failed: %v", err)
	}
	select {
	case ev := <-feed.Events():
		if ev.Type != realtime.EventTurnAdvanced {
			t.Errorf("Unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected turn.advanced after the request was cancelled")
	}
}
