package rotation

import (
	"context"
	"time"

	"github.com/mmynk/tontine/internal/models"
)

// TurnTime is the moment the turn of nextTurnDate starts: that calendar day
// in loc at hour:00.
func TurnTime(nextTurnDate time.Time, hour int, loc *time.Location) time.Time {
	d := nextTurnDate.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, loc)
}

// IsTurnDay reports whether the group's next turn time has been reached.
func IsTurnDay(group *models.Group, now time.Time, hour int, loc *time.Location) bool {
	if group.NextTurnDate == nil {
		return false
	}
	return !TurnTime(*group.NextTurnDate, hour, loc).After(now)
}

// Dashboard is the home screen summary of a group.
type Dashboard struct {
	Group           *models.Group
	Members         []*models.Member
	PayoutPerTurn   int64
	NextBeneficiary *models.Member
	NextTurnNumber  int64
	IsTurnDay       bool

	// NextTurnAt is nil when no next turn date is set.
	NextTurnAt       *time.Time
	SecondsUntilTurn int64
}

// Dashboard loads the group and computes its summary.
func (e *Engine) Dashboard(ctx context.Context, groupID string) (*Dashboard, error) {
	group, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	members, err := e.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return e.summarize(group, members, e.now()), nil
}

func (e *Engine) summarize(group *models.Group, members []*models.Member, now time.Time) *Dashboard {
	d := &Dashboard{
		Group:           group,
		Members:         members,
		PayoutPerTurn:   Payout(group, len(members)),
		NextBeneficiary: Beneficiary(group, members),
		NextTurnNumber:  group.CurrentTurnIndex + 1,
		IsTurnDay:       IsTurnDay(group, now, e.tourHour, e.loc),
	}
	if group.NextTurnDate != nil {
		at := TurnTime(*group.NextTurnDate, e.tourHour, e.loc).UTC()
		d.NextTurnAt = &at
		if remaining := at.Sub(now); remaining > 0 {
			d.SecondsUntilTurn = int64(remaining / time.Second)
		}
	}
	return d
}

// History is the turn ledger of a group.
type History struct {
	Turns            []*models.TurnRecord
	TotalDistributed int64
}

// History lists the turns of a group with the total paid out.
func (e *Engine) History(ctx context.Context, groupID string) (*History, error) {
	turns, err := e.store.ListTurns(ctx, groupID)
	if err != nil {
		return nil, err
	}
	h := &History{Turns: turns}
	for _, t := range turns {
		h.TotalDistributed += t.Amount
	}
	return h, nil
}
