package service

import (
	"time"

	"github.com/mmynk/tontine/internal/access"
	"github.com/mmynk/tontine/internal/api"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/realtime"
)

func toAccount(a *models.Account) *api.Account {
	if a == nil {
		return nil
	}
	return &api.Account{
		ID:        a.ID,
		Phone:     a.Phone,
		Role:      string(a.Role),
		CreatedAt: a.CreatedAt,
	}
}

func toSubscription(sub *models.Subscription, now time.Time) *api.Subscription {
	if sub == nil {
		return nil
	}
	return &api.Subscription{
		AccountID: sub.AccountID,
		Status:    string(sub.Status),
		Active:    sub.Active,
		ExpiresAt: sub.ExpiresAt,
		Expired:   sub.Expired(now),
	}
}

func toAccess(d access.Decision) *api.Access {
	screens := access.Screens(d)
	out := &api.Access{
		Outcome:       string(d.Outcome),
		Screens:       make([]string, len(screens)),
		DefaultScreen: string(access.DefaultScreen(d)),
	}
	for i, s := range screens {
		out.Screens[i] = string(s)
	}
	return out
}

func toGroup(g *models.Group) *api.Group {
	if g == nil {
		return nil
	}
	return &api.Group{
		ID:                 g.ID,
		Name:               g.Name,
		ContributionAmount: g.ContributionAmount,
		CurrentTurnIndex:   g.CurrentTurnIndex,
		CycleStartDate:     g.CycleStartDate,
		NextTurnDate:       g.NextTurnDate,
		CreatedAt:          g.CreatedAt,
	}
}

func toMember(m *models.Member) *api.Member {
	if m == nil {
		return nil
	}
	return &api.Member{
		ID:    m.ID,
		Name:  m.Name,
		Phone: m.Phone,
		Order: int64(m.Order),
	}
}

func toMembers(members []*models.Member) []*api.Member {
	out := make([]*api.Member, len(members))
	for i, m := range members {
		out[i] = toMember(m)
	}
	return out
}

func toTurn(t *models.TurnRecord) *api.Turn {
	return &api.Turn{
		ID:              t.ID,
		MemberID:        t.MemberID,
		BeneficiaryName: t.BeneficiaryName,
		TurnNumber:      t.TurnNumber,
		Amount:          t.Amount,
		Date:            t.Date,
	}
}

func toTurns(turns []*models.TurnRecord) []*api.Turn {
	out := make([]*api.Turn, len(turns))
	for i, t := range turns {
		out[i] = toTurn(t)
	}
	return out
}

func toPayment(p *models.Payment) *api.Payment {
	return &api.Payment{
		ID:          p.ID,
		AccountID:   p.AccountID,
		Amount:      p.Amount,
		Reference:   p.Reference,
		SubmittedAt: p.SubmittedAt,
		Validated:   p.Validated,
		Pending:     p.Pending(),
		ValidatedAt: p.ValidatedAt,
	}
}

func toPayments(payments []*models.Payment) []*api.Payment {
	out := make([]*api.Payment, len(payments))
	for i, p := range payments {
		out[i] = toPayment(p)
	}
	return out
}

func toAlert(a *models.PaymentAlert) *api.Alert {
	return &api.Alert{
		ID:      a.ID,
		Message: a.Message,
		Seen:    a.Seen,
		SentAt:  a.SentAt,
	}
}

// EventMessage converts a realtime event to its wire form, with the entities
// the receiver must refresh.
func EventMessage(ev realtime.Event, now time.Time) *api.Event {
	out := &api.Event{
		ID:         ev.ID,
		Type:       string(ev.Type),
		AccountID:  ev.AccountID,
		At:         ev.At,
		PaymentID:  ev.PaymentID,
		AlertID:    ev.AlertID,
		Message:    ev.Message,
		GroupID:    ev.GroupID,
		TurnNumber: ev.TurnNumber,
	}
	if ev.Subscription != nil {
		out.Subscription = toSubscription(ev.Subscription.Subscription(ev.AccountID), now)
	}
	entities := realtime.Invalidates(ev.Type)
	out.Invalidates = make([]string, len(entities))
	for i, e := range entities {
		out.Invalidates[i] = string(e)
	}
	return out
}
