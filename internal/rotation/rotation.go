// Package rotation implements the tour rotation of a tontine group: whose
// turn it is, advancing the turn exactly once per call, and keeping the
// member order dense.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/lock"
	"github.com/mmynk/tontine/internal/metrics"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/realtime"
	"github.com/mmynk/tontine/internal/storage"
)

// maxAttempts bounds the recompute-and-retry loop on lost races.
const maxAttempts = 5

// NextTurn computes the record of the next turn from a consistent snapshot.
// members must be ordered by Order ascending.
func NextTurn(group *models.Group, members []*models.Member, now time.Time) (*models.TurnRecord, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: group %s", apperr.ErrEmptyGroup, group.ID)
	}
	beneficiary := Beneficiary(group, members)
	return &models.TurnRecord{
		ID:              uuid.New().String(),
		GroupID:         group.ID,
		AccountID:       group.AccountID,
		MemberID:        beneficiary.ID,
		TurnNumber:      group.CurrentTurnIndex + 1,
		Amount:          Payout(group, len(members)),
		BeneficiaryName: beneficiary.Name,
		Date:            now,
	}, nil
}

// Beneficiary returns the member whose turn is next, or nil without members.
func Beneficiary(group *models.Group, members []*models.Member) *models.Member {
	if len(members) == 0 {
		return nil
	}
	return members[group.CurrentTurnIndex%int64(len(members))]
}

// Payout is the pooled amount one beneficiary receives.
func Payout(group *models.Group, memberCount int) int64 {
	return group.ContributionAmount * int64(memberCount)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records committed turns.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTourHour sets the local hour at which a turn day starts.
func WithTourHour(hour int, loc *time.Location) Option {
	return func(e *Engine) {
		e.tourHour = hour
		if loc != nil {
			e.loc = loc
		}
	}
}

// Engine serializes group mutations and publishes their events.
type Engine struct {
	store   storage.Store
	locker  lock.Locker
	broker  realtime.Broker
	metrics *metrics.Metrics

	now      func() time.Time
	tourHour int
	loc      *time.Location
}

// NewEngine creates an Engine.
func NewEngine(store storage.Store, locker lock.Locker, broker realtime.Broker, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		locker:   locker,
		broker:   broker,
		now:      func() time.Time { return time.Now().UTC() },
		tourHour: 8,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AdvanceTurn pays out the current beneficiary and moves the index forward
// by one. On a lost race the turn is recomputed from fresh state; the index
// never moves by more than one per call.
func (e *Engine) AdvanceTurn(ctx context.Context, groupID string) (*models.TurnRecord, error) {
	unlock, err := e.locker.Lock(ctx, lock.GroupKey(groupID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var record *models.TurnRecord
	for attempt := 1; ; attempt++ {
		record, err = e.store.AdvanceTurn(ctx, groupID, func(group *models.Group, members []*models.Member) (*models.TurnRecord, error) {
			return NextTurn(group, members, e.now().Truncate(time.Second))
		})
		if err == nil {
			break
		}
		if !errors.Is(err, apperr.ErrConflict) || attempt == maxAttempts {
			return nil, err
		}
		slog.Warn("Turn advance lost a race, recomputing", "group_id", groupID, "attempt", attempt)
	}

	e.metrics.TurnAdvanced()
	ev := realtime.NewEvent(realtime.EventTurnAdvanced, record.AccountID)
	ev.GroupID = groupID
	ev.TurnNumber = record.TurnNumber
	e.publish(ctx, ev)
	return record, nil
}

// AddMember appends a member to the group.
func (e *Engine) AddMember(ctx context.Context, group *models.Group, name, phone string) (*models.Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("member name is required")
	}

	unlock, err := e.locker.Lock(ctx, lock.GroupKey(group.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	member := models.NewMember(group, name, strings.TrimSpace(phone))
	if err := e.store.AddMember(ctx, member); err != nil {
		return nil, err
	}
	e.membersChanged(ctx, group)
	return member, nil
}

// UpdateMember renames a member or changes its phone. Order is untouched.
func (e *Engine) UpdateMember(ctx context.Context, group *models.Group, memberID, name, phone string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Validation("member name is required")
	}
	member := &models.Member{ID: memberID, GroupID: group.ID, Name: name, Phone: strings.TrimSpace(phone)}
	if err := e.store.UpdateMember(ctx, member); err != nil {
		return err
	}
	e.membersChanged(ctx, group)
	return nil
}

// DeleteMember removes a member and renumbers the rest densely.
func (e *Engine) DeleteMember(ctx context.Context, group *models.Group, memberID string) error {
	unlock, err := e.locker.Lock(ctx, lock.GroupKey(group.ID))
	if err != nil {
		return err
	}
	defer unlock()

	if err := e.store.DeleteMember(ctx, group.ID, memberID); err != nil {
		return err
	}
	e.membersChanged(ctx, group)
	return nil
}

// Settings are the editable fields of a group.
type Settings struct {
	Name               string
	ContributionAmount int64
	CycleStartDate     *time.Time
	NextTurnDate       *time.Time
}

// UpdateSettings writes the group settings. The turn index is not editable.
func (e *Engine) UpdateSettings(ctx context.Context, groupID string, s Settings) (*models.Group, error) {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return nil, apperr.Validation("group name is required")
	}
	if s.ContributionAmount <= 0 {
		return nil, apperr.Validation("contribution amount must be positive")
	}

	unlock, err := e.locker.Lock(ctx, lock.GroupKey(groupID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	group, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	group.Name = s.Name
	group.ContributionAmount = s.ContributionAmount
	group.CycleStartDate = s.CycleStartDate
	group.NextTurnDate = s.NextTurnDate
	if err := e.store.UpdateGroupSettings(ctx, group); err != nil {
		return nil, err
	}

	ev := realtime.NewEvent(realtime.EventGroupUpdated, group.AccountID)
	ev.GroupID = group.ID
	e.publish(ctx, ev)
	return group, nil
}

func (e *Engine) membersChanged(ctx context.Context, group *models.Group) {
	ev := realtime.NewEvent(realtime.EventMembersChanged, group.AccountID)
	ev.GroupID = group.ID
	e.publish(ctx, ev)
}

// publish is best-effort: the mutation is already committed and clients
// resync on reconnect. It ignores cancellation of ctx.
func (e *Engine) publish(ctx context.Context, ev realtime.Event) {
	if err := e.broker.Publish(context.WithoutCancel(ctx), ev); err != nil {
		slog.Warn("Failed to publish event", "type", ev.Type, "account_id", ev.AccountID, "error", err)
	}
}
