package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/tontine/internal/accounts"
	"github.com/mmynk/tontine/internal/api"
	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/auth"
	"github.com/mmynk/tontine/internal/ledger"
	"github.com/mmynk/tontine/internal/middleware"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/realtime"
)

// ErrFeedLagged ends a feed whose consumer fell behind. The client must
// reconnect, which resyncs its state.
var ErrFeedLagged = errors.New("event feed lagged, reconnect to resync")

// Feed streams realtime events of one account, or of every account for the
// administrator feed. The first event is always a sync event carrying the
// caller's current subscription.
type Feed struct {
	guard
	broker realtime.Broker
	ledger *ledger.Ledger
}

// NewFeed creates a feed over broker.
func NewFeed(broker realtime.Broker, ledger *ledger.Ledger, accounts *accounts.Service) *Feed {
	return &Feed{guard: guard{accounts: accounts}, broker: broker, ledger: ledger}
}

// Stream sends events to send until ctx is done, the handle closes or the
// account's session ends. ctx must carry the authenticated account.
func (f *Feed) Stream(ctx context.Context, all bool, send func(*api.Event) error) error {
	account := middleware.GetAccount(ctx)
	if account == nil {
		return connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	filter := realtime.ForAccount(account.ID)
	if all {
		if _, err := f.require(ctx, auth.ActionAdminFeed); err != nil {
			return err
		}
		filter = realtime.Filter{All: true}
	}

	// Open before reading the snapshot so no commit falls between the two.
	handle, err := f.broker.Open(ctx, filter)
	if err != nil {
		return apperr.ToConnect(err)
	}
	defer handle.Close()

	first := f.sync(ctx, account)
	if err := send(first); err != nil {
		return err
	}
	if first.Type == string(realtime.EventProfileDeleted) {
		return nil
	}
	slog.Info("Event feed opened", "account_id", account.ID, "all", all)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-handle.Events():
			if !ok {
				if errors.Is(handle.Err(), realtime.ErrLagged) {
					slog.Warn("Event feed lagged", "account_id", account.ID)
					return connect.NewError(connect.CodeResourceExhausted, ErrFeedLagged)
				}
				return connect.NewError(connect.CodeUnavailable, handle.Err())
			}
			if err := send(EventMessage(ev, f.ledger.Now())); err != nil {
				return err
			}
			if ends(ev, account) {
				slog.Info("Event feed closed by session end", "account_id", account.ID, "type", ev.Type)
				return nil
			}
		}
	}
}

func (f *Feed) sync(ctx context.Context, account *models.Account) *api.Event {
	ev := realtime.NewEvent(realtime.EventSync, account.ID)
	sub, err := f.ledger.Snapshot(ctx, account.ID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		ev.Type = realtime.EventProfileDeleted
	case err != nil:
		slog.Warn("Failed to load sync snapshot", "account_id", account.ID, "error", err)
	default:
		ev.Subscription = realtime.SnapshotOf(sub)
	}
	return EventMessage(ev, f.ledger.Now())
}

// ends reports whether ev terminates the session the feed belongs to.
func ends(ev realtime.Event, account *models.Account) bool {
	if ev.AccountID != account.ID {
		return false
	}
	return ev.Type == realtime.EventProfileDeleted || ev.Type == realtime.EventSessionRevoked
}

// EventService implements the EventService RPC interface.
type EventService struct {
	feed *Feed
}

// NewEventService creates a new EventService.
func NewEventService(feed *Feed) *EventService {
	return &EventService{feed: feed}
}

// Subscribe streams realtime events to the caller.
func (s *EventService) Subscribe(ctx context.Context, req *connect.Request[api.SubscribeRequest], stream *connect.ServerStream[api.Event]) error {
	return s.feed.Stream(ctx, req.Msg.All, stream.Send)
}
