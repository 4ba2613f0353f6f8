package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/tontine/internal/accounts"
	"github.com/mmynk/tontine/internal/api"
	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/auth"
	"github.com/mmynk/tontine/internal/ledger"
	"github.com/mmynk/tontine/internal/middleware"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/storage"
)

// guard authorizes privileged calls against the role stored for the caller.
// A member attempting a privileged call loses every session.
type guard struct {
	accounts *accounts.Service
}

func (g guard) require(ctx context.Context, action auth.Action) (*models.Account, error) {
	account := middleware.GetAccount(ctx)
	if err := auth.Authorize(account, action); err != nil {
		if !accounts.IsPrivilegeEscalation(err) {
			return nil, apperr.ToConnect(err)
		}
		slog.Warn("Privilege escalation attempt, revoking sessions", "account_id", account.ID, "action", action)
		if rerr := g.accounts.RevokeSessions(ctx, account.ID); rerr != nil {
			slog.Error("Failed to revoke sessions", "account_id", account.ID, "error", rerr)
		}
		return nil, connect.NewError(connect.CodePermissionDenied, err)
	}
	return account, nil
}

// AdminService implements the AdminService RPC interface.
type AdminService struct {
	guard
	store  storage.Store
	ledger *ledger.Ledger
	loc    *time.Location
}

// NewAdminService creates a new AdminService. Monthly revenue is computed on
// calendar months in loc.
func NewAdminService(store storage.Store, ledger *ledger.Ledger, accounts *accounts.Service, loc *time.Location) *AdminService {
	if loc == nil {
		loc = time.UTC
	}
	return &AdminService{
		guard:  guard{accounts: accounts},
		store:  store,
		ledger: ledger,
		loc:    loc,
	}
}

// ListAccounts returns every account with its subscription.
func (s *AdminService) ListAccounts(ctx context.Context, req *connect.Request[api.ListAccountsRequest]) (*connect.Response[api.ListAccountsResponse], error) {
	if _, err := s.require(ctx, auth.ActionListAccounts); err != nil {
		return nil, err
	}

	list, err := s.store.ListAccounts(ctx)
	if err != nil {
		slog.Error("ListAccounts failed", "error", err)
		return nil, apperr.ToConnect(err)
	}
	subs, err := s.subscriptions(ctx)
	if err != nil {
		return nil, err
	}

	now := s.ledger.Now()
	out := make([]*api.AccountSummary, len(list))
	for i, a := range list {
		out[i] = &api.AccountSummary{
			Account:      toAccount(a),
			Subscription: toSubscription(subs[a.ID], now),
		}
	}
	slog.Info("ListAccounts successful", "count", len(out))
	return connect.NewResponse(&api.ListAccountsResponse{Accounts: out}), nil
}

func (s *AdminService) subscriptions(ctx context.Context) (map[string]*models.Subscription, error) {
	subs, err := s.store.ListSubscriptions(ctx)
	if err != nil {
		slog.Error("ListSubscriptions failed", "error", err)
		return nil, apperr.ToConnect(err)
	}
	byAccount := make(map[string]*models.Subscription, len(subs))
	for _, sub := range subs {
		byAccount[sub.AccountID] = sub
	}
	return byAccount, nil
}

// GetAccountDetail returns an account with its group, members, turns and payments.
func (s *AdminService) GetAccountDetail(ctx context.Context, req *connect.Request[api.GetAccountDetailRequest]) (*connect.Response[api.GetAccountDetailResponse], error) {
	if _, err := s.require(ctx, auth.ActionViewAccount); err != nil {
		return nil, err
	}
	accountID := req.Msg.AccountID

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		slog.Error("GetAccountDetail failed", "account_id", accountID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	resp := &api.GetAccountDetailResponse{Account: toAccount(account)}

	sub, err := s.store.GetSubscription(ctx, accountID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ToConnect(err)
	}
	resp.Subscription = toSubscription(sub, s.ledger.Now())

	group, err := s.store.GetGroupByAccount(ctx, accountID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		resp.Members, resp.Turns = []*api.Member{}, []*api.Turn{}
	case err != nil:
		return nil, apperr.ToConnect(err)
	default:
		resp.Group = toGroup(group)
		members, err := s.store.ListMembers(ctx, group.ID)
		if err != nil {
			return nil, apperr.ToConnect(err)
		}
		turns, err := s.store.ListTurns(ctx, group.ID)
		if err != nil {
			return nil, apperr.ToConnect(err)
		}
		resp.Members, resp.Turns = toMembers(members), toTurns(turns)
	}

	payments, err := s.store.ListPaymentsByAccount(ctx, accountID)
	if err != nil {
		return nil, apperr.ToConnect(err)
	}
	resp.Payments = toPayments(payments)

	return connect.NewResponse(resp), nil
}

// ListPayments returns every payment, optionally only pending ones.
func (s *AdminService) ListPayments(ctx context.Context, req *connect.Request[api.ListPaymentsRequest]) (*connect.Response[api.ListPaymentsResponse], error) {
	if _, err := s.require(ctx, auth.ActionListPayments); err != nil {
		return nil, err
	}
	payments, err := s.store.ListPayments(ctx, req.Msg.PendingOnly)
	if err != nil {
		slog.Error("ListPayments failed", "error", err)
		return nil, apperr.ToConnect(err)
	}
	return connect.NewResponse(&api.ListPaymentsResponse{Payments: toPayments(payments)}), nil
}

// GetStats returns the console counters.
func (s *AdminService) GetStats(ctx context.Context, req *connect.Request[api.GetStatsRequest]) (*connect.Response[api.GetStatsResponse], error) {
	if _, err := s.require(ctx, auth.ActionViewStats); err != nil {
		return nil, err
	}

	list, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, apperr.ToConnect(err)
	}
	subs, err := s.subscriptions(ctx)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.ListPayments(ctx, false)
	if err != nil {
		return nil, apperr.ToConnect(err)
	}

	return connect.NewResponse(Stats(list, subs, payments, s.ledger.Now(), s.loc)), nil
}

// Stats counts member accounts by subscription state and sums the validated
// payments of the current calendar month in loc.
func Stats(list []*models.Account, subs map[string]*models.Subscription, payments []*models.Payment, now time.Time, loc *time.Location) *api.GetStatsResponse {
	stats := &api.GetStatsResponse{}
	for _, a := range list {
		if a.IsAdmin() {
			continue
		}
		stats.Accounts++
		sub := subs[a.ID]
		switch {
		case sub == nil:
		case sub.Blocked():
			stats.Blocked++
		case sub.Expired(now):
			stats.Expired++
		default:
			stats.Active++
		}
	}

	local := now.In(loc)
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	for _, p := range payments {
		if p.Pending() {
			stats.PendingPayments++
			continue
		}
		if p.ValidatedAt != nil && !p.ValidatedAt.Before(monthStart) {
			stats.MonthlyRevenue += p.Amount
		}
	}
	return stats
}

// SetStatus blocks or unblocks an account.
func (s *AdminService) SetStatus(ctx context.Context, req *connect.Request[api.SetStatusRequest]) (*connect.Response[api.SetStatusResponse], error) {
	admin, err := s.require(ctx, auth.ActionSetStatus)
	if err != nil {
		return nil, err
	}
	sub, err := s.ledger.SetStatus(ctx, req.Msg.AccountID, models.SubscriptionStatus(req.Msg.Status))
	if err != nil {
		slog.Error("SetStatus failed", "account_id", req.Msg.AccountID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	slog.Info("Subscription status set", "account_id", req.Msg.AccountID, "status", sub.Status, "admin_id", admin.ID)
	return connect.NewResponse(&api.SetStatusResponse{Subscription: toSubscription(sub, s.ledger.Now())}), nil
}

// Extend grants days of access without a payment.
func (s *AdminService) Extend(ctx context.Context, req *connect.Request[api.ExtendRequest]) (*connect.Response[api.ExtendResponse], error) {
	admin, err := s.require(ctx, auth.ActionExtend)
	if err != nil {
		return nil, err
	}
	sub, err := s.ledger.Extend(ctx, req.Msg.AccountID, req.Msg.Days)
	if err != nil {
		slog.Error("Extend failed", "account_id", req.Msg.AccountID, "days", req.Msg.Days, "error", err)
		return nil, apperr.ToConnect(err)
	}
	slog.Info("Subscription extended", "account_id", req.Msg.AccountID, "days", req.Msg.Days, "expires_at", sub.ExpiresAt, "admin_id", admin.ID)
	return connect.NewResponse(&api.ExtendResponse{Subscription: toSubscription(sub, s.ledger.Now())}), nil
}

// ValidatePayment validates a payment and extends its account.
func (s *AdminService) ValidatePayment(ctx context.Context, req *connect.Request[api.ValidatePaymentRequest]) (*connect.Response[api.ValidatePaymentResponse], error) {
	admin, err := s.require(ctx, auth.ActionValidate)
	if err != nil {
		return nil, err
	}
	payment, sub, changed, err := s.ledger.Validate(ctx, req.Msg.PaymentID, req.Msg.AccountID)
	if err != nil {
		slog.Error("ValidatePayment failed", "payment_id", req.Msg.PaymentID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	slog.Info("Payment validated", "payment_id", payment.ID, "changed", changed, "admin_id", admin.ID)
	return connect.NewResponse(&api.ValidatePaymentResponse{
		Payment:      toPayment(payment),
		Subscription: toSubscription(sub, s.ledger.Now()),
		Changed:      changed,
	}), nil
}

// SendAlert nudges an account holder to pay.
func (s *AdminService) SendAlert(ctx context.Context, req *connect.Request[api.SendAlertRequest]) (*connect.Response[api.SendAlertResponse], error) {
	if _, err := s.require(ctx, auth.ActionSendAlert); err != nil {
		return nil, err
	}
	alert, err := s.ledger.SendAlert(ctx, req.Msg.AccountID, req.Msg.Message)
	if err != nil {
		slog.Error("SendAlert failed", "account_id", req.Msg.AccountID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	return connect.NewResponse(&api.SendAlertResponse{Alert: toAlert(alert)}), nil
}

// DeleteAccount removes an account and everything it owns.
func (s *AdminService) DeleteAccount(ctx context.Context, req *connect.Request[api.DeleteAccountRequest]) (*connect.Response[api.DeleteAccountResponse], error) {
	admin, err := s.require(ctx, auth.ActionDeleteAccount)
	if err != nil {
		return nil, err
	}
	if req.Msg.AccountID == admin.ID {
		return nil, connect.NewError(connect.CodeInvalidArgument, apperr.Validation("administrators cannot delete their own account"))
	}
	if err := s.accounts.Delete(ctx, req.Msg.AccountID); err != nil {
		slog.Error("DeleteAccount failed", "account_id", req.Msg.AccountID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	slog.Info("Account deleted", "account_id", req.Msg.AccountID, "admin_id", admin.ID)
	return connect.NewResponse(&api.DeleteAccountResponse{}), nil
}
