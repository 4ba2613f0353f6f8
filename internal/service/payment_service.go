package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/tontine/internal/access"
	"github.com/mmynk/tontine/internal/api"
	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/auth"
	"github.com/mmynk/tontine/internal/ledger"
	"github.com/mmynk/tontine/internal/middleware"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/storage"
)

// PaymentNotifier is told about every submitted payment.
type PaymentNotifier interface {
	PaymentSubmitted(ctx context.Context, payment *models.Payment)
}

// PaymentService implements the PaymentService RPC interface. Its procedures
// stay reachable while access is denied.
type PaymentService struct {
	store    storage.Store
	ledger   *ledger.Ledger
	notifier PaymentNotifier
}

// NewPaymentService creates a new PaymentService. notifier may be nil.
func NewPaymentService(store storage.Store, ledger *ledger.Ledger, notifier PaymentNotifier) *PaymentService {
	return &PaymentService{store: store, ledger: ledger, notifier: notifier}
}

func callerID(ctx context.Context) (string, error) {
	accountID := middleware.GetAccountID(ctx)
	if accountID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return accountID, nil
}

// SubmitPayment records a manual transfer reference for validation.
func (s *PaymentService) SubmitPayment(ctx context.Context, req *connect.Request[api.SubmitPaymentRequest]) (*connect.Response[api.SubmitPaymentResponse], error) {
	accountID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("SubmitPayment request received", "account_id", accountID, "reference", req.Msg.Reference)

	payment, err := s.ledger.Submit(ctx, accountID, req.Msg.Reference)
	if err != nil {
		slog.Error("SubmitPayment failed", "account_id", accountID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	if s.notifier != nil {
		s.notifier.PaymentSubmitted(ctx, payment)
	}

	slog.Info("Payment submitted", "payment_id", payment.ID, "amount", payment.Amount)
	return connect.NewResponse(&api.SubmitPaymentResponse{Payment: toPayment(payment)}), nil
}

// ListMyPayments returns the caller's payments, newest first.
func (s *PaymentService) ListMyPayments(ctx context.Context, req *connect.Request[api.ListMyPaymentsRequest]) (*connect.Response[api.ListMyPaymentsResponse], error) {
	accountID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.ListPaymentsByAccount(ctx, accountID)
	if err != nil {
		slog.Error("ListMyPayments failed", "account_id", accountID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	return connect.NewResponse(&api.ListMyPaymentsResponse{
		Payments: toPayments(payments),
		Price:    s.ledger.Config().Price,
	}), nil
}

// ListMyAlerts returns the caller's payment alerts, newest first.
func (s *PaymentService) ListMyAlerts(ctx context.Context, req *connect.Request[api.ListMyAlertsRequest]) (*connect.Response[api.ListMyAlertsResponse], error) {
	accountID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	alerts, err := s.store.ListAlerts(ctx, accountID)
	if err != nil {
		slog.Error("ListMyAlerts failed", "account_id", accountID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	out := make([]*api.Alert, len(alerts))
	for i, a := range alerts {
		out[i] = toAlert(a)
	}
	return connect.NewResponse(&api.ListMyAlertsResponse{Alerts: out}), nil
}

// AckAlert marks one of the caller's alerts as seen.
func (s *PaymentService) AckAlert(ctx context.Context, req *connect.Request[api.AckAlertRequest]) (*connect.Response[api.AckAlertResponse], error) {
	accountID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.AckAlert(ctx, accountID, req.Msg.AlertID); err != nil {
		slog.Error("AckAlert failed", "account_id", accountID, "alert_id", req.Msg.AlertID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	return connect.NewResponse(&api.AckAlertResponse{}), nil
}

// GetAccess returns the caller's subscription and access decision.
func (s *PaymentService) GetAccess(ctx context.Context, req *connect.Request[api.GetAccessRequest]) (*connect.Response[api.GetAccessResponse], error) {
	accountID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := s.ledger.Snapshot(ctx, accountID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		slog.Error("GetAccess failed", "account_id", accountID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	now := s.ledger.Now()
	return connect.NewResponse(&api.GetAccessResponse{
		Subscription: toSubscription(sub, now),
		Access:       toAccess(access.Compute(sub, access.Signals{}, now)),
	}), nil
}
