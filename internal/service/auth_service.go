package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/tontine/internal/access"
	"github.com/mmynk/tontine/internal/accounts"
	"github.com/mmynk/tontine/internal/api"
	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/auth"
	"github.com/mmynk/tontine/internal/ledger"
	"github.com/mmynk/tontine/internal/middleware"
)

// AuthService implements the AuthService RPC interface.
type AuthService struct {
	accounts *accounts.Service
	ledger   *ledger.Ledger
}

// NewAuthService creates a new authentication service.
func NewAuthService(accounts *accounts.Service, ledger *ledger.Ledger) *AuthService {
	return &AuthService{
		accounts: accounts,
		ledger:   ledger,
	}
}

// Register creates a new account with its trial subscription and default group.
func (s *AuthService) Register(ctx context.Context, req *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error) {
	slog.Info("Register request", "phone", req.Msg.Phone)

	session, err := s.accounts.Register(ctx, req.Msg.Phone, req.Msg.Pin)
	if err != nil {
		slog.Warn("Registration failed", "phone", req.Msg.Phone, "error", err)
		if errors.Is(err, apperr.ErrConflict) {
			return nil, connect.NewError(connect.CodeAlreadyExists, err)
		}
		return nil, apperr.ToConnect(err)
	}

	slog.Info("Account registered successfully", "account_id", session.Account.ID)
	return connect.NewResponse(&api.RegisterResponse{
		Account: toAccount(session.Account),
		Token:   session.Token,
	}), nil
}

// Login authenticates a phone and PIN and returns a JWT token.
func (s *AuthService) Login(ctx context.Context, req *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error) {
	slog.Info("Login request", "phone", req.Msg.Phone)

	if req.Msg.Phone == "" || req.Msg.Pin == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}

	session, err := s.accounts.Login(ctx, req.Msg.Phone, req.Msg.Pin)
	if err != nil {
		slog.Warn("Login failed", "phone", req.Msg.Phone, "error", err)
		if auth.IsUnauthenticated(err) {
			return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidCredentials)
		}
		return nil, apperr.ToConnect(err)
	}

	slog.Info("Account logged in successfully", "account_id", session.Account.ID)
	return connect.NewResponse(&api.LoginResponse{
		Account: toAccount(session.Account),
		Token:   session.Token,
	}), nil
}

// Logout is acknowledged only: tokens are stateless and the client discards
// its own. Revocation of every session goes through the session version.
func (s *AuthService) Logout(ctx context.Context, req *connect.Request[api.LogoutRequest]) (*connect.Response[api.LogoutResponse], error) {
	slog.Info("Logout request", "account_id", middleware.GetAccountID(ctx))
	return connect.NewResponse(&api.LogoutResponse{}), nil
}

// GetCurrentAccount returns the caller's account, subscription and access decision.
func (s *AuthService) GetCurrentAccount(ctx context.Context, req *connect.Request[api.GetCurrentAccountRequest]) (*connect.Response[api.GetCurrentAccountResponse], error) {
	account := middleware.GetAccount(ctx)
	if account == nil {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	sub, err := s.ledger.Snapshot(ctx, account.ID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		slog.Error("GetCurrentAccount failed", "account_id", account.ID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	now := s.ledger.Now()

	return connect.NewResponse(&api.GetCurrentAccountResponse{
		Account:      toAccount(account),
		Subscription: toSubscription(sub, now),
		Access:       toAccess(access.Compute(sub, access.Signals{}, now)),
	}), nil
}
