package middleware

import (
	"context"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/tontine/internal/auth"
	"github.com/mmynk/tontine/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// AccountKey is the context key for storing the authenticated account.
const AccountKey contextKey = "account"

// WithAccount returns a context carrying the authenticated account.
func WithAccount(ctx context.Context, account *models.Account) context.Context {
	return context.WithValue(ctx, AccountKey, account)
}

// GetAccount extracts the authenticated account from the context.
// Returns nil if not found.
func GetAccount(ctx context.Context) *models.Account {
	account, _ := ctx.Value(AccountKey).(*models.Account)
	return account
}

// GetAccountID extracts the account ID from the context.
// Returns empty string if not found.
func GetAccountID(ctx context.Context) string {
	if account := GetAccount(ctx); account != nil {
		return account.ID
	}
	return ""
}

// AccountLookup loads the account a token was issued to.
type AccountLookup interface {
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
}

// Sessions verifies bearer tokens against the stored account, so a bumped
// session version or a deleted account revokes the token immediately.
type Sessions struct {
	jwt      *auth.JWTManager
	accounts AccountLookup
}

// NewSessions creates a session verifier.
func NewSessions(jwtManager *auth.JWTManager, accounts AccountLookup) *Sessions {
	return &Sessions{jwt: jwtManager, accounts: accounts}
}

// Verify validates a raw token and returns the freshly loaded account.
func (s *Sessions) Verify(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, auth.ErrMissingToken
	}
	claims, err := s.jwt.Validate(token)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.GetAccount(ctx, claims.AccountID)
	if err != nil {
		return nil, auth.ErrRevokedToken
	}
	if err := auth.CheckSession(claims, account); err != nil {
		return nil, err
	}
	return account, nil
}

// VerifyHeader validates an "Authorization: Bearer <token>" header value.
func (s *Sessions) VerifyHeader(ctx context.Context, header string) (*models.Account, error) {
	if header == "" {
		return nil, auth.ErrMissingToken
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, auth.ErrInvalidToken
	}
	return s.Verify(ctx, parts[1])
}

type authInterceptor struct {
	sessions *Sessions
	public   map[string]bool
}

// RequireAuth returns an interceptor that validates bearer tokens on every
// procedure except the public ones, and adds the account to the context.
// It covers unary and server-streaming handlers.
func RequireAuth(sessions *Sessions, public ...string) connect.Interceptor {
	i := &authInterceptor{sessions: sessions, public: make(map[string]bool, len(public))}
	for _, p := range public {
		i.public[p] = true
	}
	return i
}

func (i *authInterceptor) authenticate(ctx context.Context, procedure, header string) (context.Context, error) {
	if i.public[procedure] {
		return ctx, nil
	}
	account, err := i.sessions.VerifyHeader(ctx, header)
	if err != nil {
		slog.Warn("RPC rejected", "procedure", procedure, "error", err)
		return nil, connect.NewError(connect.CodeUnauthenticated, err)
	}
	return WithAccount(ctx, account), nil
}

func (i *authInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		ctx, err := i.authenticate(ctx, req.Spec().Procedure, req.Header().Get("Authorization"))
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (i *authInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *authInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		ctx, err := i.authenticate(ctx, conn.Spec().Procedure, conn.RequestHeader().Get("Authorization"))
		if err != nil {
			return err
		}
		return next(ctx, conn)
	}
}
