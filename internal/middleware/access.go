package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/tontine/internal/access"
	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/metrics"
	"github.com/mmynk/tontine/internal/models"
)

// ErrAccessDenied is returned by gated procedures while the subscription is
// blocked or expired. Only payment procedures stay reachable.
var ErrAccessDenied = errors.New("access denied: subscription payment required")

// SubscriptionLookup loads the subscription an access decision reads.
type SubscriptionLookup interface {
	GetSubscription(ctx context.Context, accountID string) (*models.Subscription, error)
}

// RequireAccess returns an interceptor that enforces the access gate on the
// procedures under the given path prefixes. It must run after RequireAuth.
func RequireAccess(subs SubscriptionLookup, m *metrics.Metrics, now func() time.Time, prefixes ...string) connect.UnaryInterceptorFunc {
	gated := func(procedure string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(procedure, p) {
				return true
			}
		}
		return false
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if !gated(req.Spec().Procedure) {
				return next(ctx, req)
			}
			accountID := GetAccountID(ctx)
			if accountID == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, apperr.ErrUnauthenticated)
			}

			sub, err := subs.GetSubscription(ctx, accountID)
			if err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.ToConnect(err)
			}
			d := access.Compute(sub, access.Signals{}, now())
			m.AccessDecision(string(d.Outcome))
			switch {
			case d.Terminates():
				return nil, connect.NewError(connect.CodeUnauthenticated, fmt.Errorf("%w: profile deleted", apperr.ErrUnauthenticated))
			case d.Denied():
				return nil, connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf("%w (%s)", ErrAccessDenied, d.Outcome))
			}
			return next(ctx, req)
		}
	}
}
