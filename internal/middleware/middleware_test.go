package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mmynk/tontine/internal/api"
	"github.com/mmynk/tontine/internal/api/apiconnect"
	"github.com/mmynk/tontine/internal/auth"
	"github.com/mmynk/tontine/internal/metrics"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/storage/sqlite"
)

type testEnv struct {
	store   *sqlite.SQLiteStore
	jwt     *auth.JWTManager
	metrics *metrics.Metrics
	group   *connect.Client[api.GetGroupRequest, api.GetGroupResponse]
	login   *connect.Client[api.LoginRequest, api.LoginResponse]
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	env := &testEnv{
		store:   store,
		jwt:     auth.NewJWTManager("test-secret", time.Hour),
		metrics: metrics.New(prometheus.NewRegistry()),
	}

	interceptors := connect.WithInterceptors(
		RequireAuth(NewSessions(env.jwt, store), apiconnect.AuthServiceLoginProcedure),
		LoggingInterceptor(),
		MetricsInterceptor(env.metrics),
		RequireAccess(store, env.metrics, time.Now, "/"+apiconnect.TontineServiceName+"/"),
	)
	opts := []connect.HandlerOption{connect.WithCodec(api.Codec), interceptors}

	mux := http.NewServeMux()
	mux.Handle(apiconnect.TontineServiceGetGroupProcedure, connect.NewUnaryHandler(
		apiconnect.TontineServiceGetGroupProcedure,
		func(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
			return connect.NewResponse(&api.GetGroupResponse{Group: &api.Group{ID: GetAccountID(ctx)}}), nil
		},
		opts...,
	))
	mux.Handle(apiconnect.AuthServiceLoginProcedure, connect.NewUnaryHandler(
		apiconnect.AuthServiceLoginProcedure,
		func(ctx context.Context, req *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error) {
			return connect.NewResponse(&api.LoginResponse{Token: "public"}), nil
		},
		opts...,
	))

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	env.group = connect.NewClient[api.GetGroupRequest, api.GetGroupResponse](
		http.DefaultClient, server.URL+apiconnect.TontineServiceGetGroupProcedure, connect.WithCodec(api.Codec))
	env.login = connect.NewClient[api.LoginRequest, api.LoginResponse](
		http.DefaultClient, server.URL+apiconnect.AuthServiceLoginProcedure, connect.WithCodec(api.Codec))
	return env
}

func (e *testEnv) account(t *testing.T, phone string, expiresAt time.Time, status models.SubscriptionStatus) (*models.Account, string) {
	t.Helper()
	account := models.NewAccount(phone, "hash")
	sub := models.NewSubscription(account.ID, &expiresAt, time.Now())
	sub.Status = status
	if err := e.store.CreateAccount(context.Background(), account, sub, nil); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	token, err := e.jwt.Generate(account)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return account, token
}

func call(c *connect.Client[api.GetGroupRequest, api.GetGroupResponse], token string) (*connect.Response[api.GetGroupResponse], error) {
	req := connect.NewRequest(&api.GetGroupRequest{})
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	return c.CallUnary(context.Background(), req)
}

func TestRequireAuth(t *testing.T) {
	env := setupTestServer(t)
	account, token := env.account(t, "0101", time.Now().Add(24*time.Hour), models.StatusActive)

	t.Run("valid token", func(t *testing.T) {
		resp, err := call(env.group, token)
		if err != nil {
			t.Fatalf("call failed: %v", err)
		}
		if resp.Msg.Group.ID != account.ID {
			t.Errorf("expected account %s in context, got %s", account.ID, resp.Msg.Group.ID)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := call(env.group, "")
		if connect.CodeOf(err) != connect.CodeUnauthenticated {
			t.Errorf("expected Unauthenticated, got %v", err)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		req := connect.NewRequest(&api.GetGroupRequest{})
		req.Header().Set("Authorization", "Token "+token)
		_, err := env.group.CallUnary(context.Background(), req)
		if connect.CodeOf(err) != connect.CodeUnauthenticated {
			t.Errorf("expected Unauthenticated, got %v", err)
		}
	})

	t.Run("public procedure", func(t *testing.T) {
		resp, err := env.login.CallUnary(context.Background(), connect.NewRequest(&api.LoginRequest{}))
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if resp.Msg.Token != "public" {
			t.Errorf("unexpected response: %+v", resp.Msg)
		}
	})

	t.Run("revoked session", func(t *testing.T) {
		if _, err := env.store.BumpSessionVersion(context.Background(), account.ID); err != nil {
			t.Fatalf("BumpSessionVersion failed: %v", err)
		}
		_, err := call(env.group, token)
		if connect.CodeOf(err) != connect.CodeUnauthenticated {
			t.Errorf("expected revoked token, got %v", err)
		}
	})
}

func TestRequireAccess(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		name    string
		expires time.Time
		status  models.SubscriptionStatus
		want    connect.Code
	}{
		{"granted", time.Now().Add(time.Hour), models.StatusActive, 0},
		{"expired", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), models.StatusActive, connect.CodeFailedPrecondition},
		{"blocked", time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC), models.StatusBlocked, connect.CodeFailedPrecondition},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, token := env.account(t, "02"+string(rune('0'+i)), tt.expires, tt.status)
			_, err := call(env.group, token)
			if tt.want == 0 {
				if err != nil {
					t.Errorf("expected access, got %v", err)
				}
				return
			}
			if connect.CodeOf(err) != tt.want {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if got := testutil.ToFloat64(env.metrics.AccessDecisions.WithLabelValues("denied_expired")); got != 1 {
		t.Errorf("expected 1 denied_expired decision, got %v", got)
	}
	if got := testutil.ToFloat64(env.metrics.RPCRequests.WithLabelValues(apiconnect.TontineServiceGetGroupProcedure, "ok")); got != 1 {
		t.Errorf("expected 1 ok request, got %v", got)
	}
}
