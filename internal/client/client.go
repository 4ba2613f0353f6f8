// Package client is a Go client session for the tontine API.
//
// A Session holds the signed-in account, keeps one realtime feed open for it
// and re-evaluates the access decision on every pushed change. Switching
// accounts closes the previous feed before the next one opens, so events of
// one account are never delivered while another is signed in.
package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/tontine/internal/access"
	"github.com/mmynk/tontine/internal/api"
	"github.com/mmynk/tontine/internal/api/apiconnect"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/realtime"
)

// ErrSignedOut is returned by calls that need a signed-in account.
var ErrSignedOut = errors.New("client: not signed in")

// Config configures a Session.
type Config struct {
	BaseURL    string
	HTTPClient connect.HTTPClient

	// AdvanceDelay is waited before a turn advance is sent. It only paces the
	// UI; the advance itself is the server's transactional commit.
	AdvanceDelay time.Duration

	// ReconnectDelay is waited between feed reconnection attempts.
	ReconnectDelay time.Duration
}

// Option configures a Session.
type Option func(*Session)

// WithEventHandler registers a callback run for every received event, after
// the access decision has been updated. It runs on the feed goroutine.
func WithEventHandler(fn func(*api.Event)) Option {
	return func(s *Session) { s.onEvent = fn }
}

// WithClock overrides the clock used for access decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session is a signed-in client. It is safe for concurrent use.
type Session struct {
	cfg     Config
	now     func() time.Time
	onEvent func(*api.Event)

	Auth     apiconnect.AuthServiceClient
	Tontine  apiconnect.TontineServiceClient
	Payments apiconnect.PaymentServiceClient
	Admin    apiconnect.AdminServiceClient
	events   apiconnect.EventServiceClient

	// switchMu serializes sign-in, sign-out and feed teardown.
	switchMu sync.Mutex

	mu      sync.Mutex
	token   string
	account *api.Account
	sub     *models.Subscription
	signals access.Signals
	tracker *access.Tracker
	feed    *feed
}

type feed struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a signed-out session.
func New(cfg Config, opts ...Option) *Session {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	s := &Session{
		cfg:     cfg,
		now:     time.Now,
		tracker: access.NewTracker(),
	}
	for _, opt := range opts {
		opt(s)
	}

	interceptors := connect.WithInterceptors(&bearer{session: s})
	s.Auth = apiconnect.NewAuthServiceClient(cfg.HTTPClient, cfg.BaseURL, interceptors)
	s.Tontine = apiconnect.NewTontineServiceClient(cfg.HTTPClient, cfg.BaseURL, interceptors)
	s.Payments = apiconnect.NewPaymentServiceClient(cfg.HTTPClient, cfg.BaseURL, interceptors)
	s.Admin = apiconnect.NewAdminServiceClient(cfg.HTTPClient, cfg.BaseURL, interceptors)
	s.events = apiconnect.NewEventServiceClient(cfg.HTTPClient, cfg.BaseURL, interceptors)
	return s
}

// Register creates an account and signs it in.
func (s *Session) Register(ctx context.Context, phone, pin string) error {
	resp, err := s.Auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{Phone: phone, Pin: pin}))
	if err != nil {
		return err
	}
	return s.signIn(ctx, resp.Msg.Account, resp.Msg.Token)
}

// Login signs an existing account in, replacing any current account.
func (s *Session) Login(ctx context.Context, phone, pin string) error {
	resp, err := s.Auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Phone: phone, Pin: pin}))
	if err != nil {
		return err
	}
	return s.signIn(ctx, resp.Msg.Account, resp.Msg.Token)
}

// signIn closes the previous feed, then opens one for account and waits for
// its sync event.
func (s *Session) signIn(ctx context.Context, account *api.Account, token string) error {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.stopFeed()
	s.mu.Lock()
	s.account = account
	s.token = token
	s.sub = nil
	s.signals = access.Signals{}
	s.tracker = access.NewTracker()
	s.mu.Unlock()

	return s.startFeed(ctx, token)
}

// Logout closes the feed and forgets the session. The feed is closed when
// Logout returns.
func (s *Session) Logout(ctx context.Context) error {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.stopFeed()
	var err error
	if s.Token() != "" {
		_, err = s.Auth.Logout(ctx, connect.NewRequest(&api.LogoutRequest{}))
	}
	s.clear()
	return err
}

// Account returns the signed-in account, or nil.
func (s *Session) Account() *api.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// Token returns the current bearer token, empty when signed out.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SignedIn reports whether the session holds a token.
func (s *Session) SignedIn() bool {
	return s.Token() != ""
}

// Decision recomputes the access decision at the current time, so an
// expiration passing between two events is observed.
func (s *Session) Decision() access.Decision {
	s.mu.Lock()
	tracker, sub, signals := s.tracker, s.sub, s.signals
	s.mu.Unlock()
	return tracker.Update(sub, signals, s.now())
}

// ConsumeNavigation returns the screen to navigate to after access was
// restored, at most once per restoration.
func (s *Session) ConsumeNavigation() (access.Screen, bool) {
	s.mu.Lock()
	tracker := s.tracker
	s.mu.Unlock()
	return tracker.ConsumeNavigation()
}

// Refresh re-reads the subscription and updates the access decision.
func (s *Session) Refresh(ctx context.Context) (access.Decision, error) {
	if !s.SignedIn() {
		return access.Decision{Outcome: access.Terminated}, ErrSignedOut
	}
	resp, err := s.Payments.GetAccess(ctx, connect.NewRequest(&api.GetAccessRequest{}))
	if err != nil {
		if connect.CodeOf(err) == connect.CodeUnauthenticated {
			s.clear()
		}
		return s.Decision(), err
	}
	s.setSubscription(resp.Msg.Subscription)
	return s.Decision(), nil
}

// AdvanceTurn waits the configured delay, then asks the server to advance
// the rotation. A cancelled ctx during the delay sends nothing.
func (s *Session) AdvanceTurn(ctx context.Context) (*api.Turn, error) {
	if s.cfg.AdvanceDelay > 0 {
		timer := time.NewTimer(s.cfg.AdvanceDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	resp, err := s.Tontine.AdvanceTurn(ctx, connect.NewRequest(&api.AdvanceTurnRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.Turn, nil
}

func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.account = nil
	s.sub = nil
}

func (s *Session) setSubscription(sub *api.Subscription) {
	if sub == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sub = &models.Subscription{
		AccountID: sub.AccountID,
		Status:    models.SubscriptionStatus(sub.Status),
		Active:    sub.Active,
		ExpiresAt: sub.ExpiresAt,
	}
}

// startFeed opens the realtime feed and returns once the first sync event
// was applied.
func (s *Session) startFeed(ctx context.Context, token string) error {
	feedCtx, cancel := context.WithCancel(context.Background())
	f := &feed{cancel: cancel, done: make(chan struct{})}
	ready := make(chan struct{})

	s.mu.Lock()
	s.feed = f
	s.mu.Unlock()

	go func() {
		defer close(f.done)
		s.run(feedCtx, token, ready)
	}()

	select {
	case <-ready:
		return nil
	case <-f.done:
		if !s.SignedIn() {
			return ErrSignedOut
		}
		return nil
	case <-ctx.Done():
		s.stopFeed()
		return ctx.Err()
	}
}

// stopFeed cancels the feed and waits for its goroutine to exit. No event is
// handled after it returns.
func (s *Session) stopFeed() {
	s.mu.Lock()
	f := s.feed
	s.feed = nil
	s.mu.Unlock()
	if f == nil {
		return
	}
	f.cancel()
	<-f.done
}

// run keeps the feed open until ctx is cancelled or the session ends. Every
// reconnection starts with a sync event, which resynchronizes the state
// missed while disconnected.
func (s *Session) run(ctx context.Context, token string, ready chan struct{}) {
	var once sync.Once
	for {
		ended, err := s.stream(ctx, token, func() { once.Do(func() { close(ready) }) })
		if ended || ctx.Err() != nil {
			return
		}
		if connect.CodeOf(err) == connect.CodeUnauthenticated {
			slog.Warn("Event feed rejected, signing out", "error", err)
			s.terminate()
			return
		}
		slog.Warn("Event feed interrupted, reconnecting", "error", err, "delay", s.cfg.ReconnectDelay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
}

// stream consumes one connection. ended reports that the session ended.
func (s *Session) stream(ctx context.Context, token string, synced func()) (ended bool, err error) {
	req := connect.NewRequest(&api.SubscribeRequest{})
	req.Header().Set("Authorization", "Bearer "+token)
	stream, err := s.events.Subscribe(ctx, req)
	if err != nil {
		return false, err
	}
	defer stream.Close()

	for stream.Receive() {
		ev := stream.Msg()
		ended := s.apply(ctx, ev)
		if ev.Type == string(realtime.EventSync) {
			synced()
		}
		if ended {
			synced()
			return true, nil
		}
	}
	return false, stream.Err()
}

// apply updates the session from one event and reports whether the session
// ended. Applying the same event twice leaves the state unchanged.
func (s *Session) apply(ctx context.Context, ev *api.Event) bool {
	ended := false
	switch realtime.EventType(ev.Type) {
	case realtime.EventProfileDeleted:
		s.mu.Lock()
		s.signals.ProfileDeleted = true
		s.mu.Unlock()
		ended = true
	case realtime.EventSessionRevoked:
		ended = true
	default:
		if ev.Subscription != nil {
			s.setSubscription(ev.Subscription)
		} else if slices.Contains(ev.Invalidates, string(realtime.EntitySubscription)) {
			if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("Failed to refresh subscription", "error", err)
			}
		}
	}

	if ended {
		s.terminate()
	} else {
		s.Decision()
	}
	if s.onEvent != nil && ctx.Err() == nil {
		s.onEvent(ev)
	}
	return ended
}

// terminate signs the session out locally.
func (s *Session) terminate() {
	s.clear()
	s.Decision()
}

// bearer attaches the session token to outgoing calls.
type bearer struct {
	session *Session
}

func (b *bearer) set(h http.Header) {
	if token := b.session.Token(); token != "" && h.Get("Authorization") == "" {
		h.Set("Authorization", "Bearer "+token)
	}
}

func (b *bearer) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			b.set(req.Header())
		}
		return next(ctx, req)
	}
}

func (b *bearer) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		b.set(conn.RequestHeader())
		return conn
	}
}

func (b *bearer) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
