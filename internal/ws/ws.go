// Package ws bridges the realtime event feed to browser websockets.
//
// Browsers cannot set an Authorization header on a websocket upgrade, so the
// session token travels as a subprotocol: clients offer "bearer" followed by
// the token, and the server selects "bearer". The token query parameter is
// still accepted for tools that cannot set subprotocols; proxies log query
// strings, so deployments using it must redact the token.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/gorilla/websocket"

	"github.com/mmynk/tontine/internal/api"
	"github.com/mmynk/tontine/internal/middleware"
	"github.com/mmynk/tontine/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// bearerProtocol is the subprotocol marking the next offered protocol as the
// session token.
const bearerProtocol = "bearer"

// Handler serves GET /ws/events?all=true.
type Handler struct {
	sessions *middleware.Sessions
	feed     *service.Feed
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler. A nil checkOrigin accepts every
// origin.
func NewHandler(sessions *middleware.Sessions, feed *service.Feed, checkOrigin func(*http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		sessions: sessions,
		feed:     feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
			Subprotocols:    []string{bearerProtocol},
		},
	}
}

var errPeerGone = errors.New("websocket peer gone")

type client struct {
	conn *websocket.Conn
	send chan *api.Event
	done chan struct{}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	account, err := h.sessions.Verify(r.Context(), sessionToken(r))
	if err != nil {
		slog.Warn("Websocket rejected", "error", err, "remote", r.RemoteAddr)
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(middleware.WithAccount(r.Context(), account))
	defer cancel()

	c := &client{
		conn: conn,
		send: make(chan *api.Event, sendBuffer),
		done: make(chan struct{}),
	}
	go c.readPump(cancel)
	go c.writePump()

	all := r.URL.Query().Get("all") == "true"
	err = h.feed.Stream(ctx, all, func(ev *api.Event) error {
		select {
		case c.send <- ev:
			return nil
		case <-c.done:
			return errPeerGone
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	close(c.send)
	<-c.done

	code, reason := closeCode(err)
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	conn.Close()
	slog.Info("Websocket closed", "account_id", account.ID, "code", code)
}

// sessionToken prefers the bearer subprotocol over the query parameter.
func sessionToken(r *http.Request) string {
	protocols := websocket.Subprotocols(r)
	for i, p := range protocols {
		if p == bearerProtocol && i+1 < len(protocols) {
			return protocols[i+1]
		}
	}
	return r.URL.Query().Get("token")
}

// closeCode maps the reason a feed ended to a websocket close code.
func closeCode(err error) (int, string) {
	switch connect.CodeOf(err) {
	case connect.CodeResourceExhausted:
		return websocket.CloseTryAgainLater, err.Error()
	case connect.CodePermissionDenied, connect.CodeUnauthenticated:
		return websocket.ClosePolicyViolation, err.Error()
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errPeerGone) {
		return websocket.CloseInternalServerErr, err.Error()
	}
	return websocket.CloseNormalClosure, ""
}

// readPump discards client frames and cancels the feed when the peer goes
// away.
func (c *client) readPump(cancel context.CancelFunc) {
	defer cancel()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("Unexpected websocket close error", "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
	}()
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				slog.Error("Failed to write message to websocket", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
