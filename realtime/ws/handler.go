// Package ws serves the realtime gate over WebSocket connections.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/deskauth/internal/logging"
	"github.com/MrEthical07/deskauth/realtime"
	"github.com/gorilla/websocket"
)

var (
	errClosed       = errors.New("connection closed")
	errSlowConsumer = errors.New("send buffer full")
)

// Config controls the transport. Zero values take the defaults below.
type Config struct {
	// AllowedOrigins lists accepted Origin headers. Empty keeps the
	// same-origin check; "*" accepts any origin.
	AllowedOrigins  []string
	CookieName      string
	SendBuffer      int
	MaxMessageBytes int64
	WriteTimeout    time.Duration
	PongWait        time.Duration
}

func (c Config) withDefaults() Config {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 4 << 10
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	return c
}

// Handler upgrades HTTP requests and pumps frames between the socket and the gate.
type Handler struct {
	gate     *realtime.Gate
	config   Config
	upgrader websocket.Upgrader
	log      logging.Logger
}

// NewHandler serves websocket upgrades for gate. A nil log discards output.
func NewHandler(gate *realtime.Gate, cfg Config, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop{}
	}
	cfg = cfg.withDefaults()
	h := &Handler{
		gate:   gate,
		config: cfg,
		log:    log.With("component", "ws"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(cfg.AllowedOrigins) > 0 {
		h.upgrader.CheckOrigin = h.checkOrigin
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// queue is the per-connection outbound buffer. Broadcasts never block on a
// slow client; a full buffer drops the event for that client only.
type queue struct {
	ch   chan realtime.Event
	done chan struct{}
}

func (q *queue) Send(ev realtime.Event) error {
	select {
	case <-q.done:
		return errClosed
	default:
	}
	select {
	case q.ch <- ev:
		return nil
	case <-q.done:
		return errClosed
	default:
		return errSlowConsumer
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := realtime.ExtractToken(
		r.URL.Query().Get("token"),
		r.Header.Get("Authorization"),
		r.Cookies(),
		h.config.CookieName,
	)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := &queue{ch: make(chan realtime.Event, h.config.SendBuffer), done: make(chan struct{})}
	conn := h.gate.Connect(ctx, token, q)
	h.log.Debug(ctx, "websocket connected", "conn_id", conn.ID, "state", conn.State().String())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writeLoop(ws, q)
	}()

	h.readLoop(ctx, ws, conn, q)

	removed := h.gate.Disconnect(conn)
	close(q.done)
	wg.Wait()
	_ = ws.Close()
	h.log.Debug(ctx, "websocket closed", "conn_id", conn.ID, "rooms", removed)
}

// malformedReason is reported in a denied event for frames that are not a
// JSON message object. The connection stays open.
const malformedReason = "malformed message"

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, conn *realtime.Conn, q *queue) {
	ws.SetReadLimit(h.config.MaxMessageBytes)
	_ = ws.SetReadDeadline(time.Now().Add(h.config.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.config.PongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug(ctx, "websocket read failed", "conn_id", conn.ID, "error", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(h.config.PongWait))

		var msg realtime.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Debug(ctx, "undecodable realtime frame", "conn_id", conn.ID, "bytes", len(data), "error", err)
			_ = q.Send(realtime.Event{Type: realtime.EventDenied, Payload: realtime.DeniedPayload{Reason: malformedReason}})
			continue
		}
		if err := h.gate.Handle(ctx, conn, msg); err != nil {
			h.log.Debug(ctx, "realtime message refused", "conn_id", conn.ID, "type", msg.Type, "error", err)
		}
	}
}

func (h *Handler) writeLoop(ws *websocket.Conn, q *queue) {
	ping := time.NewTicker(h.config.PongWait * 9 / 10)
	defer ping.Stop()

	for {
		select {
		case ev := <-q.ch:
			_ = ws.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := ws.WriteJSON(ev); err != nil {
				_ = ws.Close()
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(h.config.WriteTimeout)
			if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = ws.Close()
				return
			}
		case <-q.done:
			deadline := time.Now().Add(h.config.WriteTimeout)
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}
