package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/crosstrade/internal/domain"
	"github.com/alanyoungcy/crosstrade/internal/quote"
	"github.com/alanyoungcy/crosstrade/internal/server/handler"
	"github.com/alanyoungcy/crosstrade/internal/service"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 64
)

// Frame types sent to clients.
const (
	FrameStatus   = "status"
	FrameQuote    = "quote"
	FrameMonth    = "month"
	FrameCalendar = "calendar"
	FrameError    = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// QuoteService is what the hub computes with.
type QuoteService interface {
	Quote(ctx context.Context, in quote.Input) (service.QuoteResult, error)
	Month(year int, month time.Month) (service.MonthView, error)
}

// request is the JSON text frame a client sends. Seq must increase per
// action; a result is dropped if a newer one for the same action has already
// been delivered.
type request struct {
	Action string                `json:"action"`
	Seq    int64                 `json:"seq"`
	Input  *handler.QuoteRequest `json:"input,omitempty"`
	Year   int                   `json:"year,omitempty"`
	Month  int                   `json:"month,omitempty"`
}

// Config captures runtime metadata sent to clients on connect.
type Config struct {
	Mode         string
	StartedAt    time.Time
	EventChannel string // bus channel carrying domain.CalendarEvent payloads
}

// Hub manages the connected clients. Quote and month requests are answered
// on the requesting connection; calendar events go to everyone. All frames
// are binary google.protobuf.Struct messages.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	quotes     QuoteService
	bus        domain.SignalBus
	channel    string
	mu         sync.RWMutex
	logger     *slog.Logger
	mode       string
	startedAt  time.Time
}

// NewHub creates a Hub. bus may be nil.
func NewHub(quotes QuoteService, bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	mode := strings.TrimSpace(strings.ToLower(cfg.Mode))
	if mode == "" {
		mode = "unknown"
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		quotes:     quotes,
		bus:        bus,
		channel:    cfg.EventChannel,
		logger:     logger.With(slog.String("component", "ws_hub")),
		mode:       mode,
		startedAt:  startedAt,
	}
}

// Run starts the hub's main event loop. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	if h.bus != nil && h.channel != "" {
		go h.subscribe(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				c.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))

		case frame := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.enqueue(frame) {
					h.logger.Warn("ws: dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// PublishEvent sends a calendar event to every client. Use it when no bus
// is configured.
func (h *Hub) PublishEvent(ev domain.CalendarEvent) {
	frame, err := encodeFrame(FrameCalendar, 0, ev)
	if err != nil {
		h.logger.Error("ws: encode event", slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- frame:
	case <-h.done:
	default:
		h.logger.Warn("ws: broadcast queue full, event dropped")
	}
}

func (h *Hub) subscribe(ctx context.Context) {
	msgs, err := h.bus.Subscribe(ctx, h.channel)
	if err != nil {
		h.logger.Error("ws: failed to subscribe to channel",
			slog.String("channel", h.channel),
			slog.String("error", err.Error()),
		)
		return
	}
	for payload := range msgs {
		var ev domain.CalendarEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			h.logger.Warn("ws: bad calendar event", slog.String("error", err.Error()))
			continue
		}
		h.PublishEvent(ev)
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		last: make(map[string]int64),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	c.sendStatus()

	go c.writePump()
	go c.readPump()
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
	last   map[string]int64 // newest delivered seq per action
}

// enqueue queues frame without blocking. It reports false when the frame was
// dropped.
func (c *client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// deliver queues a response unless a newer one for the same action has
// already gone out.
func (c *client) deliver(action string, seq int64, frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if prev, ok := c.last[action]; ok && seq < prev {
		return false
	}
	c.last[action] = seq
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) sendStatus() {
	frame, err := encodeFrame(FrameStatus, 0, map[string]any{
		"mode":           c.hub.mode,
		"uptime_seconds": int64(time.Since(c.hub.startedAt).Seconds()),
	})
	if err == nil {
		c.enqueue(frame)
	}
}

// readPump reads requests until the connection fails. Each request is served
// on its own goroutine, so a slow quote does not hold up a newer one.
func (c *client) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}

		var req request
		if err := json.Unmarshal(message, &req); err != nil {
			c.replyError("", 0, "invalid request")
			continue
		}
		go c.serve(ctx, req)
	}
}

func (c *client) serve(ctx context.Context, req request) {
	var (
		payload any
		err     error
	)
	switch req.Action {
	case FrameQuote:
		if req.Input == nil {
			c.replyError(req.Action, req.Seq, "missing input")
			return
		}
		payload, err = c.hub.quotes.Quote(ctx, req.Input.Input())
	case FrameMonth:
		if req.Month < 1 || req.Month > 12 {
			c.replyError(req.Action, req.Seq, "invalid month")
			return
		}
		payload, err = c.hub.quotes.Month(req.Year, time.Month(req.Month))
	default:
		c.replyError(req.Action, req.Seq, "unknown action")
		return
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.replyError(req.Action, req.Seq, err.Error())
		}
		return
	}

	frame, err := encodeFrame(req.Action, req.Seq, payload)
	if err != nil {
		c.hub.logger.Error("ws: encode frame", slog.String("error", err.Error()))
		return
	}
	if !c.deliver(req.Action, req.Seq, frame) {
		c.hub.logger.Debug("ws: stale result dropped",
			slog.String("action", req.Action),
			slog.Int64("seq", req.Seq),
		)
	}
}

func (c *client) replyError(action string, seq int64, msg string) {
	frame, err := encodeFrame(FrameError, seq, map[string]any{"action": action, "error": msg})
	if err == nil {
		c.enqueue(frame)
	}
}

// writePump pumps frames from the hub to the WebSocket connection and sends
// periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// encodeFrame wraps payload as {"type", "seq", "payload"} and marshals it as
// a protobuf Struct. payload goes through encoding/json first so its JSON
// tags decide the field names.
func encodeFrame(typ string, seq int64, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	st, err := structpb.NewStruct(map[string]any{
		"type":    typ,
		"seq":     seq,
		"payload": body,
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(st)
}

// DecodeFrame is the inverse of the hub's encoding, for Go clients and tests.
func DecodeFrame(b []byte) (typ string, seq int64, payload map[string]any, err error) {
	var st structpb.Struct
	if err := proto.Unmarshal(b, &st); err != nil {
		return "", 0, nil, err
	}
	m := st.AsMap()
	typ, _ = m["type"].(string)
	if f, ok := m["seq"].(float64); ok {
		seq = int64(f)
	}
	payload, _ = m["payload"].(map[string]any)
	return typ, seq, payload, nil
}
