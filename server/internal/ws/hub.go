package ws

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/festtally/festtally/server/internal/metrics"
	"github.com/festtally/festtally/server/internal/page"
	"github.com/festtally/festtally/server/internal/pipeline"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	// idleRecheck is how often a disabled hub looks for a new interval.
	idleRecheck = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// RefreshData is the payload of a "refresh" event. When Stale is set the
// chart is a stored earlier load from DataAsOf, and the page shows a banner.
type RefreshData struct {
	RunID       string        `json:"run_id"`
	ChartSVG    template.HTML `json:"chart_svg"`
	LastUpdated string        `json:"last_updated"`
	Stale       bool          `json:"stale"`
	DataAsOf    string        `json:"data_as_of,omitempty"`
	StaleReason string        `json:"stale_reason,omitempty"`
}

// ErrorData is the payload of an "error" event.
type ErrorData struct {
	RunID string `json:"run_id"`
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Hub manages WebSocket clients and pushes a fresh chart to all of them on
// every refresh tick.
type Hub struct {
	runner  *pipeline.Runner
	pres    *page.Presenter
	metrics *metrics.Metrics

	mu      sync.RWMutex
	clients map[*client]struct{}
	last    []byte // most recent message, sent on connect
}

// client represents one connected WebSocket client.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub that reruns r and renders with p. m may be nil.
func New(r *pipeline.Runner, p *page.Presenter, m *metrics.Metrics) *Hub {
	return &Hub{
		runner:  r,
		pres:    p,
		metrics: m,
		clients: make(map[*client]struct{}),
	}
}

// Run starts the refresh loop. The interval is re-read from the runner's
// configuration after every tick so hot reloads take effect. Run blocks until
// ctx is cancelled, then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	for {
		interval := h.runner.Config().Server.RefreshInterval
		wait := interval
		if wait <= 0 {
			wait = idleRecheck
		}
		t := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			t.Stop()
			h.closeAll()
			return
		case <-t.C:
			if interval > 0 {
				h.Refresh(ctx)
			}
		}
	}
}

// Refresh runs the pipeline once and broadcasts the result.
func (h *Hub) Refresh(ctx context.Context) {
	data, err := h.buildMessage(ctx)
	if err != nil {
		slog.Error("ws: encode message failed", "err", err)
		return
	}
	h.mu.Lock()
	h.last = data
	h.mu.Unlock()
	h.broadcast(data)
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client.
// It sends the most recent message immediately on connect, then continues to
// receive broadcasts from the refresh loop. Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	h.mu.RLock()
	last := h.last
	h.mu.RUnlock()
	if last != nil {
		select {
		case c.send <- last:
		default:
		}
	}

	go c.writePump()
	c.readPump() // blocks until connection closes
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.observeClients(n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.observeClients(n)
}

func (h *Hub) observeClients(n int) {
	if h.metrics != nil {
		h.metrics.SetWSClients(n)
	}
}

// broadcast queues data for every client. Sends happen under the read lock so
// unregister cannot close a channel mid-send; clients whose buffer is full are
// dropped afterwards.
func (h *Hub) broadcast(data []byte) {
	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.unregister(c)
	}
}

func (h *Hub) buildMessage(ctx context.Context) ([]byte, error) {
	id := uuid.NewString()
	res, err := h.runner.Run(pipeline.WithRunID(ctx, id))
	if err != nil {
		return json.Marshal(Message{
			Event: "error",
			Data: ErrorData{
				RunID: id,
				Error: err.Error(),
				Kind:  pipeline.ErrorKind(err),
			},
		})
	}

	opts, err := page.OptionsFrom(h.runner.Config())
	if err != nil {
		return nil, err
	}
	frag, err := h.pres.Fragment(res.Spec, opts.ForResult(res))
	if err != nil {
		return json.Marshal(Message{
			Event: "error",
			Data:  ErrorData{RunID: res.RunID, Error: err.Error(), Kind: pipeline.KindRender},
		})
	}
	return json.Marshal(Message{
		Event: "refresh",
		Data: RefreshData{
			RunID:       res.RunID,
			ChartSVG:    frag.ChartSVG,
			LastUpdated: frag.LastUpdated,
			Stale:       frag.Stale,
			DataAsOf:    frag.DataAsOf,
			StaleReason: frag.StaleReason,
		},
	})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
	h.observeClients(0)
}

// writePump drains the client's send channel and forwards messages to the
// connection. It also sends periodic ping frames. Runs in its own goroutine
// per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the connection to process control messages (pong,
// close) and detect disconnects. Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
