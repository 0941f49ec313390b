// Package ws streams freshly computed signals to websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"MarketSignal/internal/domain/models"
	svcmetrics "MarketSignal/internal/service/metrics"
	applogger "MarketSignal/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Message is the frame pushed for every signal.
type Message struct {
	Type        string            `json:"type"`
	Symbol      string            `json:"symbol"`
	Pair        string            `json:"pair"`
	Interval    string            `json:"interval"`
	GeneratedAt time.Time         `json:"generated_at"`
	Signal      models.SignalType `json:"signal"`
	Score       float64           `json:"score"`
	Confidence  float64           `json:"confidence"`
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	symbol string
}

type frame struct {
	symbol string
	data   []byte
}

// Hub fans signal events out to connected clients. A slow client is dropped
// instead of blocking the broadcast.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*client]struct{}
	broadcast  chan frame
	register   chan *client
	unregister chan *client
	done       chan struct{}
	l          *applogger.Logger
}

func NewHub(l *applogger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan frame, 1024),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		l:          l,
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			svcmetrics.StreamClients.Set(0)
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			svcmetrics.StreamClients.Inc()
		case c := <-h.unregister:
			h.remove(c)
		case f := <-h.broadcast:
			h.mu.RLock()
			var slow []*client
			for c := range h.clients {
				if c.symbol != "" && c.symbol != f.symbol {
					continue
				}
				select {
				case c.send <- f.data:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range slow {
				h.l.Warn("dropping slow stream client", applogger.String("symbol", c.symbol))
				h.remove(c)
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		svcmetrics.StreamClients.Dec()
	}
}

// Broadcast queues an event for every subscribed client. It never blocks.
func (h *Hub) Broadcast(ev *models.SignalEvent) {
	if ev == nil {
		return
	}
	data, err := json.Marshal(Message{
		Type:        "signal",
		Symbol:      ev.Symbol,
		Pair:        ev.Pair,
		Interval:    ev.Interval,
		GeneratedAt: ev.GeneratedAt,
		Signal:      ev.Signal,
		Score:       ev.Score,
		Confidence:  ev.Confidence,
	})
	if err != nil {
		h.l.Error("failed to encode stream frame", applogger.Error(err))
		return
	}
	select {
	case h.broadcast <- frame{symbol: ev.Symbol, data: data}:
	default:
		h.l.Warn("stream broadcast queue full, dropping frame", applogger.String("symbol", ev.Symbol))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RegisterRoutes mounts GET /ws/signals. An optional symbol query narrows the feed.
func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/signals", h.serve)
}

func (h *Hub) serve(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.l.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	cl := &client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		symbol: strings.ToUpper(c.QueryParam("symbol")),
	}
	select {
	case h.register <- cl:
	case <-h.done:
		_ = conn.Close()
		return nil
	}

	go h.writePump(cl)
	h.readPump(cl)
	return nil
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// readPump only drains control frames; clients do not send data.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		default:
			h.remove(c)
		}
		_ = c.conn.Close()
	}()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.l.Debug("stream client read error", applogger.Error(err))
			}
			return
		}
	}
}
