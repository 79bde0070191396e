package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"ohlcvflow/internal/core/domain"
	"ohlcvflow/internal/core/port"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

type client struct {
	conn     *websocket.Conn
	send     chan domain.Record
	exchange domain.Exchange
	symbol   string
}

func (c *client) wants(r domain.Record) bool {
	if c.exchange != "" && c.exchange != r.Exchange {
		return false
	}
	return c.symbol == "" || c.symbol == r.Symbol
}

// Hub pushes every live record to connected websocket clients. A client
// that cannot keep up is disconnected rather than slowing the others.
type Hub struct {
	feed     port.LiveFeed
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(feed port.LiveFeed, logger *slog.Logger) *Hub {
	return &Hub{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Run forwards the live feed until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) error {
	updates, err := h.feed.Subscribe(ctx)
	if err != nil {
		return err
	}

	defer h.closeAll()

	for record := range updates {
		h.broadcast(record)
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS handles GET /ws?exchange=&symbol=. Both filters are optional.
func (h *Hub) ServeWS(c *gin.Context) {
	var exchange domain.Exchange
	if raw := c.Query("exchange"); raw != "" {
		ex, err := domain.ParseExchange(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown exchange"})
			return
		}
		exchange = ex
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	cl := &client{
		conn:     conn,
		send:     make(chan domain.Record, sendBuffer),
		exchange: exchange,
		symbol:   c.Query("symbol"),
	}
	h.register(cl)

	go h.writePump(cl)
	h.readPump(cl)
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", slog.String("remote", cl.conn.RemoteAddr().String()))
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
}

func (h *Hub) broadcast(record domain.Record) {
	var slow []*client

	h.mu.RLock()
	for cl := range h.clients {
		if !cl.wants(record) {
			continue
		}
		select {
		case cl.send <- record:
		default:
			slow = append(slow, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range slow {
		h.logger.Warn("dropping slow websocket client", slog.String("remote", cl.conn.RemoteAddr().String()))
		h.unregister(cl)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for cl := range h.clients {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
}

// readPump only watches for the client going away; inbound messages are
// discarded.
func (h *Hub) readPump(cl *client) {
	defer func() {
		h.unregister(cl)
		_ = cl.conn.Close()
	}()

	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case record, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteJSON(record); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
