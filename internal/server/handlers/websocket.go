// internal/server/handlers/websocket.go

package handlers

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// trendClient bridges one websocket connection onto the user's trend event
// subjects.
type trendClient struct {
	conn   *websocket.Conn
	send   chan []byte
	subs   []*nats.Subscription
	log    *zap.Logger
	closed chan struct{}
	once   sync.Once
}

// WebSocketConfig contains timing configuration for websocket connections.
type WebSocketConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns the default websocket configuration.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 64 * 1024,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS policy is enforced at the router; the API is read-only here.
		return true
	},
}

// TrendWebSocketHandler streams a user's refresh and spike events over a
// websocket by subscribing to the corresponding NATS subjects.
func TrendWebSocketHandler(natsConn *nats.Conn, eventsTopic string, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if userID == "" {
			http.Error(w, "Missing user ID", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &trendClient{
			conn:   conn,
			send:   make(chan []byte, 64),
			log:    log,
			closed: make(chan struct{}),
		}

		for _, kind := range []string{"refresh", "spike"} {
			subject := fmt.Sprintf("%s.%s.%s", eventsTopic, userID, kind)
			sub, err := natsConn.Subscribe(subject, func(msg *nats.Msg) {
				select {
				case client.send <- msg.Data:
				case <-client.closed:
				default:
					// Slow consumer; drop rather than block the bus.
				}
			})
			if err != nil {
				log.Warn("event subscription failed", zap.String("subject", subject), zap.Error(err))
				client.close()
				return
			}
			client.subs = append(client.subs, sub)
		}

		go client.writePump()
		go client.readPump()

		log.Info("websocket connected", zap.String("user_id", userID))
	}
}

// readPump consumes control frames and detects disconnects.
func (c *trendClient) readPump() {
	cfg := DefaultWebSocketConfig()

	defer c.close()

	c.conn.SetReadLimit(cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	for {
		// The stream is one-way; inbound payloads are discarded.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump forwards events to the peer and keeps the connection alive with
// pings.
func (c *trendClient) writePump() {
	cfg := DefaultWebSocketConfig()
	ticker := time.NewTicker(cfg.PingPeriod)

	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close tears down the subscriptions and the connection once.
func (c *trendClient) close() {
	c.once.Do(func() {
		close(c.closed)
		for _, sub := range c.subs {
			sub.Unsubscribe()
		}
		c.conn.Close()
	})
}
