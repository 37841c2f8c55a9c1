package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Client wraps one WebSocket connection. Emit is safe from any goroutine; all
// socket writes happen on the write pump. Done is closed exactly once when the
// connection goes away, which is how in-flight streaming sessions observe the
// disconnect.
type Client struct {
	id     string
	userID uint64
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	log    *zap.Logger
}

func newClient(id string, userID uint64, conn *websocket.Conn, log *zap.Logger) *Client {
	return &Client{
		id:     id,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		log:    log,
	}
}

func (c *Client) ID() string            { return c.id }
func (c *Client) UserID() uint64        { return c.userID }
func (c *Client) Done() <-chan struct{} { return c.done }

// envelope is the wire frame, both directions: a named event plus its payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Emit queues one event for delivery. A client that cannot drain its send
// buffer is dropped rather than allowed to stall the emitter.
func (c *Client) Emit(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("marshal event payload", zap.String("event", event), zap.Error(err))
		return
	}
	frame, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		c.log.Error("marshal event frame", zap.String("event", event), zap.Error(err))
		return
	}

	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- frame:
	default:
		c.log.Warn("send buffer full, dropping client", zap.String("conn_id", c.id))
		c.close()
	}
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// readPump delivers inbound frames to handle until the connection dies.
func (c *Client) readPump(handle func(env envelope)) {
	defer func() {
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Warn("malformed frame", zap.String("conn_id", c.id), zap.Error(err))
			continue
		}
		handle(env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
