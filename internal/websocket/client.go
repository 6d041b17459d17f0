package websocket

import (
	"time"

	"buddyboard-be/pkg/protocol"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Limits bound a single connection.
type Limits struct {
	MaxMessageSize int64
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		MaxMessageSize: 4 << 20,
		SendBuffer:     256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxMessageSize <= 0 {
		l.MaxMessageSize = d.MaxMessageSize
	}
	if l.SendBuffer <= 0 {
		l.SendBuffer = d.SendBuffer
	}
	if l.WriteWait <= 0 {
		l.WriteWait = d.WriteWait
	}
	if l.PongWait <= 0 {
		l.PongWait = d.PongWait
	}
	return l
}

func (l Limits) pingPeriod() time.Duration {
	return (l.PongWait * 9) / 10
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	ID string

	// Principal from the handshake, stamped on everything this client sends
	UserID string

	// Buffered channel of outbound frames
	Send chan []byte

	hub  *Hub
	conn *websocket.Conn

	rooms map[string]struct{}
	gone  bool
}

func (h *Hub) NewClient(conn *websocket.Conn, userID string) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Send:   make(chan []byte, h.limits.SendBuffer),
		hub:    h,
		conn:   conn,
		rooms:  make(map[string]struct{}),
	}
}

// handle applies one inbound frame. Shape payloads pass through untouched.
func (c *Client) handle(data []byte) {
	m, err := protocol.Decode(data)
	if err != nil {
		c.hub.metrics.frame("malformed")
		c.hub.logger.Warn(logModule, "Malformed frame", map[string]interface{}{
			"client_id": c.ID,
			"error":     err.Error(),
		})
		c.reply(protocol.Error(err))
		return
	}
	c.hub.metrics.frame(string(m.Op))

	switch m.Op {
	case protocol.OpJoin:
		c.hub.Join(c, m.DocumentID)
	case protocol.OpLeave:
		c.hub.Leave(c, m.DocumentID)
	case protocol.OpShapeUpdate:
		m.SenderID = c.UserID
		c.hub.Broadcast(m.DocumentID, c, protocol.Encode(m))
	case protocol.OpCursorMove:
		out := protocol.Message{
			Op:         protocol.OpCursor,
			DocumentID: m.DocumentID,
			SenderID:   c.UserID,
			Position:   m.Position,
		}
		c.hub.Broadcast(m.DocumentID, c, protocol.Encode(out))
	}
}

func (c *Client) reply(m protocol.Message) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.gone {
		return
	}
	select {
	case c.Send <- protocol.Encode(m):
	default:
		c.hub.metrics.dropped()
	}
}

// readPump pumps frames from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	limits := c.hub.limits
	c.conn.SetReadLimit(limits.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(limits.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(limits.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn(logModule, "Connection closed unexpectedly", map[string]interface{}{
					"client_id": c.ID,
					"error":     err.Error(),
				})
			}
			return
		}
		c.handle(data)
	}
}

// writePump pumps frames from the hub to the websocket connection, one frame
// per message.
func (c *Client) writePump() {
	limits := c.hub.limits
	ticker := time.NewTicker(limits.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(limits.WriteWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.hub.logger.Debug(logModule, "Write failed", map[string]interface{}{
					"client_id": c.ID,
					"error":     err.Error(),
				})
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(limits.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
