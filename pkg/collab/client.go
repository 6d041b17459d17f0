package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"buddyboard-be/pkg/protocol"
	"buddyboard-be/pkg/shape"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 20
	sendBuffer     = 64
)

var (
	ErrClosed     = errors.New("collab: connection closed")
	ErrBufferFull = errors.New("collab: send buffer full")
)

// ShapeUpdate is a document snapshot received from a peer.
type ShapeUpdate struct {
	DocumentID string
	SenderID   string
	Shapes     shape.List
}

// Cursor is a peer's pointer position.
type Cursor struct {
	DocumentID string
	SenderID   string
	Position   protocol.Position
}

// Client is a board websocket connection. Sends never block: a frame that
// cannot be queued is dropped. Handlers run on the connection's read
// goroutine.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	logger Logger

	onShapes handlers[ShapeUpdate]
	onCursor handlers[Cursor]

	closed    chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to a board websocket endpoint. header usually carries the
// Authorization bearer token.
func Dial(ctx context.Context, url string, header http.Header, logger Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newClient(conn, logger), nil
}

func newClient(conn *websocket.Conn, logger Logger) *Client {
	if logger == nil {
		logger = nopLogger{}
	}
	c := &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		logger: logger,
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	return c
}

func (c *Client) Join(documentID string) error {
	return c.Send(protocol.Join(documentID))
}

func (c *Client) Leave(documentID string) error {
	return c.Send(protocol.Leave(documentID))
}

// PublishShapes broadcasts a whole-document snapshot to the room.
func (c *Client) PublishShapes(documentID string, shapes shape.List) error {
	raw, err := json.Marshal(shapes)
	if err != nil {
		return fmt.Errorf("encode shapes: %w", err)
	}
	return c.Send(protocol.ShapeUpdate(documentID, raw))
}

func (c *Client) MoveCursor(documentID string, x, y float64) error {
	return c.Send(protocol.CursorMove(documentID, x, y))
}

// Send queues m for writing.
func (c *Client) Send(m protocol.Message) error {
	data := protocol.Encode(m)
	select {
	case <-c.closed:
		c.logger.Debug(logModule, "Dropping frame on closed connection", map[string]interface{}{"op": m.Op})
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.logger.Warn(logModule, "Send buffer full, dropping frame", map[string]interface{}{"op": m.Op})
		return ErrBufferFull
	}
}

// OnShapeUpdate registers fn and returns a function that removes it.
func (c *Client) OnShapeUpdate(fn func(ShapeUpdate)) (remove func()) {
	return c.onShapes.add(fn)
}

func (c *Client) OnCursor(fn func(Cursor)) (remove func()) {
	return c.onCursor.add(fn)
}

// Done is closed once the read loop has stopped.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close sends a close frame and releases the connection. It is safe to call
// more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = c.conn.Close()
	})
	return err
}

func (c *Client) readPump() {
	defer func() {
		close(c.done)
		_ = c.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// The server pings us too.
	c.conn.SetPingHandler(func(data string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		err := c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			return err
		}
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn(logModule, "Connection closed unexpectedly", map[string]interface{}{"error": err.Error()})
			}
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	m, err := protocol.Decode(data)
	if err != nil {
		c.logger.Warn(logModule, "Ignoring malformed frame", map[string]interface{}{"error": err.Error()})
		return
	}

	switch m.Op {
	case protocol.OpShapeUpdate:
		var shapes shape.List
		if err := json.Unmarshal(m.Shapes, &shapes); err != nil {
			c.logger.Warn(logModule, "Ignoring invalid shape update", map[string]interface{}{
				"document_id": m.DocumentID,
				"sender_id":   m.SenderID,
				"error":       err.Error(),
			})
			return
		}
		c.onShapes.call(ShapeUpdate{DocumentID: m.DocumentID, SenderID: m.SenderID, Shapes: shapes})

	case protocol.OpCursor:
		c.onCursor.call(Cursor{DocumentID: m.DocumentID, SenderID: m.SenderID, Position: *m.Position})

	case protocol.OpError:
		c.logger.Warn(logModule, "Server rejected frame", map[string]interface{}{"error": m.Error})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug(logModule, "Write failed", map[string]interface{}{"error": err.Error()})
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

// handlers is a set of callbacks that can be removed individually. The zero
// value is ready to use.
type handlers[T any] struct {
	mu   sync.RWMutex
	next int
	fns  map[int]func(T)
}

func (h *handlers[T]) add(fn func(T)) (remove func()) {
	h.mu.Lock()
	if h.fns == nil {
		h.fns = make(map[int]func(T))
	}
	token := h.next
	h.next++
	h.fns[token] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.fns, token)
		h.mu.Unlock()
	}
}

// call runs the registered callbacks outside the lock, in registration order.
func (h *handlers[T]) call(v T) {
	h.mu.RLock()
	tokens := make([]int, 0, len(h.fns))
	for token := range h.fns {
		tokens = append(tokens, token)
	}
	slices.Sort(tokens)
	fns := make([]func(T), 0, len(tokens))
	for _, token := range tokens {
		fns = append(fns, h.fns[token])
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}
