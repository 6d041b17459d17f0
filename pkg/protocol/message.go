// Package protocol defines the JSON frames exchanged over a board websocket.
//
// Every frame is one Message. There is no version field; shape payloads are
// carried as raw JSON and interpreted only by clients.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Op string

const (
	OpJoin        Op = "join"
	OpLeave       Op = "leave"
	OpShapeUpdate Op = "shapeUpdate"
	OpCursorMove  Op = "cursorMove"
	OpCursor      Op = "cursor"
	OpError       Op = "error"
)

var ErrMalformed = errors.New("malformed message")

// Position is a pointer location in canvas coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Message struct {
	Op         Op              `json:"op"`
	DocumentID string          `json:"documentId,omitempty"`
	Shapes     json.RawMessage `json:"shapes,omitempty"`
	SenderID   string          `json:"senderId,omitempty"`
	Position   *Position       `json:"position,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Decode parses a frame and checks the fields its op requires.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := m.Check(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Check reports whether m carries what its op needs.
func (m Message) Check() error {
	switch m.Op {
	case OpJoin, OpLeave:
		if m.DocumentID == "" {
			return fmt.Errorf("%w: %s without documentId", ErrMalformed, m.Op)
		}
	case OpShapeUpdate:
		if m.DocumentID == "" {
			return fmt.Errorf("%w: %s without documentId", ErrMalformed, m.Op)
		}
		if len(m.Shapes) == 0 {
			return fmt.Errorf("%w: %s without shapes", ErrMalformed, m.Op)
		}
	case OpCursorMove, OpCursor:
		if m.DocumentID == "" || m.Position == nil {
			return fmt.Errorf("%w: %s needs documentId and position", ErrMalformed, m.Op)
		}
	case OpError:
	default:
		return fmt.Errorf("%w: unknown op %q", ErrMalformed, m.Op)
	}
	return nil
}

// Encode marshals m. Messages built in this repo always marshal.
func Encode(m Message) []byte {
	data, err := json.Marshal(m)
	if err != nil {
		data, _ = json.Marshal(Message{Op: OpError, Error: err.Error()})
	}
	return data
}

func Join(documentID string) Message {
	return Message{Op: OpJoin, DocumentID: documentID}
}

func Leave(documentID string) Message {
	return Message{Op: OpLeave, DocumentID: documentID}
}

func ShapeUpdate(documentID string, shapes json.RawMessage) Message {
	return Message{Op: OpShapeUpdate, DocumentID: documentID, Shapes: shapes}
}

func CursorMove(documentID string, x, y float64) Message {
	return Message{Op: OpCursorMove, DocumentID: documentID, Position: &Position{X: x, Y: y}}
}

func Error(err error) Message {
	return Message{Op: OpError, Error: err.Error()}
}
