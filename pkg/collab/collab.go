// Package collab connects a canvas session to its peers and to the document
// store.
//
// Every committed edit is sent twice, independently: the whole shape list is
// persisted to the document store and broadcast to the document's room.
// Receivers replace their working list with what they receive. Concurrent
// commits are not merged; whichever snapshot arrives last wins, at the
// granularity of the whole document.
package collab

import (
	"context"

	"buddyboard-be/pkg/shape"
)

const logModule = "Collab"

// Policy names how concurrent edits of one document are reconciled.
type Policy string

// LastWriteWins is the only policy: the latest whole-document write replaces
// every earlier one, so a concurrent edit can be silently lost.
const LastWriteWins Policy = "last-write-wins"

// ConflictPolicy is the policy this package implements.
const ConflictPolicy = LastWriteWins

// Logger matches the application logger.
type Logger interface {
	Debug(module, message string, details map[string]interface{})
	Info(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}

// Persister writes a whole shape list to the document store.
type Persister interface {
	PersistDocument(ctx context.Context, documentID string, shapes shape.List) error
}

// DocumentStore loads and persists documents.
type DocumentStore interface {
	Persister
	LoadDocument(ctx context.Context, documentID string) (*Document, error)
}

// Broadcaster sends a shape list to the other members of a document's room.
type Broadcaster interface {
	PublishShapes(documentID string, shapes shape.List) error
}

// Transport is the room side of a board connection. *Client implements it.
type Transport interface {
	Broadcaster
	Join(documentID string) error
	Leave(documentID string) error
	// OnShapeUpdate registers fn and returns a function that removes it.
	OnShapeUpdate(fn func(ShapeUpdate)) (remove func())
}

var _ Transport = (*Client)(nil)
