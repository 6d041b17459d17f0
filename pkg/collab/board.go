package collab

import (
	"context"
	"fmt"

	"buddyboard-be/pkg/canvas"
)

// Board is an open document: a canvas session fed by the room and wired to
// persist and broadcast its commits.
type Board struct {
	document  Document
	session   *canvas.Session
	transport Transport
	committer *Committer
	logger    Logger

	// unsubscribe stops room updates reaching the session.
	unsubscribe func()
}

// OpenBoard loads documentID, builds its session and joins its room.
// Updates from the room replace the session's working list.
func OpenBoard(ctx context.Context, store DocumentStore, transport Transport, documentID string, logger Logger, opts ...canvas.Option) (*Board, error) {
	if logger == nil {
		logger = nopLogger{}
	}

	doc, err := store.LoadDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", documentID, err)
	}
	if doc.ID == "" {
		doc.ID = documentID
	}

	committer := NewCommitter(store, transport, logger)
	session := canvas.New(documentID, doc.Shapes, committer, opts...)

	unsubscribe := transport.OnShapeUpdate(func(u ShapeUpdate) {
		if u.DocumentID != documentID {
			return
		}
		session.ApplyRemote(u.Shapes)
	})
	if err := transport.Join(documentID); err != nil {
		unsubscribe()
		committer.Close()
		return nil, fmt.Errorf("join %s: %w", documentID, err)
	}

	logger.Info(logModule, "Board opened", map[string]interface{}{
		"document_id": documentID,
		"shapes":      len(doc.Shapes),
	})

	return &Board{
		document:    *doc,
		session:     session,
		transport:   transport,
		committer:   committer,
		logger:      logger,
		unsubscribe: unsubscribe,
	}, nil
}

func (b *Board) Session() *canvas.Session { return b.session }

// Document returns the metadata the board was opened with.
func (b *Board) Document() Document { return b.document }

// Flush waits for pending commits to be persisted and broadcast.
func (b *Board) Flush(ctx context.Context) error {
	return b.committer.Flush(ctx)
}

// Close leaves the room, stops applying room updates and delivers pending
// commits.
func (b *Board) Close() {
	b.unsubscribe()
	if err := b.transport.Leave(b.document.ID); err != nil {
		b.logger.Debug(logModule, "Leave not sent", map[string]interface{}{
			"document_id": b.document.ID,
			"error":       err.Error(),
		})
	}
	b.committer.Close()
}
