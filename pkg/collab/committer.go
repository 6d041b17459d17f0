package collab

import (
	"context"
	"sync"
	"time"

	"buddyboard-be/pkg/canvas"
	"buddyboard-be/pkg/shape"
)

const defaultPersistTimeout = 10 * time.Second

// Committer runs the two effects of a commit on their own goroutines: one
// persists, the other broadcasts. Each handles every commit in the order it
// was made; the two sides are not ordered relative to each other. Failures
// are logged and not retried.
type Committer struct {
	persister   Persister
	broadcaster Broadcaster
	logger      Logger
	timeout     time.Duration

	persistQ   *mailbox
	broadcastQ *mailbox
	wg         sync.WaitGroup
}

var _ canvas.Committer = (*Committer)(nil)

type CommitterOption func(*Committer)

// WithPersistTimeout bounds each persist call.
func WithPersistTimeout(d time.Duration) CommitterOption {
	return func(c *Committer) { c.timeout = d }
}

// NewCommitter starts the workers. Either side may be nil to skip it.
func NewCommitter(p Persister, b Broadcaster, logger Logger, opts ...CommitterOption) *Committer {
	if logger == nil {
		logger = nopLogger{}
	}
	c := &Committer{
		persister:   p,
		broadcaster: b,
		logger:      logger,
		timeout:     defaultPersistTimeout,
		persistQ:    newMailbox(),
		broadcastQ:  newMailbox(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.wg.Add(2)
	go c.run(c.persistQ, c.persist)
	go c.run(c.broadcastQ, c.broadcast)
	return c
}

// Commit queues shapes for persistence and broadcast and returns at once.
func (c *Committer) Commit(documentID string, shapes shape.List) {
	if c.persister != nil {
		c.persistQ.put(documentID, shapes)
	}
	if c.broadcaster != nil {
		c.broadcastQ.put(documentID, shapes)
	}
}

// Flush waits until both workers are idle with nothing pending.
func (c *Committer) Flush(ctx context.Context) error {
	if err := c.persistQ.waitIdle(ctx); err != nil {
		return err
	}
	return c.broadcastQ.waitIdle(ctx)
}

// Close delivers what is pending and stops the workers.
func (c *Committer) Close() {
	c.persistQ.close()
	c.broadcastQ.close()
	c.wg.Wait()
}

func (c *Committer) run(q *mailbox, handle func(string, shape.List)) {
	defer c.wg.Done()
	for {
		documentID, shapes, ok := q.take()
		if !ok {
			return
		}
		handle(documentID, shapes)
		q.done()
	}
}

func (c *Committer) persist(documentID string, shapes shape.List) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.persister.PersistDocument(ctx, documentID, shapes); err != nil {
		c.logger.Error("Committer", "Failed to persist document", map[string]interface{}{
			"document_id": documentID,
			"shapes":      len(shapes),
			"error":       err.Error(),
		})
		return
	}
	c.logger.Debug("Committer", "Document persisted", map[string]interface{}{
		"document_id": documentID,
		"shapes":      len(shapes),
	})
}

func (c *Committer) broadcast(documentID string, shapes shape.List) {
	if err := c.broadcaster.PublishShapes(documentID, shapes); err != nil {
		c.logger.Debug("Committer", "Broadcast dropped", map[string]interface{}{
			"document_id": documentID,
			"error":       err.Error(),
		})
	}
}

type pendingCommit struct {
	documentID string
	shapes     shape.List
}

// mailbox is an unbounded FIFO of commits. put never blocks the caller.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []pendingCommit
	busy   bool
	closed bool
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) put(documentID string, shapes shape.List) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.queue = append(m.queue, pendingCommit{documentID: documentID, shapes: shapes})
	m.cond.Broadcast()
}

// take blocks until a commit is queued. It returns false once the mailbox is
// closed and drained.
func (m *mailbox) take() (string, shape.List, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) == 0 {
		if m.closed {
			return "", nil, false
		}
		m.cond.Wait()
	}
	next := m.queue[0]
	m.queue[0] = pendingCommit{}
	m.queue = m.queue[1:]
	m.busy = true
	return next.documentID, next.shapes, true
}

func (m *mailbox) done() {
	m.mu.Lock()
	m.busy = false
	m.cond.Broadcast()
	m.mu.Unlock()
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

func (m *mailbox) waitIdle(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for m.busy || len(m.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.cond.Wait()
	}
	return nil
}
