// Package canvas turns pointer input into edits of a board's shape list.
//
// A Session holds the working copy of one document for one user. Pointer
// handlers mutate the working copy; a finished gesture is committed to the
// session history and handed to a Committer, which persists and broadcasts
// it. Remote updates replace the working copy wholesale.
package canvas

import (
	"errors"
	"reflect"
	"sync"
	"time"

	"buddyboard-be/pkg/geometry"
	"buddyboard-be/pkg/history"
	"buddyboard-be/pkg/shape"

	"github.com/google/uuid"
)

const logModule = "Canvas"

var (
	ErrBusy          = errors.New("canvas: a gesture is in progress")
	ErrUnknownTool   = errors.New("canvas: unknown tool")
	ErrNoTextDraft   = errors.New("canvas: no text is being edited")
	ErrNotText       = errors.New("canvas: shape is not text")
	ErrShapeNotFound = errors.New("canvas: shape not found")
	ErrTextGuarded   = errors.New("canvas: text draft was just opened")
)

// Committer receives every committed shape list. Implementations must not
// block or call back into the Session; Session calls Commit outside its lock
// but on the caller's goroutine, in commit order.
type Committer interface {
	Commit(documentID string, shapes shape.List)
}

// CommitterFunc adapts a function to Committer.
type CommitterFunc func(documentID string, shapes shape.List)

func (f CommitterFunc) Commit(documentID string, shapes shape.List) { f(documentID, shapes) }

// Logger is the subset of the application logger the session uses.
type Logger interface {
	Debug(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}

// Style is applied to newly created shapes.
type Style struct {
	Stroke      string
	StrokeWidth float64
	FontSize    float64
	EraserSize  float64
}

// DefaultStyle matches the web client's initial toolbar state.
var DefaultStyle = Style{
	Stroke:      "#000000",
	StrokeWidth: 2,
	FontSize:    20,
	EraserSize:  12,
}

type Option func(*Session)

// WithClock replaces time.Now. Used by the text commit guard.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithIDSource replaces the uuid generator for new shapes.
func WithIDSource(newID geometry.IDSource) Option {
	return func(s *Session) { s.newID = newID }
}

func WithLogger(l Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithStyle(st Style) Option {
	return func(s *Session) { s.style = st }
}

// WithHistoryLimit bounds the undo and redo stacks.
func WithHistoryLimit(n int) Option {
	return func(s *Session) { s.historyLimit = n }
}

// Listener is told about every change of the working list.
type Listener func(shapes shape.List)

// Session is the editing state of one user on one document. All methods are
// safe for concurrent use; they are serialized on an internal lock and
// listeners and the committer are called after it is released.
type Session struct {
	mu sync.Mutex

	documentID   string
	shapes       shape.List
	history      *history.Manager
	historyLimit int
	sink         Committer
	logger       Logger
	now          func() time.Time
	newID        geometry.IDSource
	style        Style

	gesture Gesture
	anchor  geometry.Point
	// before is the document as it was when the gesture started.
	before shape.List
	// ink backs the points of the stroke being drawn.
	ink     []float64
	pending *geometry.Point
	grabbed shape.Shape
	draft   *TextDraft

	listeners map[int]Listener
	nextToken int

	// stepping is set from the start of an undo or redo until its listeners
	// and the committer have returned.
	stepping bool
	// commitSeq numbers committed snapshots; the committer only ever sees
	// increasing numbers, so a snapshot overtaken by a newer one is dropped.
	commitSeq uint64
	sinkMu    sync.Mutex
	delivered uint64
}

// New creates a session over the loaded shapes of documentID.
func New(documentID string, initial shape.List, sink Committer, opts ...Option) *Session {
	s := &Session{
		documentID:   documentID,
		shapes:       shape.Clone(initial),
		historyLimit: history.DefaultLimit,
		sink:         sink,
		logger:       nopLogger{},
		now:          time.Now,
		newID:        uuid.NewString,
		style:        DefaultStyle,
		listeners:    make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = CommitterFunc(func(string, shape.List) {})
	}
	s.history = history.New(s.shapes, history.WithLimit(s.historyLimit))
	return s
}

func (s *Session) DocumentID() string { return s.documentID }

// Shapes returns a copy of the working list.
func (s *Session) Shapes() shape.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	return shape.Clone(s.shapes)
}

// Gesture returns the current gesture state.
func (s *Session) Gesture() Gesture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gesture
}

// SetStyle changes the style used for shapes created from now on.
func (s *Session) SetStyle(st Style) {
	s.mu.Lock()
	s.style = st
	s.mu.Unlock()
}

func (s *Session) Style() Style {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.style
}

// OnChange registers l and returns a function that removes it.
func (s *Session) OnChange(l Listener) (remove func()) {
	s.mu.Lock()
	token := s.nextToken
	s.nextToken++
	s.listeners[token] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, token)
		s.mu.Unlock()
	}
}

func (s *Session) CanUndo() bool { return s.history.CanUndo() }
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// Undo restores the state before the last committed gesture and commits it
// like any other edit. It does nothing while a gesture is in progress.
func (s *Session) Undo() bool {
	return s.step(s.history.Undo)
}

// Redo reapplies the last undone gesture.
func (s *Session) Redo() bool {
	return s.step(s.history.Redo)
}

// step rejects an undo or redo requested while another one is still being
// propagated, including one requested by a listener of that propagation.
func (s *Session) step(move func(func(shape.List)) bool) bool {
	s.mu.Lock()
	if s.gesture.Mode != ModeIdle || s.stepping {
		s.mu.Unlock()
		return false
	}
	ok := move(func(restored shape.List) {
		s.shapes = restored
	})
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.stepping = true
	fx := s.changedLocked(true)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.stepping = false
		s.mu.Unlock()
	}()
	s.emit(fx)
	return true
}

// ApplyRemote replaces the working list with shapes received from a peer.
// History is not touched. A shape being drawn locally is kept on top of the
// remote list so the gesture can finish; the gesture then commits relative
// to the remote list.
func (s *Session) ApplyRemote(remote shape.List) {
	s.mu.Lock()
	incoming := shape.Clone(remote)
	s.history.Replace(incoming)

	switch s.gesture.Mode {
	case ModeDrawingShape, ModeDrawingFreehand:
		s.before = shape.Clone(incoming)
		if i := s.shapes.IndexOf(s.gesture.ShapeID); i >= 0 && incoming.IndexOf(s.gesture.ShapeID) < 0 {
			incoming = append(incoming, s.shapes[i])
		}
	case ModeDragging:
		s.before = shape.Clone(incoming)
		if i := incoming.IndexOf(s.gesture.ShapeID); i >= 0 {
			if j := s.shapes.IndexOf(s.gesture.ShapeID); j >= 0 {
				incoming[i] = s.shapes[j]
			}
		} else {
			s.logger.Debug(logModule, "Dragged shape removed by peer", map[string]interface{}{
				"document_id": s.documentID,
				"shape_id":    s.gesture.ShapeID,
			})
			s.resetLocked()
		}
	case ModeErasing, ModeEditingText:
		s.before = shape.Clone(incoming)
	}

	s.shapes = incoming
	fx := s.changedLocked(false)
	s.mu.Unlock()

	s.emit(fx)
}

// effects are the notifications owed after the lock is released.
type effects struct {
	snapshot  shape.List
	listeners []Listener
	commit    bool
	seq       uint64
}

func (s *Session) changedLocked(commit bool) effects {
	fx := effects{
		snapshot: shape.Clone(s.shapes),
		commit:   commit,
	}
	if commit {
		s.commitSeq++
		fx.seq = s.commitSeq
	}
	for _, l := range s.listeners {
		fx.listeners = append(fx.listeners, l)
	}
	return fx
}

func (s *Session) emit(fx effects) {
	if fx.snapshot == nil {
		return
	}
	for _, l := range fx.listeners {
		l(shape.Clone(fx.snapshot))
	}
	if !fx.commit {
		return
	}

	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	// A listener may have committed a newer snapshot already.
	if fx.seq <= s.delivered {
		s.logger.Debug(logModule, "Dropped superseded commit", map[string]interface{}{
			"document_id": s.documentID,
			"seq":         fx.seq,
			"delivered":   s.delivered,
		})
		return
	}
	s.delivered = fx.seq
	s.sink.Commit(s.documentID, fx.snapshot)
}

// commitLocked ends the current gesture. The working list is recorded in
// history and committed only if it differs from the pre-gesture snapshot.
func (s *Session) commitLocked() effects {
	before := s.before
	s.resetLocked()

	if sameList(before, s.shapes) {
		return s.changedLocked(false)
	}
	s.history.Commit(s.shapes, before)
	return s.changedLocked(true)
}

func (s *Session) resetLocked() {
	s.gesture = Gesture{}
	s.before = nil
	s.ink = nil
	s.pending = nil
	s.grabbed = nil
	s.draft = nil
}

func sameList(a, b shape.List) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
