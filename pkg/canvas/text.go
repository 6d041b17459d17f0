package canvas

import (
	"fmt"
	"strings"
	"time"

	"buddyboard-be/pkg/shape"
)

// TextCommitGuard is how long after a draft opens a commit is refused. The
// input that opened the draft tends to produce a blur right away.
const TextCommitGuard = 100 * time.Millisecond

// TextDraft is the text being edited. EditID is empty for new text.
type TextDraft struct {
	EditID   string
	X, Y     float64
	Value    string
	FontSize float64

	openedAt time.Time
}

// TextDraft returns the open draft, if any.
func (s *Session) TextDraft() (TextDraft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return TextDraft{}, false
	}
	return *s.draft, true
}

// EditText opens a draft over the existing text shape id.
func (s *Session) EditText(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gesture.Mode != ModeIdle {
		return ErrBusy
	}
	i := s.shapes.IndexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrShapeNotFound, id)
	}
	t, ok := s.shapes[i].(shape.Text)
	if !ok {
		return fmt.Errorf("%w: %q is %s", ErrNotText, id, s.shapes[i].Kind())
	}

	s.before = shape.Clone(s.shapes)
	s.gesture = Gesture{Mode: ModeEditingText, ShapeID: id}
	s.draft = &TextDraft{
		EditID:   id,
		X:        t.X,
		Y:        t.Y,
		Value:    t.Content,
		FontSize: t.FontSize,
		openedAt: s.now(),
	}
	return nil
}

// SetText replaces the draft's value.
func (s *Session) SetText(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft == nil {
		return ErrNoTextDraft
	}
	s.draft.Value = value
	return nil
}

// HandleTextKey commits the draft on Enter without Shift. It reports whether
// the key was consumed.
func (s *Session) HandleTextKey(key string, shift bool) (bool, error) {
	if key != "Enter" || shift {
		return false, nil
	}
	return true, s.CommitText()
}

// CommitText closes the draft. Blank text deletes the edited shape or
// discards a new one; anything else creates or updates a text shape. A commit
// within TextCommitGuard of the draft opening returns ErrTextGuarded and
// leaves the draft open.
func (s *Session) CommitText() error {
	s.mu.Lock()
	fx, err := s.commitTextLocked()
	s.mu.Unlock()

	s.emit(fx)
	return err
}

func (s *Session) commitTextLocked() (effects, error) {
	d := s.draft
	if d == nil {
		return effects{}, ErrNoTextDraft
	}
	if s.now().Sub(d.openedAt) < TextCommitGuard {
		return effects{}, ErrTextGuarded
	}

	i := -1
	if d.EditID != "" {
		i = s.shapes.IndexOf(d.EditID)
	}

	switch {
	case strings.TrimSpace(d.Value) == "":
		if i >= 0 {
			s.shapes = append(s.shapes[:i:i], s.shapes[i+1:]...)
		}

	case d.EditID != "":
		t, ok := s.at(i).(shape.Text)
		if !ok {
			// removed by a peer while being edited
			break
		}
		t.Content = d.Value
		if err := shape.Validate(t); err != nil {
			s.resetLocked()
			return effects{}, err
		}
		s.shapes[i] = t

	default:
		t := shape.Text{
			Base:     shape.Base{ID: s.newID()},
			X:        d.X,
			Y:        d.Y,
			Content:  d.Value,
			FontSize: d.FontSize,
			Fill:     s.style.Stroke,
		}
		if err := shape.Validate(t); err != nil {
			s.resetLocked()
			return effects{}, err
		}
		s.shapes = append(s.shapes, t)
	}

	return s.commitLocked(), nil
}

func (s *Session) at(i int) shape.Shape {
	if i < 0 || i >= len(s.shapes) {
		return nil
	}
	return s.shapes[i]
}
