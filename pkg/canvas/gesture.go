package canvas

import (
	"context"
	"fmt"
	"math"
	"time"

	"buddyboard-be/pkg/geometry"
	"buddyboard-be/pkg/shape"
)

// Tool is the toolbar selection a gesture starts with.
type Tool string

const (
	ToolSelect       Tool = "select"
	ToolRect         Tool = "rect"
	ToolCircle       Tool = "circle"
	ToolEllipse      Tool = "ellipse"
	ToolTriangle     Tool = "triangle"
	ToolStraightLine Tool = "lineStraight"
	ToolArrow        Tool = "arrow"
	ToolPen          Tool = "pen"
	ToolEraser       Tool = "eraser"
	ToolText         Tool = "text"
)

// Mode is the state of the gesture state machine.
type Mode int

const (
	ModeIdle Mode = iota
	ModeDrawingShape
	ModeDrawingFreehand
	ModeErasing
	ModeEditingText
	ModeDragging
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeDrawingShape:
		return "drawingShape"
	case ModeDrawingFreehand:
		return "drawingFreehand"
	case ModeErasing:
		return "erasing"
	case ModeEditingText:
		return "editingText"
	case ModeDragging:
		return "dragging"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Gesture is the active gesture. ShapeID is set while drawing a shape or a
// stroke, while dragging, and while editing an existing text.
type Gesture struct {
	Mode    Mode
	ShapeID string
}

// DefaultFPS is the frame rate Run uses when given a non-positive one.
const DefaultFPS = 60

// PointerDown starts a gesture with tool at p. It fails with ErrBusy unless
// the session is idle. A shape that fails validation aborts the gesture and
// the validation error is returned.
func (s *Session) PointerDown(tool Tool, p geometry.Point) error {
	s.mu.Lock()
	fx, err := s.pointerDownLocked(tool, p)
	s.mu.Unlock()

	s.emit(fx)
	return err
}

func (s *Session) pointerDownLocked(tool Tool, p geometry.Point) (effects, error) {
	if s.gesture.Mode != ModeIdle {
		return effects{}, ErrBusy
	}
	before := shape.Clone(s.shapes)

	switch tool {
	case ToolRect, ToolCircle, ToolEllipse, ToolTriangle, ToolStraightLine, ToolArrow:
		sh := s.newShape(tool, p)
		if err := shape.Validate(sh); err != nil {
			return effects{}, err
		}
		s.shapes = append(s.shapes, sh)
		s.gesture = Gesture{Mode: ModeDrawingShape, ShapeID: shape.ID(sh)}

	case ToolPen:
		s.ink = append(make([]float64, 0, 64), p.X, p.Y)
		sh := shape.Freehand{Base: s.base(), Points: s.ink[:2:2]}
		if err := shape.Validate(sh); err != nil {
			s.ink = nil
			return effects{}, err
		}
		s.shapes = append(s.shapes, sh)
		s.gesture = Gesture{Mode: ModeDrawingFreehand, ShapeID: sh.ID}

	case ToolEraser:
		s.gesture = Gesture{Mode: ModeErasing}
		s.eraseLocked(p)

	case ToolText:
		s.gesture = Gesture{Mode: ModeEditingText}
		s.draft = &TextDraft{X: p.X, Y: p.Y, FontSize: s.style.FontSize, openedAt: s.now()}

	case ToolSelect:
		i, ok := geometry.TopmostAt(s.shapes, p)
		if !ok {
			return effects{}, nil
		}
		s.grabbed = s.shapes[i]
		s.gesture = Gesture{Mode: ModeDragging, ShapeID: shape.ID(s.grabbed)}

	default:
		return effects{}, fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}

	s.anchor = p
	s.before = before
	return s.changedLocked(false), nil
}

// PointerMove updates the active gesture. Eraser samples are only recorded
// here and applied on the next Frame.
func (s *Session) PointerMove(p geometry.Point) {
	s.mu.Lock()
	fx := s.pointerMoveLocked(p)
	s.mu.Unlock()

	s.emit(fx)
}

func (s *Session) pointerMoveLocked(p geometry.Point) effects {
	switch s.gesture.Mode {
	case ModeDrawingShape:
		i := s.shapes.IndexOf(s.gesture.ShapeID)
		if i < 0 {
			return effects{}
		}
		next := reshape(s.shapes[i], s.anchor, p)
		if err := shape.Validate(next); err != nil {
			s.logger.Debug(logModule, "Ignoring pointer sample", map[string]interface{}{
				"document_id": s.documentID,
				"error":       err.Error(),
			})
			return effects{}
		}
		s.shapes[i] = next

	case ModeDrawingFreehand:
		i := s.shapes.IndexOf(s.gesture.ShapeID)
		if i < 0 || !finite(p) {
			return effects{}
		}
		f, ok := s.shapes[i].(shape.Freehand)
		if !ok {
			return effects{}
		}
		n := len(s.ink)
		if s.ink[n-2] == p.X && s.ink[n-1] == p.Y {
			return effects{}
		}
		s.ink = append(s.ink, p.X, p.Y)
		f.Points = s.ink[:len(s.ink):len(s.ink)]
		s.shapes[i] = f

	case ModeErasing:
		q := p
		s.pending = &q
		return effects{}

	case ModeDragging:
		i := s.shapes.IndexOf(s.gesture.ShapeID)
		if i < 0 || !finite(p) {
			return effects{}
		}
		d := p.Sub(s.anchor)
		s.shapes[i] = geometry.Translate(s.grabbed, d.X, d.Y)

	default:
		return effects{}
	}
	return s.changedLocked(false)
}

// Frame is the animation frame tick. It applies the latest pending eraser
// sample, if any.
func (s *Session) Frame() {
	s.mu.Lock()
	var fx effects
	if s.gesture.Mode == ModeErasing && s.pending != nil {
		p := *s.pending
		s.pending = nil
		if s.eraseLocked(p) {
			fx = s.changedLocked(false)
		}
	}
	s.mu.Unlock()

	s.emit(fx)
}

// Run calls Frame fps times per second until ctx is done.
func (s *Session) Run(ctx context.Context, fps int) error {
	if fps <= 0 {
		fps = DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Frame()
		}
	}
}

// PointerUp finishes the gesture at p. Drawn shapes with zero extent are
// dropped. If the document changed, the result is committed against the
// snapshot taken when the gesture started, so one undo reverts the whole
// gesture. Text editing is not ended by pointer release.
func (s *Session) PointerUp(p geometry.Point) {
	s.mu.Lock()
	var fx effects
	switch s.gesture.Mode {
	case ModeIdle, ModeEditingText:
	default:
		s.pointerMoveLocked(p)
		fx = s.finishLocked()
	}
	s.mu.Unlock()

	s.emit(fx)
}

// PointerCancel finishes the gesture the same way PointerUp does, without a
// final sample.
func (s *Session) PointerCancel() {
	s.mu.Lock()
	var fx effects
	switch s.gesture.Mode {
	case ModeIdle, ModeEditingText:
	default:
		fx = s.finishLocked()
	}
	s.mu.Unlock()

	s.emit(fx)
}

func (s *Session) finishLocked() effects {
	switch s.gesture.Mode {
	case ModeDrawingShape, ModeDrawingFreehand:
		if i := s.shapes.IndexOf(s.gesture.ShapeID); i >= 0 && shape.Degenerate(s.shapes[i]) {
			s.shapes = append(s.shapes[:i:i], s.shapes[i+1:]...)
		}
	case ModeErasing:
		if s.pending != nil {
			s.eraseLocked(*s.pending)
		}
	}
	return s.commitLocked()
}

func (s *Session) eraseLocked(p geometry.Point) bool {
	next, changed := geometry.EraseAt(s.shapes, p, s.style.EraserSize, s.newID)
	if changed {
		s.shapes = next
	}
	return changed
}

func (s *Session) base() shape.Base {
	return shape.Base{ID: s.newID(), Stroke: s.style.Stroke, StrokeWidth: s.style.StrokeWidth}
}

// newShape builds the zero-extent shape a draw tool starts with.
func (s *Session) newShape(tool Tool, p geometry.Point) shape.Shape {
	b := s.base()
	switch tool {
	case ToolRect:
		return shape.Rect{Base: b, X: p.X, Y: p.Y}
	case ToolTriangle:
		return shape.Triangle{Base: b, X: p.X, Y: p.Y}
	case ToolCircle:
		return shape.Circle{Base: b, X: p.X, Y: p.Y}
	case ToolEllipse:
		return shape.Ellipse{Base: b, X: p.X, Y: p.Y}
	case ToolStraightLine:
		return shape.StraightLine{Base: b, X: p.X, Y: p.Y}
	default:
		return shape.Arrow{
			Base:          b,
			X:             p.X,
			Y:             p.Y,
			PointerLength: shape.DefaultPointerLength,
			PointerWidth:  shape.DefaultPointerWidth,
		}
	}
}

// reshape recomputes a drawn shape from the fixed anchor a and the current
// pointer p. Boxes keep a non-negative extent by moving their origin.
func reshape(sh shape.Shape, a, p geometry.Point) shape.Shape {
	d := p.Sub(a)
	switch v := sh.(type) {
	case shape.Rect:
		v.X, v.Width = span(a.X, p.X)
		v.Y, v.Height = span(a.Y, p.Y)
		return v
	case shape.Triangle:
		v.X, v.Width = span(a.X, p.X)
		v.Y, v.Height = span(a.Y, p.Y)
		return v
	case shape.Circle:
		v.Radius = d.Length()
		return v
	case shape.Ellipse:
		v.RadiusX, v.RadiusY = math.Abs(d.X), math.Abs(d.Y)
		return v
	case shape.StraightLine:
		v.Points = [4]float64{0, 0, d.X, d.Y}
		return v
	case shape.Arrow:
		v.Points = [4]float64{0, 0, d.X, d.Y}
		return v
	default:
		return sh
	}
}

func span(from, to float64) (origin, extent float64) {
	return math.Min(from, to), math.Abs(to - from)
}

func finite(p geometry.Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}
