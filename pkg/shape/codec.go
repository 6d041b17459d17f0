package shape

import (
	"encoding/json"
	"fmt"
)

// record is the flat wire form shared with the web client and the stored
// document. Optional numbers are pointers so that a zero is distinguishable
// from a missing field.
type record struct {
	ID            string    `json:"id"`
	Type          Kind      `json:"type"`
	X             *float64  `json:"x,omitempty"`
	Y             *float64  `json:"y,omitempty"`
	Width         *float64  `json:"width,omitempty"`
	Height        *float64  `json:"height,omitempty"`
	Radius        *float64  `json:"radius,omitempty"`
	RadiusX       *float64  `json:"radiusX,omitempty"`
	RadiusY       *float64  `json:"radiusY,omitempty"`
	Points        []float64 `json:"points,omitempty"`
	PointerLength *float64  `json:"pointerLength,omitempty"`
	PointerWidth  *float64  `json:"pointerWidth,omitempty"`
	Stroke        string    `json:"stroke,omitempty"`
	StrokeWidth   *float64  `json:"strokeWidth,omitempty"`
	Fill          string    `json:"fill,omitempty"`
	Text          *string   `json:"text,omitempty"`
	FontSize      *float64  `json:"fontSize,omitempty"`
}

func num(f float64) *float64 { return &f }

func encode(s Shape) (record, error) {
	b := s.Common()
	r := record{
		ID:          b.ID,
		Type:        s.Kind(),
		Stroke:      b.Stroke,
		StrokeWidth: num(b.StrokeWidth),
	}

	switch v := s.(type) {
	case Rect:
		r.X, r.Y, r.Width, r.Height = num(v.X), num(v.Y), num(v.Width), num(v.Height)
	case Triangle:
		r.X, r.Y, r.Width, r.Height = num(v.X), num(v.Y), num(v.Width), num(v.Height)
	case Circle:
		r.X, r.Y, r.Radius = num(v.X), num(v.Y), num(v.Radius)
	case Ellipse:
		r.X, r.Y, r.RadiusX, r.RadiusY = num(v.X), num(v.Y), num(v.RadiusX), num(v.RadiusY)
	case Freehand:
		r.Points = v.Points
	case StraightLine:
		r.X, r.Y = num(v.X), num(v.Y)
		r.Points = v.Points[:]
	case Arrow:
		r.X, r.Y = num(v.X), num(v.Y)
		r.Points = v.Points[:]
		r.PointerLength, r.PointerWidth = num(v.PointerLength), num(v.PointerWidth)
		r.Fill = v.Stroke
	case Text:
		r.X, r.Y = num(v.X), num(v.Y)
		r.Text = &v.Content
		r.FontSize = num(v.FontSize)
		r.Fill = v.Fill
		r.StrokeWidth = nil
	default:
		return record{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidShape, s)
	}
	return r, nil
}

type decoder struct {
	r   record
	err error
}

func (d *decoder) need(name string, p *float64) float64 {
	if p == nil {
		if d.err == nil {
			d.err = fmt.Errorf("%w: %s %q: missing %s", ErrInvalidShape, d.r.Type, d.r.ID, name)
		}
		return 0
	}
	return *p
}

func opt(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}

func (d *decoder) offsets() [4]float64 {
	var out [4]float64
	if len(d.r.Points) != 4 {
		if d.err == nil {
			d.err = fmt.Errorf("%w: %s %q: points must hold 4 values, got %d", ErrInvalidShape, d.r.Type, d.r.ID, len(d.r.Points))
		}
		return out
	}
	copy(out[:], d.r.Points)
	return out
}

func decode(r record) (Shape, error) {
	d := &decoder{r: r}
	base := Base{ID: r.ID, Stroke: r.Stroke, StrokeWidth: opt(r.StrokeWidth, 0)}

	var s Shape
	switch r.Type {
	case KindRect:
		s = Rect{Base: base, X: d.need("x", r.X), Y: d.need("y", r.Y), Width: d.need("width", r.Width), Height: d.need("height", r.Height)}
	case KindTriangle:
		// Documents written by older clients store a triangle as a center and
		// circumradius.
		if r.Width == nil && r.Height == nil && r.Radius != nil {
			x, y, rad := d.need("x", r.X), d.need("y", r.Y), *r.Radius
			s = Triangle{Base: base, X: x - rad, Y: y - rad, Width: 2 * rad, Height: 2 * rad}
			break
		}
		s = Triangle{Base: base, X: d.need("x", r.X), Y: d.need("y", r.Y), Width: d.need("width", r.Width), Height: d.need("height", r.Height)}
	case KindCircle:
		s = Circle{Base: base, X: d.need("x", r.X), Y: d.need("y", r.Y), Radius: d.need("radius", r.Radius)}
	case KindEllipse:
		s = Ellipse{Base: base, X: d.need("x", r.X), Y: d.need("y", r.Y), RadiusX: d.need("radiusX", r.RadiusX), RadiusY: d.need("radiusY", r.RadiusY)}
	case KindFreehand:
		s = Freehand{Base: base, Points: r.Points}
	case KindStraightLine:
		s = StraightLine{Base: base, X: d.need("x", r.X), Y: d.need("y", r.Y), Points: d.offsets()}
	case KindArrow:
		s = Arrow{
			Base:          base,
			X:             d.need("x", r.X),
			Y:             d.need("y", r.Y),
			Points:        d.offsets(),
			PointerLength: opt(r.PointerLength, DefaultPointerLength),
			PointerWidth:  opt(r.PointerWidth, DefaultPointerWidth),
		}
	case KindText:
		content := ""
		if r.Text != nil {
			content = *r.Text
		}
		s = Text{Base: base, X: d.need("x", r.X), Y: d.need("y", r.Y), Content: content, FontSize: d.need("fontSize", r.FontSize), Fill: r.Fill}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidShape, r.Type)
	}

	if d.err != nil {
		return nil, d.err
	}
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Marshal encodes a single shape in wire form.
func Marshal(s Shape) ([]byte, error) {
	r, err := encode(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

// Unmarshal decodes and validates a single shape record.
func Unmarshal(data []byte) (Shape, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	return decode(r)
}

func (l List) MarshalJSON() ([]byte, error) {
	recs := make([]record, 0, len(l))
	for _, s := range l {
		r, err := encode(s)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return json.Marshal(recs)
}

func (l *List) UnmarshalJSON(data []byte) error {
	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	out := make(List, 0, len(recs))
	for i, r := range recs {
		s, err := decode(r)
		if err != nil {
			return fmt.Errorf("shape %d: %w", i, err)
		}
		out = append(out, s)
	}
	*l = out
	return nil
}
