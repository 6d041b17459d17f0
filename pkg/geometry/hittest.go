package geometry

import (
	"math"
	"strings"
	"unicode/utf8"

	"buddyboard-be/pkg/shape"
)

// PickTolerance is how far a pointer may be from a stroke and still hit it.
const PickTolerance = 6.0

// Text has no measured layout on the server side, so its box is estimated
// from the font size.
const (
	textAdvanceFactor = 0.6
	textLineFactor    = 1.0
)

// Bounds returns the axis-aligned bounding box of s.
func Bounds(s shape.Shape) Rect {
	switch v := s.(type) {
	case shape.Rect:
		return box(v.X, v.Y, v.Width, v.Height)
	case shape.Triangle:
		return box(v.X, v.Y, v.Width, v.Height)
	case shape.Circle:
		return box(v.X-v.Radius, v.Y-v.Radius, 2*v.Radius, 2*v.Radius)
	case shape.Ellipse:
		return box(v.X-v.RadiusX, v.Y-v.RadiusY, 2*v.RadiusX, 2*v.RadiusY)
	case shape.Freehand:
		return pointsBounds(v.Points)
	case shape.StraightLine:
		a, b := segment(v.X, v.Y, v.Points)
		return Rect{Min: a, Max: a}.Union(Rect{Min: b, Max: b})
	case shape.Arrow:
		a, b := segment(v.X, v.Y, v.Points)
		return Rect{Min: a, Max: a}.Union(Rect{Min: b, Max: b})
	case shape.Text:
		return textBounds(v)
	default:
		return Rect{}
	}
}

// Within reports whether p lies within tol of s. Area shapes measure from
// their filled region, strokes from their centre line.
func Within(s shape.Shape, p Point, tol float64) bool {
	switch v := s.(type) {
	case shape.Rect, shape.Triangle, shape.Text:
		return Bounds(v).Distance(p) <= tol
	case shape.Circle:
		return p.Distance(Pt(v.X, v.Y)) <= v.Radius+tol
	case shape.Ellipse:
		return normSq(p.X-v.X, v.RadiusX+tol)+normSq(p.Y-v.Y, v.RadiusY+tol) <= 1
	case shape.StraightLine:
		a, b := segment(v.X, v.Y, v.Points)
		return DistanceToSegment(p, a, b) <= tol
	case shape.Arrow:
		a, b := segment(v.X, v.Y, v.Points)
		return DistanceToSegment(p, a, b) <= tol
	case shape.Freehand:
		return polylineDistance(v.Points, p) <= tol
	default:
		return false
	}
}

// Contains is the pointer hit test. Strokes get PickTolerance of slack,
// filled shapes none.
func Contains(s shape.Shape, p Point) bool {
	switch s.(type) {
	case shape.Freehand, shape.StraightLine, shape.Arrow:
		return Within(s, p, PickTolerance)
	default:
		return Within(s, p, 0)
	}
}

// TopmostAt returns the index of the highest shape in paint order hit by p.
func TopmostAt(l shape.List, p Point) (int, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if Contains(l[i], p) {
			return i, true
		}
	}
	return -1, false
}

// Translate returns s moved by (dx, dy).
func Translate(s shape.Shape, dx, dy float64) shape.Shape {
	switch v := s.(type) {
	case shape.Rect:
		v.X, v.Y = v.X+dx, v.Y+dy
		return v
	case shape.Triangle:
		v.X, v.Y = v.X+dx, v.Y+dy
		return v
	case shape.Circle:
		v.X, v.Y = v.X+dx, v.Y+dy
		return v
	case shape.Ellipse:
		v.X, v.Y = v.X+dx, v.Y+dy
		return v
	case shape.StraightLine:
		v.X, v.Y = v.X+dx, v.Y+dy
		return v
	case shape.Arrow:
		v.X, v.Y = v.X+dx, v.Y+dy
		return v
	case shape.Text:
		v.X, v.Y = v.X+dx, v.Y+dy
		return v
	case shape.Freehand:
		pts := make([]float64, len(v.Points))
		for i := 0; i+1 < len(v.Points); i += 2 {
			pts[i], pts[i+1] = v.Points[i]+dx, v.Points[i+1]+dy
		}
		v.Points = pts
		return v
	default:
		return s
	}
}

func segment(x, y float64, pts [4]float64) (Point, Point) {
	return Pt(x+pts[0], y+pts[1]), Pt(x+pts[2], y+pts[3])
}

func normSq(d, r float64) float64 {
	if r == 0 {
		if d == 0 {
			return 0
		}
		return math.Inf(1)
	}
	q := d / r
	return q * q
}

func polylineDistance(pts []float64, p Point) float64 {
	n := len(pts) / 2
	switch n {
	case 0:
		return math.Inf(1)
	case 1:
		return p.Distance(Pt(pts[0], pts[1]))
	}
	best := math.Inf(1)
	for i := 0; i+1 < n; i++ {
		d := DistanceToSegment(p, Pt(pts[2*i], pts[2*i+1]), Pt(pts[2*i+2], pts[2*i+3]))
		if d < best {
			best = d
		}
	}
	return best
}

func pointsBounds(pts []float64) Rect {
	if len(pts) < 2 {
		return Rect{}
	}
	r := Rect{Min: Pt(pts[0], pts[1]), Max: Pt(pts[0], pts[1])}
	for i := 2; i+1 < len(pts); i += 2 {
		q := Pt(pts[i], pts[i+1])
		r = r.Union(Rect{Min: q, Max: q})
	}
	return r
}

func textBounds(t shape.Text) Rect {
	lines := strings.Split(t.Content, "\n")
	widest := 0
	for _, l := range lines {
		if n := utf8.RuneCountInString(l); n > widest {
			widest = n
		}
	}
	w := float64(widest) * t.FontSize * textAdvanceFactor
	h := float64(len(lines)) * t.FontSize * textLineFactor
	return box(t.X, t.Y, w, h)
}
