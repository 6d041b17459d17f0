package geometry

import (
	"buddyboard-be/pkg/shape"

	"github.com/google/uuid"
)

// IDSource produces identifiers for strokes created by splitting.
type IDSource func() string

// EraseAt applies one eraser sample of the given radius at p to every shape
// in l and reports whether anything changed. When nothing changed the input
// list is returned as is.
//
// Filled and straight shapes are removed whole. Freehand strokes are split
// around the eraser (see SplitFreehand). Text is never erased.
//
// Applying the same sample twice gives the same list as applying it once:
// every stroke segment that survives is farther than radius from p.
func EraseAt(l shape.List, p Point, radius float64, newID IDSource) (shape.List, bool) {
	out := make(shape.List, 0, len(l))
	changed := false

	for _, s := range l {
		switch v := s.(type) {
		case shape.Text:
			out = append(out, v)
		case shape.Freehand:
			runs, cut := SplitFreehand(v, p, radius, newID)
			if cut {
				changed = true
			}
			for _, r := range runs {
				out = append(out, r)
			}
		default:
			if Within(s, p, radius) {
				changed = true
				continue
			}
			out = append(out, s)
		}
	}

	if !changed {
		return l, false
	}
	return out, true
}

// SplitFreehand cuts every segment of f lying within radius of p. Each
// maximal run of uncut segments becomes its own stroke; the first keeps the
// id of f and later ones get fresh ids. A one-point stroke disappears when its
// point is within radius. The boolean reports whether anything was cut.
func SplitFreehand(f shape.Freehand, p Point, radius float64, newID IDSource) ([]shape.Freehand, bool) {
	if newID == nil {
		newID = uuid.NewString
	}

	n := f.PointCount()
	if n < 2 {
		if n == 1 && p.Distance(Pt(f.Points[0], f.Points[1])) <= radius {
			return nil, true
		}
		return []shape.Freehand{f}, false
	}

	var runs []shape.Freehand
	cut := false
	start := -1

	flush := func(last int) {
		if start >= 0 && last-start+1 >= 2 {
			pts := make([]float64, 2*(last-start+1))
			copy(pts, f.Points[2*start:2*last+2])
			run := f
			run.Points = pts
			if len(runs) > 0 {
				run.ID = newID()
			}
			runs = append(runs, run)
		}
		start = -1
	}

	for i := 0; i+1 < n; i++ {
		a := Pt(f.Points[2*i], f.Points[2*i+1])
		b := Pt(f.Points[2*i+2], f.Points[2*i+3])
		if DistanceToSegment(p, a, b) <= radius {
			cut = true
			flush(i)
			continue
		}
		if start < 0 {
			start = i
		}
	}

	if !cut {
		return []shape.Freehand{f}, false
	}
	flush(n - 1)
	return runs, true
}
