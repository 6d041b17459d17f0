// Package export renders board documents to printable formats.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"buddyboard-be/pkg/geometry"
	"buddyboard-be/pkg/shape"

	"github.com/jung-kurt/gofpdf"
)

// Margin around the drawing, in points.
const Margin = 24.0

// Pages never shrink below A4 so an empty or tiny board still prints sensibly.
const (
	minPageWidth  = 595.28
	minPageHeight = 841.89
)

var ErrNilWriter = errors.New("export: nil writer")

// Document is what gets rendered.
type Document struct {
	Title           string
	BackgroundColor string
	Shapes          shape.List
}

type rgb struct{ r, g, b int }

var black = rgb{0, 0, 0}

// ParseColor reads #RGB and #RRGGBB. Anything else falls back to black.
func ParseColor(s string) (int, int, int) {
	c := parseColor(s, black)
	return c.r, c.g, c.b
}

func parseColor(s string, fallback rgb) rgb {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return fallback
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fallback
	}
	return rgb{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}
}

// PageSize returns the page dimensions and the offset applied to every
// board coordinate so the drawing sits inside the margin.
func PageSize(l shape.List) (w, h float64, origin geometry.Point) {
	if len(l) == 0 {
		return minPageWidth, minPageHeight, geometry.Point{X: -Margin, Y: -Margin}
	}
	r := geometry.Bounds(l[0])
	for _, s := range l[1:] {
		r = r.Union(geometry.Bounds(s))
	}
	w = math.Max(minPageWidth, r.Width()+2*Margin)
	h = math.Max(minPageHeight, r.Height()+2*Margin)
	return w, h, geometry.Point{X: r.Min.X - Margin, Y: r.Min.Y - Margin}
}

// WritePDF renders doc as a single page PDF sized to fit every shape.
func WritePDF(w io.Writer, doc Document) error {
	if w == nil {
		return ErrNilWriter
	}

	pw, ph, origin := PageSize(doc.Shapes)
	p := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: pw, Ht: ph},
	})
	p.SetAutoPageBreak(false, 0)
	p.SetMargins(0, 0, 0)
	if doc.Title != "" {
		p.SetTitle(doc.Title, true)
	}
	p.SetCreator("buddyboard", false)
	p.AddPage()
	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")

	bg := parseColor(doc.BackgroundColor, rgb{255, 255, 255})
	p.SetFillColor(bg.r, bg.g, bg.b)
	p.Rect(0, 0, pw, ph, "F")

	tr := p.UnicodeTranslatorFromDescriptor("")
	for _, s := range doc.Shapes {
		draw(p, s, origin, tr)
	}

	if err := p.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func draw(p *gofpdf.Fpdf, s shape.Shape, o geometry.Point, tr func(string) string) {
	base := s.Common()
	c := parseColor(base.Stroke, black)
	p.SetDrawColor(c.r, c.g, c.b)
	p.SetLineWidth(math.Max(base.StrokeWidth, 0.1))

	switch v := s.(type) {
	case shape.Rect:
		p.Rect(v.X-o.X, v.Y-o.Y, v.Width, v.Height, "D")
	case shape.Triangle:
		x, y := v.X-o.X, v.Y-o.Y
		p.Polygon([]gofpdf.PointType{
			{X: x + v.Width/2, Y: y},
			{X: x + v.Width, Y: y + v.Height},
			{X: x, Y: y + v.Height},
		}, "D")
	case shape.Circle:
		p.Circle(v.X-o.X, v.Y-o.Y, v.Radius, "D")
	case shape.Ellipse:
		p.Ellipse(v.X-o.X, v.Y-o.Y, v.RadiusX, v.RadiusY, 0, "D")
	case shape.Freehand:
		for i := 2; i+1 < len(v.Points); i += 2 {
			p.Line(v.Points[i-2]-o.X, v.Points[i-1]-o.Y, v.Points[i]-o.X, v.Points[i+1]-o.Y)
		}
	case shape.StraightLine:
		p.Line(v.X+v.Points[0]-o.X, v.Y+v.Points[1]-o.Y, v.X+v.Points[2]-o.X, v.Y+v.Points[3]-o.Y)
	case shape.Arrow:
		drawArrow(p, v, o, c)
	case shape.Text:
		drawText(p, v, o, tr)
	}
}

func drawArrow(p *gofpdf.Fpdf, a shape.Arrow, o geometry.Point, c rgb) {
	from := geometry.Pt(a.X+a.Points[0]-o.X, a.Y+a.Points[1]-o.Y)
	to := geometry.Pt(a.X+a.Points[2]-o.X, a.Y+a.Points[3]-o.Y)
	p.Line(from.X, from.Y, to.X, to.Y)

	dir := to.Sub(from)
	n := dir.Length()
	if n == 0 || a.PointerLength == 0 {
		return
	}
	u := dir.Mul(1 / n)
	back := to.Sub(u.Mul(a.PointerLength))
	side := geometry.Pt(-u.Y, u.X).Mul(a.PointerWidth / 2)
	left, right := back.Add(side), back.Sub(side)

	p.SetFillColor(c.r, c.g, c.b)
	p.Polygon([]gofpdf.PointType{
		{X: to.X, Y: to.Y},
		{X: left.X, Y: left.Y},
		{X: right.X, Y: right.Y},
	}, "DF")
}

func drawText(p *gofpdf.Fpdf, t shape.Text, o geometry.Point, tr func(string) string) {
	fill := t.Fill
	if fill == "" {
		fill = t.Stroke
	}
	c := parseColor(fill, black)
	p.SetTextColor(c.r, c.g, c.b)
	p.SetFont("Helvetica", "", t.FontSize)

	// Text y is the top of the block; the PDF baseline sits one line below.
	for i, line := range strings.Split(t.Content, "\n") {
		p.Text(t.X-o.X, t.Y-o.Y+float64(i+1)*t.FontSize, tr(line))
	}
}
