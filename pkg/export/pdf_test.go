package export

import (
	"bytes"
	"testing"

	"buddyboard-be/pkg/geometry"
	"buddyboard-be/pkg/shape"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		r, g, b int
	}{
		{"#FF8000", 255, 128, 0},
		{"#fff", 255, 255, 255},
		{"  #000000 ", 0, 0, 0},
		{"red", 0, 0, 0},
		{"#GGGGGG", 0, 0, 0},
		{"", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, g, b := ParseColor(tt.in)
			assert.Equal(t, []int{tt.r, tt.g, tt.b}, []int{r, g, b})
		})
	}
}

func TestPageSize(t *testing.T) {
	w, h, origin := PageSize(nil)
	assert.Equal(t, minPageWidth, w)
	assert.Equal(t, minPageHeight, h)
	assert.Equal(t, geometry.Pt(-Margin, -Margin), origin)

	wide := shape.List{
		shape.Rect{Base: shape.Base{ID: "r"}, X: 100, Y: 50, Width: 2000, Height: 10},
	}
	w, h, origin = PageSize(wide)
	assert.Equal(t, 2000+2*Margin, w)
	assert.Equal(t, minPageHeight, h)
	assert.Equal(t, geometry.Pt(100-Margin, 50-Margin), origin)
}

func TestWritePDF(t *testing.T) {
	b := func(id string) shape.Base { return shape.Base{ID: id, Stroke: "#336699", StrokeWidth: 2} }
	doc := Document{
		Title:           "Sprint plan",
		BackgroundColor: "#FAFAFA",
		Shapes: shape.List{
			shape.Rect{Base: b("r"), X: 10, Y: 10, Width: 100, Height: 50},
			shape.Triangle{Base: b("t"), X: 200, Y: 10, Width: 40, Height: 40},
			shape.Circle{Base: b("c"), X: 60, Y: 200, Radius: 30},
			shape.Ellipse{Base: b("e"), X: 200, Y: 200, RadiusX: 40, RadiusY: 20},
			shape.Freehand{Base: b("f"), Points: []float64{0, 0, 10, 10, 20, 5}},
			shape.StraightLine{Base: b("l"), X: 5, Y: 300, Points: [4]float64{0, 0, 80, 0}},
			shape.Arrow{Base: b("a"), X: 5, Y: 350, Points: [4]float64{0, 0, 80, 40}, PointerLength: 10, PointerWidth: 10},
			shape.Arrow{Base: b("z"), X: 5, Y: 400, PointerLength: 10, PointerWidth: 10},
			shape.Text{Base: b("x"), X: 300, Y: 300, Content: "hello\nworld", FontSize: 16, Fill: "#000000"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, doc))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, buf.String(), "%%EOF")
}

func TestWritePDFEmptyDocument(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, Document{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestWritePDFNilWriter(t *testing.T) {
	assert.ErrorIs(t, WritePDF(nil, Document{}), ErrNilWriter)
}
