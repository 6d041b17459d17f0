// Package shape defines the drawable primitives of a board document.
//
// Shape is a closed sum type: only the variants declared in this package
// satisfy it, so consumers switch over the concrete types.
package shape

import (
	"slices"
	"strings"
)

// Kind is the wire tag of a shape variant.
type Kind string

const (
	KindRect         Kind = "rect"
	KindTriangle     Kind = "triangle"
	KindCircle       Kind = "circle"
	KindEllipse      Kind = "ellipse"
	KindFreehand     Kind = "line"
	KindStraightLine Kind = "lineStraight"
	KindArrow        Kind = "arrow"
	KindText         Kind = "text"
)

// Default arrow head geometry, matching what the web client renders.
const (
	DefaultPointerLength = 10.0
	DefaultPointerWidth  = 10.0
)

// Shape is implemented by every variant in this package and nothing else.
type Shape interface {
	Kind() Kind
	Common() Base
	isShape()
}

// Base holds the fields shared by all variants.
type Base struct {
	ID          string  `validate:"required"`
	Stroke      string  `validate:"max=64"`
	StrokeWidth float64 `validate:"finite,gte=0"`
}

func (b Base) Common() Base { return b }

func (Base) isShape() {}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	Base
	X      float64 `validate:"finite"`
	Y      float64 `validate:"finite"`
	Width  float64 `validate:"finite,gte=0"`
	Height float64 `validate:"finite,gte=0"`
}

func (Rect) Kind() Kind { return KindRect }

// Triangle is described by its bounding box; it renders as a polygon
// inscribed in that box.
type Triangle struct {
	Base
	X      float64 `validate:"finite"`
	Y      float64 `validate:"finite"`
	Width  float64 `validate:"finite,gte=0"`
	Height float64 `validate:"finite,gte=0"`
}

func (Triangle) Kind() Kind { return KindTriangle }

// Circle is centered at (X, Y).
type Circle struct {
	Base
	X      float64 `validate:"finite"`
	Y      float64 `validate:"finite"`
	Radius float64 `validate:"finite,gte=0"`
}

func (Circle) Kind() Kind { return KindCircle }

// Ellipse is centered at (X, Y).
type Ellipse struct {
	Base
	X       float64 `validate:"finite"`
	Y       float64 `validate:"finite"`
	RadiusX float64 `validate:"finite,gte=0"`
	RadiusY float64 `validate:"finite,gte=0"`
}

func (Ellipse) Kind() Kind { return KindEllipse }

// Freehand is a pen stroke. Points holds absolute x,y pairs back to back.
//
// Points must be treated as read-only: a freehand value may share its
// backing array with earlier snapshots of the same stroke.
type Freehand struct {
	Base
	Points []float64 `validate:"min=2,evenlen,dive,finite"`
}

func (Freehand) Kind() Kind { return KindFreehand }

// PointCount returns the number of x,y pairs.
func (f Freehand) PointCount() int { return len(f.Points) / 2 }

// StraightLine is a single segment from (X+Points[0], Y+Points[1]) to
// (X+Points[2], Y+Points[3]). New lines always start at [0, 0].
type StraightLine struct {
	Base
	X      float64    `validate:"finite"`
	Y      float64    `validate:"finite"`
	Points [4]float64 `validate:"dive,finite"`
}

func (StraightLine) Kind() Kind { return KindStraightLine }

// Arrow is a straight line with a head at its end point. The head is filled
// with the stroke color.
type Arrow struct {
	Base
	X             float64    `validate:"finite"`
	Y             float64    `validate:"finite"`
	Points        [4]float64 `validate:"dive,finite"`
	PointerLength float64    `validate:"finite,gte=0"`
	PointerWidth  float64    `validate:"finite,gte=0"`
}

func (Arrow) Kind() Kind { return KindArrow }

// Fill is always the stroke color.
func (a Arrow) Fill() string { return a.Stroke }

// Text is a block of text with its top-left corner at (X, Y).
type Text struct {
	Base
	X        float64 `validate:"finite"`
	Y        float64 `validate:"finite"`
	Content  string
	FontSize float64 `validate:"finite,gt=0"`
	Fill     string  `validate:"max=64"`
}

func (Text) Kind() Kind { return KindText }

// List is an ordered shape list. Order is paint order: later shapes are on top.
type List []Shape

// ID returns the identifier of s.
func ID(s Shape) string {
	return s.Common().ID
}

// Clone returns a copy of the list. Shape values are immutable so the copy
// is shallow.
func Clone(l List) List {
	if l == nil {
		return List{}
	}
	return slices.Clone(l)
}

// IndexOf returns the position of the shape with the given id, or -1.
func (l List) IndexOf(id string) int {
	for i, s := range l {
		if ID(s) == id {
			return i
		}
	}
	return -1
}

// Degenerate reports whether s has zero extent. Degenerate shapes are
// dropped instead of being committed to a document.
func Degenerate(s Shape) bool {
	switch v := s.(type) {
	case Rect:
		return v.Width == 0 || v.Height == 0
	case Triangle:
		return v.Width == 0 || v.Height == 0
	case Circle:
		return v.Radius == 0
	case Ellipse:
		return v.RadiusX == 0 || v.RadiusY == 0
	case Freehand:
		return v.PointCount() < 2
	case StraightLine:
		return v.Points[0] == v.Points[2] && v.Points[1] == v.Points[3]
	case Arrow:
		return v.Points[0] == v.Points[2] && v.Points[1] == v.Points[3]
	case Text:
		return strings.TrimSpace(v.Content) == ""
	default:
		return true
	}
}
