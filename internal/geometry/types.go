// Package geometry maps face geometry reported in camera sensor space onto
// the preview/display space of an on-screen view.
//
// Two coordinate conventions meet here. Image-processing APIs and most face
// detectors report positions with the origin at the bottom-left of the frame
// (y grows upwards), while display space has its origin at the top-left
// (y grows downwards). Frames and previews also rarely share an aspect ratio,
// and front camera frames are shown mirrored. Every value that leaves this
// package for overlay placement must have gone through one of the transforms
// built here.
package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// Space identifies the coordinate space a value is expressed in.
type Space int

const (
	// SpaceSensor is the captured frame's pixel space, origin bottom-left.
	SpaceSensor Space = iota
	// SpacePreview is the preview view's point space, origin top-left.
	SpacePreview
)

func (s Space) String() string {
	switch s {
	case SpaceSensor:
		return "sensor"
	case SpacePreview:
		return "preview"
	default:
		return fmt.Sprintf("Space(%d)", int(s))
	}
}

// MarshalText encodes the space by name.
func (s Space) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Point is a 2D point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p-q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Midpoint returns the point halfway between p and q.
func (p Point) Midpoint(q Point) Point {
	return Point{X: (p.X + q.X) / 2, Y: (p.Y + q.Y) / 2}
}

// ApproxEqual reports whether p and q are within tol on both axes.
func (p Point) ApproxEqual(q Point, tol float64) bool {
	return scalar.EqualWithinAbs(p.X, q.X, tol) && scalar.EqualWithinAbs(p.Y, q.Y, tol)
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Sz is shorthand for Size{Width: w, Height: h}.
func Sz(w, h float64) Size {
	return Size{Width: w, Height: h}
}

// AspectRatio returns width/height.
func (s Size) AspectRatio() float64 {
	return s.Width / s.Height
}

// Rect is an axis-aligned rectangle. Its space is whatever the containing
// value documents; geometry itself never guesses.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// R is shorthand for Rect{X: x, Y: y, Width: w, Height: h}.
func R(x, y, w, h float64) Rect {
	return Rect{X: x, Y: y, Width: w, Height: h}
}

// RectOfSize returns the rect of the given size anchored at the origin.
func RectOfSize(s Size) Rect {
	return Rect{Width: s.Width, Height: s.Height}
}

// Size returns the rect's size.
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// MinX returns the smallest x coordinate.
func (r Rect) MinX() float64 { return r.X }

// MinY returns the smallest y coordinate.
func (r Rect) MinY() float64 { return r.Y }

// MaxX returns the largest x coordinate.
func (r Rect) MaxX() float64 { return r.X + r.Width }

// MaxY returns the largest y coordinate.
func (r Rect) MaxY() float64 { return r.Y + r.Height }

// Center returns the centre point of the rect.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Corners returns the four corners, starting at (MinX, MinY) and going
// counter-clockwise in a y-up frame.
func (r Rect) Corners() [4]Point {
	return [4]Point{
		{X: r.MinX(), Y: r.MinY()},
		{X: r.MaxX(), Y: r.MinY()},
		{X: r.MaxX(), Y: r.MaxY()},
		{X: r.MinX(), Y: r.MaxY()},
	}
}

// IsEmpty reports whether the rect has no area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// ContainsRect reports whether o lies inside r, allowing tol of slack on
// every edge.
func (r Rect) ContainsRect(o Rect, tol float64) bool {
	return o.MinX() >= r.MinX()-tol && o.MaxX() <= r.MaxX()+tol &&
		o.MinY() >= r.MinY()-tol && o.MaxY() <= r.MaxY()+tol
}

// ApproxEqual reports whether every component of r and o is within tol.
func (r Rect) ApproxEqual(o Rect, tol float64) bool {
	return scalar.EqualWithinAbs(r.X, o.X, tol) &&
		scalar.EqualWithinAbs(r.Y, o.Y, tol) &&
		scalar.EqualWithinAbs(r.Width, o.Width, tol) &&
		scalar.EqualWithinAbs(r.Height, o.Height, tol)
}

// Validate returns a *DegenerateRectError when r cannot be used as the
// source or target of a transform.
func (r Rect) Validate() error {
	if !usable(r.Width) || !usable(r.Height) {
		return &DegenerateRectError{Rect: r}
	}
	if math.IsNaN(r.X) || math.IsNaN(r.Y) || math.IsInf(r.X, 0) || math.IsInf(r.Y, 0) {
		return &DegenerateRectError{Rect: r}
	}
	return nil
}

func usable(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// BoundingRect returns the smallest rect containing all points.
func BoundingRect(points ...Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// DegenerateRectError reports a rect with zero, negative or non-finite
// extent handed to a transform constructor.
type DegenerateRectError struct {
	Role string
	Rect Rect
}

func (e *DegenerateRectError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("geometry: degenerate rect %+v", e.Rect)
	}
	return fmt.Sprintf("geometry: degenerate %s rect %+v", e.Role, e.Rect)
}

// mustUsable panics when r is degenerate. Zero-sized rects are a caller bug:
// the transform would divide by zero and leak NaN/Inf into every overlay.
func mustUsable(role string, r Rect) {
	if err := r.Validate(); err != nil {
		derr := err.(*DegenerateRectError)
		derr.Role = role
		panic(derr)
	}
}
