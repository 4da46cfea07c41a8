package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Transform is a 2x3 affine matrix.
//
//	[A B TX]
//	[C D TY]
//
// It maps (x, y) to (A*x + B*y + TX, C*x + D*y + TY). The zero value is not
// the identity; use Identity.
type Transform struct {
	A, B, TX float64
	C, D, TY float64
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{A: 1, D: 1}
}

// Translation returns a transform that moves points by (tx, ty).
func Translation(tx, ty float64) Transform {
	return Transform{A: 1, D: 1, TX: tx, TY: ty}
}

// Scale returns a transform that scales about the origin.
func Scale(sx, sy float64) Transform {
	return Transform{A: sx, D: sy}
}

// Then returns the transform that applies t first and u second.
func (t Transform) Then(u Transform) Transform {
	return Transform{
		A:  u.A*t.A + u.B*t.C,
		B:  u.A*t.B + u.B*t.D,
		TX: u.A*t.TX + u.B*t.TY + u.TX,
		C:  u.C*t.A + u.D*t.C,
		D:  u.C*t.B + u.D*t.D,
		TY: u.C*t.TX + u.D*t.TY + u.TY,
	}
}

// Concat chains transforms in application order: the first argument is
// applied first.
func Concat(ts ...Transform) Transform {
	out := Identity()
	for _, t := range ts {
		out = out.Then(t)
	}
	return out
}

// Apply maps a point.
func (t Transform) Apply(p Point) Point {
	return Point{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

// ApplyRect maps the four corners of r and returns their bounding rect.
// Flips and mirrors therefore still produce a rect with positive extent.
func (t Transform) ApplyRect(r Rect) Rect {
	c := r.Corners()
	return BoundingRect(t.Apply(c[0]), t.Apply(c[1]), t.Apply(c[2]), t.Apply(c[3]))
}

// Invert returns the inverse transform. ok is false when t is singular.
func (t Transform) Invert() (inv Transform, ok bool) {
	det := t.A*t.D - t.B*t.C
	if math.Abs(det) < 1e-12 {
		return Transform{}, false
	}
	invDet := 1 / det
	return Transform{
		A:  t.D * invDet,
		B:  -t.B * invDet,
		TX: (t.B*t.TY - t.D*t.TX) * invDet,
		C:  -t.C * invDet,
		D:  t.A * invDet,
		TY: (t.C*t.TX - t.A*t.TY) * invDet,
	}, true
}

// ScaleX returns the horizontal scale factor of a rotation-free transform.
func (t Transform) ScaleX() float64 { return t.A }

// ScaleY returns the vertical scale factor of a rotation-free transform.
func (t Transform) ScaleY() float64 { return t.D }

// TranslationX returns the horizontal offset.
func (t Transform) TranslationX() float64 { return t.TX }

// TranslationY returns the vertical offset.
func (t Transform) TranslationY() float64 { return t.TY }

// IsIdentity reports whether t is the identity within tol.
func (t Transform) IsIdentity(tol float64) bool {
	return t.ApproxEqual(Identity(), tol)
}

// ApproxEqual reports whether all six coefficients are within tol.
func (t Transform) ApproxEqual(u Transform, tol float64) bool {
	return floats.EqualApprox(t.coefficients(), u.coefficients(), tol)
}

// Matrix returns the coefficients row by row, matching gocv's 2x3 layout.
func (t Transform) Matrix() [2][3]float64 {
	return [2][3]float64{
		{t.A, t.B, t.TX},
		{t.C, t.D, t.TY},
	}
}

func (t Transform) coefficients() []float64 {
	return []float64{t.A, t.B, t.TX, t.C, t.D, t.TY}
}
