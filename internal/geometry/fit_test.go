package geometry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rectPairs = []struct {
	source, target Rect
}{
	{R(0, 0, 640, 480), R(0, 0, 375, 667)},
	{R(0, 0, 1280, 720), R(0, 0, 1920, 1080)},
	{R(0, 0, 480, 640), R(0, 0, 1024, 768)},
	{R(12, -7, 33, 91), R(-50, 20, 400, 3)},
	{R(0, 0, 1, 1), R(100, 100, 1, 1)},
	{R(5, 5, 3000, 10), R(0, 0, 10, 3000)},
}

func TestMakeTransformInvertRoundTrip(t *testing.T) {
	for _, tc := range rectPairs {
		t.Run(fmt.Sprintf("%v->%v", tc.source, tc.target), func(t *testing.T) {
			tr := MakeTransform(tc.source, tc.target)
			inv, ok := tr.Invert()
			require.True(t, ok)

			for _, c := range tc.source.Corners() {
				back := inv.Apply(tr.Apply(c))
				assert.True(t, back.ApproxEqual(c, 1e-9), "corner %v came back as %v", c, back)
			}
		})
	}
}

func TestMakeTransformCentersSourceOverTarget(t *testing.T) {
	for _, tc := range rectPairs {
		tr := MakeTransform(tc.source, tc.target)
		center := tr.Apply(tc.source.Center())
		assert.True(t, center.ApproxEqual(tc.target.Center(), 1e-9), "centre %v, want %v", center, tc.target.Center())
		assert.True(t, tc.target.ContainsRect(tr.ApplyRect(tc.source), 1e-9))
	}
}

func TestMakeTransformIdentity(t *testing.T) {
	for _, r := range []Rect{R(0, 0, 640, 480), R(10, 20, 640, 480), R(0, 0, 1, 1)} {
		tr := MakeTransform(r, r)

		assert.InDelta(t, 1, tr.ScaleX(), BoundaryEpsilon+1e-12)
		assert.InDelta(t, 1, tr.ScaleY(), BoundaryEpsilon+1e-12)
		assert.InDelta(t, 0, tr.TranslationX(), BoundaryEpsilon*r.MaxX())
		assert.InDelta(t, 0, tr.TranslationY(), BoundaryEpsilon*r.MaxY())
		assert.Zero(t, tr.B)
		assert.Zero(t, tr.C)
	}
}

func TestMakeAspectFitTransformStaysInsideTarget(t *testing.T) {
	target := R(0, 0, 375, 667)
	sources := []Rect{
		R(0, 0, 640, 480),  // wider than target
		R(0, 0, 100, 900),  // narrower than target
		R(0, 0, 375, 667),  // same aspect
		R(30, 40, 1920, 1080),
	}
	for _, src := range sources {
		tr := MakeAspectFitTransform(src, target)
		mapped := tr.ApplyRect(src)

		assert.True(t, target.ContainsRect(mapped, 1e-9), "%v mapped to %v", src, mapped)
		assert.InDelta(t, src.Size().AspectRatio(), mapped.Size().AspectRatio(), 0.01)
	}
}

func TestMakeAspectFitTransformExample(t *testing.T) {
	source := R(0, 0, 640, 480)
	target := R(0, 0, 375, 667)

	fit := AspectFitRect(source.Size(), target)
	assert.InDelta(t, 281.25, fit.Height, 1e-9)
	assert.InDelta(t, 375, fit.Width, 1e-9)
	assert.InDelta(t, (667-281.25)/2, fit.Y, 1e-9)
	assert.Zero(t, fit.X)

	tr := MakeAspectFitTransform(source, target)
	assert.InDelta(t, 375.0/640-BoundaryEpsilon, tr.ScaleX(), 1e-12)
	assert.InDelta(t, 281.25/480-BoundaryEpsilon, tr.ScaleY(), 1e-12)

	mapped := tr.ApplyRect(source)
	assert.True(t, fit.ContainsRect(mapped, 1e-9))
	assert.InDelta(t, fit.Center().Y, mapped.Center().Y, 1e-9)
}

func TestConvertFeaturePoint(t *testing.T) {
	got := ConvertFeaturePoint(Pt(100, 50), R(0, 0, 375, 667))
	assert.Equal(t, Pt(100, 617), got)

	offset := ConvertFeaturePoint(Pt(100, 50), R(10, 20, 375, 667))
	assert.Equal(t, Pt(110, 637), offset)
}

func TestFlipIsInvolutive(t *testing.T) {
	for _, h := range []float64{1, 480, 667, 1080.5} {
		flip := FlipTransform(h)
		assert.True(t, flip.Then(flip).IsIdentity(1e-12))

		p := Pt(17, 123.25)
		assert.InDelta(t, p.Y, flip.Apply(flip.Apply(p)).Y, 1e-12)
		assert.Equal(t, p, ConvertFeaturePoint(ConvertFeaturePoint(p, R(0, 0, 1, h)), R(0, 0, 1, h)))
	}
}

func TestConvertFeatureRectKeepsPositiveExtent(t *testing.T) {
	got := ConvertFeatureRect(R(100, 50, 80, 120), R(0, 0, 640, 480))
	assert.Equal(t, R(100, 310, 80, 120), got)
}

func TestMirrorHorizontally(t *testing.T) {
	assert.Equal(t, Pt(275, 617), MirrorHorizontally(Pt(100, 617), 375))

	preview := R(20, 0, 200, 100)
	m := MirrorAbout(preview)
	assert.Equal(t, preview, m.ApplyRect(preview))
	assert.Equal(t, Pt(220, 5), m.Apply(Pt(20, 5)))
}

func TestSensorToDisplay(t *testing.T) {
	frame := R(0, 0, 640, 480)
	preview := R(0, 0, 375, 667)

	for _, mirrored := range []bool{false, true} {
		tr := SensorToDisplay(frame, preview, mirrored)

		center := tr.Apply(frame.Center())
		assert.True(t, center.ApproxEqual(preview.Center(), 1e-9))
		assert.True(t, preview.ContainsRect(tr.ApplyRect(frame), 1e-9))
	}

	// Bottom-left sensor corner lands at the bottom-left of the fitted area.
	back := SensorToDisplay(frame, preview, false).Apply(Pt(0, 0))
	fit := AspectFitRect(frame.Size(), preview)
	assert.InDelta(t, fit.MinX(), back.X, 1)
	assert.InDelta(t, fit.MaxY(), back.Y, 1)

	front := SensorToDisplay(frame, preview, true).Apply(Pt(0, 0))
	assert.InDelta(t, fit.MaxX(), front.X, 1)
	assert.InDelta(t, back.Y, front.Y, 1e-9)
}

func TestDegenerateRectsPanic(t *testing.T) {
	ok := R(0, 0, 10, 10)
	cases := map[string]func(){
		"zero source width":   func() { MakeTransform(R(0, 0, 0, 10), ok) },
		"zero target height":  func() { MakeTransform(ok, R(0, 0, 10, 0)) },
		"negative source":     func() { MakeAspectFitTransform(R(0, 0, -1, 10), ok) },
		"zero aspect-fit dst": func() { MakeAspectFitTransform(ok, R(0, 0, 0, 0)) },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			err := recoverErr(fn)
			var derr *DegenerateRectError
			require.True(t, errors.As(err, &derr), "got %v", err)
			assert.NotEmpty(t, derr.Role)
		})
	}
}

func TestRectValidate(t *testing.T) {
	assert.NoError(t, R(0, 0, 1, 1).Validate())
	assert.Error(t, R(0, 0, 0, 1).Validate())
	assert.Error(t, R(0, 0, 1, -1).Validate())
}

func recoverErr(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err, _ = r.(error)
		}
	}()
	fn()
	return nil
}
