package geometry

import "math"

// BoundaryEpsilon is subtracted from every scale factor built by
// MakeTransform. Without it a point on the far edge of the source rounds
// one unit past the far edge of the target and overlays poke out of the
// preview by a pixel.
const BoundaryEpsilon = 0.001

// MakeTransform maps source onto target with independent X/Y scaling,
// followed by a translation that centres the scaled source over target.
// Any size left over after scaling is split evenly between both sides.
//
// It panics with a *DegenerateRectError when either rect has no usable
// extent.
func MakeTransform(source, target Rect) Transform {
	mustUsable("source", source)
	mustUsable("target", target)

	sx := correctScale(target.Width / source.Width)
	sy := correctScale(target.Height / source.Height)

	tx := target.X + (target.Width-source.Width*sx)/2 - source.X*sx
	ty := target.Y + (target.Height-source.Height*sy)/2 - source.Y*sy

	return Scale(sx, sy).Then(Translation(tx, ty))
}

// correctScale applies the boundary correction. Ratios that are already
// smaller than the correction are left alone so the scale never changes
// sign.
func correctScale(ratio float64) float64 {
	if ratio <= 2*BoundaryEpsilon {
		return ratio
	}
	return ratio - BoundaryEpsilon
}

// MakeAspectFitTransform maps source into target without distortion. The
// effective target is the largest rect centred in target that has source's
// aspect ratio.
func MakeAspectFitTransform(source, target Rect) Transform {
	mustUsable("source", source)
	mustUsable("target", target)
	return MakeTransform(source, AspectFitRect(source.Size(), target))
}

// AspectFitRect returns the largest rect with the aspect ratio of aspect
// that fits inside bounding, centred, with the surplus axis inset equally
// on both sides.
func AspectFitRect(aspect Size, bounding Rect) Rect {
	mustUsable("aspect", RectOfSize(aspect))
	mustUsable("bounding", bounding)

	scale := math.Min(bounding.Width/aspect.Width, bounding.Height/aspect.Height)
	w := aspect.Width * scale
	h := aspect.Height * scale
	return Rect{
		X:      bounding.X + (bounding.Width-w)/2,
		Y:      bounding.Y + (bounding.Height-h)/2,
		Width:  w,
		Height: h,
	}
}

// FlipTransform converts between a bottom-left origin and a top-left origin
// for a space of the given height: y' = height - y. Applying it twice is the
// identity.
func FlipTransform(height float64) Transform {
	return Scale(1, -1).Then(Translation(0, height))
}

// ConvertFeaturePoint converts a landmark reported with a bottom-left origin
// into the top-left convention of target, then offsets it by target's
// origin.
func ConvertFeaturePoint(p Point, target Rect) Point {
	return FlipTransform(target.Height).Then(Translation(target.X, target.Y)).Apply(p)
}

// ConvertFeatureRect is ConvertFeaturePoint for a rect. The result keeps a
// positive height; its Y is the top edge in the top-left convention.
func ConvertFeatureRect(r Rect, target Rect) Rect {
	return FlipTransform(target.Height).Then(Translation(target.X, target.Y)).ApplyRect(r)
}

// MirrorTransform flips horizontally within a space of the given width:
// x' = width - x.
func MirrorTransform(width float64) Transform {
	return Scale(-1, 1).Then(Translation(width, 0))
}

// MirrorAbout flips horizontally about the vertical centre line of r, so r
// maps onto itself.
func MirrorAbout(r Rect) Transform {
	return Scale(-1, 1).Then(Translation(2*r.X+r.Width, 0))
}

// MirrorHorizontally mirrors p within a space of the given width. Front
// camera frames are shown mirrored so users see themselves as in a mirror.
func MirrorHorizontally(p Point, width float64) Point {
	return MirrorTransform(width).Apply(p)
}

// FrameToDisplay maps frame pixels (top-left origin) into the preview:
// aspect-fit, then for front cameras a mirror about the preview's centre
// line. It is the transform used to draw the frame itself.
func FrameToDisplay(frame, preview Rect, mirrored bool) Transform {
	t := MakeAspectFitTransform(frame, preview)
	if mirrored {
		t = t.Then(MirrorAbout(preview))
	}
	return t
}

// SensorToDisplay maps detector output (bottom-left origin) into the
// preview: flip to top-left, then FrameToDisplay.
func SensorToDisplay(frame, preview Rect, mirrored bool) Transform {
	return Concat(
		FlipTransform(frame.Height),
		Translation(frame.X, frame.Y),
		FrameToDisplay(frame, preview, mirrored),
	)
}
