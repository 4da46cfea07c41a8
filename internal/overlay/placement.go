// Package overlay places face-anchored decorations in display space.
package overlay

import (
	"github.com/dudu/augcam/internal/detector"
	"github.com/dudu/augcam/internal/geometry"
)

const (
	// EyesWidthFactor is the glasses width relative to the eye distance.
	EyesWidthFactor = 2.0
	// GlassesAspect is the glasses height relative to their width.
	GlassesAspect = 0.4
)

// View describes where a camera frame is shown.
type View struct {
	// Frame is the captured frame's pixel rect in sensor space.
	Frame geometry.Rect `json:"frame"`
	// Preview is the on-screen rect in display space.
	Preview geometry.Rect `json:"preview"`
	// Mirrored is set for front cameras.
	Mirrored bool `json:"mirrored"`
}

// FrameTransform maps frame pixels (top-left origin) into the preview.
func (v View) FrameTransform() geometry.Transform {
	return geometry.FrameToDisplay(v.Frame, v.Preview, v.Mirrored)
}

// SensorPoint maps a sensor-space point into the preview, mirrored about
// the preview's centre line for mirrored views.
func (v View) SensorPoint(p geometry.Point) geometry.Point {
	return v.mirror(v.sensorToPreview().Apply(p))
}

// SensorRect maps a sensor-space rect into the preview.
func (v View) SensorRect(r geometry.Rect) geometry.Rect {
	r = v.sensorToPreview().ApplyRect(r)
	if !v.Mirrored {
		return r
	}
	return geometry.BoundingRect(
		v.mirror(geometry.Pt(r.MinX(), r.MinY())),
		v.mirror(geometry.Pt(r.MaxX(), r.MaxY())),
	)
}

func (v View) sensorToPreview() geometry.Transform {
	return geometry.SensorToDisplay(v.Frame, v.Preview, false)
}

func (v View) mirror(p geometry.Point) geometry.Point {
	if !v.Mirrored {
		return p
	}
	origin := geometry.Pt(v.Preview.X, 0)
	return geometry.MirrorHorizontally(p.Sub(origin), v.Preview.Width).Add(origin)
}

// Placement is a face's geometry in display space (top-left origin,
// preview coordinates). Landmarks the detector did not report stay nil.
type Placement struct {
	Space    geometry.Space  `json:"space"`
	View     View            `json:"view"`
	Visible  bool            `json:"visible"`
	Face     geometry.Rect   `json:"face"`
	LeftEye  *geometry.Point `json:"left_eye,omitempty"`
	RightEye *geometry.Point `json:"right_eye,omitempty"`
	Mouth    *geometry.Point `json:"mouth,omitempty"`
	// Eyes is where glasses go; nil unless both eyes are known.
	Eyes  *geometry.Rect `json:"eyes,omitempty"`
	Score float32        `json:"score"`
}

// Place converts face from sensor space into view's display space. A nil
// face yields an invisible placement.
func Place(view View, face *detector.FaceFeature) Placement {
	p := Placement{Space: geometry.SpacePreview, View: view}
	if face == nil {
		return p
	}

	p.Visible = true
	p.Score = face.Score
	p.Face = view.SensorRect(face.Bounds)
	p.LeftEye = applyOptional(view, face.LeftEye)
	p.RightEye = applyOptional(view, face.RightEye)
	p.Mouth = applyOptional(view, face.Mouth)
	if p.LeftEye != nil && p.RightEye != nil {
		eyes := EyesRect(*p.LeftEye, *p.RightEye)
		p.Eyes = &eyes
	}
	return p
}

// EyesRect returns the glasses rect for two display-space eye positions:
// centred between the eyes, twice the eye distance wide.
func EyesRect(left, right geometry.Point) geometry.Rect {
	c := left.Midpoint(right)
	w := left.Distance(right) * EyesWidthFactor
	h := w * GlassesAspect
	return geometry.R(c.X-w/2, c.Y-h/2, w, h)
}

func applyOptional(v View, p *geometry.Point) *geometry.Point {
	if p == nil {
		return nil
	}
	q := v.SensorPoint(*p)
	return &q
}
