package detector

import (
	"context"
	"errors"
	"image"

	"github.com/dudu/augcam/internal/geometry"
)

// ErrClosed is returned by Detect after Close.
var ErrClosed = errors.New("detector is closed")

// Detector finds faces in a frame. Implementations wrap an external model
// and report every coordinate in sensor space (bottom-left origin, frame
// pixels).
type Detector interface {
	Detect(ctx context.Context, img image.Image) (Result, error)
	Close() error
}

// FaceFeature is one detected face in sensor space. Landmarks are optional:
// a nil point means the detector did not find it, which is not an error.
type FaceFeature struct {
	Bounds   geometry.Rect   `json:"bounds"`
	LeftEye  *geometry.Point `json:"left_eye,omitempty"`
	RightEye *geometry.Point `json:"right_eye,omitempty"`
	Mouth    *geometry.Point `json:"mouth,omitempty"`
	Score    float32         `json:"score"`
}

// HasEyes reports whether both eye positions are known.
func (f FaceFeature) HasEyes() bool {
	return f.LeftEye != nil && f.RightEye != nil
}

// HasMouth reports whether the mouth position is known.
func (f FaceFeature) HasMouth() bool {
	return f.Mouth != nil
}

// Area returns the bounding box area.
func (f FaceFeature) Area() float64 {
	return f.Bounds.Width * f.Bounds.Height
}

// Result is the outcome of one detection pass.
type Result struct {
	// Frame is the size of the analysed frame in pixels.
	Frame geometry.Size
	// Faces are in sensor space, sorted by descending score.
	Faces []FaceFeature
}

// Empty reports whether no face was found.
func (r Result) Empty() bool {
	return len(r.Faces) == 0
}

// Primary returns the face overlays should follow: the largest one, with
// the score breaking ties. It returns nil for an empty result.
func (r Result) Primary() *FaceFeature {
	if r.Empty() {
		return nil
	}
	best := 0
	for i := 1; i < len(r.Faces); i++ {
		a, b := r.Faces[i], r.Faces[best]
		if a.Area() > b.Area() || (a.Area() == b.Area() && a.Score > b.Score) {
			best = i
		}
	}
	f := r.Faces[best]
	return &f
}

// FromTopLeft converts a face measured with a top-left origin, as most
// model outputs are, into sensor space for a frame of the given size.
func FromTopLeft(f FaceFeature, frame geometry.Size) FaceFeature {
	space := geometry.RectOfSize(frame)
	out := f
	out.Bounds = geometry.ConvertFeatureRect(f.Bounds, space)
	out.LeftEye = convertOptional(f.LeftEye, space)
	out.RightEye = convertOptional(f.RightEye, space)
	out.Mouth = convertOptional(f.Mouth, space)
	return out
}

func convertOptional(p *geometry.Point, space geometry.Rect) *geometry.Point {
	if p == nil {
		return nil
	}
	c := geometry.ConvertFeaturePoint(*p, space)
	return &c
}
