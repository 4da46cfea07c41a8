package overlay

import "github.com/dudu/augcam/internal/detector"

// FaceListener is told about every face that is placed. face is in sensor
// space, p in display space.
type FaceListener interface {
	FaceDetected(face detector.FaceFeature, p Placement)
}

// ListenerFunc adapts a function to FaceListener.
type ListenerFunc func(face detector.FaceFeature, p Placement)

// FaceDetected calls f.
func (f ListenerFunc) FaceDetected(face detector.FaceFeature, p Placement) {
	f(face, p)
}
