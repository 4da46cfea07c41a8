package pipeline

import (
	"context"
	"image"

	"github.com/dudu/augcam/internal/camera"
	"github.com/dudu/augcam/internal/detector"
	"github.com/dudu/augcam/internal/overlay"
)

// Backend represents the face detector to use
type Backend string

const (
	BackendPigo  Backend = "pigo"
	BackendSCRFD Backend = "scrfd"
)

// FrameSource delivers captured frames
type FrameSource interface {
	Frames() <-chan camera.Frame
}

// FaceDetector interface for face detection
type FaceDetector interface {
	Detect(ctx context.Context, img image.Image) (detector.Result, error)
	Close() error
}

// Compositor draws a placement onto a frame
type Compositor interface {
	Compose(frame image.Image, p overlay.Placement, glasses image.Image) (image.Image, error)
}

// Output is what the pipeline publishes for each processed frame
type Output struct {
	Session   string
	Frame     camera.Frame
	Placement overlay.Placement
	Image     image.Image
	Timing    Timing
}

// Sink consumes pipeline output. Publish runs on the pipeline goroutine and
// should return quickly.
type Sink interface {
	Publish(out Output) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(out Output) error

// Publish calls f
func (f SinkFunc) Publish(out Output) error {
	return f(out)
}
