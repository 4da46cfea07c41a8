package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dudu/augcam/internal/camera"
	"github.com/dudu/augcam/internal/geometry"
	"github.com/dudu/augcam/internal/overlay"
	"github.com/dudu/augcam/internal/render"
	"github.com/dudu/augcam/internal/tracking"
)

// Config holds pipeline configuration
type Config struct {
	// Preview is the display size. Zero means the frame size.
	Preview geometry.Size
	// Mirror forces mirrored display regardless of camera position.
	Mirror bool
}

// Timing holds performance timing information
type Timing struct {
	Detection time.Duration
	Placement time.Duration
	Compose   time.Duration
	Total     time.Duration
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithTracker replaces the default tracker
func WithTracker(t *tracking.Tracker) Option {
	return func(p *Pipeline) { p.tracker = t }
}

// WithCompositor replaces the default compositor
func WithCompositor(c Compositor) Option {
	return func(p *Pipeline) { p.compositor = c }
}

// WithImages sets where the glasses image comes from
func WithImages(images overlay.ImageProvider) Option {
	return func(p *Pipeline) { p.images = images }
}

// WithListener adds a face listener
func WithListener(l overlay.FaceListener) Option {
	return func(p *Pipeline) { p.listeners = append(p.listeners, l) }
}

// WithSink adds an output sink
func WithSink(s Sink) Option {
	return func(p *Pipeline) { p.sinks = append(p.sinks, s) }
}

// Pipeline runs detect, track, place and compose for every frame
type Pipeline struct {
	config     Config
	source     FrameSource
	detector   FaceDetector
	tracker    *tracking.Tracker
	compositor Compositor
	images     overlay.ImageProvider
	listeners  []overlay.FaceListener
	sinks      []Sink
	log        logrus.FieldLogger

	lastTiming    atomic.Pointer[Timing]
	lastPlacement atomic.Pointer[overlay.Placement]
	processed     atomic.Uint64
	detectErrors  atomic.Uint64
}

// New creates a pipeline reading from source
func New(config Config, source FrameSource, det FaceDetector, opts ...Option) *Pipeline {
	p := &Pipeline{
		config:   config,
		source:   source,
		detector: det,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracker == nil {
		p.tracker = tracking.New(tracking.WithLogger(p.log))
	}
	if p.compositor == nil {
		p.compositor = render.NewCompositor(render.Options{})
	}
	p.lastTiming.Store(&Timing{})
	return p
}

// Tracker returns the face tracker
func (p *Pipeline) Tracker() *tracking.Tracker {
	return p.tracker
}

// Run processes frames until ctx is done or the source closes its channel
func (p *Pipeline) Run(ctx context.Context) error {
	frames := p.source.Frames()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			out, err := p.Process(ctx, frame)
			if err != nil {
				p.log.WithError(err).WithField("frame", frame.Seq).Error("frame processing failed")
				continue
			}
			p.publish(out)
		}
	}
}

// Process handles a single frame
func (p *Pipeline) Process(ctx context.Context, frame camera.Frame) (Output, error) {
	totalStart := time.Now()
	var timing Timing
	entry := p.log.WithField("frame", frame.Seq)

	// Detect faces
	detectStart := time.Now()
	result, err := p.detector.Detect(ctx, frame.Image)
	timing.Detection = time.Since(detectStart)

	// A failed detection is not an empty one: keep the last known face.
	if err != nil {
		p.detectErrors.Add(1)
		entry.WithError(err).Warn("detection failed")
	} else {
		p.tracker.Update(frame.Seq, result)
	}

	// Place
	placeStart := time.Now()
	snap := p.tracker.Snapshot()
	view := p.view(frame)
	placement := overlay.Place(view, snap.Face)
	timing.Placement = time.Since(placeStart)

	if snap.Face != nil {
		for _, l := range p.listeners {
			l.FaceDetected(*snap.Face, placement)
		}
	}

	// Compose
	composeStart := time.Now()
	glasses := p.glasses(placement)
	img, err := p.compositor.Compose(frame.Image, placement, glasses)
	timing.Compose = time.Since(composeStart)
	if err != nil {
		return Output{}, fmt.Errorf("compose failed: %w", err)
	}

	timing.Total = time.Since(totalStart)
	p.lastTiming.Store(&timing)
	p.lastPlacement.Store(&placement)
	p.processed.Add(1)

	return Output{
		Session:   snap.Session,
		Frame:     frame,
		Placement: placement,
		Image:     img,
		Timing:    timing,
	}, nil
}

func (p *Pipeline) view(frame camera.Frame) overlay.View {
	rect := frame.Rect()
	preview := p.config.Preview
	if preview.Width <= 0 || preview.Height <= 0 {
		preview = rect.Size()
		if frame.Orientation != 0 {
			preview = frame.Orientation.OrientSize(preview)
		}
	}
	return overlay.View{
		Frame:    rect,
		Preview:  geometry.RectOfSize(preview),
		Mirrored: p.config.Mirror || frame.Position.Mirrored(),
	}
}

func (p *Pipeline) glasses(placement overlay.Placement) image.Image {
	if p.images == nil || placement.Eyes == nil {
		return nil
	}
	return p.images.ImageForEyes(*placement.Eyes)
}

func (p *Pipeline) publish(out Output) {
	for _, s := range p.sinks {
		if err := s.Publish(out); err != nil {
			p.log.WithError(err).WithField("frame", out.Frame.Seq).Warn("sink publish failed")
		}
	}
}

// LastTiming returns timing from the last processed frame
func (p *Pipeline) LastTiming() Timing {
	return *p.lastTiming.Load()
}

// LastPlacement returns the last placement, if any
func (p *Pipeline) LastPlacement() (overlay.Placement, bool) {
	pl := p.lastPlacement.Load()
	if pl == nil {
		return overlay.Placement{}, false
	}
	return *pl, true
}

// Stats reports processed frames and failed detections
func (p *Pipeline) Stats() (processed, detectErrors uint64) {
	return p.processed.Load(), p.detectErrors.Load()
}

// Close releases pipeline resources
func (p *Pipeline) Close() error {
	var errs []error

	if p.detector != nil {
		if err := p.detector.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, s := range p.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %w", errors.Join(errs...))
	}
	return nil
}
