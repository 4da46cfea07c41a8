// Package webcam is the gocv capture backend.
package webcam

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/dudu/augcam/internal/camera"
	"github.com/dudu/augcam/internal/geometry"
)

// Options configures a Source.
type Options struct {
	Devices     []camera.Device
	Width       int
	Height      int
	TargetFPS   int
	QueueSize   int
	Orientation geometry.VideoOrientation

	// Read failures are retried every ReadRetryDelay; the device is
	// considered lost after ReadRetryLimit failures in a row.
	ReadRetryDelay time.Duration
	ReadRetryLimit int
}

// reader is the part of gocv.VideoCapture the capture loop reads from.
type reader interface {
	Read(m *gocv.Mat) bool
}

// Source captures frames from an OpenCV video device.
type Source struct {
	opts   Options
	log    logrus.FieldLogger
	queue  *camera.Queue
	device camera.Device

	setup       atomic.Int32
	orientation atomic.Int32

	mu      sync.Mutex
	webcam  *gocv.VideoCapture
	cancel  context.CancelFunc
	done    chan struct{}
	seq     uint64
	running bool
}

var _ camera.Source = (*Source)(nil)

// New creates a source and selects the default device.
func New(opts Options, log logrus.FieldLogger) (*Source, error) {
	device, err := camera.SelectDefault(opts.Devices)
	if err != nil {
		return nil, err
	}
	if opts.Orientation == 0 {
		opts.Orientation = geometry.VideoLandscapeRight
	}
	s := &Source{
		opts:   opts,
		log:    log,
		queue:  camera.NewQueue(opts.QueueSize),
		device: device,
	}
	s.orientation.Store(int32(opts.Orientation))
	return s, nil
}

// Setup returns the outcome of configuring the capture session. A failed
// setup is final for the source: Start keeps reporting it.
func (s *Source) Setup() camera.SetupResult {
	return camera.SetupResult(s.setup.Load())
}

func (s *Source) fail(r camera.SetupResult) {
	s.setup.Store(int32(r))
}

// Orientation returns the orientation frames are delivered in.
func (s *Source) Orientation() geometry.VideoOrientation {
	return geometry.VideoOrientation(s.orientation.Load())
}

// SetDeviceOrientation follows a physical device rotation. Face-up,
// face-down and unknown orientations leave frames as they are.
func (s *Source) SetDeviceOrientation(o geometry.DeviceOrientation) {
	v, ok := o.VideoOrientation()
	if !ok {
		return
	}
	if geometry.VideoOrientation(s.orientation.Swap(int32(v))) != v {
		s.log.WithField("orientation", v).Debug("video orientation changed")
	}
}

// Devices returns the configured devices.
func (s *Source) Devices() []camera.Device {
	return s.opts.Devices
}

// Device returns the selected device.
func (s *Source) Device() camera.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Select switches to the device with the given id. It takes effect on the
// next Start.
func (s *Source) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.opts.Devices {
		if d.ID == id {
			s.device = d
			return nil
		}
	}
	return fmt.Errorf("select %q: %w", id, camera.ErrNoDevice)
}

// Start opens the selected device and begins delivering frames.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Setup().Err(); err != nil {
		return fmt.Errorf("start %s: %w", s.device.Name, err)
	}
	if s.running {
		return nil
	}

	index, err := strconv.Atoi(s.device.ID)
	if err != nil {
		s.fail(camera.SetupConfigurationFailed)
		return fmt.Errorf("device id %q is not an index: %w", s.device.ID, camera.ErrConfigurationFailed)
	}

	webcam, err := gocv.OpenVideoCapture(index)
	if err != nil {
		s.fail(camera.SetupConfigurationFailed)
		return fmt.Errorf("failed to open camera %d: %v: %w", index, err, camera.ErrConfigurationFailed)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		s.fail(camera.SetupConfigurationFailed)
		return fmt.Errorf("camera %d did not open: %w", index, camera.ErrConfigurationFailed)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(s.opts.Width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(s.opts.Height))
	webcam.Set(gocv.VideoCaptureFPS, float64(s.opts.TargetFPS))

	s.log.WithFields(logrus.Fields{
		"device":   s.device.Name,
		"position": s.device.Position,
		"width":    int(webcam.Get(gocv.VideoCaptureFrameWidth)),
		"height":   int(webcam.Get(gocv.VideoCaptureFrameHeight)),
	}).Info("camera opened")

	ctx, cancel := context.WithCancel(ctx)
	s.webcam = webcam
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx, webcam, s.device.Position, s.done)
	return nil
}

func (s *Source) loop(ctx context.Context, r reader, pos camera.Position, done chan struct{}) {
	defer close(done)

	mat := gocv.NewMat()
	defer mat.Close()
	rotated := gocv.NewMat()
	defer rotated.Close()

	retry := camera.ReadRetry{Delay: s.opts.ReadRetryDelay, Limit: s.opts.ReadRetryLimit}
	for ctx.Err() == nil {
		if !r.Read(&mat) || mat.Empty() {
			if err := retry.Failed(ctx); err != nil {
				if errors.Is(err, camera.ErrDeviceLost) {
					s.log.WithError(err).Error("camera lost, stopping capture")
					s.fail(camera.SetupConfigurationFailed)
					s.queue.Close()
				}
				return
			}
			continue
		}
		retry.Succeeded()

		orientation := s.Orientation()
		src := mat
		if flag, ok := rotation(orientation); ok {
			if err := gocv.Rotate(mat, &rotated, flag); err != nil {
				s.log.WithError(err).Warn("failed to rotate frame")
				continue
			}
			src = rotated
		}
		img, err := src.ToImage()
		if err != nil {
			s.log.WithError(err).Warn("failed to convert frame")
			continue
		}

		s.seq++
		frame := camera.Frame{
			Seq:         s.seq,
			Image:       img,
			Position:    pos,
			Orientation: orientation,
			Captured:    time.Now(),
		}
		if !s.queue.Offer(frame) {
			s.log.WithField("frame", frame.Seq).Debug("late frame discarded")
		}
	}
}

// rotation returns the turn that brings a landscape-right sensor image into
// orientation o.
func rotation(o geometry.VideoOrientation) (gocv.RotateFlag, bool) {
	switch o {
	case geometry.VideoPortrait:
		return gocv.Rotate90Clockwise, true
	case geometry.VideoPortraitUpsideDown:
		return gocv.Rotate90CounterClockwise, true
	case geometry.VideoLandscapeLeft:
		return gocv.Rotate180Clockwise, true
	default:
		return 0, false
	}
}

// Stop halts capture and releases the device. Frames already queued stay
// readable. A source whose setup failed reports that failure.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		if err := s.Setup().Err(); err != nil {
			return err
		}
		return camera.ErrNotRunning
	}
	return s.stopLocked()
}

func (s *Source) stopLocked() error {
	s.cancel()
	<-s.done
	s.running = false

	err := s.webcam.Close()
	s.webcam = nil
	return err
}

// Frames returns the frame channel. It is closed by Close, or when the
// camera stops delivering frames.
func (s *Source) Frames() <-chan camera.Frame {
	return s.queue.Frames()
}

// Dropped returns the number of discarded late frames.
func (s *Source) Dropped() uint64 {
	return s.queue.Dropped()
}

// Close stops capture if needed and closes the frame channel.
func (s *Source) Close() error {
	s.mu.Lock()
	var err error
	if s.running {
		err = s.stopLocked()
	}
	s.mu.Unlock()

	s.queue.Close()
	return err
}
