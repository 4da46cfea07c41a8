// Package camera defines the capture capability the pipeline consumes:
// device enumeration and selection, start/stop, and frame delivery.
// Concrete capture backends live in subpackages.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dudu/augcam/internal/geometry"
)

var (
	ErrNotAuthorized       = errors.New("doesn't have permission to use the camera, please change privacy settings")
	ErrConfigurationFailed = errors.New("unable to capture media")
	ErrNoDevice            = errors.New("no camera device available")
	ErrNotRunning          = errors.New("capture is not running")
	ErrDeviceLost          = errors.New("camera stopped delivering frames")
)

// Position is the side of the device a camera faces.
type Position int

const (
	PositionUnspecified Position = iota
	PositionBack
	PositionFront
)

func (p Position) String() string {
	switch p {
	case PositionBack:
		return "back"
	case PositionFront:
		return "front"
	default:
		return "unspecified"
	}
}

// Mirrored reports whether frames from this position are shown mirrored.
func (p Position) Mirrored() bool {
	return p == PositionFront
}

// Kind is the camera hardware type.
type Kind int

const (
	KindWideAngle Kind = iota
	KindDualCamera
)

// Device describes one capture device.
type Device struct {
	ID       string
	Name     string
	Position Position
	Kind     Kind
}

// SelectDefault picks the device a session starts with: the back dual
// camera, else the back wide angle camera, else the front wide angle
// camera, which is all that is left on some damaged phones.
func SelectDefault(devices []Device) (Device, error) {
	prefs := []struct {
		pos  Position
		kind Kind
	}{
		{PositionBack, KindDualCamera},
		{PositionBack, KindWideAngle},
		{PositionFront, KindWideAngle},
	}
	for _, pref := range prefs {
		for _, d := range devices {
			if d.Position == pref.pos && d.Kind == pref.kind {
				return d, nil
			}
		}
	}
	return Device{}, ErrNoDevice
}

// SetupResult is the outcome of configuring a capture session.
type SetupResult int

const (
	SetupSuccess SetupResult = iota
	SetupNotAuthorized
	SetupConfigurationFailed
)

// Err returns the error Start reports for this result, nil on success.
func (r SetupResult) Err() error {
	switch r {
	case SetupNotAuthorized:
		return ErrNotAuthorized
	case SetupConfigurationFailed:
		return ErrConfigurationFailed
	default:
		return nil
	}
}

// Frame is one captured video frame. Image uses a top-left origin.
type Frame struct {
	Seq         uint64
	Image       image.Image
	Position    Position
	Orientation geometry.VideoOrientation
	Captured    time.Time
}

// Rect returns the frame's pixel rect in sensor space.
func (f Frame) Rect() geometry.Rect {
	b := f.Image.Bounds()
	return geometry.R(0, 0, float64(b.Dx()), float64(b.Dy()))
}

// Source is a capture capability.
type Source interface {
	Devices() []Device
	Select(id string) error
	Start(ctx context.Context) error
	Stop() error
	Frames() <-chan Frame
}

// Queue is a bounded single-producer frame channel. When the consumer
// falls behind, new frames are discarded rather than queued.
type Queue struct {
	ch      chan Frame
	dropped atomic.Uint64
	closed  atomic.Bool
	once    sync.Once
}

// NewQueue creates a queue holding at most capacity frames.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan Frame, capacity)}
}

// Offer enqueues f without blocking. It returns false when the frame was
// dropped.
func (q *Queue) Offer(f Frame) bool {
	if q.closed.Load() {
		q.dropped.Add(1)
		return false
	}
	select {
	case q.ch <- f:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Frames returns the receive side.
func (q *Queue) Frames() <-chan Frame {
	return q.ch
}

// Dropped returns how many frames were discarded.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Close closes the channel. Only the producer may call it; later calls are
// no-ops and later offers are dropped.
func (q *Queue) Close() {
	q.once.Do(func() {
		q.closed.Store(true)
		close(q.ch)
	})
}

// Retry defaults for capture loops.
const (
	DefaultReadRetryDelay = 10 * time.Millisecond
	DefaultReadRetryLimit = 100
)

// ReadRetry paces a capture loop through failed device reads so a
// disconnected camera neither spins a core nor hangs the session forever.
type ReadRetry struct {
	Delay time.Duration
	Limit int

	failures int
}

// Failed records one failed read and waits Delay before the next attempt.
// It returns ErrDeviceLost once Limit reads in a row have failed, and the
// context's error if ctx ends while waiting.
func (r *ReadRetry) Failed(ctx context.Context) error {
	r.failures++
	limit := r.Limit
	if limit <= 0 {
		limit = DefaultReadRetryLimit
	}
	if r.failures >= limit {
		return fmt.Errorf("%d consecutive reads failed: %w", r.failures, ErrDeviceLost)
	}
	delay := r.Delay
	if delay <= 0 {
		delay = DefaultReadRetryDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Succeeded resets the failure count.
func (r *ReadRetry) Succeeded() {
	r.failures = 0
}

// Failures returns the current run of failed reads.
func (r *ReadRetry) Failures() int {
	return r.failures
}
