// Package tracking keeps the per-session "last known face" state.
package tracking

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dudu/augcam/internal/detector"
	"github.com/dudu/augcam/internal/geometry"
)

// State is the tracker state.
type State int

const (
	NoFace State = iota
	FaceDetected
)

func (s State) String() string {
	if s == FaceDetected {
		return "face-detected"
	}
	return "no-face"
}

// Snapshot is an immutable view of the tracker after an update.
type Snapshot struct {
	Session string
	State   State
	// Face is in sensor space; nil in NoFace.
	Face    *detector.FaceFeature
	Frame   geometry.Size
	Seq     uint64
	Updated time.Time
}

// Transition describes what an Update did.
type Transition struct {
	From, To State
}

// Changed reports whether the state changed.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithSmoothing blends a replacement face with the previous one:
// new = alpha*detected + (1-alpha)*previous. alpha 1 (the default) replaces
// outright.
func WithSmoothing(alpha float64) Option {
	return func(t *Tracker) {
		if alpha > 0 && alpha <= 1 {
			t.alpha = alpha
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(t *Tracker) {
		t.log = log
	}
}

// Tracker is a two state machine, NoFace and FaceDetected. Update must be
// called from a single goroutine; Snapshot may be called from any.
// Callbacks must be registered before the first Update.
type Tracker struct {
	session string
	alpha   float64
	log     logrus.FieldLogger
	last    atomic.Pointer[Snapshot]
	onClear []func()
	onFace  []func(detector.FaceFeature)
	now     func() time.Time
}

// New creates a tracker in NoFace with a fresh session id.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		session: uuid.NewString(),
		alpha:   1,
		log:     logrus.StandardLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.last.Store(&Snapshot{Session: t.session, State: NoFace})
	return t
}

// Session returns the session id.
func (t *Tracker) Session() string {
	return t.session
}

// OnClear registers fn to run synchronously whenever the tracker enters
// NoFace. It is where displayed overlays are removed.
func (t *Tracker) OnClear(fn func()) {
	t.onClear = append(t.onClear, fn)
}

// OnFace registers fn to run for every face the tracker accepts.
func (t *Tracker) OnFace(fn func(detector.FaceFeature)) {
	t.onFace = append(t.onFace, fn)
}

// Snapshot returns the latest state.
func (t *Tracker) Snapshot() Snapshot {
	return *t.last.Load()
}

// Update feeds one detection result.
func (t *Tracker) Update(seq uint64, r detector.Result) Transition {
	prev := t.last.Load()
	next := &Snapshot{
		Session: t.session,
		Frame:   r.Frame,
		Seq:     seq,
		Updated: t.now(),
	}

	face := r.Primary()
	if face == nil {
		next.State = NoFace
		t.last.Store(next)
		if prev.State == FaceDetected {
			t.log.WithFields(logrus.Fields{"session": t.session, "frame": seq}).Debug("face lost")
			for _, fn := range t.onClear {
				fn()
			}
		}
		return Transition{From: prev.State, To: NoFace}
	}

	if prev.State == FaceDetected && t.alpha < 1 && prev.Frame == r.Frame {
		smoothed := blend(*face, *prev.Face, t.alpha)
		face = &smoothed
	}
	next.State = FaceDetected
	next.Face = face
	t.last.Store(next)

	if prev.State == NoFace {
		t.log.WithFields(logrus.Fields{"session": t.session, "frame": seq, "faces": len(r.Faces)}).Debug("face found")
	}
	for _, fn := range t.onFace {
		fn(*face)
	}
	return Transition{From: prev.State, To: FaceDetected}
}

// Reset returns to NoFace, running the clear callbacks if a face was shown.
func (t *Tracker) Reset() {
	t.Update(t.Snapshot().Seq, detector.Result{})
}

// blend applies exponential smoothing to the bounds and to landmarks present
// in both faces. Landmarks only in cur are taken as is.
func blend(cur, prev detector.FaceFeature, alpha float64) detector.FaceFeature {
	mix := func(a, b float64) float64 { return alpha*a + (1-alpha)*b }
	out := cur
	out.Bounds = geometry.R(
		mix(cur.Bounds.X, prev.Bounds.X),
		mix(cur.Bounds.Y, prev.Bounds.Y),
		mix(cur.Bounds.Width, prev.Bounds.Width),
		mix(cur.Bounds.Height, prev.Bounds.Height),
	)
	point := func(a, b *geometry.Point) *geometry.Point {
		if a == nil || b == nil {
			return a
		}
		p := geometry.Pt(mix(a.X, b.X), mix(a.Y, b.Y))
		return &p
	}
	out.LeftEye = point(cur.LeftEye, prev.LeftEye)
	out.RightEye = point(cur.RightEye, prev.RightEye)
	out.Mouth = point(cur.Mouth, prev.Mouth)
	return out
}
