package tracking

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudu/augcam/internal/detector"
	"github.com/dudu/augcam/internal/geometry"
)

var frame = geometry.Sz(640, 480)

func result(faces ...detector.FaceFeature) detector.Result {
	return detector.Result{Frame: frame, Faces: faces}
}

func face(x, y, size float64) detector.FaceFeature {
	return detector.FaceFeature{Bounds: geometry.R(x, y, size, size), Score: 0.9}
}

func TestTrackerStartsEmpty(t *testing.T) {
	tr := New()
	snap := tr.Snapshot()
	assert.Equal(t, NoFace, snap.State)
	assert.Nil(t, snap.Face)
	assert.NotEmpty(t, tr.Session())
	assert.Equal(t, tr.Session(), snap.Session)
}

func TestTrackerTransitions(t *testing.T) {
	tr := New()

	tx := tr.Update(1, result(face(10, 10, 100)))
	assert.Equal(t, Transition{From: NoFace, To: FaceDetected}, tx)
	assert.True(t, tx.Changed())

	tx = tr.Update(2, result(face(20, 20, 100)))
	assert.Equal(t, Transition{From: FaceDetected, To: FaceDetected}, tx)
	assert.False(t, tx.Changed())
	snap := tr.Snapshot()
	require.NotNil(t, snap.Face)
	assert.Equal(t, 20.0, snap.Face.Bounds.X, "non-empty result replaces the face")
	assert.Equal(t, uint64(2), snap.Seq)

	tx = tr.Update(3, result())
	assert.Equal(t, Transition{From: FaceDetected, To: NoFace}, tx)
	assert.Nil(t, tr.Snapshot().Face)

	tx = tr.Update(4, result())
	assert.Equal(t, Transition{From: NoFace, To: NoFace}, tx)
}

func TestTrackerClearRunsSynchronously(t *testing.T) {
	tr := New()
	cleared := 0
	tr.OnClear(func() { cleared++ })

	tr.Update(1, result())
	assert.Equal(t, 0, cleared, "no clear without a shown face")

	tr.Update(2, result(face(0, 0, 50)))
	tr.Update(3, result())
	assert.Equal(t, 1, cleared, "clear must have run before Update returned")

	tr.Update(4, result())
	assert.Equal(t, 1, cleared)
}

func TestTrackerOnFace(t *testing.T) {
	tr := New()
	var got []detector.FaceFeature
	tr.OnFace(func(f detector.FaceFeature) { got = append(got, f) })

	small, large := face(0, 0, 40), face(100, 100, 120)
	tr.Update(1, result(small, large))
	require.Len(t, got, 1)
	assert.Equal(t, large.Bounds, got[0].Bounds, "the primary face is tracked")
}

func TestTrackerSmoothing(t *testing.T) {
	tr := New(WithSmoothing(0.5))
	left := geometry.Pt(30, 30)
	first := face(0, 0, 100)
	first.LeftEye = &left
	tr.Update(1, result(first))

	movedEye := geometry.Pt(50, 50)
	second := face(100, 100, 100)
	second.LeftEye = &movedEye
	tr.Update(2, result(second))

	snap := tr.Snapshot()
	require.NotNil(t, snap.Face)
	assert.InDelta(t, 50, snap.Face.Bounds.X, 1e-9)
	assert.InDelta(t, 50, snap.Face.Bounds.Y, 1e-9)
	require.NotNil(t, snap.Face.LeftEye)
	assert.InDelta(t, 40, snap.Face.LeftEye.X, 1e-9)
	assert.Nil(t, snap.Face.RightEye)
}

func TestTrackerReset(t *testing.T) {
	log, hooks := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	tr := New(WithLogger(log))
	cleared := false
	tr.OnClear(func() { cleared = true })

	tr.Update(1, result(face(0, 0, 50)))
	tr.Reset()

	assert.True(t, cleared)
	assert.Equal(t, NoFace, tr.Snapshot().State)
	require.NotEmpty(t, hooks.AllEntries())
	assert.Equal(t, "face lost", hooks.LastEntry().Message)
}
