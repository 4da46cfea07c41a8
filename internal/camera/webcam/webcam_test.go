package webcam

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/dudu/augcam/internal/camera"
	"github.com/dudu/augcam/internal/geometry"
)

type failingReader struct {
	reads int
}

func (r *failingReader) Read(*gocv.Mat) bool {
	r.reads++
	return false
}

func newSource(t *testing.T, opts Options) (*Source, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	if opts.Devices == nil {
		opts.Devices = []camera.Device{{ID: "0", Name: "cam", Position: camera.PositionBack}}
	}
	s, err := New(opts, log)
	require.NoError(t, err)
	return s, hook
}

func TestStopBeforeStart(t *testing.T) {
	s, _ := newSource(t, Options{})
	assert.Equal(t, camera.SetupSuccess, s.Setup())
	assert.ErrorIs(t, s.Stop(), camera.ErrNotRunning)
	assert.NoError(t, s.Close())
}

func TestFailedSetupIsFinal(t *testing.T) {
	s, _ := newSource(t, Options{
		Devices: []camera.Device{{ID: "front", Name: "bad", Position: camera.PositionBack}},
	})

	err := s.Start(context.Background())
	require.ErrorIs(t, err, camera.ErrConfigurationFailed)
	assert.Equal(t, camera.SetupConfigurationFailed, s.Setup())

	assert.ErrorIs(t, s.Start(context.Background()), camera.ErrConfigurationFailed)
	assert.ErrorIs(t, s.Stop(), camera.ErrConfigurationFailed)
	assert.NoError(t, s.Close())
}

func TestLoopStopsAfterReadFailures(t *testing.T) {
	s, hook := newSource(t, Options{ReadRetryDelay: time.Millisecond, ReadRetryLimit: 3})
	r := &failingReader{}
	done := make(chan struct{})

	s.loop(context.Background(), r, camera.PositionBack, done)

	assert.Equal(t, 3, r.reads)
	_, open := <-done
	assert.False(t, open)
	_, open = <-s.Frames()
	assert.False(t, open, "frame channel closes when the camera is lost")
	assert.Equal(t, camera.SetupConfigurationFailed, s.Setup())

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.NoError(t, s.Close())
}

func TestLoopEndsWithContext(t *testing.T) {
	s, _ := newSource(t, Options{ReadRetryDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})

	s.loop(ctx, &failingReader{}, camera.PositionBack, done)

	assert.Equal(t, camera.SetupSuccess, s.Setup())
	require.NoError(t, s.Close())
}

func TestSetDeviceOrientation(t *testing.T) {
	s, _ := newSource(t, Options{})
	assert.Equal(t, geometry.VideoLandscapeRight, s.Orientation())

	s.SetDeviceOrientation(geometry.DevicePortrait)
	assert.Equal(t, geometry.VideoPortrait, s.Orientation())

	s.SetDeviceOrientation(geometry.DeviceFaceUp)
	assert.Equal(t, geometry.VideoPortrait, s.Orientation())

	s.SetDeviceOrientation(geometry.DeviceLandscapeLeft)
	assert.Equal(t, geometry.VideoLandscapeRight, s.Orientation())
}

func TestRotation(t *testing.T) {
	tests := []struct {
		in   geometry.VideoOrientation
		want gocv.RotateFlag
		ok   bool
	}{
		{geometry.VideoLandscapeRight, 0, false},
		{geometry.VideoPortrait, gocv.Rotate90Clockwise, true},
		{geometry.VideoPortraitUpsideDown, gocv.Rotate90CounterClockwise, true},
		{geometry.VideoLandscapeLeft, gocv.Rotate180Clockwise, true},
	}
	for _, tt := range tests {
		got, ok := rotation(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in.String())
		assert.Equal(t, tt.want, got, tt.in.String())
	}
}
