package camera

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudu/augcam/internal/geometry"
)

func TestSelectDefault(t *testing.T) {
	backDual := Device{ID: "0", Position: PositionBack, Kind: KindDualCamera}
	backWide := Device{ID: "1", Position: PositionBack, Kind: KindWideAngle}
	frontWide := Device{ID: "2", Position: PositionFront, Kind: KindWideAngle}

	tests := []struct {
		name    string
		devices []Device
		want    Device
		wantErr error
	}{
		{"dual preferred", []Device{frontWide, backWide, backDual}, backDual, nil},
		{"back wide next", []Device{frontWide, backWide}, backWide, nil},
		{"front as last resort", []Device{frontWide}, frontWide, nil},
		{"nothing usable", []Device{{ID: "x", Position: PositionUnspecified}}, Device{}, ErrNoDevice},
		{"empty", nil, Device{}, ErrNoDevice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectDefault(tt.devices)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupResultErr(t *testing.T) {
	assert.NoError(t, SetupSuccess.Err())
	assert.ErrorIs(t, SetupNotAuthorized.Err(), ErrNotAuthorized)
	assert.ErrorIs(t, SetupConfigurationFailed.Err(), ErrConfigurationFailed)
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(1)

	require.True(t, q.Offer(Frame{Seq: 1}))
	assert.False(t, q.Offer(Frame{Seq: 2}))
	assert.False(t, q.Offer(Frame{Seq: 3}))
	assert.Equal(t, uint64(2), q.Dropped())

	f := <-q.Frames()
	assert.Equal(t, uint64(1), f.Seq)

	require.True(t, q.Offer(Frame{Seq: 4}))
	q.Close()

	var seqs []uint64
	for f := range q.Frames() {
		seqs = append(seqs, f.Seq)
	}
	assert.Equal(t, []uint64{4}, seqs)
}

func TestFrameRect(t *testing.T) {
	f := Frame{Image: image.NewRGBA(image.Rect(0, 0, 640, 480))}
	assert.Equal(t, geometry.R(0, 0, 640, 480), f.Rect())
	assert.True(t, PositionFront.Mirrored())
	assert.False(t, PositionBack.Mirrored())
}

func TestQueueCloseTwice(t *testing.T) {
	q := NewQueue(2)
	q.Close()
	assert.NotPanics(t, q.Close)
	assert.False(t, q.Offer(Frame{Seq: 1}))
	assert.Equal(t, uint64(1), q.Dropped())

	_, ok := <-q.Frames()
	assert.False(t, ok)
}

func TestReadRetryGivesUpAfterLimit(t *testing.T) {
	r := ReadRetry{Delay: time.Millisecond, Limit: 3}
	ctx := context.Background()

	require.NoError(t, r.Failed(ctx))
	require.NoError(t, r.Failed(ctx))
	err := r.Failed(ctx)
	assert.ErrorIs(t, err, ErrDeviceLost)
	assert.Equal(t, 3, r.Failures())
}

func TestReadRetryResetsOnSuccess(t *testing.T) {
	r := ReadRetry{Delay: time.Millisecond, Limit: 2}
	ctx := context.Background()

	require.NoError(t, r.Failed(ctx))
	r.Succeeded()
	assert.Equal(t, 0, r.Failures())
	require.NoError(t, r.Failed(ctx))
	assert.ErrorIs(t, r.Failed(ctx), ErrDeviceLost)
}

func TestReadRetryWaits(t *testing.T) {
	r := ReadRetry{Delay: 20 * time.Millisecond, Limit: 10}
	start := time.Now()
	require.NoError(t, r.Failed(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestReadRetryStopsWithContext(t *testing.T) {
	r := ReadRetry{Delay: time.Hour, Limit: 10}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Failed(ctx), context.Canceled)
}
