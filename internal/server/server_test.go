package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudu/augcam/internal/camera"
	"github.com/dudu/augcam/internal/geometry"
	"github.com/dudu/augcam/internal/overlay"
	"github.com/dudu/augcam/internal/pipeline"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	log, _ := test.NewNullLogger()
	return New(log)
}

func get(t *testing.T, s *Server, path string) (int, []byte) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	code, body := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","clients":0}`, string(body))
}

func TestPlacementBeforeAnyFrame(t *testing.T) {
	s := newServer(t)
	code, _ := get(t, s, "/placement")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPlacementAfterPublish(t *testing.T) {
	s := newServer(t)
	eyes := geometry.R(10, 20, 40, 16)
	out := pipeline.Output{
		Session: "abc",
		Frame:   camera.Frame{Seq: 7, Captured: time.Unix(0, 0).UTC()},
		Placement: overlay.Placement{
			Space:   geometry.SpacePreview,
			Visible: true,
			Face:    geometry.R(0, 0, 100, 100),
			Eyes:    &eyes,
		},
		Timing: pipeline.Timing{Total: 1500 * time.Microsecond},
	}
	require.NoError(t, s.Publish(out))

	code, body := get(t, s, "/placement")
	require.Equal(t, http.StatusOK, code)

	var got struct {
		Session   string `json:"session"`
		Frame     uint64 `json:"frame"`
		Placement struct {
			Space   string        `json:"space"`
			Visible bool          `json:"visible"`
			Eyes    geometry.Rect `json:"eyes"`
		} `json:"placement"`
		Timing Timing `json:"timing"`
	}
	require.NoError(t, jsoniter.Unmarshal(body, &got))
	assert.Equal(t, "abc", got.Session)
	assert.Equal(t, uint64(7), got.Frame)
	assert.Equal(t, "preview", got.Placement.Space)
	assert.True(t, got.Placement.Visible)
	assert.Equal(t, eyes, got.Placement.Eyes)
	assert.InDelta(t, 1.5, got.Timing.Total, 1e-9)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s := newServer(t)
	code, _ := get(t, s, "/ws")
	assert.Equal(t, http.StatusUpgradeRequired, code)
}

func TestPublishFansOutAndDropsWhenFull(t *testing.T) {
	s := newServer(t)
	ch := s.subscribe()
	for i := 0; i < clientBuffer+3; i++ {
		require.NoError(t, s.Publish(pipeline.Output{Frame: camera.Frame{Seq: uint64(i)}}))
	}
	assert.Len(t, ch, clientBuffer)

	s.unsubscribe(ch)
	s.unsubscribe(ch)
	n := 0
	for range ch {
		n++
	}
	assert.Equal(t, clientBuffer, n, "queued updates survive until drained")
}
