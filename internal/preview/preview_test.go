package preview

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenpad/screenpad/internal/cerror"
	"github.com/screenpad/screenpad/internal/display"
	"github.com/screenpad/screenpad/internal/native/nativetest"
)

func TestStreamerServesMultipartFrames(t *testing.T) {
	api := nativetest.NewFakeAPI()
	ctx := display.Open(api)
	require.NotNil(t, ctx)
	defer ctx.Close()

	s := NewStreamer(ctx, Options{FPS: 200, Quality: 85})
	require.NoError(t, s.Start())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/preview/stream", nil)
	done := make(chan struct{})
	go func() {
		s.StreamHandler()(rec, req)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return api.CapturesDone() > 0
	}, 2*time.Second, 5*time.Millisecond, "capture must run once a viewer is connected")

	s.Stop()
	<-done

	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "--frame")
	assert.Contains(t, body, "Content-Type: image/jpeg")

	assert.Equal(t, 1, api.StopCount)
	assert.Equal(t, 0, api.TargetsAlive(), "the session target is released on stop")
}

func TestStreamerIdlesWithoutViewers(t *testing.T) {
	api := nativetest.NewFakeAPI()
	ctx := display.Open(api)
	require.NotNil(t, ctx)
	defer ctx.Close()

	s := NewStreamer(ctx, Options{FPS: 200})
	require.NoError(t, s.Start())
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	assert.Equal(t, 0, api.CapturesDone(), "no viewers, no capture work")
	assert.Equal(t, 1, api.StopCount)
	assert.Equal(t, 0, api.TargetsAlive())
}

func TestStreamerStartFailsWithoutTargets(t *testing.T) {
	api := nativetest.NewFakeAPI()
	api.CapturablesErr = cerror.Newf(cerror.CodeNoCapturables, "nothing to capture")
	ctx := display.Open(api)
	require.NotNil(t, ctx)
	defer ctx.Close()

	s := NewStreamer(ctx, Options{})
	assert.Error(t, s.Start())
	assert.Equal(t, 0, api.StartCount)
}

func TestStreamerStopIsIdempotent(t *testing.T) {
	api := nativetest.NewFakeAPI()
	ctx := display.Open(api)
	require.NotNil(t, ctx)
	defer ctx.Close()

	s := NewStreamer(ctx, Options{FPS: 200})
	require.NoError(t, s.Start())
	s.Stop()
	s.Stop()
	assert.Equal(t, 1, api.StopCount)
}
