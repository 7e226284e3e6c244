package api

import (
	"errors"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenpad/screenpad/internal/cerror"
	"github.com/screenpad/screenpad/internal/config"
	"github.com/screenpad/screenpad/internal/display"
	"github.com/screenpad/screenpad/internal/native/nativetest"
	"github.com/screenpad/screenpad/internal/protocol"
)

// fakeConn scripts inbound messages and records everything written back.
type fakeConn struct {
	mu       sync.Mutex
	inbound  [][]byte
	texts    [][]byte
	binaries [][]byte
	closed   bool
}

func (f *fakeConn) queue(t *testing.T, msgs ...protocol.MessageInbound) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msg := range msgs {
		data, err := protocol.EncodeInbound(msg)
		require.NoError(t, err)
		f.inbound = append(f.inbound, data)
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbound) == 0 {
		return 0, nil, errors.New("connection closed")
	}
	data := f.inbound[0]
	f.inbound = f.inbound[1:]
	return websocket.TextMessage, data, nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), data...)
	if messageType == websocket.BinaryMessage {
		f.binaries = append(f.binaries, cp)
	} else {
		f.texts = append(f.texts, cp)
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) outbound(t *testing.T) []protocol.MessageOutbound {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := make([]protocol.MessageOutbound, 0, len(f.texts))
	for _, data := range f.texts {
		msg, err := protocol.DecodeOutbound(data)
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}
	return msgs
}

type injectedEvent struct {
	ev   *protocol.PointerEvent
	x, y float64
}

// fakeInjector records injected events and how many before-input hooks had
// run at the moment of each injection.
type fakeInjector struct {
	api          *nativetest.FakeAPI
	events       []injectedEvent
	raisedBefore []int
}

func (f *fakeInjector) PointerEvent(ev *protocol.PointerEvent, x, y float64) error {
	f.events = append(f.events, injectedEvent{ev: ev, x: x, y: y})
	f.raisedBefore = append(f.raisedBefore, f.api.BeforeInputCount)
	return nil
}

func (f *fakeInjector) DeviceNames() []string { return nil }
func (f *fakeInjector) Close() error          { return nil }

func newTestClient(t *testing.T, api *nativetest.FakeAPI, injector *fakeInjector) (*client, *fakeConn, *display.Context) {
	t.Helper()
	ctx := display.Open(api)
	require.NotNil(t, ctx)
	t.Cleanup(ctx.Close)

	conn := &fakeConn{}
	cfg := &config.Config{JPEGQuality: 85}
	if injector != nil {
		return newClient(conn, ctx, injector, cfg), conn, ctx
	}
	return newClient(conn, ctx, nil, cfg), conn, ctx
}

func TestConfigureAnnouncesOkThenNewVideo(t *testing.T) {
	api := nativetest.NewFakeAPI()
	api.NumTargets = 4
	c, conn, _ := newTestClient(t, api, nil)
	defer c.shutdown()

	c.dispatch(&protocol.ClientConfiguration{
		StylusSupport: true,
		CapturableID:  3,
		CaptureCursor: true,
		MaxWidth:      1920,
		MaxHeight:     1080,
	})

	msgs := conn.outbound(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, protocol.ConfigOk{}, msgs[0])
	assert.Equal(t, protocol.NewVideo{}, msgs[1])
	assert.Equal(t, 1, api.StartCount)
}

func TestConfigureInvalidIDSendsConfigError(t *testing.T) {
	api := nativetest.NewFakeAPI()
	c, conn, _ := newTestClient(t, api, nil)
	defer c.shutdown()

	c.dispatch(&protocol.ClientConfiguration{CapturableID: 7})

	msgs := conn.outbound(t)
	require.Len(t, msgs, 1)
	require.IsType(t, protocol.ConfigError(""), msgs[0])
	assert.Equal(t, 0, api.StartCount)
}

func TestConfigureFailedStartSendsConfigError(t *testing.T) {
	api := nativetest.NewFakeAPI()
	api.StartErr = cerror.New("capture refused")
	c, conn, _ := newTestClient(t, api, nil)
	defer c.shutdown()

	c.dispatch(&protocol.ClientConfiguration{CapturableID: 0})

	msgs := conn.outbound(t)
	require.Len(t, msgs, 1)
	assert.IsType(t, protocol.ConfigError(""), msgs[0])
	assert.Equal(t, 0, api.StopCount)
}

func TestReconfigureReplacesSession(t *testing.T) {
	api := nativetest.NewFakeAPI()
	c, _, _ := newTestClient(t, api, nil)
	defer c.shutdown()

	c.dispatch(&protocol.ClientConfiguration{CapturableID: 0})
	c.dispatch(&protocol.ClientConfiguration{CapturableID: 2})

	assert.Equal(t, 2, api.StartCount)
	assert.Equal(t, 1, api.StopCount, "the old session is torn down before the new one takes over")
}

func TestCapturableListIsSentEmptyWhenNothingCapturable(t *testing.T) {
	api := nativetest.NewFakeAPI()
	api.CapturablesErr = cerror.Newf(cerror.CodeNoCapturables, "nothing to capture")
	c, conn, _ := newTestClient(t, api, nil)
	defer c.shutdown()

	c.dispatch(protocol.GetCapturableList{})

	msgs := conn.outbound(t)
	require.Len(t, msgs, 1)
	list, ok := msgs[0].(protocol.CapturableList)
	require.True(t, ok, "an empty desktop is a valid answer, not an error")
	assert.Empty(t, list)
}

func TestCapturableListFatalFailureSendsError(t *testing.T) {
	api := nativetest.NewFakeAPI()
	api.CapturablesErr = cerror.Newf(17, "connection lost")
	c, conn, _ := newTestClient(t, api, nil)
	defer c.shutdown()

	c.dispatch(protocol.GetCapturableList{})

	msgs := conn.outbound(t)
	require.Len(t, msgs, 1)
	assert.IsType(t, protocol.ErrorMessage(""), msgs[0])
}

func TestFrameDeliveredAsBinary(t *testing.T) {
	api := nativetest.NewFakeAPI()
	c, conn, _ := newTestClient(t, api, nil)
	defer c.shutdown()

	c.dispatch(&protocol.ClientConfiguration{CapturableID: 0})
	c.dispatch(protocol.TryGetFrame{})
	c.captures.Wait()

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.binaries, 1)
	frame := conn.binaries[0]
	require.Greater(t, len(frame), 2)
	assert.Equal(t, byte(0xff), frame[0], "frames are JPEG encoded")
	assert.Equal(t, byte(0xd8), frame[1])
}

func TestFrameRequestDroppedWhileInFlight(t *testing.T) {
	api := nativetest.NewFakeAPI()
	c, conn, _ := newTestClient(t, api, nil)
	defer c.shutdown()

	c.dispatch(&protocol.ClientConfiguration{CapturableID: 0})

	// Simulate a capture still running: the request must vanish without a
	// trace, no queueing and no error.
	c.inFlight.Store(true)
	c.dispatch(protocol.TryGetFrame{})
	c.captures.Wait()
	assert.Equal(t, 0, api.CaptureCount)
	conn.mu.Lock()
	assert.Empty(t, conn.binaries)
	conn.mu.Unlock()

	c.inFlight.Store(false)
	c.dispatch(protocol.TryGetFrame{})
	c.captures.Wait()
	assert.Equal(t, 1, api.CaptureCount)
}

func TestFrameWithoutSessionSendsError(t *testing.T) {
	api := nativetest.NewFakeAPI()
	c, conn, _ := newTestClient(t, api, nil)
	defer c.shutdown()

	c.dispatch(protocol.TryGetFrame{})
	c.captures.Wait()

	msgs := conn.outbound(t)
	require.Len(t, msgs, 1)
	assert.IsType(t, protocol.ErrorMessage(""), msgs[0])
}

func TestFailedCaptureSendsErrorAndRecovers(t *testing.T) {
	api := nativetest.NewFakeAPI()
	c, conn, _ := newTestClient(t, api, nil)
	defer c.shutdown()

	c.dispatch(&protocol.ClientConfiguration{CapturableID: 0})

	api.CaptureErr = cerror.New("capture failed")
	c.dispatch(protocol.TryGetFrame{})
	c.captures.Wait()

	msgs := conn.outbound(t)
	require.Len(t, msgs, 3)
	assert.IsType(t, protocol.ErrorMessage(""), msgs[2])

	api.CaptureErr = nil
	c.dispatch(protocol.TryGetFrame{})
	c.captures.Wait()
	conn.mu.Lock()
	assert.Len(t, conn.binaries, 1)
	conn.mu.Unlock()
}

func TestPointerEventRaisesTargetBeforeInjecting(t *testing.T) {
	api := nativetest.NewFakeAPI()
	injector := &fakeInjector{api: api}
	c, _, _ := newTestClient(t, api, injector)
	defer c.shutdown()

	c.dispatch(&protocol.ClientConfiguration{CapturableID: 0, StylusSupport: true})

	ev := &protocol.PointerEvent{
		EventType:   protocol.PointerDown,
		PointerType: protocol.PointerTypePen,
		Button:      protocol.ButtonPrimary,
		X:           0.5,
		Y:           0.5,
	}
	c.dispatch(ev)

	require.Len(t, injector.events, 1)
	assert.Equal(t, 1, injector.raisedBefore[0], "the target is raised and focused before injection")

	// Event coordinates map through the target geometry {0.25, 0.25, 0.5, 0.5}.
	assert.InDelta(t, 0.5, injector.events[0].x, 1e-9)
	assert.InDelta(t, 0.5, injector.events[0].y, 1e-9)
	assert.Same(t, ev, injector.events[0].ev)
}

func TestPointerEventFailedRaiseStillInjects(t *testing.T) {
	api := nativetest.NewFakeAPI()
	api.BeforeInputErr = cerror.New("window gone")
	injector := &fakeInjector{api: api}
	c, _, _ := newTestClient(t, api, injector)
	defer c.shutdown()

	c.dispatch(&protocol.ClientConfiguration{CapturableID: 0})
	c.dispatch(&protocol.PointerEvent{EventType: protocol.PointerMove, X: 0.1, Y: 0.1})

	assert.Len(t, injector.events, 1, "a failed raise is advisory")
}

func TestPointerEventDroppedWithoutInjector(t *testing.T) {
	api := nativetest.NewFakeAPI()
	c, conn, _ := newTestClient(t, api, nil)
	defer c.shutdown()

	c.dispatch(&protocol.ClientConfiguration{CapturableID: 0})
	c.dispatch(&protocol.PointerEvent{EventType: protocol.PointerDown})

	msgs := conn.outbound(t)
	assert.Len(t, msgs, 2, "nothing beyond the configure acknowledgements")
	assert.Equal(t, 0, api.BeforeInputCount)
}

func TestPointerEventDroppedWithoutSession(t *testing.T) {
	api := nativetest.NewFakeAPI()
	injector := &fakeInjector{api: api}
	c, conn, _ := newTestClient(t, api, injector)
	defer c.shutdown()

	c.dispatch(&protocol.PointerEvent{EventType: protocol.PointerDown})

	assert.Empty(t, injector.events)
	assert.Empty(t, conn.outbound(t))
}

func TestRunReleasesEverythingOnDisconnect(t *testing.T) {
	api := nativetest.NewFakeAPI()
	ctx := display.Open(api)
	require.NotNil(t, ctx)

	conn := &fakeConn{}
	conn.queue(t,
		protocol.GetCapturableList{},
		&protocol.ClientConfiguration{CapturableID: 2},
		protocol.TryGetFrame{},
	)

	c := newClient(conn, ctx, nil, &config.Config{JPEGQuality: 85})
	c.run()

	assert.True(t, conn.closed)
	assert.Equal(t, 1, api.StopCount)
	assert.Equal(t, 0, api.TargetsAlive(), "every enumeration and session handle is released")

	ctx.Close()
	assert.Equal(t, 0, api.DisplaysOpen())
}

func TestMalformedMessageGetsErrorAndKeepsConnection(t *testing.T) {
	api := nativetest.NewFakeAPI()
	ctx := display.Open(api)
	require.NotNil(t, ctx)
	defer ctx.Close()

	conn := &fakeConn{}
	conn.inbound = append(conn.inbound, []byte(`{"Reboot":{}}`))
	conn.queue(t, protocol.GetCapturableList{})

	c := newClient(conn, ctx, nil, &config.Config{JPEGQuality: 85})
	c.run()

	msgs := conn.outbound(t)
	require.Len(t, msgs, 2)
	assert.IsType(t, protocol.ErrorMessage(""), msgs[0])
	assert.IsType(t, protocol.CapturableList(nil), msgs[1], "the loop keeps serving after a bad message")
}
