package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePointerEvent() *PointerEvent {
	return &PointerEvent{
		EventType:   PointerDown,
		PointerID:   7,
		Timestamp:   123456789,
		IsPrimary:   true,
		PointerType: PointerTypePen,
		Button:      ButtonPrimary,
		Buttons:     ButtonPrimary | ButtonSecondary,
		X:           0.25,
		Y:           0.75,
		MovementX:   -3,
		MovementY:   4,
		Pressure:    0.5,
		TiltX:       -10,
		TiltY:       20,
		Twist:       90,
		Width:       0.01,
		Height:      0.02,
	}
}

func TestInboundRoundTrip(t *testing.T) {
	messages := []MessageInbound{
		TryGetFrame{},
		GetCapturableList{},
		samplePointerEvent(),
		&ClientConfiguration{
			StylusSupport: true,
			FasterCapture: false,
			CapturableID:  3,
			CaptureCursor: true,
			MaxWidth:      1920,
			MaxHeight:     1080,
		},
	}

	for _, msg := range messages {
		data, err := EncodeInbound(msg)
		require.NoError(t, err)

		decoded, err := DecodeInbound(data)
		require.NoError(t, err)
		assert.Equal(t, msg, decoded)
	}
}

func TestOutboundRoundTrip(t *testing.T) {
	messages := []MessageOutbound{
		CapturableList{"Desktop", "Editor"},
		NewVideo{},
		ConfigOk{},
		ConfigError("no such target"),
		ErrorMessage("capture failed"),
	}

	for _, msg := range messages {
		data, err := EncodeOutbound(msg)
		require.NoError(t, err)

		decoded, err := DecodeOutbound(data)
		require.NoError(t, err)
		assert.Equal(t, msg, decoded)
	}
}

func TestWireTags(t *testing.T) {
	data, err := EncodeInbound(TryGetFrame{})
	require.NoError(t, err)
	assert.JSONEq(t, `"TryGetFrame"`, string(data))

	data, err = EncodeInbound(GetCapturableList{})
	require.NoError(t, err)
	assert.JSONEq(t, `"GetCapturableList"`, string(data))

	data, err = EncodeOutbound(NewVideo{})
	require.NoError(t, err)
	assert.JSONEq(t, `"NewVideo"`, string(data))

	data, err = EncodeOutbound(ConfigOk{})
	require.NoError(t, err)
	assert.JSONEq(t, `"ConfigOk"`, string(data))

	data, err = EncodeOutbound(CapturableList{"a"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"CapturableList":["a"]}`, string(data))

	data, err = EncodeOutbound(ConfigError("bad"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ConfigError":"bad"}`, string(data))

	data, err = EncodeOutbound(ErrorMessage("oops"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Error":"oops"}`, string(data))
}

func TestPointerEventFieldNames(t *testing.T) {
	data, err := EncodeInbound(samplePointerEvent())
	require.NoError(t, err)

	var envelope map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &envelope))
	payload, ok := envelope["PointerEvent"]
	require.True(t, ok, "payload must sit under the PointerEvent tag")

	for _, field := range []string{
		"event_type", "pointer_id", "timestamp", "is_primary", "pointer_type",
		"button", "buttons", "x", "y", "movement_x", "movement_y",
		"pressure", "tilt_x", "tilt_y", "twist", "width", "height",
	} {
		assert.Contains(t, payload, field)
	}
	assert.Equal(t, "pointerdown", payload["event_type"])
	assert.Equal(t, "pen", payload["pointer_type"])
	assert.Equal(t, float64(1), payload["button"])
}

func TestButtonDecodeTruncatesUnknownBits(t *testing.T) {
	var b Button
	require.NoError(t, json.Unmarshal([]byte(`255`), &b))
	assert.Equal(t, Button(0b00011111), b)

	require.NoError(t, json.Unmarshal([]byte(`0`), &b))
	assert.Equal(t, ButtonNone, b)

	require.NoError(t, json.Unmarshal([]byte(`3`), &b))
	assert.True(t, b.Has(ButtonPrimary))
	assert.True(t, b.Has(ButtonSecondary))
	assert.False(t, b.Has(ButtonAuxiliary))
}

func TestDecodeInboundRejectsUnknown(t *testing.T) {
	_, err := DecodeInbound([]byte(`"Reboot"`))
	assert.Error(t, err)

	_, err = DecodeInbound([]byte(`{"Reboot":{}}`))
	assert.Error(t, err)

	_, err = DecodeInbound([]byte(`{"PointerEvent":{},"Config":{}}`))
	assert.Error(t, err)

	_, err = DecodeInbound([]byte(`{`))
	assert.Error(t, err)
}

func TestPointerEventTypeValidation(t *testing.T) {
	var ev PointerEvent
	err := json.Unmarshal([]byte(`{"event_type":"pointerhover","pointer_type":"mouse"}`), &ev)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"event_type":"pointermove","pointer_type":"gaze"}`), &ev)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"event_type":"pointermove","pointer_type":""}`), &ev)
	require.NoError(t, err)
	assert.Equal(t, PointerMove, ev.EventType)
	assert.Equal(t, PointerTypeUnknown, ev.PointerType)
}
