package protocol

import (
	"encoding/json"
	"fmt"
)

// PointerEventType mirrors the browser pointer event vocabulary so clients
// can forward events verbatim.
type PointerEventType string

const (
	PointerDown   PointerEventType = "pointerdown"
	PointerUp     PointerEventType = "pointerup"
	PointerCancel PointerEventType = "pointercancel"
	PointerMove   PointerEventType = "pointermove"
)

// UnmarshalJSON rejects unknown event types.
func (t *PointerEventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch v := PointerEventType(s); v {
	case PointerDown, PointerUp, PointerCancel, PointerMove:
		*t = v
		return nil
	default:
		return fmt.Errorf("unknown pointer event type %q", s)
	}
}

// PointerType identifies the physical device class of an event. The empty
// tag is the browser's "unknown" pointer type.
type PointerType string

const (
	PointerTypeUnknown PointerType = ""
	PointerTypeMouse   PointerType = "mouse"
	PointerTypePen     PointerType = "pen"
	PointerTypeTouch   PointerType = "touch"
)

// UnmarshalJSON rejects unknown pointer types.
func (t *PointerType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch v := PointerType(s); v {
	case PointerTypeUnknown, PointerTypeMouse, PointerTypePen, PointerTypeTouch:
		*t = v
		return nil
	default:
		return fmt.Errorf("unknown pointer type %q", s)
	}
}

// Button is a set of pointer buttons packed into the low five bits of an
// unsigned byte, matching the browser's button numbering.
type Button uint8

const (
	ButtonNone      Button = 0
	ButtonPrimary   Button = 1 << 0
	ButtonSecondary Button = 1 << 1
	ButtonAuxiliary Button = 1 << 2
	ButtonFourth    Button = 1 << 3
	ButtonFifth     Button = 1 << 4

	// ButtonMask covers every defined button bit.
	ButtonMask = ButtonPrimary | ButtonSecondary | ButtonAuxiliary | ButtonFourth | ButtonFifth
)

// Has reports whether all bits of b2 are set in b.
func (b Button) Has(b2 Button) bool {
	return b&b2 == b2
}

// MarshalJSON encodes the set as a plain unsigned integer.
func (b Button) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint8(b))
}

// UnmarshalJSON decodes an unsigned integer, silently discarding bits
// outside the defined set. Unknown bits are never stored.
func (b *Button) UnmarshalJSON(data []byte) error {
	var bits uint8
	if err := json.Unmarshal(data, &bits); err != nil {
		return err
	}
	*b = Button(bits) & ButtonMask
	return nil
}

// PointerEvent carries one client input event with full stylus semantics.
// Fields are forwarded verbatim so the server can reconstruct an equivalent
// native event. X, Y, Width and Height are fractions in [0, 1] of the bound
// target's extent.
type PointerEvent struct {
	EventType   PointerEventType `json:"event_type"`
	PointerID   int64            `json:"pointer_id"`
	Timestamp   uint64           `json:"timestamp"`
	IsPrimary   bool             `json:"is_primary"`
	PointerType PointerType      `json:"pointer_type"`
	Button      Button           `json:"button"`
	Buttons     Button           `json:"buttons"`
	X           float64          `json:"x"`
	Y           float64          `json:"y"`
	MovementX   int64            `json:"movement_x"`
	MovementY   int64            `json:"movement_y"`
	Pressure    float64          `json:"pressure"`
	TiltX       int32            `json:"tilt_x"`
	TiltY       int32            `json:"tilt_y"`
	Twist       int32            `json:"twist"`
	Width       float64          `json:"width"`
	Height      float64          `json:"height"`
}
