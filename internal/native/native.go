// Package native defines the boundary to the windowing system's capture and
// input facilities. Implementations own the actual pixel-capture algorithm
// and window bookkeeping; everything above this interface only manages
// handle lifecycles and serialization.
//
// All handles returned by an API are opaque. They must only be passed back
// to the API that produced them, and every call on an API must be serialized
// by the caller: backends may share a run loop with a single-threaded
// toolkit that is unsafe to reenter concurrently.
package native

import "github.com/screenpad/screenpad/internal/cerror"

// Display is an opaque handle to an open display connection.
type Display interface{}

// Target is an opaque handle to one capturable entity (a window or screen).
type Target interface{}

// Session is an opaque handle to a running capture session for one Target.
type Session interface{}

// Image is a caller-supplied frame descriptor. CaptureFrame fills it in
// place, reusing Data across calls when the capacity suffices, so a frame of
// unchanged dimensions never reallocates. Pixels are BGRx: padded color,
// no alpha channel.
type Image struct {
	Data   []byte
	Width  uint32
	Height uint32
}

// Geometry is a bounding box in fractions of the full screen extent, each
// component in [0, 1].
type Geometry struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// API is the native capability boundary. Every call reports its outcome
// through the cerror contract; a nil *cerror.CError is success.
type API interface {
	// OpenDisplay opens the connection to the windowing system. On failure
	// the returned handle is nil.
	OpenDisplay() (Display, *cerror.CError)

	// CloseDisplay releases a display handle. Must be the last call made
	// with any handle derived from it.
	CloseDisplay(d Display)

	// Capturables enumerates up to max capture targets. When the display
	// has none it reports cerror.CodeNoCapturables and no targets.
	Capturables(d Display, max int) ([]Target, *cerror.CError)

	// CloneTarget duplicates a target handle. The duplicate has an
	// independent lifecycle and must be destroyed separately.
	CloneTarget(t Target) Target

	// DestroyTarget releases a target handle.
	DestroyTarget(t Target)

	// TargetName returns a human-readable identifier for UI selection.
	TargetName(t Target) string

	// TargetGeometry returns the target's bounding box relative to the full
	// screen.
	TargetGeometry(t Target) (Geometry, *cerror.CError)

	// BeforeInput prepares a target to receive simulated input, typically
	// by raising and focusing it.
	BeforeInput(t Target) *cerror.CError

	// StartSession begins capturing the target. On failure no session
	// exists and StopSession must not be called.
	StartSession(t Target) (Session, *cerror.CError)

	// CaptureFrame grabs one frame into img. On failure img.Data is
	// unspecified but Width and Height keep their previous values.
	CaptureFrame(s Session, img *Image, captureCursor bool) *cerror.CError

	// StopSession ends a capture session. Called exactly once per
	// successfully started session.
	StopSession(s Session) *cerror.CError

	// MapDeviceToScreen maps a named input device's coordinate space to the
	// full screen. Best effort; failures are advisory.
	MapDeviceToScreen(d Display, deviceName string, pen bool) *cerror.CError
}
