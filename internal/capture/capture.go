// Package capture provides the capability interface for frame capture and
// the session type that binds one capture target to a native backend
// session.
package capture

// PixelFormat tags the layout of a captured frame's pixel data.
type PixelFormat int

const (
	// FormatNone means no valid frame is available.
	FormatNone PixelFormat = iota
	// FormatBGRx is 32-bit padded color without an alpha channel, the
	// layout produced by the native capture backends.
	FormatBGRx
)

// PixelProvider is a read-only view of the most recent successfully
// captured frame. Data is only valid until the next Capture call on the
// owning session.
type PixelProvider struct {
	Format PixelFormat
	Data   []byte
}

// None reports whether no frame is available.
func (p PixelProvider) None() bool {
	return p.Format == FormatNone
}

// Capturer is the caller-facing capture contract. One implementation exists
// per windowing system backend; the backend is selected once at startup.
type Capturer interface {
	// Capture grabs one frame into the internal buffer. On failure the
	// previous frame is invalidated and Capture may be retried.
	Capture() error

	// PixelProvider returns the most recent successfully captured frame,
	// or a none view if the last capture failed or none has happened yet.
	PixelProvider() PixelProvider

	// Size returns the last known frame dimensions, (0, 0) before the
	// first successful capture. Dimensions persist across a failed
	// capture.
	Size() (width, height int)
}
