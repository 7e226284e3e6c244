package capture

import (
	"github.com/screenpad/screenpad/internal/cerror"
	"github.com/screenpad/screenpad/internal/display"
	"github.com/screenpad/screenpad/internal/logger"
	"github.com/screenpad/screenpad/internal/native"
)

// Session captures frames from a single target. It owns the Capturable it
// was created with and releases it on Close, after stopping the native
// session exactly once.
type Session struct {
	target        *display.Capturable
	handle        native.Session
	img           native.Image
	valid         bool
	captureCursor bool
	closed        bool
}

// Statically ensure Session satisfies the capture contract.
var _ Capturer = (*Session)(nil)

// NewSession starts a native capture session bound to target, taking
// ownership of it. If the native start fails the target is released and no
// session exists, so no stop call can ever be issued for it.
func NewSession(target *display.Capturable, captureCursor bool) (*Session, *cerror.CError) {
	var handle native.Session
	var cerr *cerror.CError
	target.Locked(func(api native.API) {
		handle, cerr = api.StartSession(target.Handle())
	})
	if cerr != nil {
		target.Close()
		return nil, cerr
	}
	return &Session{
		target:        target,
		handle:        handle,
		captureCursor: captureCursor,
	}, nil
}

// Capture grabs one frame into the session's reusable buffer. On failure
// the frame is invalidated so stale pixels are never observable, but the
// session stays usable and Capture may be retried.
func (s *Session) Capture() error {
	var cerr *cerror.CError
	s.target.Locked(func(api native.API) {
		cerr = api.CaptureFrame(s.handle, &s.img, s.captureCursor)
	})
	if cerr != nil {
		s.valid = false
		return cerr
	}
	s.valid = true
	return nil
}

// PixelProvider returns the most recent successfully captured frame.
func (s *Session) PixelProvider() PixelProvider {
	if !s.valid || s.img.Data == nil {
		return PixelProvider{Format: FormatNone}
	}
	return PixelProvider{Format: FormatBGRx, Data: s.img.Data}
}

// Size returns the last known frame dimensions. They persist across a
// failed capture even while PixelProvider reports none.
func (s *Session) Size() (int, int) {
	return int(s.img.Width), int(s.img.Height)
}

// Target returns the capturable this session is bound to. It remains owned
// by the session.
func (s *Session) Target() *display.Capturable {
	return s.target
}

// Close stops the native session and releases the owned target. Safe to
// call more than once; the native stop is issued exactly once.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.target.Locked(func(api native.API) {
		if cerr := api.StopSession(s.handle); cerr != nil {
			logger.WithComponent("capture").Debug().
				Int32("code", cerr.Code).
				Str("message", cerr.Message).
				Msg("Failed to stop capture session")
		}
	})
	s.target.Close()
}
