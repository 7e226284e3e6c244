// Package display manages the shared display connection and the capture
// target handles derived from it. The connection is reference counted: it
// closes only when its owner and every derived Capturable have released it,
// so a target handle can never outlive its display.
package display

import (
	"sync"
	"sync/atomic"

	"github.com/screenpad/screenpad/internal/cerror"
	"github.com/screenpad/screenpad/internal/logger"
	"github.com/screenpad/screenpad/internal/native"
)

// maxCapturables bounds a single enumeration pass.
const maxCapturables = 128

// Context owns the single connection to the windowing system. It is shared
// by reference with every Capturable enumerated or cloned from it.
//
// The embedded mutex serializes every native-boundary call made through this
// context or its capturables. It is held only for the duration of the native
// call itself, never across unrelated waits.
type Context struct {
	api    native.API
	handle native.Display

	mu   sync.Mutex
	refs atomic.Int32
}

// Open connects to the windowing system. It returns nil if the native open
// fails; there is no partially constructed context and no retry policy here.
func Open(api native.API) *Context {
	handle, cerr := api.OpenDisplay()
	if cerr != nil || handle == nil {
		if cerr != nil {
			logger.WithComponent("display").Debug().
				Int32("code", cerr.Code).
				Str("message", cerr.Message).
				Msg("Failed to open display")
		}
		return nil
	}
	c := &Context{api: api, handle: handle}
	c.refs.Store(1)
	return c
}

// retain adds a reference on behalf of a derived Capturable.
func (c *Context) retain() {
	c.refs.Add(1)
}

// release drops one reference and closes the native display when the last
// holder is gone.
func (c *Context) release() {
	if c.refs.Add(-1) > 0 {
		return
	}
	c.mu.Lock()
	c.api.CloseDisplay(c.handle)
	c.mu.Unlock()
	logger.WithComponent("display").Debug().Msg("Display connection closed")
}

// Close releases the owner's reference. The native connection stays open
// while any Capturable derived from this context is still alive.
func (c *Context) Close() {
	c.release()
}

// locked runs fn while holding the native call lock.
func (c *Context) locked(fn func(api native.API)) {
	c.mu.Lock()
	fn(c.api)
	c.mu.Unlock()
}

// Capturables enumerates the current capture targets, up to a fixed cap.
// The native "no capturables" condition is advisory and yields an empty
// list; any other nonzero code is fatal and yields no targets at all.
func (c *Context) Capturables() ([]*Capturable, *cerror.CError) {
	var targets []native.Target
	var cerr *cerror.CError
	c.locked(func(api native.API) {
		targets, cerr = api.Capturables(c.handle, maxCapturables)
	})
	if cerr != nil {
		if !cerror.IsNoCapturables(cerr) {
			return nil, cerr
		}
		logger.WithComponent("display").Debug().
			Str("message", cerr.Message).
			Msg("No capturable targets")
	}
	capturables := make([]*Capturable, 0, len(targets))
	for _, t := range targets {
		c.retain()
		capturables = append(capturables, &Capturable{handle: t, disp: c})
	}
	return capturables, nil
}

// MapInputDevice maps a named input device's coordinate space to the full
// screen. Best effort: failures are logged and never surfaced.
func (c *Context) MapInputDevice(deviceName string, pen bool) {
	var cerr *cerror.CError
	c.locked(func(api native.API) {
		cerr = api.MapDeviceToScreen(c.handle, deviceName, pen)
	})
	if cerr != nil {
		logger.WithComponent("display").Debug().
			Str("device", deviceName).
			Int32("code", cerr.Code).
			Str("message", cerr.Message).
			Msg("Failed to map input device to screen")
	}
}
