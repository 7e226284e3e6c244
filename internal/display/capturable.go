package display

import (
	"github.com/screenpad/screenpad/internal/cerror"
	"github.com/screenpad/screenpad/internal/native"
)

// Capturable is one capture target: a window or screen. It keeps a
// reference to the display context so the connection cannot close while the
// handle exists. Close must be called exactly once per Capturable,
// including every clone.
type Capturable struct {
	handle native.Target
	disp   *Context
}

// Name returns a human-readable identifier for UI selection.
func (c *Capturable) Name() string {
	return c.disp.api.TargetName(c.handle)
}

func (c *Capturable) String() string {
	return c.Name()
}

// Clone produces an independent native duplicate sharing the same display
// context. The clone releases independently of the original.
func (c *Capturable) Clone() *Capturable {
	var dup native.Target
	c.disp.locked(func(api native.API) {
		dup = api.CloneTarget(c.handle)
	})
	c.disp.retain()
	return &Capturable{handle: dup, disp: c.disp}
}

// Close destroys the native handle and drops the display reference.
func (c *Capturable) Close() {
	c.disp.locked(func(api native.API) {
		api.DestroyTarget(c.handle)
	})
	c.disp.release()
}

// Geometry returns the target's bounding box as fractions of the full
// screen extent.
func (c *Capturable) Geometry() (native.Geometry, *cerror.CError) {
	var geom native.Geometry
	var cerr *cerror.CError
	c.disp.locked(func(api native.API) {
		geom, cerr = api.TargetGeometry(c.handle)
	})
	if cerr != nil {
		return native.Geometry{}, cerr
	}
	return geom, nil
}

// BeforeInput prepares the target for a simulated input event, typically by
// raising and focusing it.
func (c *Capturable) BeforeInput() *cerror.CError {
	var cerr *cerror.CError
	c.disp.locked(func(api native.API) {
		cerr = api.BeforeInput(c.handle)
	})
	return cerr
}

// Handle exposes the raw native handle for the capture session. The caller
// must keep the Capturable alive for as long as the handle is in use.
func (c *Capturable) Handle() native.Target {
	return c.handle
}

// Locked runs fn under the display's native call lock. Capture sessions use
// this to funnel their own native calls through the shared lock.
func (c *Capturable) Locked(fn func(api native.API)) {
	c.disp.locked(fn)
}
