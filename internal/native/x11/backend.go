// Package x11 implements the native capture boundary on top of the X11
// wire protocol. It is the backend selected at startup on X11 sessions and
// the only place that talks to the X server directly.
package x11

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/screenpad/screenpad/internal/cerror"
	"github.com/screenpad/screenpad/internal/logger"
	"github.com/screenpad/screenpad/internal/native"
)

// Backend implements native.API over a per-display xgb connection. The
// caller serializes every call, so no internal locking is needed here.
type Backend struct{}

// New returns the X11 backend.
func New() *Backend {
	return &Backend{}
}

var _ native.API = (*Backend)(nil)

type displayHandle struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	root   xproto.Window
}

type targetHandle struct {
	disp *displayHandle
	win  xproto.Window
	name string
	// root marks the whole-screen target, which is always enumerated
	// first and captures the root window.
	root bool
}

type sessionHandle struct {
	target *targetHandle
}

// OpenDisplay connects to the X server named by $DISPLAY.
func (b *Backend) OpenDisplay() (native.Display, *cerror.CError) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, cerror.New(fmt.Sprintf("failed to connect to X server: %v", err))
	}
	screen := xproto.Setup(conn).DefaultScreen(conn)
	return &displayHandle{conn: conn, screen: screen, root: screen.Root}, nil
}

// CloseDisplay closes the X connection.
func (b *Backend) CloseDisplay(d native.Display) {
	d.(*displayHandle).conn.Close()
}

// Capturables enumerates the whole screen followed by the window manager's
// client list, up to max targets.
func (b *Backend) Capturables(d native.Display, max int) ([]native.Target, *cerror.CError) {
	disp := d.(*displayHandle)
	log := logger.WithComponent("x11")

	targets := make([]native.Target, 0, 16)
	if max > 0 {
		targets = append(targets, &targetHandle{disp: disp, win: disp.root, name: "Desktop", root: true})
	}

	windows, err := disp.clientList()
	if err != nil {
		log.Debug().Err(err).Msg("Window enumeration failed, offering the desktop only")
	}
	for _, win := range windows {
		if len(targets) >= max {
			break
		}
		name := disp.windowName(win)
		if name == "" {
			continue
		}
		targets = append(targets, &targetHandle{disp: disp, win: win, name: name})
	}

	if len(targets) == 0 {
		return nil, cerror.Newf(cerror.CodeNoCapturables, "no capturable targets")
	}
	return targets, nil
}

// CloneTarget duplicates a target handle.
func (b *Backend) CloneTarget(t native.Target) native.Target {
	dup := *t.(*targetHandle)
	return &dup
}

// DestroyTarget releases a target handle. X11 window IDs are not owned by
// the client, so there is no native resource to free.
func (b *Backend) DestroyTarget(t native.Target) {
	t.(*targetHandle).disp = nil
}

// TargetName returns the name resolved at enumeration time.
func (b *Backend) TargetName(t native.Target) string {
	return t.(*targetHandle).name
}

// TargetGeometry returns the target's bounding box as fractions of the
// screen extent.
func (b *Backend) TargetGeometry(t native.Target) (native.Geometry, *cerror.CError) {
	target := t.(*targetHandle)
	if target.root {
		return native.Geometry{X: 0, Y: 0, Width: 1, Height: 1}, nil
	}
	disp := target.disp

	geom, err := xproto.GetGeometry(disp.conn, xproto.Drawable(target.win)).Reply()
	if err != nil {
		return native.Geometry{}, cerror.New(fmt.Sprintf("failed to get window geometry: %v", err))
	}
	trans, err := xproto.TranslateCoordinates(disp.conn, target.win, disp.root, 0, 0).Reply()
	if err != nil {
		return native.Geometry{}, cerror.New(fmt.Sprintf("failed to translate window coordinates: %v", err))
	}

	screenW := float64(disp.screen.WidthInPixels)
	screenH := float64(disp.screen.HeightInPixels)
	return native.Geometry{
		X:      float64(trans.DstX) / screenW,
		Y:      float64(trans.DstY) / screenH,
		Width:  float64(geom.Width) / screenW,
		Height: float64(geom.Height) / screenH,
	}, nil
}

// BeforeInput raises and focuses the target window so simulated input lands
// where the client expects it.
func (b *Backend) BeforeInput(t native.Target) *cerror.CError {
	target := t.(*targetHandle)
	if target.root {
		return nil
	}
	disp := target.disp

	if err := xproto.ConfigureWindowChecked(
		disp.conn,
		target.win,
		xproto.ConfigWindowStackMode,
		[]uint32{xproto.StackModeAbove},
	).Check(); err != nil {
		return cerror.New(fmt.Sprintf("failed to raise window: %v", err))
	}
	if err := xproto.SetInputFocusChecked(
		disp.conn,
		xproto.InputFocusPointerRoot,
		target.win,
		xproto.TimeCurrentTime,
	).Check(); err != nil {
		return cerror.New(fmt.Sprintf("failed to focus window: %v", err))
	}
	return nil
}

// StartSession begins capturing a target. The target is validated up front
// so a dead window fails here rather than on the first capture.
func (b *Backend) StartSession(t native.Target) (native.Session, *cerror.CError) {
	target := t.(*targetHandle)
	if !target.root {
		if _, err := xproto.GetGeometry(target.disp.conn, xproto.Drawable(target.win)).Reply(); err != nil {
			return nil, cerror.New(fmt.Sprintf("target is not capturable: %v", err))
		}
	}
	return &sessionHandle{target: target}, nil
}

// CaptureFrame grabs one frame into img, reusing its buffer when the
// dimensions have not changed. X11 ZPixmap data at depth 24/32 is already
// BGRx. Cursor compositing is not supported by this backend and
// captureCursor is ignored.
func (b *Backend) CaptureFrame(s native.Session, img *native.Image, captureCursor bool) *cerror.CError {
	target := s.(*sessionHandle).target
	disp := target.disp

	var width, height uint16
	drawable := xproto.Drawable(target.win)
	if target.root {
		width, height = disp.screen.WidthInPixels, disp.screen.HeightInPixels
	} else {
		geom, err := xproto.GetGeometry(disp.conn, drawable).Reply()
		if err != nil {
			return cerror.New(fmt.Sprintf("failed to get target geometry: %v", err))
		}
		width, height = geom.Width, geom.Height
	}

	reply, err := xproto.GetImage(
		disp.conn,
		xproto.ImageFormatZPixmap,
		drawable,
		0, 0,
		width, height,
		0xffffffff,
	).Reply()
	if err != nil {
		return cerror.New(fmt.Sprintf("failed to capture image: %v", err))
	}

	need := int(width) * int(height) * 4
	if len(reply.Data) < need {
		return cerror.New(fmt.Sprintf("short image reply: got %d bytes, want %d", len(reply.Data), need))
	}
	if cap(img.Data) < need {
		img.Data = make([]byte, need)
	} else {
		img.Data = img.Data[:need]
	}
	copy(img.Data, reply.Data[:need])
	img.Width = uint32(width)
	img.Height = uint32(height)
	return nil
}

// StopSession ends a capture session. GetImage sessions hold no server-side
// state.
func (b *Backend) StopSession(s native.Session) *cerror.CError {
	s.(*sessionHandle).target = nil
	return nil
}

// clientList returns the window manager's client windows, preferring the
// EWMH client list and falling back to the window tree.
func (d *displayHandle) clientList() ([]xproto.Window, error) {
	atom, err := d.atom("_NET_CLIENT_LIST")
	if err == nil {
		reply, err := xproto.GetProperty(
			d.conn, false, d.root, atom,
			xproto.GetPropertyTypeAny, 0, (1<<32)-1,
		).Reply()
		if err == nil && reply.ValueLen > 0 {
			return decodeWindowIDs(reply.Value), nil
		}
	}

	tree, err := xproto.QueryTree(d.conn, d.root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to query window tree: %w", err)
	}
	return tree.Children, nil
}

// decodeWindowIDs parses an array of 32-bit window IDs from a property.
func decodeWindowIDs(value []byte) []xproto.Window {
	windows := make([]xproto.Window, 0, len(value)/4)
	for i := 0; i+4 <= len(value); i += 4 {
		windows = append(windows, xproto.Window(
			uint32(value[i])|
				uint32(value[i+1])<<8|
				uint32(value[i+2])<<16|
				uint32(value[i+3])<<24))
	}
	return windows
}

// windowName returns a window's title, preferring _NET_WM_NAME over the
// legacy WM_NAME.
func (d *displayHandle) windowName(win xproto.Window) string {
	for _, prop := range []string{"_NET_WM_NAME", "WM_NAME"} {
		atom, err := d.atom(prop)
		if err != nil {
			continue
		}
		reply, err := xproto.GetProperty(
			d.conn, false, win, atom,
			xproto.GetPropertyTypeAny, 0, (1<<32)-1,
		).Reply()
		if err != nil || reply.ValueLen == 0 {
			continue
		}
		if name := strings.TrimRight(string(reply.Value), "\x00"); name != "" {
			return name
		}
	}
	return ""
}

// atom interns an atom by name.
func (d *displayHandle) atom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(d.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}
