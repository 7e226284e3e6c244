package input

import (
	"fmt"
	"sync"

	"github.com/ThomasT75/uinput"

	"github.com/screenpad/screenpad/internal/logger"
	"github.com/screenpad/screenpad/internal/protocol"
)

const (
	// PadDeviceName names the absolute pointer device; its axes are mapped
	// to the full screen after creation.
	PadDeviceName = "screenpad pointer"
	// MouseDeviceName names the relative device used for buttons the pad
	// cannot express.
	MouseDeviceName = "screenpad mouse"

	// absMax is the upper bound of the pad's absolute axes.
	absMax = 65535
)

// UinputInjector drives virtual input devices through /dev/uinput. Pointer
// position is always absolute via the pad; pen pressure and tilt are not
// representable by these devices and are dropped.
type UinputInjector struct {
	pad   uinput.TouchPad
	mouse uinput.Mouse
	mu    sync.Mutex
}

var _ Injector = (*UinputInjector)(nil)

// NewUinputInjector creates the virtual devices. It fails when /dev/uinput
// is missing or not writable.
func NewUinputInjector() (*UinputInjector, error) {
	pad, err := uinput.CreateTouchPad("/dev/uinput", []byte(PadDeviceName), 0, absMax, 0, absMax)
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual pointer: %w", err)
	}
	mouse, err := uinput.CreateMouse("/dev/uinput", []byte(MouseDeviceName))
	if err != nil {
		pad.Close()
		return nil, fmt.Errorf("failed to create virtual mouse: %w", err)
	}
	return &UinputInjector{pad: pad, mouse: mouse}, nil
}

// DeviceNames returns the virtual device names.
func (u *UinputInjector) DeviceNames() []string {
	return []string{PadDeviceName, MouseDeviceName}
}

// PointerEvent positions the pad and replays button transitions. The
// event's changed-button mask selects which button to press or release; the
// held-buttons mask is not replayed directly.
func (u *UinputInjector) PointerEvent(ev *protocol.PointerEvent, x, y float64) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.pad.MoveTo(clampAxis(x), clampAxis(y)); err != nil {
		return fmt.Errorf("failed to position pointer: %w", err)
	}

	switch ev.EventType {
	case protocol.PointerMove:
		return nil
	case protocol.PointerDown:
		return u.applyButtons(ev, true)
	case protocol.PointerUp, protocol.PointerCancel:
		return u.applyButtons(ev, false)
	default:
		return fmt.Errorf("unknown pointer event type %q", ev.EventType)
	}
}

func (u *UinputInjector) applyButtons(ev *protocol.PointerEvent, press bool) error {
	button := ev.Button
	if button == protocol.ButtonNone && ev.PointerType != protocol.PointerTypeMouse {
		// Pen and touch contacts often report no button; treat contact
		// itself as the primary button.
		button = protocol.ButtonPrimary
	}

	if button.Has(protocol.ButtonPrimary) {
		if err := apply(press, u.pad.LeftPress, u.pad.LeftRelease); err != nil {
			return err
		}
	}
	if button.Has(protocol.ButtonSecondary) {
		if err := apply(press, u.pad.RightPress, u.pad.RightRelease); err != nil {
			return err
		}
	}
	if button.Has(protocol.ButtonAuxiliary) {
		if err := apply(press, u.mouse.MiddlePress, u.mouse.MiddleRelease); err != nil {
			return err
		}
	}
	if button.Has(protocol.ButtonFourth) || button.Has(protocol.ButtonFifth) {
		logger.WithComponent("input").Debug().
			Uint8("button", uint8(button)).
			Msg("Side buttons are not supported by the virtual devices")
	}
	return nil
}

func apply(press bool, pressFn, releaseFn func() error) error {
	if press {
		return pressFn()
	}
	return releaseFn()
}

func clampAxis(v float64) int32 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return int32(v * absMax)
}

// Close releases the virtual devices.
func (u *UinputInjector) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	err := u.pad.Close()
	if e := u.mouse.Close(); e != nil && err == nil {
		err = e
	}
	return err
}
