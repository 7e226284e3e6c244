// Package input turns protocol pointer events into simulated native input.
package input

import (
	"github.com/screenpad/screenpad/internal/protocol"
)

// Injector replays client pointer events on the local machine. x and y are
// fractions in [0, 1] of the full screen extent, already transformed from
// the bound target's coordinate space.
type Injector interface {
	// PointerEvent applies one event at the given screen position.
	PointerEvent(ev *protocol.PointerEvent, x, y float64) error

	// DeviceNames returns the names of the virtual devices backing the
	// injector, for mapping their coordinate spaces to the screen.
	DeviceNames() []string

	// Close releases the virtual devices.
	Close() error
}
