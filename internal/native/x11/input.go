package x11

import (
	"fmt"
	"os/exec"

	"github.com/screenpad/screenpad/internal/cerror"
	"github.com/screenpad/screenpad/internal/native"
)

// MapDeviceToScreen resets the named input device's coordinate
// transformation matrix so its absolute axes span the entire screen. This
// goes through the xinput command line tool because the XInput2 extension
// is not exposed by the wire bindings; the operation is advisory either
// way.
func (b *Backend) MapDeviceToScreen(d native.Display, deviceName string, pen bool) *cerror.CError {
	args := []string{
		"set-prop", deviceName,
		"--type=float", "Coordinate Transformation Matrix",
		"1", "0", "0",
		"0", "1", "0",
		"0", "0", "1",
	}
	if out, err := exec.Command("xinput", args...).CombinedOutput(); err != nil {
		return cerror.New(fmt.Sprintf("xinput set-prop %q failed: %v: %s", deviceName, err, out))
	}
	return nil
}
