// Package console wraps a drivers.CharDevice (the serial console, first and
// foremost) and exposes Printf/Print used everywhere in place of a
// structured logging framework: biscuit logs with bare
// fmt.Printf/log.Printf to a serial console (see ufs.go's log.Printf
// reboot message); forge keeps that ambient-logging posture rather than
// introducing a leveled logger a freestanding kernel can't afford.
package console

import (
	"fmt"

	"github.com/Redstone-OS/forge/drivers"
)

var sink drivers.CharDevice

// SetDevice installs the device Printf/Print write to. Called once during
// boot after the serial driver (out of scope ) has registered
// itself.
func SetDevice(d drivers.CharDevice) { sink = d }

// Printf formats and writes to the console device, matching biscuit's
// log.Printf call sites one-for-one in spirit. If no device has been
// installed yet (very early boot) the message is dropped rather than
// buffered — there is nowhere safe to buffer it before the heap exists.
func Printf(format string, args...interface{}) {
	if sink == nil {
		return
	}
	sink.WriteString(fmt.Sprintf(format, args...))
}

// Print writes s verbatim.
func Print(s string) {
	if sink == nil {
		return
	}
	sink.WriteString(s)
}
