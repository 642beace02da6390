package console

// haltFn is the HAL's halt primitive, set by hal.init-equivalent wiring at
// boot; kept as a function var here (rather than importing hal directly)
// so console has no dependency on the HAL and can be used by packages hal
// itself depends on without an import cycle.
var haltFn func()

// SetHalt installs the CPU halt primitive Panic calls after printing.
func SetHalt(f func()) { haltFn = f }

// Panic prints format to the console exactly like a regular log line, then
// halts the CPU. It never returns.
func Panic(format string, args...interface{}) {
	Printf("panic: "+format+"\n", args...)
	if haltFn != nil {
		haltFn()
	}
	// haltFn should never return on real hardware; if it does (e.g. under
	// test with a no-op), stop forward progress here instead of letting a
	// caller treat panic as recoverable.
	select {}
}
