package mod

import (
	"time"

	"github.com/Redstone-OS/forge/caller"
	"github.com/Redstone-OS/forge/console"
)

// faultSources tracks distinct call chains that triggered a module's health
// check to fail, so the console logs the first occurrence of each distinct
// failing path instead of one line per watchdog tick while a module is down.
var faultSources = caller.Distinct_caller_t{Enabled: false}

// EnableFaultDiagnostics turns on the distinct-caller log for health-check
// failures.
func EnableFaultDiagnostics(on bool) { faultSources.Enabled = on }

// Watch runs one supervisory pass over mods: for each Running module, it
// calls Health with a deadline derived from its configured timeout and
// records the result. The caller is the kernel thread that schedules these
// passes periodically; Watch itself is a single pass, not a loop, so tests
// can drive it deterministically.
func Watch(mods []*Module_t, now func() time.Time) []Fallback_t {
	var fallbacks []Fallback_t
	for _, m := range mods {
		if m.State != MOD_RUNNING {
			continue
		}
		t := now()
		deadline := t.Add(m.WD.Timeout)
		ok := m.Cb.Health != nil && m.Cb.Health(deadline) == 0
		if !ok {
			if fresh, trace := faultSources.Distinct(); fresh {
				console.Printf("mod: %s health check failing from new call chain:\n%s", m.Name, trace)
			}
		}
		if fb := m.RecordHealthResult(ok, t); fb != FallbackNone {
			fallbacks = append(fallbacks, fb)
		}
	}
	return fallbacks
}
