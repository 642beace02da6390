// Package caller tracks distinct call-chains reaching a given checkpoint,
// so a debug build can flag the first occurrence of a new caller path
// instead of logging every occurrence of a hot one.
package caller

import (
	"fmt"
	"runtime"
	"sync"
)

// Distinct_caller_t records which call chains have already been seen.
// Fields are protected by the embedded mutex.
type Distinct_caller_t struct {
	sync.Mutex
	Enabled bool
	did     map[uintptr]bool
	Whitel  map[string]bool
}

// pchash returns a poor-man's hash of the given RIP values, probably unique.
func (dc *Distinct_caller_t) pchash(pcs []uintptr) uintptr {
	if len(pcs) == 0 {
		panic("pchash: no frames")
	}
	var ret uintptr
	for _, pc := range pcs {
		pc = pc*1103515245 + 12345
		ret ^= pc
	}
	return ret
}

// Len returns the number of unique caller paths recorded.
func (dc *Distinct_caller_t) Len() int {
	dc.Lock()
	ret := len(dc.did)
	dc.Unlock()
	return ret
}

// Distinct reports whether the current call chain is new. It returns true
// along with a formatted stack trace when the chain has not been seen
// before (and is not whitelisted).
func (dc *Distinct_caller_t) Distinct() (bool, string) {
	dc.Lock()
	defer dc.Unlock()
	if !dc.Enabled {
		return false, ""
	}

	if dc.did == nil {
		dc.did = make(map[uintptr]bool)
	}

	var pcs []uintptr
	for sz := 30; ; sz *= 2 {
		pcs = make([]uintptr, sz)
		got := runtime.Callers(2, pcs)
		if got == 0 {
			panic("Distinct: runtime.Callers returned nothing")
		}
		if got < sz {
			break
		}
	}
	h := dc.pchash(pcs)
	if dc.did[h] {
		return false, ""
	}
	dc.did[h] = true

	frames := runtime.CallersFrames(pcs)
	fs := ""
	for {
		fr, more := frames.Next()
		if dc.Whitel[fr.Function] {
			return false, ""
		}
		if fs == "" {
			fs = fmt.Sprintf("%v (%v:%v)\n", fr.Function, fr.File, fr.Line)
		} else {
			fs += fmt.Sprintf("\t%v (%v:%v)\n", fr.Function, fr.File, fr.Line)
		}
		if !more || fr.Function == "runtime.goexit" {
			break
		}
	}
	return true, fs
}
