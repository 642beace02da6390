// Package stats holds the kernel's cycle/event counters, carried from
// biscuit's stats package and extended with a pprof export path: Dump turns
// a stats struct into a profile.Profile a host-side `go tool pprof` can open
// directly, rather than inventing a bespoke wire format for counter dumps.
package stats

import (
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/google/pprof/profile"
)

// Enabled gates whether counters actually increment; a freestanding kernel
// pays for the atomic add only in builds that want the numbers (biscuit's
// own Stats/Timing consts).
const Enabled = true

// Counter_t is a statistical event counter.
type Counter_t int64

// Cycles_t accumulates elapsed TSC cycles for a timed section.
type Cycles_t int64

// Inc increments the counter by one.
func (c *Counter_t) Inc() {
	if Enabled {
		atomic.AddInt64((*int64)(unsafe.Pointer(c)), 1)
	}
}

// Add accumulates cycles elapsed since start, as measured by runtime.Rdtsc.
func (c *Cycles_t) Add(start uint64) {
	if Enabled {
		atomic.AddInt64((*int64)(unsafe.Pointer(c)), int64(runtime.Rdtsc()-start))
	}
}

// Stats2String formats every Counter_t/Cycles_t field of st, reusing
// biscuit's reflect-based dump so any per-subsystem stats struct gets a
// printer for free without hand-writing one per struct.
func Stats2String(st interface{}) string {
	v := reflect.ValueOf(st)
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		switch {
			case strings.HasSuffix(t, "Counter_t"):
			n := v.Field(i).Interface().(Counter_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
			case strings.HasSuffix(t, "Cycles_t"):
			n := v.Field(i).Interface().(Cycles_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
	}
	return s + "\n"
}

// Dump walks every Counter_t/Cycles_t field of st via reflection and
// produces a pprof sample profile, one sample per field, value in the
// field's own unit.
func Dump(st interface{}) *profile.Profile {
	v := reflect.ValueOf(st)
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "count", Unit: "count"}},
		TimeNanos: time.Now().UnixNano(),
	}
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		name := v.Type().Field(i).Name
		var val int64
		switch {
			case strings.HasSuffix(t, "Counter_t"):
			val = int64(v.Field(i).Interface().(Counter_t))
			case strings.HasSuffix(t, "Cycles_t"):
			val = int64(v.Field(i).Interface().(Cycles_t))
			default:
			continue
		}
		fn := &profile.Function{ID: uint64(i + 1), Name: name}
		loc := &profile.Location{ID: uint64(i + 1), Line: []profile.Line{{Function: fn}}}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, &profile.Sample{
				Location: []*profile.Location{loc},
				Value: []int64{val},
		})
	}
	return p
}
