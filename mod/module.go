// Package mod implements the dynamic module (driver) subsystem: a
// signature-verified, relocatable-object loader, a disassembly-based
// verifier rejecting privileged instructions, and a watchdog supervising
// each running module's health.
package mod

import (
	"time"

	"github.com/Redstone-OS/forge/cap"
	"github.com/Redstone-OS/forge/config"
	"github.com/Redstone-OS/forge/defs"
	"github.com/Redstone-OS/forge/mem"
)

// State_t is a module's lifecycle state.
type State_t int

const (
	MOD_LOADING State_t = iota
	MOD_RUNNING
	MOD_STOPPED
	MOD_FAILED
	MOD_BANNED
)

// Callbacks_t are the entry points a loaded module exposes.
type Callbacks_t struct {
	Init func(grants *cap.CSpace_t) defs.Err_t
	Cleanup func()
	Health func(deadline time.Time) defs.Err_t
}

// Watchdog_t is the per-module health-check bookkeeping.
type Watchdog_t struct {
	LastOK time.Time
	Timeout time.Duration
	FaultN int
	Critical bool
}

// Module_t is a loaded module's control block.
type Module_t struct {
	ID uint64
	Name string
	State State_t
	Grants *cap.CSpace_t
	CodeBase mem.Va_t
	CodePages int
	DataBase mem.Va_t
	DataPages int
	Cb Callbacks_t
	WD Watchdog_t
}

// RecordHealthResult updates m's watchdog bookkeeping after one health
// check, returning the fallback action to take if the module just crossed
// the ban threshold (config.Current.ModuleFaultBan consecutive failures),
// or FallbackNone otherwise.
func (m *Module_t) RecordHealthResult(ok bool, now time.Time) Fallback_t {
	if ok {
		m.WD.LastOK = now
		m.WD.FaultN = 0
		return FallbackNone
	}
	m.WD.FaultN++
	if m.WD.FaultN < config.Current.ModuleFaultBan {
		return FallbackNone
	}
	m.State = MOD_BANNED
	if m.WD.Critical {
		return FallbackPanic
	}
	return FallbackDisable
}

// Fallback_t is the configured response to a module crossing the ban
// threshold.
type Fallback_t int

const (
	FallbackNone Fallback_t = iota
	FallbackDisable
	FallbackReload
	FallbackGeneric
	FallbackPanic
)
