package boot

import (
	"github.com/Redstone-OS/forge/console"
	"github.com/Redstone-OS/forge/mem"
)

// Stage_t is one named subsystem bring-up step, run in order; a failing
// stage halts boot immediately rather than limping forward with a
// half-initialized kernel.
type Stage_t struct {
	Name string
	Run func(h *Handoff_t) error
}

// Init runs every stage in order, logging a banner before and after each
// one. A clean boot's serial log shows the init banners for logging, mm,
// interrupts, scheduler, and syscalls in that order.
func Init(h *Handoff_t, stages []Stage_t) {
	for _, s := range stages {
		console.Printf("init: %s starting\n", s.Name)
		if err := s.Run(h); err != nil {
			console.Panic("init: %s failed: %v", s.Name, err)
		}
		console.Printf("init: %s ready\n", s.Name)
	}
}

// DefaultStages is the canonical subsystem bring-up order: logging, mm,
// interrupts, scheduler, syscalls.
// Callers building a real boot sequence append the concrete Run closures
// (kept out of this package to avoid boot depending on every other package
// the stages wire together); this slice only fixes the required order.
var DefaultStages = []string{"logging", "mm", "interrupts", "scheduler", "syscalls"}

// FrameTableSize computes the number of frame-metadata entries the PMM
// needs for the usable RAM in h, at mem.PGSIZE granularity.
func FrameTableSize(h *Handoff_t) int {
	return int(h.UsableBytes() / uint64(mem.PGSIZE))
}
