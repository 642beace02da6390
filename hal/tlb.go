package hal

import "sync"

// TLBShootdown_t batches the pending invalidation ranges for one
// AddressSpace operation and applies them in one Flush at the end rather
// than one per changed page. It sends no IPI itself; Flush returns a
// generation number for remote CPUs to compare against.
type TLBShootdown_t struct {
	mu sync.Mutex
	pages []uint64 // virtual addresses needing invlpg; unused once full is set
	full bool
	gen uint64
}

// AddPage records one page needing invalidation.
func (s *TLBShootdown_t) AddPage(va uint64) {
	s.mu.Lock()
	if !s.full {
		s.pages = append(s.pages, va)
	}
	s.mu.Unlock()
}

// MarkFull records that the whole address space must be flushed (CR3
// reload) rather than page-by-page, once accumulated ranges exceed what a
// handful of invlpg instructions can do more cheaply.
func (s *TLBShootdown_t) MarkFull() {
	s.mu.Lock()
	s.full = true
	s.pages = nil
	s.mu.Unlock()
}

// Flush applies the accumulated invalidations locally (invalidatePage per
// page, or reloadCR3 for a full flush) and bumps the shootdown generation so a
// subsequent IPI can tell receivers whether they need to act.
func (s *TLBShootdown_t) Flush(invalidatePage func(va uint64), reloadCR3 func()) uint64 {
	s.mu.Lock()
	full := s.full
	pages := s.pages
	s.pages = nil
	s.full = false
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	if full {
		reloadCR3()
	} else {
		for _, va := range pages {
			invalidatePage(va)
		}
	}
	return gen
}

// Generation returns the last generation issued by Flush, for a remote CPU
// deciding whether an IPI it received is stale relative to work it already
// observed.
func (s *TLBShootdown_t) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}
