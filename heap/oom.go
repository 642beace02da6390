package heap

// OomMsg_t is sent on OomCh when an allocator has exhausted its backing
// arena and wants a reclaimer to free memory before the caller retries.
type OomMsg_t struct {
	Need   int
	Resume chan bool
}

// OomCh is read by a reclaimer task; Alloc sends on it (non-blocking — if
// nothing is listening there is no reclaimer running yet to wake).
var OomCh = make(chan OomMsg_t, 1)

// notifyOOM signals a reclaimer that need more bytes are wanted than are
// currently free, without blocking the caller if no reclaimer is running.
func notifyOOM(need int) {
	select {
	case OomCh <- OomMsg_t{Need: need}:
	default:
	}
}
