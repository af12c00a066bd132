package handlepool

// Pool is a single-threaded free list of Handles, owned exclusively by one
// event-loop worker. It has exactly one caller and needs no lock: the
// worker is the only goroutine that ever acquires or releases.
type Pool struct {
	free []*Handle
}

// New pre-allocates initial handles up front so the worker's steady-state
// admission loop never pays construction cost mid-run.
func New(initial int) *Pool {
	p := &Pool{free: make([]*Handle, 0, initial)}
	for i := 0; i < initial; i++ {
		p.free = append(p.free, newHandle())
	}
	return p
}

// Acquire returns a handle reset to a clean state, constructing a new one
// only if the free list is empty (a pool sized correctly for its worker's
// max_concurrent never should, in steady state).
func (p *Pool) Acquire() *Handle {
	n := len(p.free)
	if n == 0 {
		return newHandle()
	}
	h := p.free[n-1]
	p.free = p.free[:n-1]
	h.Reset()
	return h
}

// Release returns a handle to the free list for reuse.
func (p *Pool) Release(h *Handle) {
	p.free = append(p.free, h)
}

// Available reports the number of handles ready for immediate reuse.
func (p *Pool) Available() int {
	return len(p.free)
}
