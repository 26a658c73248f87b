package toolkit

import "sync"

// DefaultSlotLimit bounds simultaneous toolkit executions per process.
const DefaultSlotLimit = 5

// SlotGate is a counting gate over executor invocations. TryAcquire never
// blocks: toolkit commands are operator-triggered, and silent queuing would
// hide backpressure from the caller. Exhaustion is surfaced immediately as
// CONCURRENCY_LIMIT instead.
type SlotGate struct {
	mu       sync.Mutex
	inFlight int
	limit    int
}

// NewSlotGate creates a gate with the given ceiling. Non-positive limits
// fall back to DefaultSlotLimit.
func NewSlotGate(limit int) *SlotGate {
	if limit <= 0 {
		limit = DefaultSlotLimit
	}
	return &SlotGate{limit: limit}
}

// TryAcquire claims a slot. The returned release func is safe to call more
// than once; only the first call frees the slot.
func (g *SlotGate) TryAcquire() (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlight >= g.limit {
		return nil, false
	}
	g.inFlight++

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.inFlight--
			g.mu.Unlock()
		})
	}, true
}

// InFlight returns the number of currently held slots.
func (g *SlotGate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// Limit returns the configured ceiling.
func (g *SlotGate) Limit() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limit
}
