package billing

import (
	"sync"
	"sync/atomic"
)

// picoScale is the quantum of the atomic running-cost counter: 10^-12
// display-currency units, chosen so a lock-free fetch-add never needs a
// float CAS loop.
const picoScale = 1e12

// Budget is the process-wide running-cost counter and mutable spending
// limit. RunningCost is incremented by the Streaming Meter on every output
// delta and reset by an admin operation; Limit is read far more often than
// it is written, hence the mutex rather than anything fancier.
type Budget struct {
	running atomic.Uint64

	mu    sync.Mutex
	limit float64
}

func NewBudget(defaultLimit float64) *Budget {
	return &Budget{limit: defaultLimit}
}

// Current returns the running total in display-currency units.
func (b *Budget) Current() float64 {
	return float64(b.running.Load()) / picoScale
}

// AddPicos atomically adds n pico-units and returns the new total, so
// callers can budget-check against a value they know is at least as current
// as their own increment.
func (b *Budget) AddPicos(n uint64) uint64 {
	return b.running.Add(n)
}

func (b *Budget) Limit() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit
}

func (b *Budget) SetLimit(limit float64) {
	b.mu.Lock()
	b.limit = limit
	b.mu.Unlock()
}

// Reset zeros the running-cost counter.
func (b *Budget) Reset() {
	b.running.Store(0)
}

// Gate reports whether the running total is still under the limit. Used
// both as a pre-request check and internally by the meter on every delta.
func (b *Budget) Gate() (allowed bool, current, limit float64) {
	current = b.Current()
	limit = b.Limit()
	return current < limit, current, limit
}

// PicosFromCost converts a display-currency delta into the pico-unit
// integer the atomic counter stores, rounding to the nearest pico.
func PicosFromCost(cost float64) uint64 {
	if cost <= 0 {
		return 0
	}
	return uint64(cost*picoScale + 0.5)
}
