package breaker

import "sync/atomic"

const defaultThreshold = 10

// Breaker is a process-wide gate over outbound work. It opens after a run of
// consecutive failures and only closes again on an explicit success.
type Breaker struct {
	threshold int64
	failures  atomic.Int64
	disabled  atomic.Bool
}

// New creates a Breaker that opens after threshold consecutive failures.
// disabled engages the kill switch from the start.
func New(threshold int, disabled bool) *Breaker {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	b := &Breaker{threshold: int64(threshold)}
	b.disabled.Store(disabled)
	return b
}

// Allow reports whether new work may start. The kill switch is checked first.
func (b *Breaker) Allow() bool {
	if b.disabled.Load() {
		return false
	}
	return b.failures.Load() < b.threshold
}

// Disabled reports whether the kill switch is engaged.
func (b *Breaker) Disabled() bool {
	return b.disabled.Load()
}

// SetDisabled engages or releases the kill switch.
func (b *Breaker) SetDisabled(disabled bool) {
	b.disabled.Store(disabled)
}

// RecordFailure counts one failed orchestration.
func (b *Breaker) RecordFailure() {
	b.failures.Add(1)
}

// RecordSuccess closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.failures.Store(0)
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	return int(b.failures.Load())
}
