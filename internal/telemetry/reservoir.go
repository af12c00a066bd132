package telemetry

import "sync/atomic"

// errorReservoirCapacity is the per-run cap on retained error traces (spec
// 4.G default 10 000; §7 "last 1 024 error traces" governs what the final
// report surfaces, so Drain trims to that on read).
const errorReservoirCapacity = 10000

// reportedErrorTraces is how many of the retained traces the final report
// exposes, per §7.
const reportedErrorTraces = 1024

// boundedReservoir is a fixed-size ring of *TransferLog slots written via a
// single atomic increment-and-store — no lock, no CAS loop, overwrite
// oldest once the ring wraps.
type boundedReservoir struct {
	slots  []atomic.Pointer[TransferLog]
	cursor atomic.Uint64
}

func newBoundedReservoir(capacity int) *boundedReservoir {
	if capacity <= 0 {
		capacity = 1
	}
	return &boundedReservoir{slots: make([]atomic.Pointer[TransferLog], capacity)}
}

func (r *boundedReservoir) Add(log *TransferLog) {
	idx := r.cursor.Add(1) % uint64(len(r.slots))
	r.slots[idx].Store(log)
}

// Drain returns up to limit non-nil entries currently held, most recently
// written first, walking the ring backwards from the cursor. It does not
// clear the ring.
func (r *boundedReservoir) Drain(limit int) []*TransferLog {
	out := make([]*TransferLog, 0, limit)
	n := uint64(len(r.slots))
	cur := r.cursor.Load()
	for i := uint64(0); i < n && len(out) < limit; i++ {
		if log := r.slots[(cur+n-i)%n].Load(); log != nil {
			out = append(out, log)
		}
	}
	return out
}

// successSampler decides, per spec 4.G, whether a successful transfer's
// full trace should be captured: every Kth completion (sub-rate sampling)
// or any transfer at/above the slow threshold.
type successSampler struct {
	k               int64
	slowThresholdMs int64
	counter         atomic.Int64
}

// newSuccessSampler derives K = max(1, 100/ratePercent) from the configured
// success_sample_rate_percent (0-100).
func newSuccessSampler(ratePercent int, slowThresholdMs int64) *successSampler {
	if ratePercent <= 0 {
		ratePercent = 1
	}
	k := int64(100 / ratePercent)
	if k < 1 {
		k = 1
	}
	return &successSampler{k: k, slowThresholdMs: slowThresholdMs}
}

// ShouldSample reports whether this particular successful completion (and
// its derived "slow" flag) should be enqueued as a trace on the collector's
// BoundedQueue.
func (s *successSampler) ShouldSample(latencyMs int64) (sample bool, slow bool) {
	slow = s.slowThresholdMs > 0 && latencyMs >= s.slowThresholdMs
	n := s.counter.Add(1)
	return slow || n%s.k == 0, slow
}
