package telemetry

import (
	"math"
	"sync/atomic"
)

// histogramBuckets caps the exponential latency histogram at 64 buckets in
// microseconds, per spec 4.G: bucket = floor(log2(max(1, latency_µs))).
const histogramBuckets = 64

// latencyHistogram is a lock-free, mergeable exponential-bucket histogram.
// Each worker owns one; Observe is the only hot-path write, a plain atomic
// increment with no branch beyond the bucket computation.
type latencyHistogram struct {
	buckets [histogramBuckets]atomic.Int64
}

// bucketForMicros computes floor(log2(max(1, µs))), capped at the last
// bucket index.
func bucketForMicros(micros int64) int {
	if micros < 1 {
		micros = 1
	}
	b := int(math.Log2(float64(micros)))
	if b < 0 {
		b = 0
	}
	if b >= histogramBuckets {
		b = histogramBuckets - 1
	}
	return b
}

func (h *latencyHistogram) Observe(micros int64) {
	h.buckets[bucketForMicros(micros)].Add(1)
}

// snapshot copies the current counts without resetting them — counters are
// monotonic for the life of the run, per spec invariant 5.
func (h *latencyHistogram) snapshot() [histogramBuckets]int64 {
	var out [histogramBuckets]int64
	for i := range h.buckets {
		out[i] = h.buckets[i].Load()
	}
	return out
}

// mergeHistograms sums per-worker bucket counts into one combined
// histogram, the merge step the snapshot task performs every stats_interval.
func mergeHistograms(hists [][histogramBuckets]int64) [histogramBuckets]int64 {
	var merged [histogramBuckets]int64
	for _, h := range hists {
		for i := range h {
			merged[i] += h[i]
		}
	}
	return merged
}

// bucketMicros returns the representative (lower-edge) microsecond value of
// a bucket index, used as the bucket's "centre" for percentile estimation.
func bucketMicros(bucket int) int64 {
	if bucket <= 0 {
		return 1
	}
	return int64(1) << uint(bucket)
}

// percentile estimates the p-th percentile (0 < p < 1) from merged bucket
// counts by walking buckets until the cumulative count crosses p*total,
// then reporting that bucket's representative value — accurate to within
// one bucket step, as documented in spec 4.G.
func percentile(hist [histogramBuckets]int64, p float64) int64 {
	var total int64
	for _, c := range hist {
		total += c
	}
	if total == 0 {
		return 0
	}

	target := int64(math.Ceil(p * float64(total)))
	var cum int64
	for i, c := range hist {
		cum += c
		if cum >= target {
			return bucketMicros(i) / 1000 // µs -> ms
		}
	}
	return bucketMicros(histogramBuckets-1) / 1000
}
