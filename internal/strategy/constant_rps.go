package strategy

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bc-dunia/httpdrill/internal/httpmodel"
	"github.com/bc-dunia/httpdrill/internal/transfer"
)

// constantRPS dispatches at approximately TargetRPS requests/sec for
// DurationMs via 1ms-cadence micro-batching (spec 4.H).
type constantRPS struct {
	cfg Config
}

func (s *constantRPS) Drive(ctx context.Context, loop Submitter, req *httpmodel.Request, callback transfer.Callback) Result {
	rate := s.cfg.TargetRPS
	durationMs := s.cfg.DurationMs

	batchSize := int(rate/1000 + 0.5)
	if batchSize < 1 {
		batchSize = 1
	}

	pendingCeiling := int(10 * rate)
	if pendingCeiling < 1000 {
		pendingCeiling = 1000
	}

	expected := int64(0)
	if durationMs > 0 && rate > 0 {
		expected = int64(rate * float64(durationMs) / 1000)
	}

	var sent atomic.Int64
	deadline := time.Now().Add(time.Duration(durationMs) * time.Millisecond)
	nextBatch := time.Now()

	for {
		if stopped(ctx) || time.Now().After(deadline) {
			return Result{Sent: sent.Load(), Expected: expected}
		}

		now := time.Now()
		if loop.PendingCount() < pendingCeiling {
			submitBurst(loop, req, callback, batchSize, &sent)
			nextBatch = nextBatch.Add(time.Millisecond)
		} else {
			// Pending queue is saturated: drop this tick rather than flood
			// the worker further, and resync the schedule to now.
			nextBatch = now.Add(time.Millisecond)
		}

		remaining := nextBatch.Sub(now)
		if remaining > 0 {
			if sleepOrStop(ctx, remaining/2) {
				return Result{Sent: sent.Load(), Expected: expected}
			}
		}
	}
}
