package strategy

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bc-dunia/httpdrill/internal/httpmodel"
	"github.com/bc-dunia/httpdrill/internal/transfer"
)

// constantConcurrency keeps approximately Concurrency requests in flight
// for DurationMs (spec 4.H). Expected count is unknown up front — it
// depends on per-request latency — so Result.Expected is left zero.
type constantConcurrency struct {
	cfg Config
}

func (s *constantConcurrency) Drive(ctx context.Context, loop Submitter, req *httpmodel.Request, callback transfer.Callback) Result {
	return driveConstantConcurrency(ctx, loop, req, callback, s.cfg.Concurrency, s.cfg.DurationMs)
}

// driveConstantConcurrency is factored out so rampUp can reuse it once its
// ramp completes and it behaves like constant_concurrency at the final
// concurrency level.
func driveConstantConcurrency(ctx context.Context, loop Submitter, req *httpmodel.Request, callback transfer.Callback, concurrency int, durationMs int64) Result {
	if concurrency <= 0 {
		concurrency = 1
	}
	var sent atomic.Int64
	deadline := time.Now().Add(time.Duration(durationMs) * time.Millisecond)

	for {
		if stopped(ctx) || time.Now().After(deadline) {
			return Result{Sent: sent.Load()}
		}

		if loop.PendingCount() > 5*concurrency {
			if sleepOrStop(ctx, 50*time.Millisecond) {
				return Result{Sent: sent.Load()}
			}
			continue
		}

		submitBurst(loop, req, callback, concurrency, &sent)
		if sleepOrStop(ctx, 10*time.Millisecond) {
			return Result{Sent: sent.Load()}
		}
	}
}
