package strategy

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bc-dunia/httpdrill/internal/httpmodel"
	"github.com/bc-dunia/httpdrill/internal/transfer"
)

// rampUp linearly interpolates concurrency from StartConcurrency to
// Concurrency over RampDurationMs, then behaves like constantConcurrency at
// the final Concurrency for the remainder of DurationMs (spec 4.H).
type rampUp struct {
	cfg Config
}

func (s *rampUp) Drive(ctx context.Context, loop Submitter, req *httpmodel.Request, callback transfer.Callback) Result {
	cfg := s.cfg
	start := time.Now()
	deadline := start.Add(time.Duration(cfg.DurationMs) * time.Millisecond)
	rampDeadline := start.Add(time.Duration(cfg.RampDurationMs) * time.Millisecond)

	var sent atomic.Int64

	for time.Now().Before(rampDeadline) {
		if stopped(ctx) || time.Now().After(deadline) {
			return Result{Sent: sent.Load()}
		}

		elapsed := time.Since(start)
		progress := float64(elapsed) / float64(time.Duration(cfg.RampDurationMs)*time.Millisecond)
		if progress > 1 {
			progress = 1
		}
		current := cfg.StartConcurrency + int(progress*float64(cfg.Concurrency-cfg.StartConcurrency))
		if current < 1 {
			current = 1
		}

		if loop.PendingCount() > 5*current {
			if sleepOrStop(ctx, 50*time.Millisecond) {
				return Result{Sent: sent.Load()}
			}
			continue
		}

		submitBurst(loop, req, callback, current, &sent)
		if sleepOrStop(ctx, 10*time.Millisecond) {
			return Result{Sent: sent.Load()}
		}
	}

	remainingMs := int64(0)
	if cfg.DurationMs > 0 {
		remainingMs = cfg.DurationMs - time.Since(start).Milliseconds()
		if remainingMs < 0 {
			remainingMs = 0
		}
	}

	post := driveConstantConcurrency(ctx, loop, req, callback, cfg.Concurrency, remainingMs)
	return Result{Sent: sent.Load() + post.Sent}
}
