package strategy

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bc-dunia/httpdrill/internal/httpmodel"
	"github.com/bc-dunia/httpdrill/internal/transfer"
)

// iterations submits exactly N requests with up to C in flight, finishing
// once all N are submitted (spec 4.H). Expected is always N.
type iterations struct {
	cfg Config
}

func (s *iterations) Drive(ctx context.Context, loop Submitter, req *httpmodel.Request, callback transfer.Callback) Result {
	n := s.cfg.Iterations
	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var sent atomic.Int64

	for int(sent.Load()) < n {
		if stopped(ctx) {
			return Result{Sent: sent.Load(), Expected: int64(n)}
		}

		if loop.PendingCount() > 5*concurrency {
			if sleepOrStop(ctx, 10*time.Millisecond) {
				return Result{Sent: sent.Load(), Expected: int64(n)}
			}
			continue
		}

		remaining := n - int(sent.Load())
		batch := concurrency
		if batch > remaining {
			batch = remaining
		}
		submitBurst(loop, req, callback, batch, &sent)

		if sleepOrStop(ctx, 10*time.Millisecond) {
			return Result{Sent: sent.Load(), Expected: int64(n)}
		}
	}

	return Result{Sent: sent.Load(), Expected: int64(n)}
}
