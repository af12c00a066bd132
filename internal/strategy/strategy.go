package strategy

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bc-dunia/httpdrill/internal/httpmodel"
	"github.com/bc-dunia/httpdrill/internal/transfer"
)

// Submitter is the narrow slice of engine.Loop a strategy needs: submit a
// request and ask how much work is still pending. Kept as an interface, not
// a concrete *engine.Loop dependency, purely so a driver can be exercised
// against a stub in tests without spinning up real workers.
type Submitter interface {
	Submit(req *httpmodel.Request, callback transfer.Callback) bool
	PendingCount() int
}

// Strategy shapes a submission pattern over the lifetime of a run. Drive
// blocks until ctx is done or the strategy's own termination condition
// fires (spec 4.H: "each strategy's termination condition is explicit").
type Strategy interface {
	Drive(ctx context.Context, loop Submitter, req *httpmodel.Request, callback transfer.Callback) Result
}

// New is the factory converting a decoded Config into one of the four
// closed strategy variants (spec 9's "closed sum type" design note).
func New(cfg Config) Strategy {
	switch cfg.Mode {
	case ModeConstantRPS:
		return &constantRPS{cfg: cfg}
	case ModeIterations:
		return &iterations{cfg: cfg}
	case ModeRampUp:
		return &rampUp{cfg: cfg}
	default:
		return &constantConcurrency{cfg: cfg}
	}
}

// cloneRequest hands the event loop its own copy per submission, per spec
// §3 ownership rule ("A Request instance is cloned once per strategy
// submission").
func cloneRequest(req *httpmodel.Request) *httpmodel.Request {
	return req.Clone()
}

// submitBurst submits up to n cloned requests, each wrapped so the shared
// sent counter increments exactly once per accepted submission. Returns how
// many were actually accepted (the event loop's bounded queue may reject
// some under backpressure).
func submitBurst(loop Submitter, req *httpmodel.Request, callback transfer.Callback, n int, sent *atomic.Int64) int {
	accepted := 0
	for i := 0; i < n; i++ {
		if loop.Submit(cloneRequest(req), callback) {
			sent.Add(1)
			accepted++
		} else {
			break
		}
	}
	return accepted
}

func stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func sleepOrStop(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}
