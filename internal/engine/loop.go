package engine

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/bc-dunia/httpdrill/internal/dnscache"
	"github.com/bc-dunia/httpdrill/internal/httpmodel"
	"github.com/bc-dunia/httpdrill/internal/transfer"
)

// maxAutoWorkers bounds the "0 ⇒ auto" worker count so a high-core-count
// box doesn't spin up more single-threaded loops than the submission rate
// could ever keep busy.
const maxAutoWorkers = 16

// LoopConfig configures a sharded Loop. NumWorkers of 0 resolves to
// min(runtime.NumCPU(), maxAutoWorkers).
type LoopConfig struct {
	NumWorkers         int
	MaxConcurrentTotal int
	TargetRPS          float64
	Burst              float64
	Client             *http.Client
	DNS                *dnscache.Cache
	OnComplete         func(workerID int, ctx *transfer.Context, outcome transfer.Outcome)
}

// Loop fans submissions round-robin across NumWorkers independent
// Workers, each single-threaded, and exposes aggregated stats across all
// of them.
type Loop struct {
	workers []*Worker
	counter atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
	stopped atomic.Bool
}

// NewLoop resolves worker count and per-worker caps (ceil-division of the
// global concurrency and an even split of the global rate) and constructs
// one Worker per shard.
func NewLoop(cfg LoopConfig) *Loop {
	numWorkers := cfg.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
		if numWorkers > maxAutoWorkers {
			numWorkers = maxAutoWorkers
		}
		if numWorkers < 1 {
			numWorkers = 1
		}
	}

	perWorkerConcurrency := ceilDiv(cfg.MaxConcurrentTotal, numWorkers)
	perWorkerRPS := 0.0
	if cfg.TargetRPS > 0 {
		perWorkerRPS = cfg.TargetRPS / float64(numWorkers)
	}
	perWorkerBurst := 0.0
	if cfg.Burst > 0 {
		perWorkerBurst = cfg.Burst / float64(numWorkers)
	}

	l := &Loop{workers: make([]*Worker, numWorkers)}
	for i := 0; i < numWorkers; i++ {
		l.workers[i] = NewWorker(i, Config{
			MaxConcurrent: perWorkerConcurrency,
			TargetRPS:     perWorkerRPS,
			Burst:         perWorkerBurst,
			Client:        cfg.Client,
			DNS:           cfg.DNS,
			OnComplete:    cfg.OnComplete,
		})
	}
	return l
}

func ceilDiv(total, shards int) int {
	if shards <= 0 {
		shards = 1
	}
	if total <= 0 {
		return 1
	}
	return (total + shards - 1) / shards
}

// Start launches every worker's loop goroutine.
func (l *Loop) Start(ctx context.Context) {
	if l.started.Swap(true) {
		return
	}
	l.ctx, l.cancel = context.WithCancel(ctx)
	for _, w := range l.workers {
		l.wg.Add(1)
		go func(w *Worker) {
			defer l.wg.Done()
			w.Run(l.ctx)
		}(w)
	}
}

// Stop requests every worker to stop. If wait is false, each worker's
// pending queue is drained with Cancelled errors immediately; Stop then
// blocks until every worker's loop has actually returned.
func (l *Loop) Stop(wait bool) {
	if l.stopped.Swap(true) {
		return
	}
	for _, w := range l.workers {
		w.Stop(wait)
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
}

// SubmissionID identifies one call to SubmitWithID, SubmitAsync, or
// ExecuteBatch within this Loop's lifetime. It also picks the shard: the
// worker index is id mod NumWorkers, so Submit/SubmitWithID/SubmitAsync all
// share one dispatch counter.
type SubmissionID uint64

func (l *Loop) nextID() SubmissionID {
	return SubmissionID(l.counter.Add(1))
}

func (l *Loop) dispatch(id SubmissionID, tctx *transfer.Context) bool {
	idx := uint64(id) % uint64(len(l.workers))
	return l.workers[idx].Submit(tctx)
}

// Submit round-robins req to a worker via an atomic counter. Returns false
// if that worker's bounded queue is full — the caller (a load strategy) is
// expected to back off on false, not retry in a tight loop. This is the
// strategy drivers' hot path; it skips returning an id since none of them
// ever correlate a submission back by id.
func (l *Loop) Submit(req *httpmodel.Request, callback transfer.Callback) bool {
	tctx := transfer.New(req, callback)
	return l.dispatch(l.nextID(), tctx)
}

// SubmitWithID behaves like Submit but also returns the id assigned to the
// submission, matching the `submit(request, callback) -> id` entry point.
func (l *Loop) SubmitWithID(req *httpmodel.Request, callback transfer.Callback) (SubmissionID, bool) {
	id := l.nextID()
	tctx := transfer.New(req, callback)
	return id, l.dispatch(id, tctx)
}

// Future is the handle SubmitAsync and ExecuteBatch return: an id plus a
// blocking Wait for the eventual Outcome, for callers that want a
// single-shot future instead of a callback.
type Future struct {
	ID  SubmissionID
	ctx *transfer.Context
}

// Wait blocks until the submission completes and returns its Outcome.
func (f Future) Wait() transfer.Outcome {
	return f.ctx.Wait()
}

// SubmitAsync enqueues req with no callback, returning a Future the caller
// can Wait on — the `submit_async(request) -> Handle{id, future}` entry
// point. The bool return mirrors Submit's backpressure signal: false means
// the target worker's queue was full and the Future is not meaningful.
func (l *Loop) SubmitAsync(req *httpmodel.Request) (Future, bool) {
	id := l.nextID()
	tctx := transfer.New(req, nil)
	ok := l.dispatch(id, tctx)
	return Future{ID: id, ctx: tctx}, ok
}

// BatchResult is ExecuteBatch's return value: the Futures accepted before
// the loop's bounded queue started rejecting, in submission order.
type BatchResult struct {
	Futures  []Future
	Accepted int
}

// ExecuteBatch submits every request in reqs via SubmitAsync, a convenience
// wrapper built directly on it per spec. It stops at the first rejected
// submission rather than skipping ahead, so Accepted is always a contiguous
// prefix of reqs and the caller can resubmit the remainder.
func (l *Loop) ExecuteBatch(reqs []*httpmodel.Request) BatchResult {
	result := BatchResult{Futures: make([]Future, 0, len(reqs))}
	for _, req := range reqs {
		future, ok := l.SubmitAsync(req)
		if !ok {
			break
		}
		result.Futures = append(result.Futures, future)
		result.Accepted++
	}
	return result
}

// ActiveCount, PendingCount, TotalProcessed sum each worker's counters.
func (l *Loop) ActiveCount() int64 {
	var total int64
	for _, w := range l.workers {
		total += w.ActiveCount()
	}
	return total
}

func (l *Loop) PendingCount() int {
	total := 0
	for _, w := range l.workers {
		total += w.PendingCount()
	}
	return total
}

func (l *Loop) TotalProcessed() int64 {
	var total int64
	for _, w := range l.workers {
		total += w.ProcessedCount()
	}
	return total
}

// Stats is the aggregated snapshot the `stats()` entry point returns: the
// same three counters ActiveCount/PendingCount/TotalProcessed expose
// individually, bundled for a caller that wants one read instead of three.
type Stats struct {
	Active    int64
	Pending   int
	Processed int64
}

// Stats aggregates every worker's counters into one snapshot.
func (l *Loop) Stats() Stats {
	return Stats{
		Active:    l.ActiveCount(),
		Pending:   l.PendingCount(),
		Processed: l.TotalProcessed(),
	}
}

// NumWorkers reports the shard count resolved at construction.
func (l *Loop) NumWorkers() int {
	return len(l.workers)
}

// HealthAdapter satisfies telemetry.HealthProvider without this package
// importing telemetry — the run manager wires it in by structural typing.
type HealthAdapter struct {
	loop *Loop
}

func NewHealthAdapter(l *Loop) HealthAdapter {
	return HealthAdapter{loop: l}
}

func (a HealthAdapter) ActiveTransfers() int64 {
	return a.loop.ActiveCount()
}

func (a HealthAdapter) PendingCount() int64 {
	return int64(a.loop.PendingCount())
}
