package engine

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bc-dunia/httpdrill/internal/dnscache"
	"github.com/bc-dunia/httpdrill/internal/handlepool"
	"github.com/bc-dunia/httpdrill/internal/httpmodel"
	"github.com/bc-dunia/httpdrill/internal/ratelimit"
	"github.com/bc-dunia/httpdrill/internal/transfer"
)

// pollTimeout is how long the worker's reap/wait step blocks between
// admission passes when transfers are in flight — chosen per spec 4.E to
// retain low completion latency while still servicing the pending queue.
const pollTimeout = time.Millisecond

// completion is what an in-flight transfer's driving goroutine reports
// back to the owning worker. The worker itself never issues the blocking
// HTTP call — the driving goroutine does, and the worker's single thread
// only ever touches completions, never does I/O of unbounded duration.
// This is the idiomatic-Go rendering of the cooperative "perform once,
// never block" transfer driver: Go's runtime already multiplexes many
// blocking goroutines over few OS threads, so a worker's "drive" step is
// simply letting those goroutines run and its "reap" step is draining
// their results off a channel.
type completion struct {
	ctx     *transfer.Context
	outcome transfer.Outcome
}

// Worker drives up to maxConcurrent in-flight HTTP transfers, fed by one
// bounded submission queue, admitting under its own rate limiter and
// handle pool — both private to this worker and touched by no other
// goroutine, matching spec 4.E's single-threaded-loop model.
type Worker struct {
	id            int
	maxConcurrent int

	pending      submissionQueue
	completions  chan completion
	wake         chan struct{}
	stopRequested atomic.Bool
	drainPending  atomic.Bool

	limiter   *ratelimit.Limiter
	handles   *handlepool.Pool
	dns       *dnscache.Cache
	client    *http.Client

	activeCount    atomic.Int64
	processedCount atomic.Int64

	onComplete func(workerID int, ctx *transfer.Context, outcome transfer.Outcome)
}

// Config holds the per-worker construction knobs derived from the
// sharded loop's global configuration (see NewLoop).
type Config struct {
	MaxConcurrent int
	TargetRPS     float64
	Burst         float64
	Client        *http.Client
	DNS           *dnscache.Cache
	OnComplete    func(workerID int, ctx *transfer.Context, outcome transfer.Outcome)
}

// NewWorker constructs a worker with a pre-sized handle pool and its own
// private rate limiter.
func NewWorker(id int, cfg Config) *Worker {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Transport: NewTransport(cfg.MaxConcurrent)}
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = ratelimit.DeriveBurst(cfg.TargetRPS, cfg.MaxConcurrent)
	}
	return &Worker{
		id:            id,
		maxConcurrent: cfg.MaxConcurrent,
		pending:       newSubmissionQueue(),
		completions:   make(chan completion, cfg.MaxConcurrent),
		wake:          make(chan struct{}, 1),
		limiter:       ratelimit.New(cfg.TargetRPS, burst),
		handles:       handlepool.New(cfg.MaxConcurrent),
		dns:           cfg.DNS,
		client:        client,
		onComplete:    cfg.OnComplete,
	}
}

// Submit enqueues a transfer for this worker, backpressuring the caller
// (returns false) if the bounded queue is full.
func (w *Worker) Submit(ctx *transfer.Context) bool {
	if w.stopRequested.Load() {
		ctx.Complete(transfer.Outcome{Err: httpmodelCancelled()})
		return false
	}
	ok := w.pending.TryPush(ctx)
	if ok {
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
	return ok
}

// Run is the worker's single-threaded loop: admission, drive, reap, wait,
// repeat, until Stop is called and both the pending queue and active set
// drain.
func (w *Worker) Run(parent context.Context) {
	idleSpins := 0
	const maxIdleSpins = 1000

	for {
		admitted := w.admit(parent)
		w.reap(false)

		if w.stopRequested.Load() && w.pending.Len() == 0 && w.activeCount.Load() == 0 {
			return
		}

		if w.activeCount.Load() > 0 {
			w.reap(true)
			idleSpins = 0
			continue
		}

		if admitted {
			idleSpins = 0
			continue
		}

		if w.pending.Len() > 0 {
			continue
		}

		if idleSpins < maxIdleSpins {
			idleSpins++
			continue
		}

		select {
		case <-w.wake:
		case <-parent.Done():
			w.stopRequested.Store(true)
		case <-time.After(pollTimeout):
		}
	}
}

// admit arms as many pending transfers as the concurrency cap and rate
// limiter allow, returning whether anything was armed this pass.
func (w *Worker) admit(parent context.Context) bool {
	admittedAny := false
	for int(w.activeCount.Load()) < w.maxConcurrent {
		if !w.limiter.TryAcquire() {
			break
		}
		var tctx *transfer.Context
		select {
		case tctx = <-w.pending:
		default:
			// Token acquired but nothing pending: accepted inefficiency
			// at high rates rather than a blocking wait for work.
			return admittedAny
		}
		w.arm(parent, tctx)
		admittedAny = true
	}
	return admittedAny
}

// arm binds a handle/DNS override and launches the driving goroutine.
func (w *Worker) arm(parent context.Context, tctx *transfer.Context) {
	w.activeCount.Add(1)
	tctx.ArmedAt = time.Now()

	h := w.handles.Acquire()
	tctx.AttachHandle(h)

	req := tctx.Request
	if w.dns != nil {
		if host := requestHost(req.URL); host != "" {
			if override := w.dns.OverrideList(parent, host, ""); override != nil {
				tctx.AttachOverride(override)
			}
		}
	}

	go w.drive(parent, tctx)
}

// drive performs the actual transfer. It runs on its own goroutine so the
// worker's loop thread never blocks on I/O; its only interaction with the
// worker is a single send on the completions channel.
func (w *Worker) drive(parent context.Context, tctx *transfer.Context) {
	outcome := w.perform(parent, tctx)
	select {
	case w.completions <- completion{ctx: tctx, outcome: outcome}:
	case <-parent.Done():
	}
}

// perform issues the HTTP request and translates the result into the
// closed Response/Error outcome shape.
func (w *Worker) perform(parent context.Context, tctx *transfer.Context) transfer.Outcome {
	req := tctx.Request

	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	tracker := newPhaseTracker()
	ctx = tracker.attach(ctx)

	var bodyReader io.Reader
	if len(req.Body.Bytes) > 0 {
		bodyReader = &staticReader{b: req.Body.Bytes}
	}

	if _, ok := httpmodel.ParseMethod(string(req.Method)); !ok {
		return transfer.Outcome{Err: httpmodel.NewInvalidMethodError(string(req.Method))}
	}

	if override := tctx.Override(); override != nil {
		ctx = withDNSOverride(ctx, override.Addr)
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), req.URL, bodyReader)
	if err != nil {
		return transfer.Outcome{Err: &httpmodel.Error{Kind: httpmodel.KindInvalidURL, Message: err.Error()}}
	}
	handle := tctx.Handle()
	httpReq.Header = http.Header(handle.Headers)
	for _, h := range req.Headers {
		httpReq.Header.Add(h.Key, h.Value)
	}

	client := w.client
	if !req.FollowRedirects {
		client = noRedirectClient(client)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return transfer.Outcome{Err: httpmodel.Classify(err)}
	}
	defer resp.Body.Close()

	// Read into the handle's scratch buffer so its backing array survives
	// across transfers instead of growing from zero on every request; the
	// outcome gets its own copy since the buffer is reset and reused as
	// soon as this handle is released back to the pool.
	if _, err := io.Copy(&handle.Body, resp.Body); err != nil {
		return transfer.Outcome{Err: httpmodel.Classify(err)}
	}
	body := bytes.Clone(handle.Body.Bytes())

	timing := tracker.computeTiming(time.Now())
	return transfer.Outcome{Response: &httpmodel.Response{
		StatusCode: resp.StatusCode,
		StatusText: httpmodel.StatusText(resp.StatusCode),
		Headers:    map[string][]string(resp.Header),
		Body:       body,
		BodySize:   int64(len(body)),
		Timing:     timing,
	}}
}

// reap drains completions. If wait is true it blocks for up to
// pollTimeout waiting for at least one, matching spec 4.E step 4's bounded
// wait; otherwise it only drains what is already ready.
func (w *Worker) reap(wait bool) {
	if wait {
		select {
		case c := <-w.completions:
			w.finish(c)
		case <-time.After(pollTimeout):
			return
		}
	}
	for {
		select {
		case c := <-w.completions:
			w.finish(c)
		default:
			return
		}
	}
}

func (w *Worker) finish(c completion) {
	w.activeCount.Add(-1)
	w.processedCount.Add(1)
	c.ctx.Complete(c.outcome)
	c.ctx.Drop(w.handles)
	if w.onComplete != nil {
		w.onComplete(w.id, c.ctx, c.outcome)
	}
}

// Stop signals the worker to stop admitting new work. If wait is false,
// every still-pending submission is immediately drained with a Cancelled
// error instead of waiting for Run's natural drain.
func (w *Worker) Stop(wait bool) {
	w.stopRequested.Store(true)
	select {
	case w.wake <- struct{}{}:
	default:
	}
	if !wait {
		for {
			select {
			case tctx := <-w.pending:
				tctx.Complete(transfer.Outcome{Err: httpmodelCancelled()})
			default:
				return
			}
		}
	}
}

// ActiveCount, ProcessedCount, PendingCount expose the worker's bookkeeping
// counters for the sharded loop's aggregated stats.
func (w *Worker) ActiveCount() int64    { return w.activeCount.Load() }
func (w *Worker) ProcessedCount() int64 { return w.processedCount.Load() }
func (w *Worker) PendingCount() int     { return w.pending.Len() }

func httpmodelCancelled() *httpmodel.Error {
	return httpmodel.NewCancelledError()
}

type staticReader struct {
	b   []byte
	off int
}

func (r *staticReader) Read(p []byte) (int, error) {
	if r.off >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.off:])
	r.off += n
	return n, nil
}

func noRedirectClient(base *http.Client) *http.Client {
	clone := *base
	clone.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &clone
}
