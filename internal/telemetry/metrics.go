package telemetry

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bc-dunia/httpdrill/internal/httpmodel"
)

// statusClasses is the fixed bucket order spec 4.G calls for:
// 1xx, 2xx, 3xx, 4xx, 5xx, other.
const statusClasses = 6

func statusClassIndex(code int) int {
	switch {
	case code >= 100 && code < 200:
		return 0
	case code >= 200 && code < 300:
		return 1
	case code >= 300 && code < 400:
		return 2
	case code >= 400 && code < 500:
		return 3
	case code >= 500 && code < 600:
		return 4
	default:
		return 5
	}
}

// errorKinds is the closed error taxonomy in a fixed array order, so
// per-kind counters can live in a plain array instead of a locked map.
var errorKinds = [...]httpmodel.Kind{
	httpmodel.KindTimeout,
	httpmodel.KindConnectionFailed,
	httpmodel.KindDNSError,
	httpmodel.KindTLSError,
	httpmodel.KindInvalidURL,
	httpmodel.KindInvalidMethod,
	httpmodel.KindScriptError,
	httpmodel.KindInternalError,
	httpmodel.KindCancelled,
}

// internalErrorIndex is errorKinds' slot for httpmodel.KindInternalError,
// the fallback bucket for a kind outside the closed taxonomy (should not
// happen in practice since httpmodel.Classify only ever returns one of
// errorKinds, but errorKindIndex must still return something in range).
const internalErrorIndex = 7

func errorKindIndex(k httpmodel.Kind) int {
	for i, candidate := range errorKinds {
		if candidate == k {
			return i
		}
	}
	return internalErrorIndex
}

// cacheLinePadding separates one worker's counters from the next's in the
// backing array, per spec 4.G ("padded counters one cache line apart") —
// without it, two workers' hot atomics could share a cache line and every
// increment would ping-pong it between cores.
const cacheLinePadding = 64

// workerCounters is one event-loop worker's private slot: every field here
// is written only by that worker's callback, so the only contention is a
// concurrent reader (the snapshot task) doing plain atomic loads.
type workerCounters struct {
	completed         atomic.Int64
	failed            atomic.Int64
	bytesIn           atomic.Int64
	bytesOut          atomic.Int64
	totalLatencyMicros atomic.Int64

	statusHist [statusClasses]atomic.Int64
	errorHist  [len(errorKinds)]atomic.Int64

	histogram latencyHistogram

	_ [cacheLinePadding]byte
}

// Snapshot is a merged, point-in-time view across every worker's counters,
// pushed to the streaming channel and, once more, as the run's final
// aggregate.
type Snapshot struct {
	Timestamp time.Time

	Completed int64
	Failed    int64
	BytesIn   int64
	BytesOut  int64

	StatusHist [statusClasses]int64
	ErrorHist  map[httpmodel.Kind]int64

	AvgMs int64
	P50Ms int64
	P95Ms int64
	P99Ms int64

	Active  int64
	Pending int64

	SnapshotsDropped int64
}

// Collector aggregates per-worker counters, keeps error traces in a bounded
// lock-free ring, and periodically emits merged Snapshots. The counter and
// error-trace writes in RecordTransfer take no lock; a sampled success trace
// is handed to the BoundedQueue, whose Enqueue takes a mutex.
type Collector struct {
	config *CollectorConfig

	workers []workerCounters

	errorTraces *boundedReservoir
	sampler     *successSampler

	queue   *BoundedQueue
	emitter *Emitter

	snapshots     chan Snapshot
	snapshotsDrop atomic.Int64

	activeProvider  func() int64
	pendingProvider func() int64
	healthProvider  HealthProvider

	ctx    contextStopper
	closed atomic.Bool
	wg     sync.WaitGroup
}

// contextStopper is the minimal subset of context.Context the collector's
// background loop needs — kept narrow so tests can pass a bare
// context.Background() or a cancel-driven one interchangeably.
type contextStopper interface {
	Done() <-chan struct{}
}

// NewCollector builds a Collector with a bounded streaming-snapshot channel
// (capacity 64; spec 4.G says drop the oldest snapshot when full) and a
// bounded-queue-backed trace/health pipeline reused from the run's
// lifecycle event log.
func NewCollector(config *CollectorConfig, emitter *Emitter) *Collector {
	defaults := DefaultCollectorConfig()
	if config == nil {
		config = defaults
	}
	cfg := *config
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaults.FlushInterval
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = defaults.StatsInterval
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if cfg.SuccessSampleRatePercent <= 0 {
		cfg.SuccessSampleRatePercent = defaults.SuccessSampleRatePercent
	}

	return &Collector{
		config:      &cfg,
		workers:     make([]workerCounters, cfg.NumWorkers),
		errorTraces: newBoundedReservoir(errorReservoirCapacity),
		sampler:     newSuccessSampler(cfg.SuccessSampleRatePercent, cfg.SlowThresholdMs),
		queue:       NewBoundedQueue(cfg.QueueSize),
		emitter:     emitter,
		snapshots:   make(chan Snapshot, 64),
	}
}

// SetActiveProviders wires Active/Pending counters (typically
// engine.Loop.ActiveCount / PendingCount) into every Snapshot.
func (c *Collector) SetActiveProviders(active, pending func() int64) {
	c.activeProvider = active
	c.pendingProvider = pending
}

// RecordTransfer is the hot-path entry point: one call per completed
// submission, wired directly as an engine.LoopConfig.OnComplete callback.
// It updates worker-local counters with plain atomic adds, then decides
// (via the reservoirs) whether to also retain a full trace.
func (c *Collector) RecordTransfer(workerID int, req *httpmodel.Request, resp *httpmodel.Response, transferErr *httpmodel.Error, latency time.Duration) {
	if c.closed.Load() {
		return
	}
	if workerID < 0 || workerID >= len(c.workers) {
		workerID = 0
	}
	w := &c.workers[workerID]

	latencyMs := latency.Milliseconds()
	w.histogram.Observe(latency.Microseconds())
	w.totalLatencyMicros.Add(latency.Microseconds())

	if transferErr != nil {
		w.failed.Add(1)
		w.errorHist[errorKindIndex(transferErr.Kind)].Add(1)

		keys := CorrelationKeys{WorkerID: strconv.Itoa(workerID)}
		log := NewTransferLog(req, resp, transferErr, latency, keys, Tier0Lifecycle, false)
		c.errorTraces.Add(log)
		return
	}

	w.completed.Add(1)
	if resp != nil {
		w.bytesIn.Add(resp.BodySize)
		w.statusHist[statusClassIndex(resp.StatusCode)].Add(1)
	}
	w.bytesOut.Add(int64(len(req.Body.Bytes)))

	sample, slow := c.sampler.ShouldSample(latencyMs)
	if sample {
		tier := Tier2Verbose
		if slow {
			tier = Tier1Operation
		}
		keys := CorrelationKeys{WorkerID: strconv.Itoa(workerID)}
		log := NewTransferLog(req, resp, nil, latency, keys, tier, slow)
		c.queue.Enqueue(&TelemetryRecord{Type: "transfer", Transfer: log, Tier: tier})
	}
}

// StartSnapshotLoop runs the periodic snapshot task (spec 4.G: "not in the
// hot path") until ctx is done, pushing merged Snapshots to the Snapshots()
// channel and draining sampled traces to the emitter.
func (c *Collector) StartSnapshotLoop(ctx contextStopper) {
	c.ctx = ctx
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.config.StatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				c.flushQueue()
				return
			case <-ticker.C:
				c.emitSnapshot()
				c.flushQueueBatch()
			}
		}
	}()

	if c.config.HealthSnapshotInterval > 0 && c.healthProvider != nil {
		c.wg.Add(1)
		go c.healthLoop(ctx)
	}
}

func (c *Collector) emitSnapshot() {
	snap := c.Snapshot()
	select {
	case c.snapshots <- snap:
	default:
		// Channel full: drop the oldest snapshot, per spec 4.G backpressure
		// policy, and make room for this one.
		select {
		case <-c.snapshots:
		default:
		}
		select {
		case c.snapshots <- snap:
		default:
		}
		c.snapshotsDrop.Add(1)
	}
}

func (c *Collector) flushQueueBatch() {
	if c.emitter == nil {
		return
	}
	records := c.queue.TryDequeueBatch(c.config.BatchSize)
	for _, r := range records {
		c.emitter.EmitRecord(r)
	}
}

func (c *Collector) flushQueue() {
	if c.emitter == nil {
		return
	}
	for {
		records := c.queue.TryDequeueBatch(c.config.BatchSize)
		if len(records) == 0 {
			break
		}
		for _, r := range records {
			c.emitter.EmitRecord(r)
		}
	}
	c.emitter.Flush()
}

// Snapshot merges every worker's counters and histogram and computes
// approximate percentiles. Safe to call concurrently with RecordTransfer:
// every read is a plain atomic load, per spec's wait-free hot-path
// guarantee.
func (c *Collector) Snapshot() Snapshot {
	snap := Snapshot{
		Timestamp:        time.Now(),
		ErrorHist:        make(map[httpmodel.Kind]int64, len(errorKinds)),
		SnapshotsDropped: c.snapshotsDrop.Load(),
	}

	hists := make([][histogramBuckets]int64, 0, len(c.workers))
	var totalLatencyMicros int64
	for i := range c.workers {
		w := &c.workers[i]
		snap.Completed += w.completed.Load()
		snap.Failed += w.failed.Load()
		snap.BytesIn += w.bytesIn.Load()
		snap.BytesOut += w.bytesOut.Load()
		totalLatencyMicros += w.totalLatencyMicros.Load()
		for j := range w.statusHist {
			snap.StatusHist[j] += w.statusHist[j].Load()
		}
		for j, kind := range errorKinds {
			snap.ErrorHist[kind] += w.errorHist[j].Load()
		}
		hists = append(hists, w.histogram.snapshot())
	}

	if total := snap.Completed + snap.Failed; total > 0 {
		snap.AvgMs = totalLatencyMicros / total / 1000
	}

	merged := mergeHistograms(hists)
	snap.P50Ms = percentile(merged, 0.50)
	snap.P95Ms = percentile(merged, 0.95)
	snap.P99Ms = percentile(merged, 0.99)

	if c.activeProvider != nil {
		snap.Active = c.activeProvider()
	}
	if c.pendingProvider != nil {
		snap.Pending = c.pendingProvider()
	}

	return snap
}

// Snapshots exposes the bounded streaming channel for the run manager's
// /runs/{id}/stream adapter to consume.
func (c *Collector) Snapshots() <-chan Snapshot {
	return c.snapshots
}

// ErrorTraces returns up to the last reportedErrorTraces retained error
// samples, for the final report's error-trace list (§7).
func (c *Collector) ErrorTraces() []*TransferLog {
	return c.errorTraces.Drain(reportedErrorTraces)
}

// Close stops accepting new records, waits for the snapshot/health loops to
// exit, and flushes the emitter.
func (c *Collector) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.queue.Close()
	c.wg.Wait()
	if c.emitter != nil {
		return c.emitter.Close()
	}
	return nil
}

// SetHealthProvider wires a worker-health data source; captureHealth is
// only scheduled once both this and a positive HealthSnapshotInterval are
// set before StartSnapshotLoop runs.
func (c *Collector) SetHealthProvider(provider HealthProvider) {
	c.healthProvider = provider
}
