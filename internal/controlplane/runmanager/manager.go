// Package runmanager implements the Run Manager (spec 4.I): it owns a
// concurrent run_id → RunContext map, drives a run's event loop and load
// strategy from start to its terminal state, and produces the run's final
// report.
package runmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bc-dunia/httpdrill/internal/artifacts"
	"github.com/bc-dunia/httpdrill/internal/config"
	"github.com/bc-dunia/httpdrill/internal/dnscache"
	"github.com/bc-dunia/httpdrill/internal/engine"
	"github.com/bc-dunia/httpdrill/internal/httpmodel"
	"github.com/bc-dunia/httpdrill/internal/otel"
	"github.com/bc-dunia/httpdrill/internal/sink"
	"github.com/bc-dunia/httpdrill/internal/strategy"
	"github.com/bc-dunia/httpdrill/internal/telemetry"
	"github.com/bc-dunia/httpdrill/internal/transfer"
	"github.com/bc-dunia/httpdrill/internal/validation"
)

// RunConfig is the decoded `config` object of a POST /runs body (spec §6):
// the load strategy's parameters plus the capture knobs layered on it.
type RunConfig struct {
	Mode             strategy.Mode
	DurationMs       int64
	TargetRPS        float64
	Concurrency      int
	Iterations       int
	StartConcurrency int
	RampDurationMs   int64

	SuccessSampleRatePercent int
	SlowThresholdMs          int64
	SaveTimingBreakdown      bool
}

func (c RunConfig) toStrategyConfig() strategy.Config {
	return strategy.Config{
		Mode:             c.Mode,
		DurationMs:       c.DurationMs,
		TargetRPS:        c.TargetRPS,
		Concurrency:      c.Concurrency,
		Iterations:       c.Iterations,
		RampDurationMs:   c.RampDurationMs,
		StartConcurrency: c.StartConcurrency,
	}
}

// StartRequest is the fully-decoded body of a POST /runs call; JSON
// decoding of the wire body is the control-plane API's job, not this
// package's.
type StartRequest struct {
	RunID   string
	Request *httpmodel.Request
	Config  RunConfig
}

// Report is the run's final, atomically-written report (spec 4.I).
type Report struct {
	Summary             ReportSummary    `json:"summary"`
	Latency             ReportLatency    `json:"latency"`
	StatusCodeHistogram map[string]int64 `json:"status_code_histogram"`
	ErrorKindHistogram  map[string]int64 `json:"error_kind_histogram"`
	Metadata            ReportMetadata   `json:"metadata"`
}

type ReportSummary struct {
	TotalRequests  int64   `json:"total_requests"`
	FailedRequests int64   `json:"failed_requests"`
	AvgRPS         float64 `json:"avg_rps"`
	ErrorRate      float64 `json:"error_rate"`
	TestDurationS  float64 `json:"test_duration_s"`
	SetupOverheadS float64 `json:"setup_overhead_s"`
}

type ReportLatency struct {
	AvgMs int64 `json:"avg"`
	P50Ms int64 `json:"p50"`
	P95Ms int64 `json:"p95"`
	P99Ms int64 `json:"p99"`
}

type ReportMetadata struct {
	StartTime             time.Time `json:"start_time"`
	EndTime               time.Time `json:"end_time"`
	RequestMethod         string    `json:"request_method"`
	RequestURL            string    `json:"request_url"`
	ConfigurationSnapshot RunConfig `json:"configuration_snapshot"`
	Status                RunState  `json:"status"`
}

// StreamRecord is one row of the GET /runs/{id}/stream feed (spec §6). A
// terminal record carries Status; every other record leaves it nil.
type StreamRecord struct {
	Timestamp         time.Time `json:"timestamp"`
	RequestsSent      int64     `json:"requests_sent"`
	RequestsCompleted int64     `json:"requests_completed"`
	RequestsFailed    int64     `json:"requests_failed"`
	Active            int64     `json:"active"`
	CurrentRPS        float64   `json:"current_rps"`
	P50Ms             int64     `json:"p50"`
	P95Ms             int64     `json:"p95"`
	P99Ms             int64     `json:"p99"`
	BytesIn           int64     `json:"bytes_in"`
	BytesOut          int64     `json:"bytes_out"`
	Status            *RunState `json:"status,omitempty"`
}

// RunContext holds one run's live resources: its event loop, collector,
// driver goroutine, and lifecycle bookkeeping. Fields set once in Start
// (loop, collector, events, cancel, request, cfg) are never mutated
// afterward; state/report/timestamps are guarded by mu.
type RunContext struct {
	mu    sync.Mutex
	state RunState

	runID   string
	request *httpmodel.Request
	cfg     RunConfig

	loop      *engine.Loop
	collector *telemetry.Collector
	events    *EventLog

	cancel        context.CancelFunc
	stopRequested atomic.Bool

	sentTotal atomic.Int64

	setupStartedAt time.Time
	startedAt      time.Time
	endedAt        time.Time

	driverDone chan strategy.Result
	finalized  chan struct{}

	report *Report
}

func (rc *RunContext) getState() RunState {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.state
}

func (rc *RunContext) setState(s RunState) {
	rc.mu.Lock()
	rc.state = s
	rc.mu.Unlock()
}

func (rc *RunContext) getReport() *Report {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.report
}

// Manager maintains a concurrent run_id → RunContext map guarded by a
// single mutex. No method holds the lock across I/O or a wait (spec 4.I)
// — the lock only ever protects the map itself; each RunContext has its
// own mutex for its own state.
type Manager struct {
	mu   sync.Mutex
	runs map[string]*RunContext

	cfgMgr       *config.Manager
	metricsSink  sink.MetricsSink
	scriptRunner sink.ScriptRunner
	reportStore  artifacts.Store
	ssrf         *validation.SSRFValidator
	dnsRebind    *validation.DNSRebindingValidator

	otelMetrics *otel.Metrics
	otelTracer  *otel.Tracer

	telemetryDir string
}

// SetOtel attaches an optional OpenTelemetry side-exporter. Either argument
// may be nil; a nil Manager field is treated as "not configured" and every
// call site nil-checks before using it, so this is safe to skip entirely.
func (m *Manager) SetOtel(metrics *otel.Metrics, tracer *otel.Tracer) {
	m.otelMetrics = metrics
	m.otelTracer = tracer
}

// defaultAllowedPrivateNetworks are the ranges this engine's SSRF/DNS-
// rebinding validators permit out of the box. Unlike a multi-tenant
// control plane accepting scenario submissions from third parties, this
// engine is a developer tool pointed at infrastructure the operator
// already controls — most commonly their own loopback services or a
// private-network staging host — so loopback and RFC 1918 ranges are
// allowed by default. Cloud metadata endpoints stay blocked regardless.
var defaultAllowedPrivateNetworks = []string{
	"127.0.0.0/8",
	"::1/128",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
}

// NewManager constructs a Manager. metricsSink is stored but no run writes
// to it. reportStore and telemetryDir may be nil/empty: the run still
// executes, it just has nowhere to write a final report or a durable
// transfer log.
func NewManager(cfgMgr *config.Manager, metricsSink sink.MetricsSink, scriptRunner sink.ScriptRunner, reportStore artifacts.Store, telemetryDir string) *Manager {
	if scriptRunner == nil {
		scriptRunner = sink.NoopScriptRunner{}
	}
	return &Manager{
		runs:         make(map[string]*RunContext),
		cfgMgr:       cfgMgr,
		metricsSink:  metricsSink,
		scriptRunner: scriptRunner,
		reportStore:  reportStore,
		ssrf:         validation.NewSSRFValidator(defaultAllowedPrivateNetworks),
		dnsRebind:    validation.NewDNSRebindingValidator(defaultAllowedPrivateNetworks),
		telemetryDir: telemetryDir,
	}
}

// Start implements spec 4.I's six-step start sequence.
func (m *Manager) Start(req StartRequest) error {
	if req.RunID == "" {
		return NewInternalError("", fmt.Errorf("run_id is required"))
	}
	if req.Request == nil || req.Request.URL == "" {
		return NewInternalError(req.RunID, fmt.Errorf("request.url is required"))
	}

	// 1. Validate the target; fill missing capture knobs with built-in
	// defaults and a missing request timeout from the config manager.
	if err := m.validateTarget(req.RunID, req.Request.URL); err != nil {
		return err
	}
	cfg := m.resolveKnobs(req.Config)
	if req.Request.TimeoutMs <= 0 {
		req.Request.TimeoutMs = m.cfgMgr.GetInt(config.KeyDefaultTimeout, 30000)
	}

	rc := &RunContext{
		runID:          req.RunID,
		state:          RunStatePending,
		request:        req.Request,
		cfg:            cfg,
		events:         NewEventLog(),
		setupStartedAt: time.Now(),
		driverDone:     make(chan strategy.Result, 1),
		finalized:      make(chan struct{}),
	}

	m.mu.Lock()
	if _, exists := m.runs[req.RunID]; exists {
		m.mu.Unlock()
		return NewInternalError(req.RunID, fmt.Errorf("run_id already in use"))
	}
	m.runs[req.RunID] = rc
	m.mu.Unlock()

	rc.events.Append(RunEvent{RunID: req.RunID, Type: EventTypeRunCreated, Message: fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL)})

	// 2. Construct event loop sized from config; start it.
	numWorkers := int(m.cfgMgr.GetInt(config.KeyWorkers, 0))
	maxConnTotal := int(m.cfgMgr.GetInt(config.KeyMaxConnections, 100))
	dnsTTL := m.cfgMgr.GetInt(config.KeyDNSCacheTimeout, 60)

	var dns *dnscache.Cache
	if dnsTTL > 0 {
		dns = dnscache.New(nil)
	}

	emitter, err := telemetry.NewEmitter(m.emitterConfig(req.RunID))
	if err != nil {
		m.removeRun(req.RunID)
		return NewInternalError(req.RunID, fmt.Errorf("open telemetry emitter: %w", err))
	}

	resolvedWorkers := numWorkers
	if resolvedWorkers <= 0 {
		resolvedWorkers = 1
	}
	collectorCfg := &telemetry.CollectorConfig{
		StatsInterval:            time.Duration(m.cfgMgr.GetInt(config.KeyStatsInterval, 250)) * time.Millisecond,
		SuccessSampleRatePercent: cfg.SuccessSampleRatePercent,
		SlowThresholdMs:          cfg.SlowThresholdMs,
		NumWorkers:               resolvedWorkers,
	}
	collector := telemetry.NewCollector(collectorCfg, emitter)
	rc.collector = collector

	loop := engine.NewLoop(engine.LoopConfig{
		NumWorkers:         numWorkers,
		MaxConcurrentTotal: maxConnTotal,
		TargetRPS:          rpsKnobForMode(cfg),
		DNS:                dns,
		OnComplete: func(workerID int, tctx *transfer.Context, outcome transfer.Outcome) {
			rc.onTransferComplete(collector, m.scriptRunner, m.otelMetrics, m.otelTracer, req.RunID, workerID, tctx, outcome)
		},
	})
	rc.loop = loop

	runCtx, cancel := context.WithCancel(context.Background())
	rc.cancel = cancel
	loop.Start(runCtx)
	collector.SetActiveProviders(loop.ActiveCount, func() int64 { return int64(loop.PendingCount()) })
	collector.SetHealthProvider(engine.NewHealthAdapter(loop))
	collector.StartSnapshotLoop(runCtx)

	// 3 & 4 folded into the construction above: the request descriptor's
	// timeout was already applied, and the collector (with its snapshot
	// thread) now exists.

	// 5. Choose strategy; spawn driver goroutine.
	drv := strategy.New(cfg.toStrategyConfig())
	rc.startedAt = time.Now()
	go func() {
		result := drv.Drive(runCtx, loop, req.Request, nil)
		rc.sentTotal.Store(result.Sent)
		rc.driverDone <- result
	}()
	go m.superviseRun(rc)

	// 6. Transition to Running.
	rc.setState(RunStateRunning)
	rc.events.Append(RunEvent{RunID: req.RunID, Type: EventTypeStateTransition, Message: "pending->running"})
	return nil
}

// onTransferComplete is the engine's OnComplete callback: it records the
// transfer into the collector, ships it to the optional OTel side-exporter,
// and, best-effort, runs the optional ScriptRunner's Post hook.
//
// TODO: wire ScriptRunner.Prepare before each submission once strategy
// exposes a per-request transform hook; today only Post is reachable from
// this completion path.
func (rc *RunContext) onTransferComplete(collector *telemetry.Collector, runner sink.ScriptRunner, otelMetrics *otel.Metrics, otelTracer *otel.Tracer, runID string, workerID int, tctx *transfer.Context, outcome transfer.Outcome) {
	latency := time.Since(tctx.EnqueuedAt)
	collector.RecordTransfer(workerID, tctx.Request, outcome.Response, outcome.Err, latency)

	recordOtel(otelMetrics, otelTracer, runID, tctx, outcome, latency)

	if outcome.Response != nil {
		if _, scriptErr := runner.Post(context.Background(), outcome.Response, sink.ScriptContext{RunID: runID, WorkerID: fmtWorkerID(workerID)}); scriptErr != nil {
			slog.Warn("script_runner_post_failed", "run_id", runID, "error", scriptErr.Error())
		}
	}
}

// recordOtel feeds a completed transfer to the optional OpenTelemetry
// side-exporter. Both arguments may be nil when no collector was
// configured; the engine's own Prometheus metrics (internal/metrics) remain
// the source of truth regardless.
func recordOtel(otelMetrics *otel.Metrics, otelTracer *otel.Tracer, runID string, tctx *transfer.Context, outcome transfer.Outcome, latency time.Duration) {
	if otelMetrics == nil && otelTracer == nil {
		return
	}
	ctx := context.Background()
	method := string(tctx.Request.Method)
	success := outcome.Err == nil

	if otelMetrics != nil {
		otelMetrics.RecordRequestLatency(ctx, runID, method, float64(latency.Milliseconds()), success)
		if !success {
			otelMetrics.RecordError(ctx, string(outcome.Err.Kind))
		}
	}

	if otelTracer != nil && otelTracer.Enabled() {
		_, span := otelTracer.StartTransferSpan(ctx, otel.TransferSpanOptions{
			RunID:  runID,
			Method: method,
			URL:    tctx.Request.URL,
		})
		if !success {
			otel.RecordError(span, outcome.Err, string(outcome.Err.Kind), isRetryableKind(outcome.Err.Kind))
		}
		span.End()
	}
}

func isRetryableKind(kind httpmodel.Kind) bool {
	switch kind {
	case httpmodel.KindTimeout, httpmodel.KindConnectionFailed, httpmodel.KindDNSError:
		return true
	default:
		return false
	}
}

// superviseRun waits for the driver to exit, drains in-flight transfers,
// finalizes the report, and transitions the run to its terminal state
// (spec 4.I's on_driver_exit_natural / stop paths converge here).
func (m *Manager) superviseRun(rc *RunContext) {
	<-rc.driverDone
	rc.loop.Stop(true)

	terminal := RunStateCompleted
	if rc.stopRequested.Load() {
		terminal = RunStateStopped
	}

	rc.mu.Lock()
	rc.endedAt = time.Now()
	rc.mu.Unlock()

	snap := rc.collector.Snapshot()
	report := buildReport(rc, snap, terminal)

	rc.mu.Lock()
	rc.report = report
	rc.state = terminal
	rc.mu.Unlock()

	rc.events.Append(RunEvent{RunID: rc.runID, Type: terminalEventType(terminal), Message: string(terminal)})

	if err := rc.collector.Close(); err != nil {
		slog.Warn("collector_close_failed", "run_id", rc.runID, "error", err)
	}
	m.persistReport(rc.runID, report)
	close(rc.finalized)
}

func terminalEventType(state RunState) EventType {
	if state == RunStateCompleted {
		return EventTypeRunCompleted
	}
	return EventTypeRunFailed
}

// Stop implements spec 4.I's stop(run_id): set should_stop; wait up to
// max(2s, request_timeout_ms) for the driver to observe; the rest of the
// sequence (drain, finalize, transition) runs in superviseRun, which Stop
// simply waits on.
func (m *Manager) Stop(runID string) error {
	rc, err := m.lookup(runID)
	if err != nil {
		return err
	}

	state := rc.getState()
	if state != RunStateRunning && state != RunStatePending {
		return NewTerminalStateError(runID, state, "stop")
	}

	rc.stopRequested.Store(true)
	rc.events.Append(RunEvent{RunID: runID, Type: EventTypeStopRequested})
	if rc.cancel != nil {
		rc.cancel()
	}

	wait := 2 * time.Second
	if rc.request != nil && time.Duration(rc.request.TimeoutMs)*time.Millisecond > wait {
		wait = time.Duration(rc.request.TimeoutMs) * time.Millisecond
	}

	select {
	case <-rc.finalized:
	case <-time.After(wait):
		slog.Warn("run_stop_timed_out_waiting_for_driver", "run_id", runID, "wait", wait)
	}
	return nil
}

// GetReport returns the run's final report once it has reached a terminal
// state, or an error if it is still running or unknown.
func (m *Manager) GetReport(runID string) (*Report, error) {
	rc, err := m.lookup(runID)
	if err != nil {
		return nil, err
	}
	report := rc.getReport()
	if report == nil {
		return nil, NewInvalidStateError(runID, rc.getState(), RunStateCompleted, "get report")
	}
	return report, nil
}

// Snapshot returns the run's current StreamRecord for the GET
// /runs/{id}/stream adapter; Status is set once the run reaches a
// terminal state.
func (m *Manager) Snapshot(runID string) (StreamRecord, error) {
	rc, err := m.lookup(runID)
	if err != nil {
		return StreamRecord{}, err
	}
	snap := rc.collector.Snapshot()
	rec := StreamRecord{
		Timestamp:         snap.Timestamp,
		RequestsSent:      rc.sentTotal.Load(),
		RequestsCompleted: snap.Completed,
		RequestsFailed:    snap.Failed,
		Active:            snap.Active,
		P50Ms:             snap.P50Ms,
		P95Ms:             snap.P95Ms,
		P99Ms:             snap.P99Ms,
		BytesIn:           snap.BytesIn,
		BytesOut:          snap.BytesOut,
	}
	if elapsed := time.Since(rc.startedAt).Seconds(); elapsed > 0 {
		rec.CurrentRPS = float64(snap.Completed+snap.Failed) / elapsed
	}
	if state := rc.getState(); state == RunStateCompleted || state == RunStateStopped || state == RunStateFailed {
		s := state
		rec.Status = &s
	}
	return rec, nil
}

// Snapshots exposes the collector's streaming channel directly, for a
// caller that wants push delivery instead of polling Snapshot.
func (m *Manager) Snapshots(runID string) (<-chan telemetry.Snapshot, error) {
	rc, err := m.lookup(runID)
	if err != nil {
		return nil, err
	}
	return rc.collector.Snapshots(), nil
}

// TailEvents returns this run's lifecycle events starting at cursor.
func (m *Manager) TailEvents(runID string, cursor, limit int) ([]RunEvent, error) {
	rc, err := m.lookup(runID)
	if err != nil {
		return nil, err
	}
	return rc.events.Tail(cursor, limit)
}

// ListRuns returns every known run's ID and current state.
func (m *Manager) ListRuns() map[string]RunState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]RunState, len(m.runs))
	for id, rc := range m.runs {
		out[id] = rc.getState()
	}
	return out
}

func (m *Manager) lookup(runID string) (*RunContext, error) {
	m.mu.Lock()
	rc, ok := m.runs[runID]
	m.mu.Unlock()
	if !ok {
		return nil, NewNotFoundError(runID)
	}
	return rc, nil
}

func (m *Manager) removeRun(runID string) {
	m.mu.Lock()
	delete(m.runs, runID)
	m.mu.Unlock()
}

func (m *Manager) validateTarget(runID, rawURL string) error {
	payload, _ := json.Marshal(map[string]any{"target": map[string]any{"url": rawURL}})
	report := m.ssrf.Validate(payload)
	if !report.OK {
		return m.targetValidationError(runID, report)
	}

	if rebindReport := m.validateResolvedTarget(rawURL); !rebindReport.OK {
		return m.targetValidationError(runID, rebindReport)
	}
	return nil
}

// validateResolvedTarget resolves the target's hostname and checks the
// resolved addresses against the same blocklist the SSRF validator applies
// to literal IPs, catching a hostname that only resolves to a blocked
// address after DNS lookup (the SSRF validator alone can't see this: it
// only inspects the URL text).
func (m *Manager) validateResolvedTarget(rawURL string) *validation.ValidationReport {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return validation.NewValidationReport()
	}
	host := parsed.Hostname()
	if net.ParseIP(host) != nil {
		return validation.NewValidationReport()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return validation.NewValidationReport()
	}

	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, a.IP)
	}
	return m.dnsRebind.ValidateResolvedIPs(host, ips)
}

func (m *Manager) targetValidationError(runID string, report *validation.ValidationReport) error {
	msgs := make([]string, 0, len(report.Errors))
	for _, e := range report.Errors {
		msgs = append(msgs, e.Message)
	}
	return NewInternalError(runID, fmt.Errorf("target validation failed: %s", strings.Join(msgs, "; ")))
}

// resolveKnobs fills any RunConfig fields the caller left at their zero
// value with fixed built-in defaults: 10% success sampling, a 1000 ms slow
// threshold, and concurrency 1. The config manager has no keys for these
// knobs and is not consulted.
func (m *Manager) resolveKnobs(cfg RunConfig) RunConfig {
	if cfg.SuccessSampleRatePercent <= 0 {
		cfg.SuccessSampleRatePercent = 10
	}
	if cfg.SlowThresholdMs <= 0 {
		cfg.SlowThresholdMs = 1000
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return cfg
}

func rpsKnobForMode(cfg RunConfig) float64 {
	if cfg.Mode == strategy.ModeConstantRPS {
		return cfg.TargetRPS
	}
	return 0
}

func (m *Manager) emitterConfig(runID string) *telemetry.EmitterConfig {
	cfg := telemetry.DefaultEmitterConfig()
	if m.telemetryDir != "" {
		cfg.OutputPath = m.telemetryDir + "/" + runID + "-transfers.jsonl"
	}
	return cfg
}

func (m *Manager) persistReport(runID string, report *Report) {
	if m.reportStore == nil {
		return
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		slog.Warn("report_marshal_failed", "run_id", runID, "error", err)
		return
	}
	if _, err := m.reportStore.SaveArtifact(runID, artifacts.ArtifactTypeReport, "report.json", data); err != nil {
		slog.Warn("report_save_failed", "run_id", runID, "error", err)
	}
}

func buildReport(rc *RunContext, snap telemetry.Snapshot, terminal RunState) *Report {
	total := snap.Completed + snap.Failed
	durationS := rc.endedAt.Sub(rc.startedAt).Seconds()

	var avgRPS, errorRate float64
	if durationS > 0 {
		avgRPS = float64(total) / durationS
	}
	if total > 0 {
		errorRate = float64(snap.Failed) / float64(total)
	}

	statusHist := make(map[string]int64, len(snap.StatusHist))
	labels := []string{"1xx", "2xx", "3xx", "4xx", "5xx", "other"}
	for i, count := range snap.StatusHist {
		statusHist[labels[i]] = count
	}

	errorHist := make(map[string]int64, len(snap.ErrorHist))
	for kind, count := range snap.ErrorHist {
		errorHist[string(kind)] = count
	}

	return &Report{
		Summary: ReportSummary{
			TotalRequests:  total,
			FailedRequests: snap.Failed,
			AvgRPS:         avgRPS,
			ErrorRate:      errorRate,
			TestDurationS:  durationS,
			SetupOverheadS: rc.startedAt.Sub(rc.setupStartedAt).Seconds(),
		},
		Latency: ReportLatency{
			AvgMs: snap.AvgMs,
			P50Ms: snap.P50Ms,
			P95Ms: snap.P95Ms,
			P99Ms: snap.P99Ms,
		},
		StatusCodeHistogram: statusHist,
		ErrorKindHistogram:  errorHist,
		Metadata: ReportMetadata{
			StartTime:             rc.startedAt,
			EndTime:               rc.endedAt,
			RequestMethod:         string(rc.request.Method),
			RequestURL:            rc.request.URL,
			ConfigurationSnapshot: rc.cfg,
			Status:                terminal,
		},
	}
}

func fmtWorkerID(id int) string {
	return strconv.Itoa(id)
}
