// Package telemetry collects per-transfer outcomes into lock-free counters
// and histograms, samples a bounded set of traces, and snapshots the result
// periodically for streaming and once more at run end for the final report.
package telemetry

import (
	"encoding/json"
	"time"

	"github.com/bc-dunia/httpdrill/internal/httpmodel"
)

// LogTier represents the priority tier of a telemetry record.
// Tier 0 records are never dropped, Tier 2 records can be shed under backpressure.
type LogTier int

const (
	// Tier0Lifecycle represents critical lifecycle events (never dropped).
	Tier0Lifecycle LogTier = 0

	// Tier1Operation represents standard transfer outcomes (dropped under heavy pressure).
	Tier1Operation LogTier = 1

	// Tier2Verbose represents sampled-success traces (first to be shed).
	Tier2Verbose LogTier = 2
)

// TransferLogVersion is the current transfer log format version.
const TransferLogVersion = "transfer-log/v1"

// CorrelationKeys identifies which run, worker and submission a record
// belongs to.
type CorrelationKeys struct {
	RunID    string `json:"run_id"`
	WorkerID string `json:"worker_id"`

	// OpID is the unique identifier for this specific submission (optional).
	OpID string `json:"op_id,omitempty"`
}

// TransferLog represents a single transfer outcome record.
type TransferLog struct {
	Version string `json:"version"`

	Timestamp time.Time `json:"timestamp"`
	Tier      LogTier   `json:"tier"`

	CorrelationKeys

	Method string `json:"method"`
	URL    string `json:"url"`

	LatencyMs   int64  `json:"latency_ms"`
	FirstByteMs *int64 `json:"first_byte_ms,omitempty"`

	PhaseTiming *PhaseTimingInfo `json:"phase_timing,omitempty"`

	BytesIn  int64 `json:"bytes_in,omitempty"`
	BytesOut int64 `json:"bytes_out,omitempty"`

	OK bool `json:"ok"`

	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	HTTPStatus int `json:"http_status,omitempty"`

	Slow bool `json:"slow,omitempty"`
}

// PhaseTimingInfo mirrors httpmodel.PhaseTiming for JSONL emission.
type PhaseTimingInfo struct {
	DNSMs       int64 `json:"dns_ms"`
	ConnectMs   int64 `json:"connect_ms"`
	TLSMs       int64 `json:"tls_ms,omitempty"`
	FirstByteMs int64 `json:"first_byte_ms"`
	DownloadMs  int64 `json:"download_ms"`
	TotalMs     int64 `json:"total_ms"`
}

// WorkerHealth represents a point-in-time health snapshot of a worker.
type WorkerHealth struct {
	Timestamp time.Time `json:"timestamp"`
	WorkerID  string    `json:"worker_id"`

	CPUPercent float64 `json:"cpu_percent"`
	MemBytes   int64   `json:"mem_bytes"`

	ActiveTransfers int64 `json:"active_transfers"`
	PendingCount    int64 `json:"pending_count"`

	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`

	DroppedTier2 int64 `json:"dropped_tier2"`
}

// TelemetryBatch represents a batch of telemetry records for emission.
type TelemetryBatch struct {
	Records      []*TransferLog `json:"records"`
	WorkerHealth *WorkerHealth  `json:"worker_health,omitempty"`
	BatchID      string         `json:"batch_id"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TelemetryRecord is a wrapper that holds either a TransferLog or WorkerHealth.
type TelemetryRecord struct {
	Type string `json:"type"`

	Transfer     *TransferLog  `json:"transfer,omitempty"`
	WorkerHealth *WorkerHealth `json:"worker_health,omitempty"`

	Tier LogTier `json:"-"`
}

// NewTransferLog builds a TransferLog from a completed transfer's
// request/response/error, the form every RecordTransfer call normalizes to
// before it ever touches the bounded queue.
func NewTransferLog(
	req *httpmodel.Request,
	resp *httpmodel.Response,
	transferErr *httpmodel.Error,
	latency time.Duration,
	keys CorrelationKeys,
	tier LogTier,
	slow bool,
) *TransferLog {
	log := &TransferLog{
		Version:         TransferLogVersion,
		Timestamp:       time.Now(),
		Tier:            tier,
		CorrelationKeys: keys,
		Method:          string(req.Method),
		URL:             req.URL,
		LatencyMs:       latency.Milliseconds(),
		OK:              transferErr == nil,
		Slow:            slow,
	}

	if transferErr != nil {
		log.ErrorKind = string(transferErr.Kind)
		log.ErrorMessage = transferErr.Message
	}

	if resp != nil {
		log.HTTPStatus = resp.StatusCode
		log.BytesIn = resp.BodySize
		first := resp.Timing.FirstByteMs
		log.FirstByteMs = &first
		log.PhaseTiming = &PhaseTimingInfo{
			DNSMs:       resp.Timing.DNSMs,
			ConnectMs:   resp.Timing.ConnectMs,
			TLSMs:       resp.Timing.TLSMs,
			FirstByteMs: resp.Timing.FirstByteMs,
			DownloadMs:  resp.Timing.DownloadMs,
			TotalMs:     resp.Timing.TotalMs,
		}
	}

	return log
}

// MarshalJSONL marshals the TransferLog to a JSONL line (no trailing newline).
func (t *TransferLog) MarshalJSONL() ([]byte, error) {
	return json.Marshal(t)
}

// MarshalJSONL marshals the WorkerHealth to a JSONL line (no trailing newline).
func (w *WorkerHealth) MarshalJSONL() ([]byte, error) {
	return json.Marshal(w)
}

// QueueStats contains statistics about the telemetry queue.
type QueueStats struct {
	Depth         int
	Capacity      int
	TotalEnqueued int64
	TotalDequeued int64
	DroppedTier2  int64
	DroppedTier1  int64
}

// CollectorConfig holds configuration for the telemetry collector.
type CollectorConfig struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration

	WorkerID string

	HealthSnapshotInterval time.Duration

	// StatsInterval is the metrics-snapshot cadence (spec default 250ms).
	StatsInterval time.Duration

	// SuccessSampleRatePercent drives K = max(1, 100/rate) sub-rate sampling
	// of successful transfers onto the collector's BoundedQueue.
	SuccessSampleRatePercent int

	// SlowThresholdMs flags a transfer "slow" (always sampled) regardless of
	// the success sampling rate.
	SlowThresholdMs int64

	// NumWorkers is the event-loop shard count this collector aggregates
	// per-worker counters across.
	NumWorkers int
}

// DefaultCollectorConfig returns sensible defaults for the collector.
func DefaultCollectorConfig() *CollectorConfig {
	return &CollectorConfig{
		QueueSize:                10000,
		BatchSize:                100,
		FlushInterval:            time.Second,
		HealthSnapshotInterval:   5 * time.Second,
		StatsInterval:            250 * time.Millisecond,
		SuccessSampleRatePercent: 10,
		SlowThresholdMs:          1000,
		NumWorkers:               1,
	}
}

// EmitterConfig holds configuration for the telemetry emitter.
type EmitterConfig struct {
	OutputPath  string
	BufferSize  int
	SyncOnWrite bool
}

// DefaultEmitterConfig returns sensible defaults for the emitter.
func DefaultEmitterConfig() *EmitterConfig {
	return &EmitterConfig{
		BufferSize:  64 * 1024, // 64KB buffer
		SyncOnWrite: false,
	}
}
