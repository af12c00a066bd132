// Package metrics provides Prometheus metrics exposition for the load
// generation engine's control plane.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bc-dunia/httpdrill/internal/controlplane/runmanager"
)

// RunProvider provides the set of known runs and their current state.
type RunProvider interface {
	ListRuns() map[string]runmanager.RunState
}

// SnapshotProvider provides a point-in-time view of a single run's traffic
// counters, used to expose live gauges between runs() polls.
type SnapshotProvider interface {
	Snapshot(runID string) (runmanager.StreamRecord, error)
}

// Collector collects and exposes load engine metrics in Prometheus text
// exposition format. Thread-safe for concurrent access.
//
// Lock Strategy: Collector uses a single RWMutex for thread-safety. While this creates some lock
// contention under high load, it's necessary because Go maps are not atomic-safe. Alternative
// approaches (sync.Map, sharded maps) add complexity without clear benefit for our access patterns.
// The RWMutex allows concurrent reads via Expose() while serializing writes from hot-path methods
// like RecordRunCreated().
type Collector struct {
	mu sync.RWMutex

	runProvider      RunProvider
	snapshotProvider SnapshotProvider

	runCreatedTotal map[string]int64 // run_id -> count (usually 0/1, kept as a counter for restarts)
	runStates       map[runStateKey]int
	runSnapshots    map[string]runmanager.StreamRecord

	nowFunc func() time.Time
}

// runStateKey is a composite key for run state metrics.
type runStateKey struct {
	runID string
	state string
}

// NewCollector creates a new metrics Collector.
func NewCollector() *Collector {
	return &Collector{
		runCreatedTotal: make(map[string]int64),
		runStates:       make(map[runStateKey]int),
		runSnapshots:    make(map[string]runmanager.StreamRecord),
		nowFunc:         time.Now,
	}
}

// SetRunProvider sets the run provider for metrics collection.
func (c *Collector) SetRunProvider(p RunProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runProvider = p
}

// SetSnapshotProvider sets the snapshot provider for per-run traffic gauges.
func (c *Collector) SetSnapshotProvider(p SnapshotProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshotProvider = p
}

// RecordRunCreated records a new run creation.
func (c *Collector) RecordRunCreated(runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runCreatedTotal[runID]++
}

// SyncFromProviders synchronizes metrics from configured providers. This
// should be called on-demand immediately before metrics exposition.
func (c *Collector) SyncFromProviders() {
	c.mu.Lock()
	runProvider := c.runProvider
	snapshotProvider := c.snapshotProvider
	c.mu.Unlock()

	if runProvider == nil {
		return
	}
	runs := runProvider.ListRuns()
	c.syncRunStates(runs)

	if snapshotProvider == nil {
		return
	}
	c.syncSnapshots(runs, snapshotProvider)
}

func (c *Collector) syncRunStates(runs map[string]runmanager.RunState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runStates = make(map[runStateKey]int, len(runs))
	for runID, state := range runs {
		c.runStates[runStateKey{runID: runID, state: string(state)}]++
	}
}

func (c *Collector) syncSnapshots(runs map[string]runmanager.RunState, provider SnapshotProvider) {
	snapshots := make(map[string]runmanager.StreamRecord, len(runs))
	for runID := range runs {
		rec, err := provider.Snapshot(runID)
		if err != nil {
			continue
		}
		snapshots[runID] = rec
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.runSnapshots = snapshots
}

// Expose returns the metrics in Prometheus text exposition format.
func (c *Collector) Expose() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var sb strings.Builder
	timestamp := c.nowFunc().UnixMilli()

	c.writeRunsCreatedTotal(&sb, timestamp)
	c.writeRunState(&sb, timestamp)
	c.writeRunTraffic(&sb, timestamp)
	c.writeRunLatency(&sb, timestamp)
	c.writeHostStats(&sb, timestamp)

	return sb.String()
}

func (c *Collector) writeRunsCreatedTotal(sb *strings.Builder, timestamp int64) {
	sb.WriteString("# HELP httpdrill_runs_created_total Total number of runs created\n")
	sb.WriteString("# TYPE httpdrill_runs_created_total counter\n")

	keys := make([]string, 0, len(c.runCreatedTotal))
	for k := range c.runCreatedTotal {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, runID := range keys {
		fmt.Fprintf(sb, "httpdrill_runs_created_total{run_id=%q} %d %d\n", runID, c.runCreatedTotal[runID], timestamp)
	}
}

func (c *Collector) writeRunState(sb *strings.Builder, timestamp int64) {
	sb.WriteString("# HELP httpdrill_run_state Current state of a run (1 = in this state)\n")
	sb.WriteString("# TYPE httpdrill_run_state gauge\n")

	keys := make([]runStateKey, 0, len(c.runStates))
	for k := range c.runStates {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].runID != keys[j].runID {
			return keys[i].runID < keys[j].runID
		}
		return keys[i].state < keys[j].state
	})

	for _, k := range keys {
		count := c.runStates[k]
		fmt.Fprintf(sb, "httpdrill_run_state{run_id=%q,state=%q} %d %d\n", k.runID, k.state, count, timestamp)
	}
}

func (c *Collector) writeRunTraffic(sb *strings.Builder, timestamp int64) {
	runIDs := c.sortedSnapshotKeys()

	sb.WriteString("# HELP httpdrill_requests_sent_total Requests submitted for a run\n")
	sb.WriteString("# TYPE httpdrill_requests_sent_total counter\n")
	for _, runID := range runIDs {
		rec := c.runSnapshots[runID]
		fmt.Fprintf(sb, "httpdrill_requests_sent_total{run_id=%q} %d %d\n", runID, rec.RequestsSent, timestamp)
	}

	sb.WriteString("# HELP httpdrill_requests_completed_total Requests completed successfully for a run\n")
	sb.WriteString("# TYPE httpdrill_requests_completed_total counter\n")
	for _, runID := range runIDs {
		rec := c.runSnapshots[runID]
		fmt.Fprintf(sb, "httpdrill_requests_completed_total{run_id=%q} %d %d\n", runID, rec.RequestsCompleted, timestamp)
	}

	sb.WriteString("# HELP httpdrill_requests_failed_total Requests that failed for a run\n")
	sb.WriteString("# TYPE httpdrill_requests_failed_total counter\n")
	for _, runID := range runIDs {
		rec := c.runSnapshots[runID]
		fmt.Fprintf(sb, "httpdrill_requests_failed_total{run_id=%q} %d %d\n", runID, rec.RequestsFailed, timestamp)
	}

	sb.WriteString("# HELP httpdrill_active_requests In-flight requests for a run\n")
	sb.WriteString("# TYPE httpdrill_active_requests gauge\n")
	for _, runID := range runIDs {
		rec := c.runSnapshots[runID]
		fmt.Fprintf(sb, "httpdrill_active_requests{run_id=%q} %d %d\n", runID, rec.Active, timestamp)
	}

	sb.WriteString("# HELP httpdrill_current_rps Current achieved requests per second for a run\n")
	sb.WriteString("# TYPE httpdrill_current_rps gauge\n")
	for _, runID := range runIDs {
		rec := c.runSnapshots[runID]
		fmt.Fprintf(sb, "httpdrill_current_rps{run_id=%q} %.4f %d\n", runID, rec.CurrentRPS, timestamp)
	}

	sb.WriteString("# HELP httpdrill_bytes_in_total Response bytes received for a run\n")
	sb.WriteString("# TYPE httpdrill_bytes_in_total counter\n")
	for _, runID := range runIDs {
		rec := c.runSnapshots[runID]
		fmt.Fprintf(sb, "httpdrill_bytes_in_total{run_id=%q} %d %d\n", runID, rec.BytesIn, timestamp)
	}

	sb.WriteString("# HELP httpdrill_bytes_out_total Request bytes sent for a run\n")
	sb.WriteString("# TYPE httpdrill_bytes_out_total counter\n")
	for _, runID := range runIDs {
		rec := c.runSnapshots[runID]
		fmt.Fprintf(sb, "httpdrill_bytes_out_total{run_id=%q} %d %d\n", runID, rec.BytesOut, timestamp)
	}
}

func (c *Collector) writeRunLatency(sb *strings.Builder, timestamp int64) {
	runIDs := c.sortedSnapshotKeys()

	sb.WriteString("# HELP httpdrill_latency_ms Observed response latency for a run, by quantile\n")
	sb.WriteString("# TYPE httpdrill_latency_ms gauge\n")
	for _, runID := range runIDs {
		rec := c.runSnapshots[runID]
		fmt.Fprintf(sb, "httpdrill_latency_ms{run_id=%q,quantile=\"0.5\"} %d %d\n", runID, rec.P50Ms, timestamp)
		fmt.Fprintf(sb, "httpdrill_latency_ms{run_id=%q,quantile=\"0.95\"} %d %d\n", runID, rec.P95Ms, timestamp)
		fmt.Fprintf(sb, "httpdrill_latency_ms{run_id=%q,quantile=\"0.99\"} %d %d\n", runID, rec.P99Ms, timestamp)
	}
}

func (c *Collector) sortedSnapshotKeys() []string {
	keys := make([]string, 0, len(c.runSnapshots))
	for k := range c.runSnapshots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reset clears all collected metrics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runCreatedTotal = make(map[string]int64)
	c.runStates = make(map[runStateKey]int)
	c.runSnapshots = make(map[string]runmanager.StreamRecord)
}
