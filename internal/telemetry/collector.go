package telemetry

import (
	"runtime"
	"time"
)

// HealthProvider supplies the live engine state a worker-health snapshot
// needs — a thin adapter over engine.Loop (see engine.HealthAdapter).
type HealthProvider interface {
	ActiveTransfers() int64
	PendingCount() int64
}

// healthLoop captures a WorkerHealth record every HealthSnapshotInterval
// until ctx is done. Scheduled by StartSnapshotLoop alongside the merged
// metrics snapshot loop.
func (c *Collector) healthLoop(ctx contextStopper) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.HealthSnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.captureHealth()
		}
	}
}

func (c *Collector) captureHealth() {
	if c.healthProvider == nil {
		return
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := c.queue.Stats()

	health := &WorkerHealth{
		Timestamp:       time.Now(),
		WorkerID:        c.config.WorkerID,
		MemBytes:        int64(memStats.Alloc),
		ActiveTransfers: c.healthProvider.ActiveTransfers(),
		PendingCount:    c.healthProvider.PendingCount(),
		QueueDepth:      stats.Depth,
		QueueCapacity:   stats.Capacity,
		DroppedTier2:    stats.DroppedTier2,
	}

	c.queue.Enqueue(&TelemetryRecord{Type: "worker_health", WorkerHealth: health, Tier: Tier0Lifecycle})
}

// RecordLifecycleEvent records a Tier0 event (run started, run stopped,
// strategy failed, ...) that is never shed under backpressure.
func (c *Collector) RecordLifecycleEvent(eventType string, workerID string) {
	if c.closed.Load() {
		return
	}
	log := &TransferLog{
		Version:         TransferLogVersion,
		Timestamp:       time.Now(),
		Tier:            Tier0Lifecycle,
		CorrelationKeys: CorrelationKeys{WorkerID: workerID},
		Method:          eventType,
		OK:              true,
	}
	c.queue.Enqueue(&TelemetryRecord{Type: "transfer", Transfer: log, Tier: Tier0Lifecycle})
}
