package runmanager

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// EventType represents the type of run lifecycle event.
type EventType string

const (
	EventTypeRunCreated      EventType = "RUN_CREATED"
	EventTypeStateTransition EventType = "STATE_TRANSITION"
	EventTypeStopRequested   EventType = "STOP_REQUESTED"
	EventTypeRunCompleted    EventType = "RUN_COMPLETED"
	EventTypeRunFailed       EventType = "RUN_FAILED"
)

// RunEvent represents a single event in a run's lifecycle, suitable for
// the control-plane API's streaming/audit surface.
type RunEvent struct {
	EventID     string    `json:"event_id"`
	TimestampMs int64     `json:"ts_ms"`
	RunID       string    `json:"run_id"`
	Type        EventType `json:"type"`
	Message     string    `json:"message"`
}

// DefaultMaxEventsPerLog is the default maximum events per EventLog.
const DefaultMaxEventsPerLog = 10000

// EventLog is an append-only log of run events with a configurable memory
// limit. Reused, unchanged in shape, across every run's RunContext.
type EventLog struct {
	mu        sync.RWMutex
	events    []RunEvent
	maxEvents int
	truncated bool
	runID     string
}

// NewEventLog creates a new append-only event log with the default limit.
func NewEventLog() *EventLog {
	return NewEventLogWithLimit(DefaultMaxEventsPerLog)
}

// NewEventLogWithLimit creates a new event log with a custom limit. Set
// maxEvents to 0 for unlimited (not recommended for production).
func NewEventLogWithLimit(maxEvents int) *EventLog {
	return &EventLog{
		events:    make([]RunEvent, 0, 64),
		maxEvents: maxEvents,
	}
}

// Append adds an event to the log. If the log has reached its maximum
// capacity, new events are dropped and a warning is logged once per log.
func (el *EventLog) Append(event RunEvent) error {
	if event.RunID == "" {
		return fmt.Errorf("event missing required field: run_id")
	}
	if event.Type == "" {
		return fmt.Errorf("event missing required field: type")
	}

	if event.EventID == "" {
		event.EventID = generateEventID()
	}
	if event.TimestampMs == 0 {
		event.TimestampMs = time.Now().UnixMilli()
	}

	el.mu.Lock()
	defer el.mu.Unlock()

	if el.runID == "" {
		el.runID = event.RunID
	}

	if el.maxEvents > 0 && len(el.events) >= el.maxEvents {
		if !el.truncated {
			el.truncated = true
			slog.Warn("event_log_truncated",
				"run_id", el.runID,
				"limit", el.maxEvents,
				"warning", "event log reached maximum capacity, new events will be dropped")
		}
		return nil
	}

	el.events = append(el.events, event)
	return nil
}

// Tail returns events starting from cursor with limit. cursor is the
// 0-based index to start from; returns an empty slice if cursor is out of
// bounds.
func (el *EventLog) Tail(cursor, limit int) ([]RunEvent, error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit must be non-negative")
	}
	if cursor < 0 {
		return nil, fmt.Errorf("cursor must be non-negative")
	}

	el.mu.RLock()
	defer el.mu.RUnlock()

	if cursor >= len(el.events) {
		return []RunEvent{}, nil
	}

	end := cursor + limit
	if end > len(el.events) {
		end = len(el.events)
	}

	result := make([]RunEvent, end-cursor)
	copy(result, el.events[cursor:end])
	return result, nil
}

// GetAll returns all events in the log.
func (el *EventLog) GetAll() []RunEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	result := make([]RunEvent, len(el.events))
	copy(result, el.events)
	return result
}

// Len returns the number of events in the log.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// IsTruncated returns true if events were dropped due to the memory limit.
func (el *EventLog) IsTruncated() bool {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.truncated
}

// generateEventID generates a unique event ID: evt_{timestamp}_{counter}.
func generateEventID() string {
	ts := time.Now().UnixMilli()
	counter := eventIDCounter.Add(1)
	return fmt.Sprintf("evt_%x_%x", ts, counter)
}

var eventIDCounter atomic.Int64
