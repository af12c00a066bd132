package runmanager

import "testing"

func TestEventLog_AppendAndTail(t *testing.T) {
	el := NewEventLog()
	if err := el.Append(RunEvent{RunID: "run-1", Type: EventTypeRunCreated}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := el.Append(RunEvent{RunID: "run-1", Type: EventTypeStateTransition, Message: "pending->running"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events, err := el.Tail(0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventTypeRunCreated {
		t.Fatalf("expected first event RUN_CREATED, got %s", events[0].Type)
	}
}

func TestEventLog_Append_MissingFields(t *testing.T) {
	el := NewEventLog()
	if err := el.Append(RunEvent{Type: EventTypeRunCreated}); err == nil {
		t.Fatal("expected error for missing run_id")
	}
	if err := el.Append(RunEvent{RunID: "run-1"}); err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestEventLog_Tail_CursorOutOfBounds(t *testing.T) {
	el := NewEventLog()
	_ = el.Append(RunEvent{RunID: "run-1", Type: EventTypeRunCreated})

	events, err := el.Tail(5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected empty slice past the end, got %d events", len(events))
	}
}

func TestEventLog_DropsPastLimit(t *testing.T) {
	el := NewEventLogWithLimit(2)
	_ = el.Append(RunEvent{RunID: "run-1", Type: EventTypeRunCreated})
	_ = el.Append(RunEvent{RunID: "run-1", Type: EventTypeStateTransition})
	_ = el.Append(RunEvent{RunID: "run-1", Type: EventTypeRunCompleted})

	if el.Len() != 2 {
		t.Fatalf("expected log to cap at 2 events, got %d", el.Len())
	}
	if !el.IsTruncated() {
		t.Fatal("expected IsTruncated to report true once the limit is hit")
	}
}
