package runmanager

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bc-dunia/httpdrill/internal/config"
	"github.com/bc-dunia/httpdrill/internal/httpmodel"
	"github.com/bc-dunia/httpdrill/internal/otel"
	"github.com/bc-dunia/httpdrill/internal/strategy"
)

func newTestManager() *Manager {
	return NewManager(config.NewManager(nil), nil, nil, nil, "")
}

func waitForTerminal(t *testing.T, m *Manager, runID string, timeout time.Duration) RunState {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		rc, err := m.lookup(runID)
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		switch rc.getState() {
		case RunStateCompleted, RunStateStopped, RunStateFailed:
			return rc.getState()
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s did not reach a terminal state within %s", runID, timeout)
	return ""
}

func TestManager_StartRunsToCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := newTestManager()
	err := m.Start(StartRequest{
		RunID: "run-1",
		Request: &httpmodel.Request{
			Method: httpmodel.MethodGet,
			URL:    srv.URL,
		},
		Config: RunConfig{Mode: strategy.ModeIterations, Iterations: 3, Concurrency: 1},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	state := waitForTerminal(t, m, "run-1", 2*time.Second)
	if state != RunStateCompleted {
		t.Fatalf("expected RunStateCompleted, got %s", state)
	}

	report, err := m.GetReport("run-1")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if report.Summary.TotalRequests < 3 {
		t.Fatalf("expected at least 3 total requests, got %d", report.Summary.TotalRequests)
	}
	if report.Metadata.Status != RunStateCompleted {
		t.Fatalf("expected metadata status RunStateCompleted, got %s", report.Metadata.Status)
	}
	if report.Metadata.RequestURL != srv.URL {
		t.Fatalf("expected request url %s, got %s", srv.URL, report.Metadata.RequestURL)
	}
}

func TestManager_StartWithOtelSideExporter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()
	otelMetrics, err := otel.NewMetrics(ctx, &otel.MetricsConfig{
		Enabled:      true,
		ServiceName:  "test-service",
		ExporterType: otel.ExporterStdout,
	})
	if err != nil {
		t.Fatalf("otel.NewMetrics: %v", err)
	}
	defer otelMetrics.Shutdown(ctx)

	otelTracer, err := otel.NewTracer(ctx, &otel.Config{
		Enabled:      true,
		ServiceName:  "test-service",
		ExporterType: otel.ExporterStdout,
		SampleRate:   1.0,
	})
	if err != nil {
		t.Fatalf("otel.NewTracer: %v", err)
	}
	defer otelTracer.Shutdown(ctx)

	m := newTestManager()
	m.SetOtel(otelMetrics, otelTracer)

	err = m.Start(StartRequest{
		RunID: "run-otel-1",
		Request: &httpmodel.Request{
			Method: httpmodel.MethodGet,
			URL:    srv.URL,
		},
		Config: RunConfig{Mode: strategy.ModeIterations, Iterations: 3, Concurrency: 1},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	state := waitForTerminal(t, m, "run-otel-1", 2*time.Second)
	if state != RunStateCompleted {
		t.Fatalf("expected RunStateCompleted, got %s", state)
	}
}

func TestManager_StartDuplicateRunID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := newTestManager()
	req := StartRequest{
		RunID:   "run-dup",
		Request: &httpmodel.Request{Method: httpmodel.MethodGet, URL: srv.URL},
		Config:  RunConfig{Mode: strategy.ModeIterations, Iterations: 1},
	}
	if err := m.Start(req); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := m.Start(req); err == nil {
		t.Fatal("expected error starting a duplicate run_id")
	}

	waitForTerminal(t, m, "run-dup", 2*time.Second)
}

func TestManager_StartRejectsMissingURL(t *testing.T) {
	m := newTestManager()
	err := m.Start(StartRequest{RunID: "run-bad", Request: &httpmodel.Request{Method: httpmodel.MethodGet}})
	if err == nil {
		t.Fatal("expected error for missing request URL")
	}
}

func TestManager_StopTransitionsToStopped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := newTestManager()
	err := m.Start(StartRequest{
		RunID:   "run-stop",
		Request: &httpmodel.Request{Method: httpmodel.MethodGet, URL: srv.URL},
		Config:  RunConfig{Mode: strategy.ModeConstantConcurrency, DurationMs: 10_000, Concurrency: 2},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := m.Stop("run-stop"); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	rc, err := m.lookup("run-stop")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if state := rc.getState(); state != RunStateStopped {
		t.Fatalf("expected RunStateStopped, got %s", state)
	}
}

func TestManager_GetReportBeforeTerminalFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := newTestManager()
	err := m.Start(StartRequest{
		RunID:   "run-pending",
		Request: &httpmodel.Request{Method: httpmodel.MethodGet, URL: srv.URL},
		Config:  RunConfig{Mode: strategy.ModeConstantConcurrency, DurationMs: 5_000, Concurrency: 1},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop("run-pending")

	if _, err := m.GetReport("run-pending"); err == nil {
		t.Fatal("expected error requesting a report before the run reaches a terminal state")
	}
}

func TestManager_TailEventsRecordsLifecycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := newTestManager()
	if err := m.Start(StartRequest{
		RunID:   "run-events",
		Request: &httpmodel.Request{Method: httpmodel.MethodGet, URL: srv.URL},
		Config:  RunConfig{Mode: strategy.ModeIterations, Iterations: 1},
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitForTerminal(t, m, "run-events", 2*time.Second)

	events, err := m.TailEvents("run-events", 0, 100)
	if err != nil {
		t.Fatalf("TailEvents: %v", err)
	}
	if len(events) < 2 {
		t.Fatalf("expected at least 2 lifecycle events, got %d", len(events))
	}
	if events[0].Type != EventTypeRunCreated {
		t.Fatalf("expected first event RUN_CREATED, got %s", events[0].Type)
	}
}

func TestManager_UnknownRunIDErrors(t *testing.T) {
	m := newTestManager()
	if _, err := m.GetReport("missing"); err == nil {
		t.Fatal("expected error for unknown run_id")
	}
	if err := m.Stop("missing"); err == nil {
		t.Fatal("expected error stopping an unknown run_id")
	}
}
