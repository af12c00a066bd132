package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bc-dunia/httpdrill/internal/controlplane/runmanager"
)

type fakeRunService struct {
	startErr    error
	started     []runmanager.StartRequest
	stopErr     error
	stopped     []string
	report      *runmanager.Report
	reportErr   error
	snapshot    runmanager.StreamRecord
	snapshotErr error
	runs        map[string]runmanager.RunState
}

func (f *fakeRunService) Start(req runmanager.StartRequest) error {
	f.started = append(f.started, req)
	return f.startErr
}

func (f *fakeRunService) Stop(runID string) error {
	f.stopped = append(f.stopped, runID)
	return f.stopErr
}

func (f *fakeRunService) GetReport(runID string) (*runmanager.Report, error) {
	return f.report, f.reportErr
}

func (f *fakeRunService) Snapshot(runID string) (runmanager.StreamRecord, error) {
	return f.snapshot, f.snapshotErr
}

func (f *fakeRunService) TailEvents(runID string, cursor, limit int) ([]runmanager.RunEvent, error) {
	return nil, nil
}

func (f *fakeRunService) ListRuns() map[string]runmanager.RunState {
	return f.runs
}

func newTestServer(fake *fakeRunService) *Server {
	return NewServer("127.0.0.1:0", fake)
}

func TestHandleCreateRun_Success(t *testing.T) {
	fake := &fakeRunService{}
	s := newTestServer(fake)

	body := `{"run_id":"run-1","request":{"url":"http://example.com"},"config":{"mode":"iterations","iterations":5}}`
	req := httptest.NewRequest(http.MethodPost, "/runs", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	s.handleCreateRun(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(fake.started) != 1 {
		t.Fatalf("expected Start to be called once, got %d", len(fake.started))
	}
	if fake.started[0].RunID != "run-1" {
		t.Errorf("expected run_id run-1, got %s", fake.started[0].RunID)
	}
	if fake.started[0].Request.URL != "http://example.com" {
		t.Errorf("expected request URL to be carried through, got %s", fake.started[0].Request.URL)
	}

	var resp CreateRunResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RunID != "run-1" {
		t.Errorf("expected response run_id run-1, got %s", resp.RunID)
	}
}

func TestHandleCreateRun_MissingURL(t *testing.T) {
	fake := &fakeRunService{}
	s := newTestServer(fake)

	req := httptest.NewRequest(http.MethodPost, "/runs", bytes.NewBufferString(`{"request":{}}`))
	w := httptest.NewRecorder()

	s.handleCreateRun(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(fake.started) != 0 {
		t.Fatal("expected Start not to be called for an invalid body")
	}
}

func TestHandleCreateRun_WrongMethod(t *testing.T) {
	fake := &fakeRunService{}
	s := newTestServer(fake)

	req := httptest.NewRequest(http.MethodPut, "/runs", nil)
	w := httptest.NewRecorder()

	s.handleCreateRun(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestHandleStopRun(t *testing.T) {
	fake := &fakeRunService{}
	s := newTestServer(fake)

	req := httptest.NewRequest(http.MethodDelete, "/runs/run-1", nil)
	w := httptest.NewRecorder()

	s.handleStopRun(w, req, "run-1")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(fake.stopped) != 1 || fake.stopped[0] != "run-1" {
		t.Fatalf("expected Stop(run-1) to be called, got %v", fake.stopped)
	}
}

func TestHandleStopRun_NotFound(t *testing.T) {
	fake := &fakeRunService{stopErr: runmanager.NewNotFoundError("run-missing")}
	s := newTestServer(fake)

	req := httptest.NewRequest(http.MethodDelete, "/runs/run-missing", nil)
	w := httptest.NewRecorder()

	s.handleStopRun(w, req, "run-missing")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHandleGetReport(t *testing.T) {
	fake := &fakeRunService{report: &runmanager.Report{
		Summary: runmanager.ReportSummary{TotalRequests: 10},
	}}
	s := newTestServer(fake)

	req := httptest.NewRequest(http.MethodGet, "/runs/run-1/report", nil)
	w := httptest.NewRecorder()

	s.handleGetReport(w, req, "run-1")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var report runmanager.Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if report.Summary.TotalRequests != 10 {
		t.Errorf("expected total requests 10, got %d", report.Summary.TotalRequests)
	}
}

func TestHandleGetReport_NotTerminal(t *testing.T) {
	fake := &fakeRunService{reportErr: errors.New("report not available: run has not reached a terminal state")}
	s := newTestServer(fake)

	req := httptest.NewRequest(http.MethodGet, "/runs/run-1/report", nil)
	w := httptest.NewRecorder()

	s.handleGetReport(w, req, "run-1")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for a generic error, got %d", w.Code)
	}
}

func TestHandleStreamRun_TerminatesOnStatus(t *testing.T) {
	terminal := runmanager.RunStateCompleted
	fake := &fakeRunService{snapshot: runmanager.StreamRecord{
		RequestsSent: 5,
		Status:       &terminal,
	}}
	s := newTestServer(fake)

	req := httptest.NewRequest(http.MethodGet, "/runs/run-1/stream", nil)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.handleStreamRun(w, req, "run-1")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleStreamRun did not terminate after a terminal snapshot")
	}

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("event: run_stream")) {
		t.Errorf("expected at least one run_stream event, got: %s", w.Body.String())
	}
}

func TestHandleStreamRun_UnknownRun(t *testing.T) {
	fake := &fakeRunService{snapshotErr: runmanager.NewNotFoundError("run-missing")}
	s := newTestServer(fake)

	req := httptest.NewRequest(http.MethodGet, "/runs/run-missing/stream", nil)
	w := httptest.NewRecorder()

	s.handleStreamRun(w, req, "run-missing")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHandleHealthzReadyz(t *testing.T) {
	fake := &fakeRunService{}
	s := newTestServer(fake)

	w := httptest.NewRecorder()
	s.handleHealthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	s.handleReadyz(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from readyz, got %d", w.Code)
	}
}

func TestRouteRuns_Dispatch(t *testing.T) {
	fake := &fakeRunService{
		report: &runmanager.Report{},
	}
	s := newTestServer(fake)

	w := httptest.NewRecorder()
	s.routeRuns(w, httptest.NewRequest(http.MethodGet, "/runs/run-1/report", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected report route to succeed, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	s.routeRuns(w, httptest.NewRequest(http.MethodDelete, "/runs/run-1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected stop route to succeed, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	s.routeRuns(w, httptest.NewRequest(http.MethodGet, "/runs/run-1/unknown", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected unknown sub-route to 404, got %d", w.Code)
	}
}
