package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bc-dunia/httpdrill/internal/auth"
	"github.com/bc-dunia/httpdrill/internal/controlplane/runmanager"
	"github.com/bc-dunia/httpdrill/internal/httpmodel"
	"github.com/bc-dunia/httpdrill/internal/strategy"
)

const (
	sseHeartbeatInterval = 15 * time.Second
)

// handleCreateRun implements POST /runs (spec §6): decode the request and
// config, start the run, and return its run_id immediately — there is no
// separate create-then-start step, unlike the teacher's staged lifecycle.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.handleListRuns(w, r)
		return
	}
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w, r.Method, "GET, POST")
		return
	}

	if s.authConfig != nil && s.authConfig.Mode != auth.AuthModeNone {
		if !auth.HasAnyRole(r.Context(), auth.RoleAdmin, auth.RoleOperator) {
			s.writeError(w, http.StatusForbidden, &ErrorResponse{
				ErrorType:    ErrorTypeForbidden,
				ErrorCode:    "INSUFFICIENT_PERMISSIONS",
				ErrorMessage: "this action requires operator or admin role",
			})
			return
		}
	}

	var body CreateRunRequest
	if err := json.NewDecoder(limitedBody(w, r)).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, NewInvalidRequestErrorResponse(
			"invalid JSON request body",
			map[string]interface{}{"parse_error": err.Error()},
		))
		return
	}
	if body.Request.URL == "" {
		s.writeError(w, http.StatusBadRequest, NewInvalidRequestErrorResponse(
			"request.url is required",
			map[string]interface{}{"field": "request.url"},
		))
		return
	}

	req, err := toStartRequest(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, NewInvalidRequestErrorResponse(
			err.Error(),
			map[string]interface{}{"field": "request"},
		))
		return
	}

	if err := s.runs.Start(req); err != nil {
		s.handleRunManagerError(w, req.RunID, "start", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, &CreateRunResponse{RunID: req.RunID})
}

func toStartRequest(body CreateRunRequest) (runmanager.StartRequest, error) {
	runID := body.RunID
	if runID == "" {
		runID = generateRunID()
	}

	method, ok := httpmodel.ParseMethod(body.Request.Method)
	if !ok {
		if body.Request.Method == "" {
			method = httpmodel.MethodGet
		} else {
			return runmanager.StartRequest{}, fmt.Errorf("unsupported method %q", body.Request.Method)
		}
	}

	headers := make([]httpmodel.Header, 0, len(body.Request.Headers))
	for k, v := range body.Request.Headers {
		headers = append(headers, httpmodel.Header{Key: k, Value: v})
	}

	verifyTLS := true
	if body.Request.VerifyTLS != nil {
		verifyTLS = *body.Request.VerifyTLS
	}

	request := &httpmodel.Request{
		URL:             body.Request.URL,
		Method:          method,
		Headers:         headers,
		Body:            httpmodel.Body{Mode: httpmodel.BodyRaw, Bytes: []byte(body.Request.Body)},
		TimeoutMs:       body.Request.TimeoutMs,
		FollowRedirects: body.Request.FollowRedirects,
		MaxRedirects:    body.Request.MaxRedirects,
		VerifyTLS:       verifyTLS,
	}
	if len(body.Request.Body) == 0 {
		request.Body.Mode = httpmodel.BodyNone
	}

	cfg := body.Config
	mode := strategy.ParseMode(cfg.Mode, cfg.Iterations > 0)

	return runmanager.StartRequest{
		RunID:   runID,
		Request: request,
		Config: runmanager.RunConfig{
			Mode:                     mode,
			DurationMs:               cfg.DurationMs,
			TargetRPS:                cfg.TargetRPS,
			Concurrency:              cfg.Concurrency,
			Iterations:               cfg.Iterations,
			StartConcurrency:         cfg.StartConcurrency,
			RampDurationMs:           cfg.RampDurationMs,
			SuccessSampleRatePercent: cfg.SuccessSampleRatePercent,
			SlowThresholdMs:          cfg.SlowThresholdMs,
			SaveTimingBreakdown:      cfg.SaveTimingBreakdown,
		},
	}, nil
}

func generateRunID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "run_" + hex.EncodeToString(buf)
}

// handleListRuns implements the informal GET /runs listing; not one of
// spec §6's four named endpoints, but a direct, zero-cost read over
// Manager.ListRuns.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, &ListRunsResponse{Runs: s.runs.ListRuns()})
}

// handleStopRun implements DELETE /runs/{id} (spec §6).
func (s *Server) handleStopRun(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodDelete {
		s.writeMethodNotAllowed(w, r.Method, "DELETE")
		return
	}

	if s.authConfig != nil && s.authConfig.Mode != auth.AuthModeNone {
		if !auth.HasAnyRole(r.Context(), auth.RoleAdmin, auth.RoleOperator) {
			s.writeError(w, http.StatusForbidden, &ErrorResponse{
				ErrorType:    ErrorTypeForbidden,
				ErrorCode:    "INSUFFICIENT_PERMISSIONS",
				ErrorMessage: "this action requires operator or admin role",
			})
			return
		}
	}

	if err := s.runs.Stop(runID); err != nil {
		s.handleRunManagerError(w, runID, "stop", err)
		return
	}

	s.writeJSON(w, http.StatusOK, &StopRunResponse{RunID: runID})
}

// handleGetReport implements GET /runs/{id}/report (spec §6).
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, r.Method, "GET")
		return
	}

	report, err := s.runs.GetReport(runID)
	if err != nil {
		s.handleRunManagerError(w, runID, "get report", err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// handleStreamRun implements GET /runs/{id}/stream (spec §6): an SSE feed
// of StreamRecord rows read from RunService.Snapshot every 250 ms, ending
// with one terminal record once the run reaches a terminal state. The
// 250 ms poll is fixed; the statsInterval knob does not change it.
func (s *Server) handleStreamRun(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, r.Method, "GET")
		return
	}

	if _, err := s.runs.Snapshot(runID); err != nil {
		s.handleRunManagerError(w, runID, "stream", err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, NewInternalErrorResponse("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	poll := time.NewTicker(250 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()
		case <-poll.C:
			rec, err := s.runs.Snapshot(runID)
			if err != nil {
				return
			}
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: run_stream\n")
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
			if rec.Status != nil {
				return
			}
		}
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, r.Method, "GET")
		return
	}
	s.writeJSON(w, http.StatusOK, &HealthResponse{Status: "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, r.Method, "GET")
		return
	}
	ready := s.runs != nil
	status := "ready"
	if !ready {
		status = "not_ready"
	}
	s.writeJSON(w, http.StatusOK, &ReadyResponse{Status: status, Ready: ready})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, r.Method, "GET")
		return
	}
	if s.metricsCollector == nil {
		s.writeError(w, http.StatusServiceUnavailable, &ErrorResponse{
			ErrorType:    ErrorTypeInternal,
			ErrorCode:    "METRICS_NOT_CONFIGURED",
			ErrorMessage: "metrics collector not configured",
		})
		return
	}
	s.metricsCollector.SyncFromProviders()
	output := s.metricsCollector.Expose()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(output))
}

func (s *Server) handleRunManagerError(w http.ResponseWriter, runID, operation string, err error) {
	if rmErr := runmanager.AsRunManagerError(err); rmErr != nil {
		switch rmErr.Kind {
		case runmanager.ErrKindNotFound:
			s.writeError(w, http.StatusNotFound, NewNotFoundErrorResponse(rmErr.RunID))
		case runmanager.ErrKindTerminalState:
			s.writeError(w, http.StatusConflict, NewTerminalStateErrorResponse(rmErr.RunID, string(rmErr.State), operation))
		case runmanager.ErrKindInvalidState, runmanager.ErrKindInvalidTransition:
			s.writeError(w, http.StatusConflict, NewInvalidStateErrorResponse(rmErr.RunID, string(rmErr.State), operation))
		default:
			s.writeError(w, http.StatusInternalServerError, NewInternalErrorResponse(rmErr.Message))
		}
		return
	}

	errMsg := err.Error()
	if strings.Contains(errMsg, "not found") {
		s.writeError(w, http.StatusNotFound, NewNotFoundErrorResponse(runID))
		return
	}
	s.writeError(w, http.StatusInternalServerError, NewInternalErrorResponse(errMsg))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, errResp *ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errResp)
}

func (s *Server) writeMethodNotAllowed(w http.ResponseWriter, method, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, &ErrorResponse{
		ErrorType:    ErrorTypeInvalidArgument,
		ErrorCode:    ErrorCodeMethodNotAllowed,
		ErrorMessage: "method not allowed",
		Details:      map[string]interface{}{"method": method, "allowed": allowed},
	})
}

// maxRequestBodySize bounds a POST /runs body (10MB, same ceiling the
// teacher applies to every JSON-decoded request).
const maxRequestBodySize = 10 * 1024 * 1024

func limitedBody(w http.ResponseWriter, r *http.Request) io.Reader {
	return http.MaxBytesReader(w, r.Body, maxRequestBodySize)
}
