package api

import (
	"github.com/bc-dunia/httpdrill/internal/controlplane/runmanager"
)

// RunService is the subset of runmanager.Manager the control-plane API
// depends on, so handlers can be tested against a fake without a live
// event loop.
type RunService interface {
	Start(req runmanager.StartRequest) error
	Stop(runID string) error
	GetReport(runID string) (*runmanager.Report, error)
	Snapshot(runID string) (runmanager.StreamRecord, error)
	TailEvents(runID string, cursor, limit int) ([]runmanager.RunEvent, error)
	ListRuns() map[string]runmanager.RunState
}

// requestBody is the wire shape of the `request` object in a POST /runs
// body (spec §6).
type requestBody struct {
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	Headers         map[string]string `json:"headers"`
	Body            string            `json:"body"`
	TimeoutMs       int64             `json:"timeout_ms"`
	FollowRedirects bool              `json:"follow_redirects"`
	MaxRedirects    int               `json:"max_redirects"`
	VerifyTLS       *bool             `json:"verify_tls"`
}

// configBody is the wire shape of the `config` object in a POST /runs body
// (spec §6): the load strategy's parameters plus the capture knobs.
type configBody struct {
	Mode             string `json:"mode"`
	DurationMs       int64  `json:"duration_ms"`
	TargetRPS        float64 `json:"target_rps"`
	Concurrency      int    `json:"concurrency"`
	Iterations       int    `json:"iterations"`
	StartConcurrency int    `json:"start_concurrency"`
	RampDurationMs   int64  `json:"ramp_duration_ms"`

	SuccessSampleRatePercent int   `json:"success_sample_rate_percent"`
	SlowThresholdMs          int64 `json:"slow_threshold_ms"`
	SaveTimingBreakdown      bool  `json:"save_timing_breakdown"`
}

// CreateRunRequest is the request body for POST /runs.
type CreateRunRequest struct {
	RunID   string      `json:"run_id"`
	Request requestBody `json:"request"`
	Config  configBody  `json:"config"`
}

// CreateRunResponse is the response body for POST /runs.
type CreateRunResponse struct {
	RunID string `json:"run_id"`
}

// StopRunResponse is the response body for DELETE /runs/{id}.
type StopRunResponse struct {
	RunID string `json:"run_id"`
}

// ListRunsResponse is the response body for GET /runs.
type ListRunsResponse struct {
	Runs map[string]runmanager.RunState `json:"runs"`
}

// ErrorResponse is the standard error envelope for every non-2xx response.
type ErrorResponse struct {
	ErrorType    string                 `json:"error_type"`
	ErrorCode    string                 `json:"error_code"`
	ErrorMessage string                 `json:"error_message"`
	Retryable    bool                   `json:"retryable"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response body for GET /readyz.
type ReadyResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

const (
	ErrorTypeInvalidArgument = "invalid_argument"
	ErrorTypeNotFound        = "not_found"
	ErrorTypeForbidden       = "forbidden"
	ErrorTypeRateLimited     = "rate_limited"
	ErrorTypeConflict        = "conflict"
	ErrorTypeInternal        = "internal"
)

const (
	ErrorCodeValidationFailed = "VALIDATION_FAILED"
	ErrorCodeRunNotFound      = "RUN_NOT_FOUND"
	ErrorCodeInvalidState     = "INVALID_STATE"
	ErrorCodeInvalidRequest   = "INVALID_REQUEST"
	ErrorCodeTerminalState    = "TERMINAL_STATE"
	ErrorCodeInternalError    = "INTERNAL_ERROR"
	ErrorCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

func NewInvalidRequestErrorResponse(message string, details map[string]interface{}) *ErrorResponse {
	return &ErrorResponse{
		ErrorType:    ErrorTypeInvalidArgument,
		ErrorCode:    ErrorCodeInvalidRequest,
		ErrorMessage: message,
		Retryable:    false,
		Details:      details,
	}
}

func NewNotFoundErrorResponse(runID string) *ErrorResponse {
	return &ErrorResponse{
		ErrorType:    ErrorTypeNotFound,
		ErrorCode:    ErrorCodeRunNotFound,
		ErrorMessage: "run not found",
		Retryable:    false,
		Details:      map[string]interface{}{"run_id": runID},
	}
}

func NewInternalErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		ErrorType:    ErrorTypeInternal,
		ErrorCode:    ErrorCodeInternalError,
		ErrorMessage: message,
		Retryable:    true,
	}
}

func NewTerminalStateErrorResponse(runID, state, operation string) *ErrorResponse {
	return &ErrorResponse{
		ErrorType:    ErrorTypeConflict,
		ErrorCode:    ErrorCodeTerminalState,
		ErrorMessage: "run is already in a terminal state",
		Retryable:    false,
		Details:      map[string]interface{}{"run_id": runID, "state": state, "operation": operation},
	}
}

func NewInvalidStateErrorResponse(runID, state, operation string) *ErrorResponse {
	return &ErrorResponse{
		ErrorType:    ErrorTypeConflict,
		ErrorCode:    ErrorCodeInvalidState,
		ErrorMessage: "run cannot perform this operation in its current state",
		Retryable:    false,
		Details:      map[string]interface{}{"run_id": runID, "state": state, "operation": operation},
	}
}
