// Package sink defines the narrow external-collaborator interfaces the run
// manager is constructed with (§6): a MetricsSink for batched result/metric
// writes and an optional ScriptRunner for pre/post-request hooks. Neither
// interface is required — a nil MetricsSink and ScriptRunner both degrade
// to "skip" behavior, matching spec §6's "implementer's choice to stub or
// wire".
package sink

import (
	"context"

	"github.com/bc-dunia/httpdrill/internal/httpmodel"
)

// ResultRecord is one completed transfer as handed to a MetricsSink.
type ResultRecord struct {
	RunID      string
	WorkerID   string
	Method     string
	URL        string
	StatusCode int
	LatencyMs  int64
	OK         bool
	ErrorKind  string
}

// MetricRecord is one periodic snapshot as handed to a MetricsSink.
type MetricRecord struct {
	RunID     string
	Timestamp int64
	Completed int64
	Failed    int64
	P50Ms     int64
	P95Ms     int64
	P99Ms     int64
}

// MetricsSink accepts batched result and metric writes. The run manager
// stores the sink it is given but calls neither method, so no batching or
// retry of sink writes happens in the core.
type MetricsSink interface {
	WriteResultBatch(ctx context.Context, records []ResultRecord) error
	WriteMetricBatch(ctx context.Context, records []MetricRecord) error
}

// PreparedRequest is what a ScriptRunner.Prepare may hand back in place of
// the original request (e.g. injected headers or a rewritten body).
type PreparedRequest struct {
	Request *httpmodel.Request
}

// TestResults is what a ScriptRunner.Post may attach to a completed
// transfer — arbitrary pass/fail assertions the script computed.
type TestResults struct {
	Passed      bool
	Assertions  map[string]bool
	FailMessage string
}

// ScriptContext carries correlation data into a script hook.
type ScriptContext struct {
	RunID    string
	WorkerID string
}

// ScriptRunner is optional; if absent, scripts are skipped entirely and the
// engine sends/records the request/response unmodified.
type ScriptRunner interface {
	Prepare(ctx context.Context, req *httpmodel.Request, sctx ScriptContext) (*PreparedRequest, *httpmodel.Error)
	Post(ctx context.Context, resp *httpmodel.Response, sctx ScriptContext) (*TestResults, *httpmodel.Error)
}

// NoopScriptRunner passes every request and response through unmodified;
// it is the zero-configuration default when no ScriptRunner is wired.
type NoopScriptRunner struct{}

func (NoopScriptRunner) Prepare(_ context.Context, req *httpmodel.Request, _ ScriptContext) (*PreparedRequest, *httpmodel.Error) {
	return &PreparedRequest{Request: req}, nil
}

func (NoopScriptRunner) Post(_ context.Context, _ *httpmodel.Response, _ ScriptContext) (*TestResults, *httpmodel.Error) {
	return nil, nil
}
