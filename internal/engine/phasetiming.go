package engine

import (
	"context"
	"crypto/tls"
	"net/http/httptrace"
	"net/url"
	"sync"
	"time"

	"github.com/bc-dunia/httpdrill/internal/httpmodel"
)

// phaseTracker decomposes one transfer's wall-clock time into the
// dns/connect/tls/first-byte/download breakdown §3 requires, via an
// httptrace.ClientTrace hooked onto the request's context.
type phaseTracker struct {
	mu sync.Mutex

	start        time.Time
	dnsStart     time.Time
	dnsEnd       time.Time
	connectStart time.Time
	connectEnd   time.Time
	tlsStart     time.Time
	tlsEnd       time.Time
	gotFirstByte time.Time
	wroteRequest time.Time
	reused       bool
}

func newPhaseTracker() *phaseTracker {
	return &phaseTracker{start: time.Now()}
}

func (t *phaseTracker) attach(ctx context.Context) context.Context {
	trace := &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			t.mu.Lock()
			t.dnsStart = time.Now()
			t.mu.Unlock()
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			t.mu.Lock()
			t.dnsEnd = time.Now()
			t.mu.Unlock()
		},
		ConnectStart: func(string, string) {
			t.mu.Lock()
			t.connectStart = time.Now()
			t.mu.Unlock()
		},
		ConnectDone: func(string, string, error) {
			t.mu.Lock()
			t.connectEnd = time.Now()
			t.mu.Unlock()
		},
		TLSHandshakeStart: func() {
			t.mu.Lock()
			t.tlsStart = time.Now()
			t.mu.Unlock()
		},
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			t.mu.Lock()
			t.tlsEnd = time.Now()
			t.mu.Unlock()
		},
		GotConn: func(info httptrace.GotConnInfo) {
			t.mu.Lock()
			t.reused = info.Reused
			t.mu.Unlock()
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			t.mu.Lock()
			t.wroteRequest = time.Now()
			t.mu.Unlock()
		},
		GotFirstResponseByte: func() {
			t.mu.Lock()
			t.gotFirstByte = time.Now()
			t.mu.Unlock()
		},
	}
	return httptrace.WithClientTrace(ctx, trace)
}

// computeTiming produces the final PhaseTiming once the response body has
// been fully read (endTime). Download time is measured from first byte to
// endTime, matching the teacher's own phase tracker.
func (t *phaseTracker) computeTiming(endTime time.Time) httpmodel.PhaseTiming {
	t.mu.Lock()
	defer t.mu.Unlock()

	pt := httpmodel.PhaseTiming{TotalMs: endTime.Sub(t.start).Milliseconds()}

	if !t.reused {
		if !t.dnsStart.IsZero() && !t.dnsEnd.IsZero() {
			pt.DNSMs = t.dnsEnd.Sub(t.dnsStart).Milliseconds()
		}
		if !t.connectStart.IsZero() && !t.connectEnd.IsZero() {
			pt.ConnectMs = t.connectEnd.Sub(t.connectStart).Milliseconds()
		}
		if !t.tlsStart.IsZero() && !t.tlsEnd.IsZero() {
			pt.TLSMs = t.tlsEnd.Sub(t.tlsStart).Milliseconds()
		}
	}

	if !t.gotFirstByte.IsZero() {
		baseline := t.start
		if !t.wroteRequest.IsZero() {
			baseline = t.wroteRequest
		}
		pt.FirstByteMs = t.gotFirstByte.Sub(baseline).Milliseconds()
		pt.DownloadMs = endTime.Sub(t.gotFirstByte).Milliseconds()
	}

	return pt
}

// requestHost extracts the host portion (no port) from a request URL, for
// the DNS cache override lookup. Returns "" on a malformed URL — the
// transfer itself will surface InvalidUrl when http.NewRequestWithContext
// parses it.
func requestHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
