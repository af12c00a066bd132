package engine

import (
	"context"
	"net"
	"net/http"
	"time"
)

type dnsOverrideKey struct{}

// withDNSOverride attaches the DNS cache's resolved address for this
// transfer's host so the dialer below can skip re-resolving.
func withDNSOverride(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, dnsOverrideKey{}, addr)
}

func dnsOverrideFromContext(ctx context.Context) (string, bool) {
	addr, ok := ctx.Value(dnsOverrideKey{}).(string)
	return addr, ok && addr != ""
}

// NewTransport builds the *http.Transport shared across a worker's
// in-flight requests. Its DialContext consults the per-request DNS
// override (attached via withDNSOverride): when the event-loop worker
// already resolved the host through the shared dnscache.Cache, the dialer
// connects straight to that cached address instead of invoking the system
// resolver a second time inside net.Dial.
func NewTransport(maxConnsPerHost int) *http.Transport {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}

	return &http.Transport{
		MaxConnsPerHost:       maxConnsPerHost,
		MaxIdleConnsPerHost:   maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if override, ok := dnsOverrideFromContext(ctx); ok {
				_, port, err := net.SplitHostPort(addr)
				if err == nil {
					addr = net.JoinHostPort(override, port)
				}
			}
			return dialer.DialContext(ctx, network, addr)
		},
	}
}
