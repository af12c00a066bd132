package mockserver

import (
	"net/http"
	"testing"
	"time"
)

func TestServer_FastRoute(t *testing.T) {
	server, cleanup := StartTestServer()
	defer cleanup()

	resp, err := http.Get(server.BaseURL() + "/fast")
	if err != nil {
		t.Fatalf("GET /fast: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestServer_ErrorRoute(t *testing.T) {
	server, cleanup := StartTestServer()
	defer cleanup()

	resp, err := http.Get(server.BaseURL() + "/error")
	if err != nil {
		t.Fatalf("GET /error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestServer_StatefulCounterIncrements(t *testing.T) {
	server, cleanup := StartTestServer()
	defer cleanup()

	for i := 0; i < 3; i++ {
		resp, err := http.Get(server.BaseURL() + "/stateful-counter")
		if err != nil {
			t.Fatalf("GET /stateful-counter: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	}
}

func TestServer_CircuitBreakerOpensAfterFailures(t *testing.T) {
	server, cleanup := StartTestServer()
	defer cleanup()

	url := server.BaseURL() + "/circuit-breaker?force_error=true"
	var lastStatus int
	for i := 0; i < 4; i++ {
		resp, err := http.Get(url)
		if err != nil {
			t.Fatalf("GET /circuit-breaker: %v", err)
		}
		lastStatus = resp.StatusCode
		resp.Body.Close()
	}
	if lastStatus != http.StatusServiceUnavailable {
		t.Fatalf("expected circuit to open to 503 after repeated failures, got %d", lastStatus)
	}
}

func TestServer_RateLimitedEventuallyRejects(t *testing.T) {
	server, cleanup := StartTestServer()
	defer cleanup()

	sawLimited := false
	for i := 0; i < 10; i++ {
		resp, err := http.Get(server.BaseURL() + "/rate-limited")
		if err != nil {
			t.Fatalf("GET /rate-limited: %v", err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			sawLimited = true
		}
		resp.Body.Close()
	}
	if !sawLimited {
		t.Fatal("expected at least one 429 after bursting past the rate limit")
	}
}

func TestServer_StreamEmitsChunks(t *testing.T) {
	server, cleanup := StartTestServer()
	defer cleanup()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(server.BaseURL() + "/stream?chunks=2&delay_ms=1")
	if err != nil {
		t.Fatalf("GET /stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %s", ct)
	}
}

func TestTokenBucket_AllowsUpToCapacity(t *testing.T) {
	tb := newTokenBucket(2, time.Minute)
	if !tb.Allow() {
		t.Fatal("expected first request to be allowed")
	}
	if !tb.Allow() {
		t.Fatal("expected second request to be allowed")
	}
	if tb.Allow() {
		t.Fatal("expected third request to be rejected before refill")
	}
}
