package httpmodel

import (
	"context"
	"errors"
	"net"
	"testing"
)

func TestClassify_ContextCancelled(t *testing.T) {
	got := Classify(context.Canceled)
	if got.Kind != KindCancelled {
		t.Fatalf("expected Cancelled, got %s", got.Kind)
	}
}

func TestClassify_ContextDeadlineExceeded(t *testing.T) {
	got := Classify(context.DeadlineExceeded)
	if got.Kind != KindTimeout {
		t.Fatalf("expected Timeout, got %s", got.Kind)
	}
}

func TestClassify_DNSError(t *testing.T) {
	err := &net.DNSError{Name: "example.invalid", Err: "no such host"}
	got := Classify(err)
	if got.Kind != KindDNSError {
		t.Fatalf("expected DnsError, got %s", got.Kind)
	}
}

func TestClassify_DNSTimeout(t *testing.T) {
	err := &net.DNSError{Name: "example.invalid", Err: "timeout", IsTimeout: true}
	got := Classify(err)
	if got.Kind != KindDNSError {
		t.Fatalf("expected DnsError, got %s", got.Kind)
	}
	if got.Classified != "lookup_timeout" {
		t.Fatalf("expected lookup_timeout classification, got %q", got.Classified)
	}
}

func TestClassify_ConnectionRefused(t *testing.T) {
	err := &net.OpError{
		Op:   "dial",
		Addr: &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999},
		Err:  errors.New("connect: connection refused"),
	}
	got := Classify(err)
	if got.Kind != KindConnectionFailed {
		t.Fatalf("expected ConnectionFailed, got %s", got.Kind)
	}
	if got.Classified != "connection_refused" {
		t.Fatalf("expected connection_refused classification, got %q", got.Classified)
	}
}

func TestClassify_AlreadyClassifiedPassesThrough(t *testing.T) {
	original := &Error{Kind: KindTLSError, Message: "bad cert"}
	got := Classify(original)
	if got != original {
		t.Fatal("expected already-classified error to pass through unchanged")
	}
}

func TestClassify_Unknown(t *testing.T) {
	got := Classify(errors.New("something unexpected"))
	if got.Kind != KindInternalError {
		t.Fatalf("expected InternalError for an unrecognized error, got %s", got.Kind)
	}
}

func TestParseMethod(t *testing.T) {
	cases := map[string]Method{
		"get":     MethodGet,
		"POST":    MethodPost,
		" put ":   MethodPut,
		"DELETE":  MethodDelete,
		"Patch":   MethodPatch,
		"HEAD":    MethodHead,
		"options": MethodOptions,
	}
	for in, want := range cases {
		got, ok := ParseMethod(in)
		if !ok {
			t.Fatalf("ParseMethod(%q) unexpectedly failed", in)
		}
		if got != want {
			t.Fatalf("ParseMethod(%q) = %s, want %s", in, got, want)
		}
	}

	if _, ok := ParseMethod("TRACE"); ok {
		t.Fatal("expected TRACE to be rejected")
	}
}

func TestStatusBucket(t *testing.T) {
	cases := []struct {
		code int
		want string
	}{
		{100, "1xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{0, "other"},
		{999, "other"},
	}
	for _, c := range cases {
		if got := StatusBucket(c.code); got != c.want {
			t.Fatalf("StatusBucket(%d) = %s, want %s", c.code, got, c.want)
		}
	}
}
