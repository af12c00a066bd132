package dnscache

import (
	"context"
	"errors"
	"testing"
)

type fakeResolver struct {
	hosts map[string][]string
	calls int
}

func (f *fakeResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	f.calls++
	addrs, ok := f.hosts[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	return addrs, nil
}

func TestCache_ResolveCachesResult(t *testing.T) {
	fr := &fakeResolver{hosts: map[string][]string{"example.com": {"93.184.216.34"}}}
	c := New(fr)

	got := c.Resolve(context.Background(), "example.com")
	if got != "93.184.216.34" {
		t.Fatalf("expected resolved address, got %q", got)
	}
	c.Resolve(context.Background(), "example.com")
	if fr.calls != 1 {
		t.Fatalf("expected one underlying lookup, got %d", fr.calls)
	}
}

func TestCache_LoopbackPrefersIPv6(t *testing.T) {
	fr := &fakeResolver{hosts: map[string][]string{
		"localhost": {"127.0.0.1", "::1"},
	}}
	c := New(fr)

	got := c.Resolve(context.Background(), "localhost")
	if got != "::1" {
		t.Fatalf("expected IPv6 loopback preference, got %q", got)
	}
}

func TestCache_IPLiteralSkipsResolver(t *testing.T) {
	fr := &fakeResolver{hosts: map[string][]string{}}
	c := New(fr)

	got := c.Resolve(context.Background(), "10.0.0.5")
	if got != "10.0.0.5" {
		t.Fatalf("expected literal passthrough, got %q", got)
	}
	if fr.calls != 0 {
		t.Fatal("expected no resolver calls for an IP literal")
	}
}

func TestCache_FailedLookupReturnsEmpty(t *testing.T) {
	fr := &fakeResolver{hosts: map[string][]string{}}
	c := New(fr)

	got := c.Resolve(context.Background(), "nonexistent.invalid")
	if got != "" {
		t.Fatalf("expected empty string for failed lookup, got %q", got)
	}
}

func TestCache_ClearDropsEntries(t *testing.T) {
	fr := &fakeResolver{hosts: map[string][]string{"example.com": {"1.2.3.4"}}}
	c := New(fr)
	c.Resolve(context.Background(), "example.com")
	if c.Len() != 1 {
		t.Fatalf("expected 1 cached entry, got %d", c.Len())
	}
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected cache cleared, got %d entries", c.Len())
	}
}
