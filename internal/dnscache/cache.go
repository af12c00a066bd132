// Package dnscache resolves hostnames once per run and hands back a cached
// address, amortizing the system resolver's cost across the millions of
// transfers a high-rate run can issue against the same handful of hosts.
package dnscache

import (
	"context"
	"net"
	"sync"
)

// Resolver abstracts hostname lookup so tests can substitute a fixture
// without touching the real resolver.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Cache resolves hostnames once per run and caches the chosen address.
// Shared across all workers in the event loop: reads take the RWMutex's
// read lock (shared, effectively lock-free under no write contention);
// only the first insert for a given host takes the write lock. Resolution
// itself always happens outside the lock so a slow lookup never blocks
// readers of already-cached hosts.
type Cache struct {
	resolver Resolver

	mu      sync.RWMutex
	entries map[string]string // host -> resolved address
}

// New creates a DNS cache backed by the given resolver. Pass nil to use
// net.DefaultResolver.
func New(resolver Resolver) *Cache {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Cache{
		resolver: resolver,
		entries:  make(map[string]string),
	}
}

// Resolve returns a cached address for host, populating the cache on first
// lookup. Returns "" if resolution fails; callers classify that as a
// DnsError, not a panic.
func (c *Cache) Resolve(ctx context.Context, host string) string {
	c.mu.RLock()
	if addr, ok := c.entries[host]; ok {
		c.mu.RUnlock()
		return addr
	}
	c.mu.RUnlock()

	addr, err := c.lookup(ctx, host)
	if err != nil || addr == "" {
		return ""
	}

	c.mu.Lock()
	if existing, ok := c.entries[host]; ok {
		c.mu.Unlock()
		return existing
	}
	c.entries[host] = addr
	c.mu.Unlock()
	return addr
}

// lookup runs outside any lock. For loopback hosts it prefers an IPv6
// result to match the transport layer's own dialing defaults (most local
// test harnesses and mock servers bind dual-stack loopback, and Go's
// dialer tries IPv6 first there); otherwise it takes the resolver's first
// answer.
func (c *Cache) lookup(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	addrs, err := c.resolver.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", nil
	}

	if isLoopbackHost(host, addrs) {
		for _, a := range addrs {
			if ip := net.ParseIP(a); ip != nil && ip.To4() == nil {
				return a, nil
			}
		}
	}
	return addrs[0], nil
}

func isLoopbackHost(host string, addrs []string) bool {
	if host == "localhost" {
		return true
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.IsLoopback() {
			return true
		}
	}
	return false
}

// OverrideList produces a host-override entry the transfer engine injects
// into its dial context (via httptrace/DialContext) so the driver connects
// to the cached address without re-resolving. Returns nil if host has no
// cached (or resolvable) entry.
func (c *Cache) OverrideList(ctx context.Context, host, port string) *Override {
	addr := c.Resolve(ctx, host)
	if addr == "" {
		return nil
	}
	return &Override{Host: host, Port: port, Addr: addr}
}

// Override is the opaque handle the event-loop worker injects into a
// transfer so its dialer skips resolution for an already-cached host.
type Override struct {
	Host string
	Port string
	Addr string
}

// Clear empties the cache. Called between runs — entries never expire
// inside a run.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]string)
}

// Len reports the number of cached hosts, for diagnostics/tests.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
