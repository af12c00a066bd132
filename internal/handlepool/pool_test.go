package handlepool

import "testing"

func TestPool_AcquireReturnsCleanHandle(t *testing.T) {
	p := New(2)
	h := p.Acquire()
	h.Body.WriteString("dirty")
	h.Headers["x-test"] = []string{"1"}
	h.DNSOverrideAddr = "10.0.0.1"
	p.Release(h)

	reacquired := p.Acquire()
	if reacquired.Body.Len() != 0 {
		t.Fatalf("expected reset body, got %q", reacquired.Body.String())
	}
	if len(reacquired.Headers) != 0 {
		t.Fatalf("expected reset headers, got %v", reacquired.Headers)
	}
	if reacquired.DNSOverrideAddr != "" {
		t.Fatalf("expected reset DNS override, got %q", reacquired.DNSOverrideAddr)
	}
}

func TestPool_AcquireGrowsBeyondInitial(t *testing.T) {
	p := New(1)
	first := p.Acquire()
	second := p.Acquire()
	if first == second {
		t.Fatal("expected distinct handles when pool is exhausted")
	}
}

func TestPool_ReleaseMakesHandleAvailable(t *testing.T) {
	p := New(0)
	if p.Available() != 0 {
		t.Fatalf("expected empty pool, got %d available", p.Available())
	}
	h := p.Acquire()
	p.Release(h)
	if p.Available() != 1 {
		t.Fatalf("expected 1 available after release, got %d", p.Available())
	}
}
