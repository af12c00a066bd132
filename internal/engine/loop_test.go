package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bc-dunia/httpdrill/internal/httpmodel"
	"github.com/bc-dunia/httpdrill/internal/transfer"
)

func TestLoop_RoundRobinSubmitsAcrossWorkers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	loop := NewLoop(LoopConfig{NumWorkers: 4, MaxConcurrentTotal: 16})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)
	defer loop.Stop(false)

	var mu sync.Mutex
	completed := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		ok := loop.Submit(&httpmodel.Request{URL: srv.URL, Method: httpmodel.MethodGet, TimeoutMs: 2000}, func(o transfer.Outcome) {
			mu.Lock()
			completed++
			mu.Unlock()
			wg.Done()
		})
		if !ok {
			wg.Done()
			t.Fatal("expected submit to succeed")
		}
	}

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for all submissions to complete")
	}

	mu.Lock()
	defer mu.Unlock()
	if completed != 20 {
		t.Fatalf("expected 20 completions, got %d", completed)
	}
}

func TestCeilDiv(t *testing.T) {
	cases := []struct{ total, shards, want int }{
		{100, 4, 25},
		{101, 4, 26},
		{1, 16, 1},
		{0, 4, 1},
	}
	for _, c := range cases {
		if got := ceilDiv(c.total, c.shards); got != c.want {
			t.Fatalf("ceilDiv(%d, %d) = %d, want %d", c.total, c.shards, got, c.want)
		}
	}
}

func TestNewLoop_AutoWorkerCountCapped(t *testing.T) {
	loop := NewLoop(LoopConfig{MaxConcurrentTotal: 100})
	if loop.NumWorkers() < 1 || loop.NumWorkers() > maxAutoWorkers {
		t.Fatalf("expected worker count in [1, %d], got %d", maxAutoWorkers, loop.NumWorkers())
	}
}

func TestLoop_SubmitAsyncFutureResolves(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	loop := NewLoop(LoopConfig{NumWorkers: 2, MaxConcurrentTotal: 8})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)
	defer loop.Stop(false)

	future, ok := loop.SubmitAsync(&httpmodel.Request{URL: srv.URL, Method: httpmodel.MethodGet, TimeoutMs: 2000})
	if !ok {
		t.Fatal("expected SubmitAsync to accept the request")
	}
	if future.ID == 0 {
		t.Fatal("expected a nonzero submission id")
	}

	outcome := future.Wait()
	if outcome.Err != nil {
		t.Fatalf("unexpected error outcome: %v", outcome.Err)
	}
	if outcome.Response == nil || outcome.Response.StatusCode != http.StatusTeapot {
		t.Fatalf("expected 418 response, got %+v", outcome.Response)
	}
}

func TestLoop_ExecuteBatchResolvesAllFutures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	loop := NewLoop(LoopConfig{NumWorkers: 2, MaxConcurrentTotal: 8})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)
	defer loop.Stop(false)

	reqs := make([]*httpmodel.Request, 5)
	for i := range reqs {
		reqs[i] = &httpmodel.Request{URL: srv.URL, Method: httpmodel.MethodGet, TimeoutMs: 2000}
	}

	result := loop.ExecuteBatch(reqs)
	if result.Accepted != len(reqs) {
		t.Fatalf("expected all %d requests accepted, got %d", len(reqs), result.Accepted)
	}
	if len(result.Futures) != len(reqs) {
		t.Fatalf("expected %d futures, got %d", len(reqs), len(result.Futures))
	}

	for _, f := range result.Futures {
		outcome := f.Wait()
		if outcome.Err != nil {
			t.Fatalf("unexpected error outcome: %v", outcome.Err)
		}
	}
}

func TestLoop_StatsReflectsProcessedCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	loop := NewLoop(LoopConfig{NumWorkers: 2, MaxConcurrentTotal: 8})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)
	defer loop.Stop(false)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		loop.Submit(&httpmodel.Request{URL: srv.URL, Method: httpmodel.MethodGet, TimeoutMs: 2000}, func(transfer.Outcome) {
			wg.Done()
		})
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for {
		stats := loop.Stats()
		if stats.Processed >= 6 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected Stats().Processed >= 6, got %+v", stats)
		}
		time.Sleep(time.Millisecond)
	}
}
