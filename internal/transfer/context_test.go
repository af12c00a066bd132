package transfer

import (
	"testing"

	"github.com/bc-dunia/httpdrill/internal/handlepool"
	"github.com/bc-dunia/httpdrill/internal/httpmodel"
)

func TestContext_CompleteFiresCallbackAndWait(t *testing.T) {
	var gotCallback Outcome
	called := 0
	ctx := New(&httpmodel.Request{URL: "http://example.test"}, func(o Outcome) {
		called++
		gotCallback = o
	})

	want := Outcome{Response: &httpmodel.Response{StatusCode: 200}}
	ctx.Complete(want)

	if called != 1 {
		t.Fatalf("expected callback to fire exactly once, got %d", called)
	}
	if gotCallback.Response.StatusCode != 200 {
		t.Fatalf("unexpected callback outcome: %+v", gotCallback)
	}

	waited := ctx.Wait()
	if waited.Response.StatusCode != 200 {
		t.Fatalf("unexpected Wait outcome: %+v", waited)
	}
}

func TestContext_CompleteIsSingleShot(t *testing.T) {
	called := 0
	ctx := New(&httpmodel.Request{}, func(Outcome) { called++ })

	ctx.Complete(Outcome{Response: &httpmodel.Response{StatusCode: 200}})
	ctx.Complete(Outcome{Err: httpmodel.NewCancelledError()})

	if called != 1 {
		t.Fatalf("expected exactly one callback invocation, got %d", called)
	}
}

func TestContext_DropReleasesHandle(t *testing.T) {
	pool := handlepool.New(1)
	h := pool.Acquire()

	ctx := New(&httpmodel.Request{}, nil)
	ctx.AttachHandle(h)

	if ctx.Handle() == nil {
		t.Fatal("expected handle to be attached")
	}

	before := pool.Available()
	ctx.Drop(pool)
	if pool.Available() != before+1 {
		t.Fatalf("expected handle released back to pool, available went from %d to %d", before, pool.Available())
	}
	if ctx.Handle() != nil {
		t.Fatal("expected handle reference cleared after Drop")
	}
}
