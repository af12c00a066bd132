// Package transfer holds the per-request state an event-loop worker
// carries from admission through completion: the request, its scratch
// handle, and the single-shot signal that delivers the outcome.
package transfer

import (
	"sync"
	"time"

	"github.com/bc-dunia/httpdrill/internal/dnscache"
	"github.com/bc-dunia/httpdrill/internal/handlepool"
	"github.com/bc-dunia/httpdrill/internal/httpmodel"
)

// Outcome is the result a Context's completion signal carries: exactly
// one of Response or Err is set.
type Outcome struct {
	Response *httpmodel.Response
	Err      *httpmodel.Error
}

// Callback is invoked exactly once when a transfer completes.
type Callback func(Outcome)

// ProgressFunc optionally observes streaming progress (bytes received so
// far) while a transfer is in flight. Most requests never set one.
type ProgressFunc func(bytesReceived int64)

// Context is the opaque per-request state threaded through a worker's
// queued → arming → in-flight → complete state machine. It is created on
// enqueue and destroyed after its completion signal fires exactly once.
type Context struct {
	Request *httpmodel.Request

	handle   *handlepool.Handle
	override *dnscache.Override

	Progress ProgressFunc

	EnqueuedAt time.Time
	ArmedAt    time.Time

	once     sync.Once
	callback Callback
	done     chan Outcome
}

// New creates a transfer context for req. callback, done, or both may be
// nil/unused — New never requires a consumer to pick exactly one signaling
// style (spec 4.D permits callback, single-shot future, or both).
func New(req *httpmodel.Request, callback Callback) *Context {
	return &Context{
		Request:    req,
		EnqueuedAt: time.Now(),
		callback:   callback,
		done:       make(chan Outcome, 1),
	}
}

// AttachHandle binds a pool handle to this context once admitted; Release
// returns it to the pool on completion.
func (c *Context) AttachHandle(h *handlepool.Handle) {
	c.handle = h
}

// AttachOverride binds the DNS override resolved for this transfer's host.
func (c *Context) AttachOverride(o *dnscache.Override) {
	c.override = o
}

// Handle returns the bound scratch handle, or nil if none has been
// attached yet (the context has not been armed).
func (c *Context) Handle() *handlepool.Handle {
	return c.handle
}

// Override returns the bound DNS override, if any.
func (c *Context) Override() *dnscache.Override {
	return c.override
}

// Complete fires the completion signal exactly once. Additional calls are
// no-ops — the worker's reap step is the only caller, but Complete is
// guarded regardless since the cancelled-in-flight race (spec open
// question 2) can otherwise produce a double-fire if a driver teardown and
// a natural completion both observe the same context.
func (c *Context) Complete(outcome Outcome) {
	c.once.Do(func() {
		if c.callback != nil {
			c.callback(outcome)
		}
		c.done <- outcome
		close(c.done)
	})
}

// Wait blocks for the completion signal, for callers using the
// single-shot-future style instead of (or in addition to) a callback.
func (c *Context) Wait() Outcome {
	return <-c.done
}

// Drop releases the context's owned resources: it clears the DNS override
// reference and returns the scratch handle to the handle pool. Drop must
// run after Complete; it does not itself fire the completion signal.
func (c *Context) Drop(handles *handlepool.Pool) {
	c.override = nil
	if c.handle != nil && handles != nil {
		handles.Release(c.handle)
		c.handle = nil
	}
}
