package cosched

import (
	"context"
	"runtime/trace"

	"github.com/webriots/coro"
)

// Computation is a suspendable unit of work driven by a Task.
//
// Start runs the computation up to its first suspension point and
// returns the value yielded there. Resume injects v at the current
// suspension point and runs to the next one. Both report false once
// the computation has terminated. Cancel releases an unfinished
// computation; it is never resumed afterwards.
//
// A computation may also implement Err() error; a non-nil result
// after termination stops the scheduler's run loop.
type Computation interface {
	Start() (any, bool)
	Resume(v any) (any, bool)
	Cancel()
}

type contextBinder interface {
	bindContext(ctx context.Context)
}

// Co is the handle a function computation suspends through.
type Co struct {
	ctx   context.Context
	yield func(any) any
}

// Context returns the context of the task running the computation.
// It carries the Task (see TaskFromContext) and is cancelled when
// the scheduler's Run context is.
func (co *Co) Context() context.Context {
	return co.ctx
}

// Yield suspends the computation with v and returns the value the
// scheduler injects when it resumes it.
func (co *Co) Yield(v any) any {
	return co.yield(v)
}

// Pass yields control to the scheduler with no effect.
func (co *Co) Pass() {
	co.yield(nil)
}

// TaskID returns the id of the calling task.
func (co *Co) TaskID() TaskID {
	return co.yield(CurrentTaskID()).(TaskID)
}

// Spawn starts c as a new task and returns its id.
func (co *Co) Spawn(c Computation) TaskID {
	return co.yield(SpawnTask(c)).(TaskID)
}

// Kill kills the task with the given id and reports whether it
// existed.
func (co *Co) Kill(id TaskID) bool {
	return co.yield(KillTask(id)).(bool)
}

// WaitRead suspends the calling task until s is readable.
func (co *Co) WaitRead(s Socket) {
	co.yield(WaitForRead(s))
}

// WaitWrite suspends the calling task until s is writable.
func (co *Co) WaitWrite(s Socket) {
	co.yield(WaitForWrite(s))
}

// funcComputation runs a Go function as a coroutine.
type funcComputation struct {
	fn     func(*Co) error
	co     Co
	resume func(any) (any, bool)
	stop   func()
	err    error
}

// Go returns a Computation that runs fn as a coroutine. fn suspends
// whenever it calls one of the yielding methods of the Co it is
// given; its return value is reported through Err.
func Go(fn func(*Co) error) Computation {
	c := &funcComputation{fn: fn}
	c.co.ctx = context.Background()

	c.resume, c.stop = coro.New(
		func(yield func(any) any, suspend func() any) (z any) {
			region := trace.StartRegion(c.co.ctx, taskTraceRegionType)
			defer region.End()

			c.co.yield = yield
			c.err = c.fn(&c.co)

			return
		},
	)

	return c
}

func (c *funcComputation) bindContext(ctx context.Context) {
	c.co.ctx = ctx
}

func (c *funcComputation) Start() (any, bool) {
	return c.resume(nil)
}

func (c *funcComputation) Resume(v any) (any, bool) {
	return c.resume(v)
}

func (c *funcComputation) Cancel() {
	c.stop()
}

func (c *funcComputation) Err() error {
	return c.err
}
