package cosched

import (
	"context"
	"fmt"
	"runtime/trace"
	"strconv"
	"strings"
)

const (
	taskTraceTaskType   = "cosched-run"
	taskTraceRegionType = "cosched-resume"
	taskTraceCategory   = "cosched"
)

// TaskID identifies a task for its whole lifetime. Ids start at 1
// and are never reused.
type TaskID uint64

func (id TaskID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Task drives one Computation on behalf of a Scheduler.
type Task struct {
	id       TaskID
	comp     Computation
	ctx      context.Context
	sched    *Scheduler
	pending  any
	started  bool
	finished bool
	killed   bool

	// wait is the wait-set the task is blocked in, if any.
	wait    *waitSet
	waitKey uintptr

	// exit runs once when the task finishes or is killed.
	exit []func()
}

func newTask(id TaskID, comp Computation) *Task {
	return &Task{id: id, comp: comp, ctx: context.Background()}
}

// ID returns the task id.
func (t *Task) ID() TaskID {
	return t.id
}

// SetResumeValue sets the value injected into the computation the
// next time it is resumed. The value is cleared once used.
func (t *Task) SetResumeValue(v any) {
	t.pending = v
}

// Finished reports whether the computation has terminated.
func (t *Task) Finished() bool {
	return t.finished
}

// Run makes progress on the computation and returns what it yielded,
// or nil once it has terminated.
//
// The first call starts the computation and returns the value of its
// first suspension point without injecting a resume value; a value
// set before that stays pending for the following call. Failures
// raised by the computation are not recovered.
func (t *Task) Run() any {
	var (
		out      any
		ok       bool
		returned bool
	)

	// A computation that panicked cannot be resumed again.
	defer func() {
		if !returned {
			t.finished = true
		}
	}()

	if !t.started {
		t.started = true
		t.Log("START")
		out, ok = t.comp.Start()
	} else {
		v := t.pending
		t.pending = nil
		t.Log("RESUME")
		out, ok = t.comp.Resume(v)
	}
	returned = true

	if !ok {
		t.finished = true
		t.Log("DONE")
		return nil
	}
	return out
}

// err returns the failure a finished computation reported.
func (t *Task) err() error {
	if f, ok := t.comp.(interface{ Err() error }); ok {
		return f.Err()
	}
	return nil
}

// bind hands the task context to computations that accept one. It
// must happen before the first Run.
func (t *Task) bind(ctx context.Context) {
	t.ctx = withTaskContext(ctx, t)
	if b, ok := t.comp.(contextBinder); ok {
		b.bindContext(t.ctx)
	}
}

func (t *Task) onExit(fn func()) {
	t.exit = append(t.exit, fn)
}

func (t *Task) exited() {
	fns := t.exit
	t.exit = nil
	for _, fn := range fns {
		fn()
	}
}

func (t *Task) cancel() {
	if !t.finished {
		t.comp.Cancel()
	}
}

func (t *Task) Log(msg string) {
	if trace.IsEnabled() {
		var sb strings.Builder
		taskpath(&sb, t)
		sb.WriteString(msg)
		trace.Log(t.ctx, taskTraceCategory, sb.String())
	}
}

func (t *Task) Logf(format string, args ...any) {
	if trace.IsEnabled() {
		var sb strings.Builder
		taskpath(&sb, t)
		fmt.Fprintf(&sb, format, args...)
		trace.Log(t.ctx, taskTraceCategory, sb.String())
	}
}

func taskpath(sb *strings.Builder, t *Task) {
	sb.WriteString("task ")
	sb.WriteString(t.id.String())
	sb.WriteString("| ")
}
