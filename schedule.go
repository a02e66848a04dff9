package cosched

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/trace"
	"time"

	"github.com/gammazero/deque"
)

// ErrDeadlock is returned by Run when the ready queue drains while
// tasks are still parked with nothing left to wake them.
var ErrDeadlock = errors.New("cosched: all tasks are asleep")

// Config configures a Scheduler.
type Config struct {
	// MaxBlock caps how long the multiplexer blocks when no other
	// task is ready. Zero blocks until a socket is ready.
	MaxBlock time.Duration

	// Poller performs the readiness checks. Nil uses NewPoller; the
	// scheduler then owns it and closes it on Close.
	Poller Poller

	// Logger receives scheduler events. Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns a configuration that blocks indefinitely on
// the platform poller and discards logs.
func DefaultConfig() Config {
	return Config{}
}

// Scheduler runs tasks cooperatively on the goroutine that calls Run.
// It is not safe for concurrent use: every method except Run must be
// called either before Run, after it returns, or from a system call
// applied by the run loop.
type Scheduler struct {
	cfg       Config
	log       *slog.Logger
	poller    Poller
	ownPoller bool

	nextID  TaskID
	tasks   map[TaskID]*Task
	ready   deque.Deque[*Task]
	reads   waitSet
	writes  waitSet
	current *Task
	running bool
	closed  bool
}

// New creates a Scheduler from cfg.
func New(cfg Config) (*Scheduler, error) {
	s := &Scheduler{
		cfg:    cfg,
		log:    cfg.Logger,
		poller: cfg.Poller,
		tasks:  make(map[TaskID]*Task),
	}

	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if s.poller == nil {
		p, err := NewPoller()
		if err != nil {
			return nil, err
		}
		s.poller = p
		s.ownPoller = true
	}

	return s, nil
}

// Spawn creates a task for c, queues it and returns its id.
func (s *Scheduler) Spawn(c Computation) TaskID {
	s.nextID++

	t := newTask(s.nextID, c)
	t.sched = s
	s.tasks[t.id] = t
	s.Enqueue(t)

	s.log.Debug("spawn task", "task_id", t.id)
	return t.id
}

// Enqueue appends t to the tail of the ready queue. Killed tasks are
// ignored.
func (s *Scheduler) Enqueue(t *Task) {
	if t.killed {
		return
	}
	s.ready.PushBack(t)
}

// Kill removes the task with the given id. It reports false if no
// such task exists. A killed task is never resumed again; it is taken
// out of the ready queue and of any wait-set it is blocked in. Killing
// the running task takes effect when its current resume returns.
func (s *Scheduler) Kill(id TaskID) bool {
	t, ok := s.tasks[id]
	if !ok {
		return false
	}

	delete(s.tasks, id)
	t.killed = true

	if i := s.ready.Index(func(x *Task) bool { return x == t }); i >= 0 {
		s.ready.Remove(i)
	}
	if t.wait != nil {
		t.wait.remove(t.waitKey, t)
	}
	if t != s.current {
		t.cancel()
	}
	t.exited()

	t.Log("KILL")
	s.log.Debug("kill task", "task_id", id)
	return true
}

// WaitForRead parks t until s is readable.
func (s *Scheduler) WaitForRead(sock Socket, t *Task) {
	t.Logf("WAIT READ %d", sock.Fd())
	s.reads.add(sock, t)
}

// WaitForWrite parks t until s is writable.
func (s *Scheduler) WaitForWrite(sock Socket, t *Task) {
	t.Logf("WAIT WRITE %d", sock.Fd())
	s.writes.add(sock, t)
}

// Len returns the number of live tasks, including the multiplexer
// while Run is active.
func (s *Scheduler) Len() int {
	return len(s.tasks)
}

// Ready returns the number of tasks in the ready queue.
func (s *Scheduler) Ready() int {
	return s.ready.Len()
}

// Waiting returns the number of tasks blocked on socket readiness.
func (s *Scheduler) Waiting() int {
	n := 0
	for _, w := range []*waitSet{&s.reads, &s.writes} {
		for _, e := range w.entries {
			n += e.tasks.Len()
		}
	}
	return n
}

// Run spawns the multiplexer and drives tasks until the ready queue
// is empty. It returns nil once every task has finished, ctx's error
// if ctx is done first, ErrDeadlock if tasks remain that nothing can
// wake, or the error of the first computation that fails. Panics
// raised by computations propagate to the caller.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if s.running {
		panic("cosched: Run called while running")
	}
	s.running = true
	defer func() {
		s.running = false
		s.current = nil
	}()

	var tracer *trace.Task
	ctx, tracer = trace.NewTask(ctx, taskTraceTaskType)
	defer tracer.End()

	stop := context.AfterFunc(ctx, func() {
		if err := s.poller.Wake(); err != nil {
			s.log.Debug("wake poller", "error", err)
		}
	})
	defer stop()

	mux := s.Spawn(&multiplexer{sched: s})
	defer s.Kill(mux)

	trace.Log(ctx, taskTraceCategory, "LOOP")
	s.log.Debug("run loop start", "tasks", len(s.tasks))

	for s.ready.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		task := s.ready.PopFront()
		if task.killed {
			continue
		}
		if !task.started {
			task.bind(ctx)
		}

		s.current = task
		out := task.Run()
		s.current = nil

		if task.killed {
			task.cancel()
			continue
		}

		if call, ok := out.(*SystemCall); ok && call != nil {
			call.Apply(task, s)
			continue
		}

		if task.Finished() {
			delete(s.tasks, task.id)
			task.exited()
			if err := task.err(); err != nil {
				return fmt.Errorf("cosched: task %v: %w", task.id, err)
			}
			continue
		}

		s.Enqueue(task)
	}

	trace.Log(ctx, taskTraceCategory, "LOOP DONE")

	if n := len(s.tasks); n > 0 {
		return fmt.Errorf("%w: %d tasks blocked", ErrDeadlock, n)
	}
	return nil
}

// Close cancels every live computation and releases the poller if
// the scheduler created it. It must not be called while Run is
// active.
func (s *Scheduler) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	for id := range s.tasks {
		s.Kill(id)
	}
	s.ready.Clear()

	if s.ownPoller {
		return s.poller.Close()
	}
	return nil
}
