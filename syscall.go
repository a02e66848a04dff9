package cosched

// SystemCall is a deferred operation over the yielding task and its
// scheduler. The run loop applies it once, synchronously, each time a
// computation yields it. The operation alone decides what happens to
// the task next: re-enqueue it, park it in a wait-set or leave it
// for someone else to wake.
type SystemCall struct {
	fn func(*Task, *Scheduler)
}

// NewSystemCall wraps fn as a SystemCall.
func NewSystemCall(fn func(*Task, *Scheduler)) *SystemCall {
	return &SystemCall{fn: fn}
}

// Apply runs the operation for t on s.
func (c *SystemCall) Apply(t *Task, s *Scheduler) {
	c.fn(t, s)
}

// WaitForRead parks the calling task until s is readable. The task
// leaves the ready rotation until the multiplexer wakes it.
func WaitForRead(s Socket) *SystemCall {
	return NewSystemCall(func(t *Task, sched *Scheduler) {
		sched.WaitForRead(s, t)
	})
}

// WaitForWrite parks the calling task until s is writable.
func WaitForWrite(s Socket) *SystemCall {
	return NewSystemCall(func(t *Task, sched *Scheduler) {
		sched.WaitForWrite(s, t)
	})
}

// SpawnTask starts c as a new task and resumes the caller with the
// new TaskID.
func SpawnTask(c Computation) *SystemCall {
	return NewSystemCall(func(t *Task, sched *Scheduler) {
		t.SetResumeValue(sched.Spawn(c))
		sched.Enqueue(t)
	})
}

// KillTask kills the task with the given id and resumes the caller
// with the boolean result of Scheduler.Kill.
func KillTask(id TaskID) *SystemCall {
	return NewSystemCall(func(t *Task, sched *Scheduler) {
		t.SetResumeValue(sched.Kill(id))
		sched.Enqueue(t)
	})
}

// CurrentTaskID resumes the caller with its own TaskID.
func CurrentTaskID() *SystemCall {
	return NewSystemCall(func(t *Task, sched *Scheduler) {
		t.SetResumeValue(t.ID())
		sched.Enqueue(t)
	})
}
