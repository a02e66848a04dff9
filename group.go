package cosched

import "context"

// Group runs a set of member tasks and collects the first error any
// of them returns. A failing member cancels the group context; the
// other members are not killed and can observe it through Context.
type Group struct {
	noCopy noCopy
	ctx    context.Context
	cancel context.CancelCauseFunc
	wg     WaitGroup
	err    error
}

// NewGroup returns a Group whose context is derived from ctx.
func NewGroup(ctx context.Context) *Group {
	ctx, cancel := context.WithCancelCause(ctx)
	return &Group{ctx: ctx, cancel: cancel}
}

// Context returns the group context. It is cancelled with the first
// member error as its cause, or when Wait returns.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Go starts fn as a member task spawned by the task running co and
// returns its id. A member counts as done when it returns or is
// killed. Its error is reported by Wait and does not stop the
// scheduler.
func (g *Group) Go(co *Co, fn func(*Co) error) TaskID {
	g.wg.Add(1)

	member := Go(func(co *Co) error {
		if err := fn(co); err != nil && g.err == nil {
			g.err = err
			g.cancel(err)
		}
		return nil
	})

	return co.yield(NewSystemCall(func(t *Task, s *Scheduler) {
		id := s.Spawn(member)
		s.tasks[id].onExit(g.wg.Done)
		t.SetResumeValue(id)
		s.Enqueue(t)
	})).(TaskID)
}

// Wait parks the task running co until every member is done and
// returns the first member error, or nil.
func (g *Group) Wait(co *Co) error {
	g.wg.Wait(co)
	g.cancel(g.err)
	return g.err
}
