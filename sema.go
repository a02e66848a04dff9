package cosched

import "github.com/gammazero/deque"

// sema is a FIFO of tasks parked outside the ready rotation. A parked
// task is only resumed when another task wakes it.
type sema struct {
	noCopy noCopy
	w      deque.Deque[*Task]
}

// acquire parks the task running co until wake hands it control.
func (s *sema) acquire(co *Co) {
	co.Yield(NewSystemCall(func(t *Task, _ *Scheduler) {
		t.Log("PARK")
		s.w.PushBack(t)
	}))
}

// wake re-queues the oldest parked task that is still alive and
// reports whether there was one.
func (s *sema) wake() bool {
	for s.w.Len() > 0 {
		t := s.w.PopFront()
		if t.killed {
			continue
		}
		t.Log("UNPARK")
		t.sched.Enqueue(t)
		return true
	}
	return false
}

// len returns the number of live parked tasks.
func (s *sema) len() int {
	n := 0
	for i := 0; i < s.w.Len(); i++ {
		if !s.w.At(i).killed {
			n++
		}
	}
	return n
}
