package cosched

import (
	"errors"
	"syscall"
	"time"
)

// multiplexer is the task that waits for socket readiness. Every time
// it is scheduled it polls the registered sockets once, re-queues the
// tasks whose socket became ready and yields back to the run loop.
//
// It blocks only when no other task is ready. Once no other task is
// ready and no socket has waiters nothing can ever be woken again, so
// it finishes and lets Run return.
type multiplexer struct {
	sched *Scheduler
}

func (m *multiplexer) Start() (any, bool) {
	return m.step()
}

func (m *multiplexer) Resume(any) (any, bool) {
	return m.step()
}

func (m *multiplexer) Cancel() {}

func (m *multiplexer) step() (any, bool) {
	s := m.sched

	if s.reads.len() == 0 && s.writes.len() == 0 {
		if s.ready.Len() == 0 {
			s.log.Debug("multiplexer idle, retiring", "tasks", len(s.tasks)-1)
			return nil, false
		}
		return nil, true
	}

	s.poll(s.pollTimeout())
	return nil, true
}

// pollTimeout returns zero while other tasks are ready, so polling
// never delays them, and blocks otherwise.
func (s *Scheduler) pollTimeout() time.Duration {
	if s.ready.Len() > 0 {
		return 0
	}
	if s.cfg.MaxBlock > 0 {
		return s.cfg.MaxBlock
	}
	return Indefinite
}

// poll runs one readiness check and wakes the tasks waiting on every
// ready socket, readers first, each list in registration order. A
// failed check counts as nothing ready.
func (s *Scheduler) poll(timeout time.Duration) {
	readable, writable, err := s.poller.Poll(s.reads.sockets(), s.writes.sockets(), timeout)
	if err != nil {
		if errors.Is(err, syscall.EINTR) {
			s.log.Debug("poll interrupted", "error", err)
		} else {
			s.log.Warn("poll failed", "error", err, "timeout", timeout)
		}
		return
	}

	for _, sock := range readable {
		s.wake(s.reads.take(sock.Fd()))
	}
	for _, sock := range writable {
		s.wake(s.writes.take(sock.Fd()))
	}
}

func (s *Scheduler) wake(tasks []*Task) {
	for _, t := range tasks {
		t.Log("WAKE")
		s.Enqueue(t)
	}
}
