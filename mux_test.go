package cosched

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// parked spawns n tasks and takes them back off the ready queue so a
// test can place them in wait-sets by hand.
func parked(s *Scheduler, n int) []*Task {
	tasks := make([]*Task, 0, n)
	for i := 0; i < n; i++ {
		id := s.Spawn(new(scriptComputation))
		tasks = append(tasks, s.tasks[id])
	}
	s.ready.Clear()
	return tasks
}

func TestWakeOrder(t *testing.T) {
	r := require.New(t)
	p := &fakePoller{
		script: []func([]Socket, []Socket) ([]Socket, []Socket){
			func(reads, _ []Socket) ([]Socket, []Socket) { return reads, nil },
		},
	}
	s := newTestScheduler(t, p)

	sock := fakeSocket(5)
	tasks := parked(s, 3)
	a, b, c := tasks[0], tasks[1], tasks[2]

	s.WaitForRead(sock, a)
	s.WaitForRead(sock, b)
	s.WaitForWrite(sock, c)
	r.Equal(3, s.Waiting())

	s.poll(0)

	r.Equal(2, s.Ready())
	r.Same(a, s.ready.At(0))
	r.Same(b, s.ready.At(1))
	r.Equal(1, s.Waiting())
	r.Equal(1, s.writes.waiting(sock.Fd()))
	r.Zero(s.reads.len())
}

func TestWakeOrderAcrossSockets(t *testing.T) {
	r := require.New(t)
	p := new(fakePoller)
	s := newTestScheduler(t, p)

	tasks := parked(s, 4)
	s.WaitForWrite(fakeSocket(9), tasks[0])
	s.WaitForRead(fakeSocket(8), tasks[1])
	s.WaitForRead(fakeSocket(7), tasks[2])
	s.WaitForRead(fakeSocket(8), tasks[3])

	s.poll(0)

	r.Equal([]Socket{fakeSocket(8), fakeSocket(7), fakeSocket(9)}, p.polled[0])
	r.Equal(4, s.Ready())
	for i, want := range []*Task{tasks[1], tasks[3], tasks[2], tasks[0]} {
		r.Same(want, s.ready.At(i))
	}
}

func TestWaitReadResumes(t *testing.T) {
	r := require.New(t)
	p := new(fakePoller)
	s := newTestScheduler(t, p)

	sock := fakeSocket(4)
	var order []string
	for _, name := range []string{"A", "B"} {
		s.Spawn(Go(func(co *Co) error {
			co.WaitRead(sock)
			order = append(order, name)
			return nil
		}))
	}

	r.NoError(s.Run(context.Background()))

	r.Equal([]string{"A", "B"}, order)
	r.Equal([]time.Duration{Indefinite}, p.timeouts)
}

func TestPollZeroTimeoutWhileReady(t *testing.T) {
	r := require.New(t)
	p := &fakePoller{
		script: []func([]Socket, []Socket) ([]Socket, []Socket){nothingReady, nothingReady},
	}
	s := newTestScheduler(t, p)

	woken := false
	s.Spawn(Go(func(co *Co) error {
		co.WaitWrite(fakeSocket(3))
		woken = true
		return nil
	}))
	s.Spawn(Go(func(co *Co) error {
		for i := 0; i < 5; i++ {
			co.Pass()
		}
		return nil
	}))

	r.NoError(s.Run(context.Background()))

	r.True(woken)
	r.GreaterOrEqual(len(p.timeouts), 3)
	r.Equal(time.Duration(0), p.timeouts[0])
	r.Equal(time.Duration(0), p.timeouts[1])
}

func TestPollMaxBlock(t *testing.T) {
	r := require.New(t)
	p := new(fakePoller)
	s, err := New(Config{Poller: p, MaxBlock: 50 * time.Millisecond})
	r.NoError(err)
	defer s.Close()

	s.Spawn(Go(func(co *Co) error {
		co.WaitRead(fakeSocket(3))
		return nil
	}))

	r.NoError(s.Run(context.Background()))
	r.Equal([]time.Duration{50 * time.Millisecond}, p.timeouts)
}

func TestPollErrorTreatedAsNothingReady(t *testing.T) {
	r := require.New(t)

	for _, perr := range []error{syscall.EINTR, errors.New("bad descriptor")} {
		p := &fakePoller{err: perr}
		s := newTestScheduler(t, p)

		s.Spawn(Go(func(co *Co) error {
			co.WaitRead(fakeSocket(3))
			return nil
		}))

		r.NoError(s.Run(context.Background()))
		r.Len(p.timeouts, 2)
	}
}

func TestKillWaitingTask(t *testing.T) {
	r := require.New(t)
	p := &fakePoller{never: true}
	s := newTestScheduler(t, p)

	resumed := false
	blocked := s.Spawn(Go(func(co *Co) error {
		co.WaitRead(fakeSocket(3))
		resumed = true
		return nil
	}))
	s.Spawn(Go(func(co *Co) error {
		co.Pass()
		r.True(co.Kill(blocked))
		return nil
	}))

	r.NoError(s.Run(context.Background()))

	r.False(resumed)
	r.Zero(s.Waiting())
	r.Zero(s.Len())
}

func TestMultiplexerRetires(t *testing.T) {
	r := require.New(t)
	p := new(fakePoller)
	s := newTestScheduler(t, p)

	r.NoError(s.Run(context.Background()))
	r.Empty(p.timeouts)
	r.Zero(s.Len())
}

func TestKillMultiplexer(t *testing.T) {
	r := require.New(t)
	p := &fakePoller{never: true}
	s := newTestScheduler(t, p)

	s.Spawn(Go(func(co *Co) error {
		co.WaitRead(fakeSocket(3))
		return nil
	}))
	s.Spawn(Go(func(co *Co) error {
		// The multiplexer is spawned by Run right after these two.
		r.True(co.Kill(co.TaskID() + 1))
		return nil
	}))

	r.ErrorIs(s.Run(context.Background()), ErrDeadlock)
	r.Equal(1, s.Waiting())
}
