//go:build linux || darwin || freebsd || netbsd || openbsd

package cosched

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"fortio.org/safecast"
	"golang.org/x/sys/unix"
)

const (
	pollReadable = unix.POLLIN | unix.POLLHUP | unix.POLLERR | unix.POLLNVAL
	pollWritable = unix.POLLOUT | unix.POLLHUP | unix.POLLERR | unix.POLLNVAL
)

// unixPoller is a Poller over poll(2). The read end of a non-blocking
// pipe always sits in the poll set so Wake can interrupt a blocked
// Poll.
type unixPoller struct {
	mu     sync.Mutex // guards closed and the pipe against Wake
	closed bool
	rd, wr int

	pfds  []unix.PollFd
	index map[uintptr]int
}

// NewPoller returns the platform Poller.
func NewPoller() (Poller, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, fmt.Errorf("cosched: wake pipe: %w", err)
	}
	for _, fd := range p {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, fmt.Errorf("cosched: wake pipe: %w", err)
		}
		unix.CloseOnExec(fd)
	}
	return &unixPoller{rd: p[0], wr: p[1], index: make(map[uintptr]int)}, nil
}

func (p *unixPoller) Poll(reads, writes []Socket, timeout time.Duration) ([]Socket, []Socket, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, nil, ErrClosed
	}

	p.pfds = append(p.pfds[:0], unix.PollFd{Fd: int32(p.rd), Events: unix.POLLIN}) //nolint:gosec // pipe fds fit in int32
	clear(p.index)

	readAt, err := p.register(reads, unix.POLLIN)
	if err != nil {
		return nil, nil, err
	}
	writeAt, err := p.register(writes, unix.POLLOUT)
	if err != nil {
		return nil, nil, err
	}

	n, err := unix.Poll(p.pfds, pollMillis(timeout))
	if err != nil {
		return nil, nil, fmt.Errorf("cosched: poll: %w", err)
	}
	if n == 0 {
		return nil, nil, nil
	}

	if p.pfds[0].Revents != 0 {
		p.drain()
	}

	var readable, writable []Socket
	for i, s := range reads {
		if p.pfds[readAt[i]].Revents&pollReadable != 0 {
			readable = append(readable, s)
		}
	}
	for i, s := range writes {
		if p.pfds[writeAt[i]].Revents&pollWritable != 0 {
			writable = append(writable, s)
		}
	}
	return readable, writable, nil
}

// register adds socks to the poll set and returns, per socket, the
// index of its PollFd. A descriptor present in both directions gets a
// single entry with both events.
func (p *unixPoller) register(socks []Socket, events int16) ([]int, error) {
	at := make([]int, len(socks))
	for i, s := range socks {
		key := s.Fd()
		if j, ok := p.index[key]; ok {
			p.pfds[j].Events |= events
			at[i] = j
			continue
		}

		fd, err := safecast.Conv[int32](uint64(key))
		if err != nil {
			return nil, fmt.Errorf("cosched: descriptor %d: %w", key, err)
		}
		p.index[key] = len(p.pfds)
		at[i] = len(p.pfds)
		p.pfds = append(p.pfds, unix.PollFd{Fd: fd, Events: events})
	}
	return at, nil
}

func (p *unixPoller) drain() {
	var buf [64]byte
	for {
		if _, err := unix.Read(p.rd, buf[:]); err != nil {
			return
		}
	}
}

func (p *unixPoller) Wake() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	_, err := unix.Write(p.wr, []byte{0})
	if err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("cosched: wake: %w", err)
	}
	return nil
}

func (p *unixPoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return errors.Join(unix.Close(p.rd), unix.Close(p.wr))
}

// pollMillis converts a Poll timeout to poll(2) milliseconds. Positive
// durations round up so a short timeout never turns into a busy poll.
func pollMillis(d time.Duration) int {
	switch {
	case d < 0:
		return -1
	case d == 0:
		return 0
	}

	whole := d / time.Millisecond
	if d%time.Millisecond != 0 {
		whole++
	}

	ms, err := safecast.Conv[int](int64(whole))
	if err != nil || ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return ms
}
