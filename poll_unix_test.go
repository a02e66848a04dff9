//go:build linux || darwin || freebsd || netbsd || openbsd

package cosched

import (
	"bufio"
	"context"
	"math"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// countingPoller counts Poll calls on the run loop goroutine.
type countingPoller struct {
	Poller
	calls    int
	timeouts []time.Duration
}

func (p *countingPoller) Poll(reads, writes []Socket, timeout time.Duration) ([]Socket, []Socket, error) {
	p.calls++
	p.timeouts = append(p.timeouts, timeout)
	return p.Poller.Poll(reads, writes, timeout)
}

func newPipe(t *testing.T) (*os.File, *os.File) {
	t.Helper()

	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		pr.Close()
		pw.Close()
	})
	return pr, pw
}

func newUnixPoller(t *testing.T) Poller {
	t.Helper()

	p, err := NewPoller()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestUnixPollerReadiness(t *testing.T) {
	r := require.New(t)
	p := newUnixPoller(t)
	pr, pw := newPipe(t)

	readable, writable, err := p.Poll([]Socket{pr}, []Socket{pw}, 0)
	r.NoError(err)
	r.Empty(readable)
	r.Equal([]Socket{pw}, writable)

	_, err = pw.Write([]byte("x"))
	r.NoError(err)

	readable, writable, err = p.Poll([]Socket{pr}, nil, Indefinite)
	r.NoError(err)
	r.Equal([]Socket{pr}, readable)
	r.Empty(writable)
}

func TestUnixPollerTimeout(t *testing.T) {
	r := require.New(t)
	p := newUnixPoller(t)
	pr, _ := newPipe(t)

	start := time.Now()
	readable, _, err := p.Poll([]Socket{pr}, nil, 20*time.Millisecond)
	r.NoError(err)
	r.Empty(readable)
	r.GreaterOrEqual(time.Since(start), 15*time.Millisecond)
}

func TestUnixPollerWake(t *testing.T) {
	r := require.New(t)
	p := newUnixPoller(t)
	pr, _ := newPipe(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = p.Wake()
	}()

	readable, writable, err := p.Poll([]Socket{pr}, nil, Indefinite)
	r.NoError(err)
	r.Empty(readable)
	r.Empty(writable)

	// The wake byte was drained.
	readable, _, err = p.Poll([]Socket{pr}, nil, 0)
	r.NoError(err)
	r.Empty(readable)
}

func TestUnixPollerClosed(t *testing.T) {
	r := require.New(t)
	p, err := NewPoller()
	r.NoError(err)

	r.NoError(p.Close())
	r.NoError(p.Close())

	_, _, err = p.Poll(nil, nil, 0)
	r.ErrorIs(err, ErrClosed)
	r.ErrorIs(p.Wake(), ErrClosed)
}

func TestPollMillis(t *testing.T) {
	r := require.New(t)

	r.Equal(-1, pollMillis(Indefinite))
	r.Equal(0, pollMillis(0))
	r.Equal(1, pollMillis(time.Nanosecond))
	r.Equal(2, pollMillis(1500*time.Microsecond))
	r.Equal(250, pollMillis(250*time.Millisecond))
	r.Equal(math.MaxInt32, pollMillis(time.Duration(math.MaxInt64)))
}

func TestRunDoesNotSpin(t *testing.T) {
	r := require.New(t)
	p := &countingPoller{Poller: newUnixPoller(t)}
	s := newTestScheduler(t, p)
	pr, _ := newPipe(t)

	s.Spawn(Go(func(co *Co) error {
		co.WaitRead(pr)
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	r.ErrorIs(s.Run(ctx), context.DeadlineExceeded)
	r.LessOrEqual(p.calls, 3)
	r.Equal(Indefinite, p.timeouts[0])
}

func TestRunWakesOnPipe(t *testing.T) {
	r := require.New(t)
	s := newTestScheduler(t, newUnixPoller(t))
	pr, pw := newPipe(t)

	var got string
	s.Spawn(Go(func(co *Co) error {
		co.WaitRead(pr)
		buf := make([]byte, 16)
		n, err := pr.Read(buf)
		got = string(buf[:n])
		return err
	}))

	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = pw.Write([]byte("ready"))
	}()

	r.NoError(s.Run(context.Background()))
	r.Equal("ready", got)
}

func TestEchoOverTCP(t *testing.T) {
	r := require.New(t)
	s := newTestScheduler(t, newUnixPoller(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	r.NoError(err)
	defer ln.Close()

	lsock, err := SocketOf(ln.(*net.TCPListener))
	r.NoError(err)

	handle := func(conn net.Conn) Computation {
		return Go(func(co *Co) error {
			defer conn.Close()

			sock, err := SocketOf(conn.(*net.TCPConn))
			if err != nil {
				return err
			}

			co.WaitRead(sock)
			buf := make([]byte, 64)
			n, err := conn.Read(buf)
			if err != nil {
				return err
			}

			co.WaitWrite(sock)
			_, err = conn.Write(buf[:n])
			return err
		})
	}

	s.Spawn(Go(func(co *Co) error {
		co.WaitRead(lsock)
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		co.Spawn(handle(conn))
		return nil
	}))

	reply := make(chan string, 1)
	go func() {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			reply <- err.Error()
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("ping\n"))
		line, _ := bufio.NewReader(conn).ReadString('\n')
		reply <- line
	}()

	r.NoError(s.Run(context.Background()))
	r.Equal("ping\n", <-reply)
}
