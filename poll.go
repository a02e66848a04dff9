package cosched

import (
	"errors"
	"fmt"
	"syscall"
	"time"
)

// Indefinite makes Poll block until a socket is ready or the poller
// is woken.
const Indefinite time.Duration = -1

var (
	// ErrPollUnsupported is returned by NewPoller on platforms
	// without a poll(2) implementation.
	ErrPollUnsupported = errors.New("cosched: readiness polling not supported on this platform")

	// ErrClosed is returned when using a closed poller or scheduler.
	ErrClosed = errors.New("cosched: closed")
)

// Socket is anything with a file descriptor that can be polled for
// readiness. The descriptor is the socket's identity in the
// wait-sets; *os.File satisfies it.
type Socket interface {
	Fd() uintptr
}

// Poller performs a select-style readiness check over many sockets.
//
// Poll reports which of reads are readable and which of writes are
// writable. A zero timeout returns immediately, a positive timeout
// bounds the wait and Indefinite blocks until something is ready or
// Wake is called. Poll must not close or otherwise mutate the sockets.
// Wake may be called from any goroutine.
type Poller interface {
	Poll(reads, writes []Socket, timeout time.Duration) (readable, writable []Socket, err error)
	Wake() error
	Close() error
}

// fdSocket is a bare descriptor borrowed from a syscall.Conn.
type fdSocket uintptr

func (s fdSocket) Fd() uintptr {
	return uintptr(s)
}

// SocketOf returns the descriptor of c (a net.Conn, net.Listener or
// similar) as a Socket. The connection keeps ownership of the
// descriptor and must outlive any wait on it.
func SocketOf(c syscall.Conn) (Socket, error) {
	rc, err := c.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("cosched: syscall conn: %w", err)
	}

	var fd uintptr
	if err := rc.Control(func(f uintptr) { fd = f }); err != nil {
		return nil, fmt.Errorf("cosched: control: %w", err)
	}
	return fdSocket(fd), nil
}
