package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/webriots/cosched"
)

type server struct {
	ln       *net.TCPListener
	log      *slog.Logger
	maxConns int
}

// accept returns the computation that accepts connections and runs
// one echo task per connection in a group. Once maxConns connections
// were accepted it waits for them and logs the first connection
// failure.
func (srv *server) accept() cosched.Computation {
	return cosched.Go(func(co *cosched.Co) error {
		sock, err := cosched.SocketOf(srv.ln)
		if err != nil {
			return err
		}

		g := cosched.NewGroup(co.Context())
		for served := 0; srv.maxConns == 0 || served < srv.maxConns; served++ {
			co.WaitRead(sock)

			conn, err := srv.ln.AcceptTCP()
			if err != nil {
				return fmt.Errorf("accept: %w", err)
			}

			id := g.Go(co, srv.echo(conn))
			srv.log.Info("accepted connection", "remote", conn.RemoteAddr().String(), "task_id", id)
		}

		if err := g.Wait(co); err != nil {
			srv.log.Warn("connection failed", "error", err)
		}
		return nil
	})
}

// echo returns the member function that writes every complete line
// read from conn back to it. It ends cleanly when the client closes
// the connection.
func (srv *server) echo(conn *net.TCPConn) func(*cosched.Co) error {
	return func(co *cosched.Co) error {
		defer conn.Close()

		remote := conn.RemoteAddr().String()
		log := srv.log.With("remote", remote)

		sock, err := cosched.SocketOf(conn)
		if err != nil {
			return fmt.Errorf("%s: %w", remote, err)
		}

		var pending []byte
		buf := make([]byte, 4096)
		for {
			co.WaitRead(sock)
			n, rerr := conn.Read(buf)
			pending = append(pending, buf[:n]...)

			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}

				co.WaitWrite(sock)
				if _, err := conn.Write(pending[:i+1]); err != nil {
					return fmt.Errorf("%s: write: %w", remote, err)
				}
				log.Debug("echoed line", "bytes", i+1)
				pending = pending[i+1:]
			}

			switch {
			case errors.Is(rerr, io.EOF):
				log.Info("connection closed")
				return nil
			case rerr != nil:
				return fmt.Errorf("%s: read: %w", remote, rerr)
			}
		}
	}
}
