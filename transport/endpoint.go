// Package transport creates the platform byte-stream rendezvous between the
// front end and the engine process: a Unix domain socket listener on POSIX
// systems, a named pipe on Windows. The front end creates the endpoint before
// the engine exists and passes its address on the engine's command line.
package transport

import (
	"context"
	"net"
)

// Endpoint is a single-connection rendezvous point. Exactly one peer (the
// spawned engine) is expected to connect.
type Endpoint interface {
	// Address is the platform-specific address string handed to the engine
	// (socket path or pipe name).
	Address() string

	// Accept blocks until the engine connects or ctx is done. Callers bound
	// the wait with a deadline and with engine process-exit detection; an
	// engine that never connects must not hang startup forever.
	Accept(ctx context.Context) (net.Conn, error)

	// Close tears the endpoint down and releases its address. Safe to call
	// more than once.
	Close() error
}

// New creates the endpoint for the current platform with a process-unique
// address. Bind/open failure is fatal to startup and is returned as-is.
func New() (Endpoint, error) {
	return newEndpoint()
}

// acceptResult carries the outcome of a blocking Accept call across the
// context-select boundary.
type acceptResult struct {
	conn net.Conn
	err  error
}

// acceptContext runs l.Accept in a goroutine so the wait can be abandoned
// when ctx is done. The listener is closed on cancellation to unblock the
// pending Accept.
func acceptContext(ctx context.Context, l net.Listener) (net.Conn, error) {
	ch := make(chan acceptResult, 1)
	go func() {
		conn, err := l.Accept()
		ch <- acceptResult{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		l.Close()
		// The goroutine delivers into the buffered channel; if it raced the
		// cancellation and won, close the orphaned connection.
		go func() {
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-ch:
		return r.conn, r.err
	}
}
