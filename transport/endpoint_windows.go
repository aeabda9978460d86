//go:build windows

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/Microsoft/go-winio"
	"github.com/google/uuid"
)

// pipeEndpoint is a named pipe under the OS pipe namespace, unique to this
// process launch.
type pipeEndpoint struct {
	name      string
	listener  net.Listener
	closeOnce sync.Once
	closeErr  error
}

func newEndpoint() (Endpoint, error) {
	name := fmt.Sprintf(`\\.\pipe\enginelink-%s`, uuid.NewString())

	listener, err := winio.ListenPipe(name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open pipe %s: %w", name, err)
	}

	return &pipeEndpoint{name: name, listener: listener}, nil
}

func (e *pipeEndpoint) Address() string {
	return e.name
}

func (e *pipeEndpoint) Accept(ctx context.Context) (net.Conn, error) {
	return acceptContext(ctx, e.listener)
}

func (e *pipeEndpoint) Close() error {
	e.closeOnce.Do(func() {
		// A cancelled Accept already closed the listener; that is not a
		// teardown failure.
		if err := e.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			e.closeErr = err
		}
	})
	return e.closeErr
}
