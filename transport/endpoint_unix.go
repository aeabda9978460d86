//go:build !windows

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// unixEndpoint is a Unix domain socket listener bound at a temp-dir path
// unique to this process launch.
type unixEndpoint struct {
	path      string
	listener  net.Listener
	closeOnce sync.Once
	closeErr  error
}

func newEndpoint() (Endpoint, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("enginelink-%s.sock", uuid.NewString()))

	// Remove any stale socket file left behind by a crashed run.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale socket %s: %w", path, err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to bind socket %s: %w", path, err)
	}

	return &unixEndpoint{path: path, listener: listener}, nil
}

func (e *unixEndpoint) Address() string {
	return e.path
}

func (e *unixEndpoint) Accept(ctx context.Context) (net.Conn, error) {
	return acceptContext(ctx, e.listener)
}

func (e *unixEndpoint) Close() error {
	e.closeOnce.Do(func() {
		// A cancelled Accept already closed the listener; that is not a
		// teardown failure.
		if err := e.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			e.closeErr = err
		}
		// net "unix" listeners unlink on close, but not when the process was
		// killed mid-teardown; removing explicitly keeps the temp dir clean.
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) && e.closeErr == nil {
			e.closeErr = err
		}
	})
	return e.closeErr
}
