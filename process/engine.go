// Package process supervises the native engine subprocess: it spawns the
// engine with the transport endpoint address as its first argument, surfaces
// the engine's stdio on the front end's own streams, and owns the process
// lifetime until shutdown.
package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// Engine is a spawned native engine process.
type Engine struct {
	cmd     *exec.Cmd
	done    chan struct{}
	exitErr error // valid once done is closed
	log     *zap.Logger
}

// Launch starts the engine binary. The command line is
//
//	<binary> <address> [extraArgs...]
//
// with stdio inherited so engine logs surface alongside the front end's.
// Spawn failure is fatal and returned to the caller; no Engine is created.
func Launch(binary string, address string, extraArgs []string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}

	args := append([]string{address}, extraArgs...)
	cmd := exec.Command(binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine %q: %w", binary, err)
	}
	log.Info("engine process started",
		zap.String("binary", binary),
		zap.String("address", address),
		zap.Int("pid", cmd.Process.Pid))

	e := &Engine{
		cmd:  cmd,
		done: make(chan struct{}),
		log:  log,
	}
	go e.reap()

	return e, nil
}

// reap waits for the process and records its exit.
func (e *Engine) reap() {
	e.exitErr = e.cmd.Wait()
	if e.exitErr != nil {
		e.log.Warn("engine process exited", zap.Error(e.exitErr))
	} else {
		e.log.Debug("engine process exited cleanly")
	}
	close(e.done)
}

// Pid returns the engine's process id.
func (e *Engine) Pid() int {
	return e.cmd.Process.Pid
}

// Exited is closed once the engine process has terminated, for whatever
// reason. Callers use it to bound the startup accept and to detect the
// engine dying mid-session.
func (e *Engine) Exited() <-chan struct{} {
	return e.done
}

// ExitErr returns the process exit error. Only meaningful after Exited is
// closed; nil means a clean zero exit.
func (e *Engine) ExitErr() error {
	select {
	case <-e.done:
		return e.exitErr
	default:
		return nil
	}
}

// Shutdown terminates the engine if it is still alive and reaps it.
// Tolerates a process that has already exited.
func (e *Engine) Shutdown() {
	select {
	case <-e.done:
		return
	default:
	}

	if err := e.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		e.log.Debug("failed to kill engine process", zap.Error(err))
	}
	<-e.done
}
