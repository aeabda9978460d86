package enginelink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mediafx/enginelink/process"
	"github.com/mediafx/enginelink/transport"
	"github.com/mediafx/enginelink/wire"
)

// State is the channel lifecycle state.
type State int32

const (
	StateStarting State = iota
	StateOpen
	StateClosed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int32(s))
	}
}

// Default bound on waiting for the spawned engine to connect back.
const DefaultAcceptTimeout = 10 * time.Second

// Default capacity of the dispatch queue between the reader goroutine and
// the listener dispatch goroutine.
const DefaultDispatchBuffer = 256

// Options configures Open and New.
type Options struct {
	// EnginePath is the engine binary to spawn (Open only).
	EnginePath string
	// EngineArgs are passthrough CLI arguments appended after the endpoint
	// address on the engine's command line (Open only).
	EngineArgs []string
	// AcceptTimeout bounds the wait for the engine to connect during startup.
	// Zero means DefaultAcceptTimeout.
	AcceptTimeout time.Duration
	// Limits bounds frame sizes on both directions. Zero value means
	// wire.DefaultLimits.
	Limits wire.Limits
	// DispatchBuffer is the dispatch queue capacity. Zero means
	// DefaultDispatchBuffer.
	DispatchBuffer int
	// Logger receives channel diagnostics; nil means a nop logger. The
	// channel never installs global loggers.
	Logger *zap.Logger
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.AcceptTimeout <= 0 {
		opts.AcceptTimeout = DefaultAcceptTimeout
	}
	if opts.Limits.MaxFrame <= 0 {
		opts.Limits = wire.DefaultLimits()
	}
	if opts.DispatchBuffer <= 0 {
		opts.DispatchBuffer = DefaultDispatchBuffer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return opts
}

// dispatchItem is one decoded envelope queued for listener dispatch.
type dispatchItem struct {
	env *wire.Envelope
}

// Channel is the single live IPC connection to the engine process.
//
// At most one Channel exists per process lifetime: it is created once at
// application start, passed by reference to every consumer, and closed once
// at shutdown (or closed by the first fatal read error). It is never
// recreated mid-session.
type Channel struct {
	state atomic.Int32

	conn    net.Conn
	reader  *wire.FrameReader
	writer  *wire.FrameWriter
	writeMu sync.Mutex // serializes encode + length + payload per frame

	seq atomic.Uint32

	pendingMu sync.Mutex
	pending   map[uint32]chan *wire.Envelope
	reason    error // close cause; guarded by pendingMu, set before closed is closed

	events     *listenerRegistry
	handlersMu sync.RWMutex
	handlers   map[string]RequestHandler

	dispatchCh chan dispatchItem
	closed     chan struct{}
	closeOnce  sync.Once

	// Owned lifecycle collaborators; nil when the channel was constructed
	// over an externally managed connection.
	endpoint transport.Endpoint
	engine   *process.Engine

	log *zap.Logger
}

// Open creates the endpoint, spawns the engine with the endpoint address as
// its first argument, waits for it to connect, and returns the live channel
// with its read loop running. Any startup failure (bind, spawn, accept) is
// fatal: the engine is torn down and no partial channel is returned.
func Open(ctx context.Context, opts Options) (*Channel, error) {
	opts = opts.withDefaults()
	log := opts.Logger

	endpoint, err := transport.New()
	if err != nil {
		return nil, fmt.Errorf("enginelink: creating endpoint: %w", err)
	}

	engine, err := process.Launch(opts.EnginePath, endpoint.Address(), opts.EngineArgs, log)
	if err != nil {
		endpoint.Close()
		return nil, fmt.Errorf("enginelink: %w", err)
	}

	conn, err := acceptEngine(ctx, endpoint, engine, opts.AcceptTimeout)
	if err != nil {
		engine.Shutdown()
		endpoint.Close()
		return nil, err
	}

	log.Debug("engine connected", zap.String("address", endpoint.Address()))
	return newChannel(conn, opts, endpoint, engine), nil
}

// acceptEngine waits for the engine's connection, bounded by the accept
// timeout and by the engine dying before it ever connects.
func acceptEngine(ctx context.Context, endpoint transport.Endpoint, engine *process.Engine, timeout time.Duration) (net.Conn, error) {
	acceptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// An engine that exits during startup will never connect; abandon the
	// accept instead of waiting out the full timeout.
	go func() {
		select {
		case <-engine.Exited():
			cancel()
		case <-acceptCtx.Done():
		}
	}()

	conn, err := endpoint.Accept(acceptCtx)
	if err != nil {
		select {
		case <-engine.Exited():
			return nil, fmt.Errorf("%w before connecting: %v", ErrEngineExited, engine.ExitErr())
		default:
		}
		return nil, fmt.Errorf("enginelink: waiting for engine connection: %w", err)
	}
	return conn, nil
}

// New wraps an already-established connection to an engine peer. The caller
// keeps ownership of any process behind the connection. Used by tests and by
// embedders with their own transport arrangements.
func New(conn net.Conn, opts Options) *Channel {
	return newChannel(conn, opts.withDefaults(), nil, nil)
}

func newChannel(conn net.Conn, opts Options, endpoint transport.Endpoint, engine *process.Engine) *Channel {
	reader := wire.NewFrameReader(conn)
	reader.SetLimits(opts.Limits)
	writer := wire.NewFrameWriter(conn)
	writer.SetLimits(opts.Limits)

	c := &Channel{
		conn:       conn,
		reader:     reader,
		writer:     writer,
		pending:    make(map[uint32]chan *wire.Envelope),
		events:     newListenerRegistry(),
		handlers:   make(map[string]RequestHandler),
		dispatchCh: make(chan dispatchItem, opts.DispatchBuffer),
		closed:     make(chan struct{}),
		endpoint:   endpoint,
		engine:     engine,
		log:        opts.Logger,
	}
	c.state.Store(int32(StateOpen))

	go c.dispatchLoop()
	go c.readLoop()

	return c
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Done is closed when the channel reaches StateClosed. Err reports why.
func (c *Channel) Done() <-chan struct{} {
	return c.closed
}

// Err returns the close cause once the channel is closed, nil while it is
// open. The cause always wraps ErrClosed; engine-side stream loss also wraps
// ErrEngineExited.
func (c *Channel) Err() error {
	select {
	case <-c.closed:
	default:
		return nil
	}
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return c.reason
}

// Call sends a request and waits for its correlated response. The pending
// call is keyed by the request's sequence id; the response must carry that id
// in reply_to. ctx bounds the wait; expiry removes the pending entry so a
// late response is logged and dropped rather than delivered to nobody.
//
// A Call on a closed channel fails immediately. A write failure fails this
// call only; the channel stays open.
func (c *Channel) Call(ctx context.Context, msgType string, payload []byte) (*wire.Envelope, error) {
	seq := c.seq.Add(1)
	respCh := make(chan *wire.Envelope, 1)

	c.pendingMu.Lock()
	select {
	case <-c.closed:
		reason := c.reason
		c.pendingMu.Unlock()
		return nil, reason
	default:
	}
	c.pending[seq] = respCh
	c.pendingMu.Unlock()

	env := wire.NewRequest(seq, msgType, payload)
	c.log.Debug("sending request", zap.String("type", msgType), zap.Uint32("seq", seq))
	if err := c.write(env); err != nil {
		c.removePending(seq)
		return nil, fmt.Errorf("enginelink: sending %s: %w", msgType, err)
	}

	select {
	case resp := <-respCh:
		return resp, nil
	case <-ctx.Done():
		c.removePending(seq)
		return nil, ctx.Err()
	case <-c.closed:
		return nil, c.Err()
	}
}

// Notify sends a fire-and-forget message. Write failures are logged, not
// raised: the engine protocol treats one-way sends as best effort, and
// callers have no response to miss. This asymmetry with Call is deliberate
// and matches the engine's expectations.
func (c *Channel) Notify(msgType string, payload []byte) {
	if c.State() != StateOpen {
		c.log.Warn("notify on closed channel", zap.String("type", msgType))
		return
	}

	env := wire.NewRequest(c.seq.Add(1), msgType, payload)
	if err := c.write(env); err != nil {
		c.log.Error("failed to send message",
			zap.String("type", msgType),
			zap.Error(err))
	}
}

// Reply answers an engine-initiated request. The response carries the
// request envelope's sequence id in reply_to so the engine can correlate it.
func (c *Channel) Reply(req *wire.Envelope, msgType string, payload []byte) error {
	if c.State() != StateOpen {
		return c.Err()
	}

	env := wire.NewResponse(c.seq.Add(1), req.Seq, msgType, payload)
	if err := c.write(env); err != nil {
		return fmt.Errorf("enginelink: replying %s to seq %d: %w", msgType, req.Seq, err)
	}
	return nil
}

// Subscribe registers a callback for an event category and returns a
// registration id for Unsubscribe.
func (c *Channel) Subscribe(category string, fn EventCallback) int {
	return c.events.subscribe(category, fn)
}

// Unsubscribe removes a previously registered event callback.
func (c *Channel) Unsubscribe(id int) {
	c.events.unsubscribe(id)
}

// Handle registers the handler for engine-initiated requests of the given
// message type. At most one handler per type; the last registration wins.
func (c *Channel) Handle(msgType string, h RequestHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[msgType] = h
}

// Close shuts the channel down: it asks the engine to terminate, closes the
// stream and endpoint, kills the engine if still alive, and fails every
// outstanding call. Idempotent.
func (c *Channel) Close() error {
	if c.State() == StateOpen {
		// Best-effort termination request before tearing the stream down.
		// Bounded by a write deadline so an engine that stopped reading
		// cannot stall shutdown.
		c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		c.Notify(TypeApplicationTerminationRequest, nil)
		c.conn.SetWriteDeadline(time.Time{})
	}
	c.closeWith(nil)
	return nil
}

// write serializes the encode + frame write so two concurrent envelopes can
// never interleave on the wire.
func (c *Channel) write(env *wire.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writer.WriteEnvelope(env)
}

// readLoop is the only code path that reads from the stream. It runs for the
// channel's entire open lifetime; any read or decode error is fatal to the
// channel (a bad length prefix invalidates all subsequent framing, so no
// resynchronization is attempted).
func (c *Channel) readLoop() {
	for {
		env, err := c.reader.ReadEnvelope()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
				c.closeWith(fmt.Errorf("%w: stream closed: %v", ErrEngineExited, err))
			} else {
				c.closeWith(fmt.Errorf("reading frame: %w", err))
			}
			return
		}

		switch env.Kind {
		case wire.KindResponse:
			c.completePending(env)
		case wire.KindEvent, wire.KindRequest:
			// Hand off to the dispatch goroutine so a slow listener cannot
			// stall frame reading and starve pending call completions.
			select {
			case c.dispatchCh <- dispatchItem{env: env}:
			case <-c.closed:
				return
			}
		}
	}
}

// dispatchLoop delivers events and engine requests to their listeners,
// preserving wire arrival order.
func (c *Channel) dispatchLoop() {
	for {
		select {
		case item := <-c.dispatchCh:
			c.deliver(item.env)
		case <-c.closed:
			return
		}
	}
}

func (c *Channel) deliver(env *wire.Envelope) {
	switch env.Kind {
	case wire.KindEvent:
		c.events.dispatch(env.Type, env, c.log)
	case wire.KindRequest:
		c.handlersMu.RLock()
		h := c.handlers[env.Type]
		c.handlersMu.RUnlock()
		if h == nil {
			c.log.Debug("engine request without handler", zap.String("type", env.Type))
			return
		}
		invokeHandler(h, env, c.log)
	}
}

func invokeHandler(h RequestHandler, req *wire.Envelope, log *zap.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("request handler panicked",
				zap.String("type", req.Type),
				zap.Any("panic", rec))
		}
	}()
	h(req)
}

// completePending resolves the pending call the response correlates to.
// Exactly-once: the entry is removed before delivery, and the per-call
// channel is buffered so the reader never blocks here.
func (c *Channel) completePending(env *wire.Envelope) {
	replyTo := *env.ReplyTo // decode guarantees presence on responses

	c.pendingMu.Lock()
	respCh, ok := c.pending[replyTo]
	if ok {
		delete(c.pending, replyTo)
	}
	c.pendingMu.Unlock()

	if !ok {
		// Timed-out, cancelled, or never-issued request id.
		c.log.Warn("response for unknown request",
			zap.Uint32("reply_to", replyTo),
			zap.String("type", env.Type))
		return
	}
	respCh <- env
}

func (c *Channel) removePending(seq uint32) {
	c.pendingMu.Lock()
	delete(c.pending, seq)
	c.pendingMu.Unlock()
}

// closeWith transitions the channel to Closed exactly once: records the
// cause, wakes every outstanding call, closes the stream (stopping the
// blocked reader), tears down the endpoint, and terminates the engine.
func (c *Channel) closeWith(cause error) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))

		c.pendingMu.Lock()
		if cause != nil {
			c.reason = fmt.Errorf("%w: %w", ErrClosed, cause)
		} else {
			c.reason = ErrClosed
		}
		outstanding := len(c.pending)
		c.pending = make(map[uint32]chan *wire.Envelope)
		close(c.closed)
		c.pendingMu.Unlock()

		if c.conn != nil {
			c.conn.Close()
		}
		if c.endpoint != nil {
			c.endpoint.Close()
		}
		if c.engine != nil {
			c.engine.Shutdown()
		}

		if cause != nil {
			c.log.Error("channel closed",
				zap.Int("outstanding_calls", outstanding),
				zap.Error(cause))
		} else {
			c.log.Info("channel closed", zap.Int("outstanding_calls", outstanding))
		}
	})
}
