package enginelink

import "errors"

// ErrClosed is returned by every operation attempted on a closed channel,
// and wraps the close cause on calls that were outstanding when the channel
// failed. All framing/transport failures surface through it as one
// channel-level error; business errors travel inside successfully framed
// response payloads and never look like ErrClosed.
var ErrClosed = errors.New("enginelink: channel closed")

// ErrEngineExited indicates the engine process terminated: either it died
// before connecting during startup, or it closed its end of the stream
// mid-session. UIs should treat this as "engine connection lost" rather than
// an ordinary operation failure.
var ErrEngineExited = errors.New("enginelink: engine process exited")
