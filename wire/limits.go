package wire

// Default maximum frame size (4 MiB). The engine never legitimately sends
// frames anywhere near this; larger values indicate a corrupted stream.
const DefaultMaxFrame int = 4_194_304

// Hard limit on frame size (16 MiB) - prevents unbounded allocation from a
// misbehaving peer regardless of configured limits.
const MaxFrameHardLimit int = 16_777_216

// Limits bounds what the frame codec will read or write.
type Limits struct {
	MaxFrame int `cbor:"max_frame"`
}

// DefaultLimits returns the default codec limits
func DefaultLimits() Limits {
	return Limits{MaxFrame: DefaultMaxFrame}
}
