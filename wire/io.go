package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameReader reads length-prefixed frames from a stream.
// It is not safe for concurrent use; the channel's single reader goroutine
// is the only caller.
type FrameReader struct {
	reader io.Reader
	limits Limits
}

// NewFrameReader creates a new FrameReader
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{
		reader: r,
		limits: DefaultLimits(),
	}
}

// SetLimits updates the reader's limits
func (fr *FrameReader) SetLimits(limits Limits) {
	fr.limits = limits
}

// ReadFrame reads a single frame payload from the stream.
// Short reads loop until the full frame is available; end-of-stream inside
// the length prefix or the body is an error, never a partial frame.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	// Read 4-byte length prefix (big-endian)
	var lengthBuf [4]byte
	if _, err := io.ReadFull(fr.reader, lengthBuf[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])

	if int(length) > fr.limits.MaxFrame {
		return nil, fmt.Errorf("frame size %d exceeds max_frame limit %d", length, fr.limits.MaxFrame)
	}
	if int(length) > MaxFrameHardLimit {
		return nil, fmt.Errorf("frame size %d exceeds hard limit %d", length, MaxFrameHardLimit)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(fr.reader, payload); err != nil {
		if err == io.EOF {
			// EOF mid-frame is a truncated frame, not a clean close.
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return payload, nil
}

// ReadEnvelope reads and decodes a single envelope from the stream.
func (fr *FrameReader) ReadEnvelope() (*Envelope, error) {
	payload, err := fr.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeEnvelope(payload)
}

// FrameWriter writes length-prefixed frames to a stream.
// Callers serialize access; the channel guards it with a write mutex so
// concurrent frames can never interleave on the wire.
type FrameWriter struct {
	writer io.Writer
	limits Limits
}

// NewFrameWriter creates a new FrameWriter
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{
		writer: w,
		limits: DefaultLimits(),
	}
}

// SetLimits updates the writer's limits
func (fw *FrameWriter) SetLimits(limits Limits) {
	fw.limits = limits
}

// WriteFrame writes a single frame payload to the stream.
func (fw *FrameWriter) WriteFrame(payload []byte) error {
	if len(payload) > fw.limits.MaxFrame {
		return fmt.Errorf("frame size %d exceeds max_frame limit %d", len(payload), fw.limits.MaxFrame)
	}
	if len(payload) > MaxFrameHardLimit {
		return fmt.Errorf("frame size %d exceeds hard limit %d", len(payload), MaxFrameHardLimit)
	}

	// Write 4-byte length prefix (big-endian)
	var lengthBuf [4]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))
	if _, err := fw.writer.Write(lengthBuf[:]); err != nil {
		return err
	}

	if _, err := fw.writer.Write(payload); err != nil {
		return err
	}

	return nil
}

// WriteEnvelope encodes and writes a single envelope to the stream.
func (fw *FrameWriter) WriteEnvelope(env *Envelope) error {
	payload, err := EncodeEnvelope(env)
	if err != nil {
		return err
	}
	return fw.WriteFrame(payload)
}
