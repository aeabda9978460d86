// Package enginelink implements the single IPC channel between a media-center
// front end and its out-of-process native engine.
//
// The engine is spawned as a child process and connects back over a platform
// byte stream (Unix domain socket or Windows named pipe). Both directions
// carry length-prefixed CBOR envelopes; the channel core runs one dedicated
// reader goroutine, serializes writes, correlates responses to pending calls
// by sequence id, and fans unsolicited events out to registered listeners
// without blocking the read loop.
//
// A Channel is an explicitly constructed object with a defined lifecycle:
// created once at application start via Open (or New over an existing
// connection), shared by reference, and closed once at shutdown. There is no
// reconnect; a read failure or engine exit closes the channel for good and
// fails every outstanding call.
package enginelink
