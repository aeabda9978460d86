//go:build !windows

package enginelink

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mediafx/enginelink/transport"
	"github.com/mediafx/enginelink/wire"
)

// fakeEngine dials the endpoint like a spawned engine would and serves a
// tiny media catalog until it is asked to terminate.
func runFakeEngine(address string, errc chan<- error) {
	conn, err := net.Dial("unix", address)
	if err != nil {
		errc <- err
		return
	}
	defer conn.Close()

	r := wire.NewFrameReader(conn)
	w := wire.NewFrameWriter(conn)
	var seq uint32

	for {
		env, err := r.ReadEnvelope()
		if err != nil {
			errc <- err
			return
		}
		switch env.Type {
		case TypeGetMediaItemsRequest:
			items, err := cbor.Marshal([]string{"movie-night", "concert-recording"})
			if err != nil {
				errc <- err
				return
			}
			seq++
			if err := w.WriteEnvelope(wire.NewResponse(seq, env.Seq, TypeGetMediaItemsResponse, items)); err != nil {
				errc <- err
				return
			}
			seq++
			if err := w.WriteEnvelope(wire.NewEvent(seq, CategoryPlayerEvent, []byte("PLAYING"))); err != nil {
				errc <- err
				return
			}
		case TypeApplicationTerminationRequest:
			errc <- nil
			return
		default:
			// Ignore anything else, like a real engine tolerating
			// unknown one-way messages.
		}
	}
}

func TestEndToEndOverUnixEndpoint(t *testing.T) {
	ep, err := transport.New()
	require.NoError(t, err)
	defer ep.Close()

	engineErr := make(chan error, 1)
	go runFakeEngine(ep.Address(), engineErr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := ep.Accept(ctx)
	require.NoError(t, err)

	ch := New(conn, Options{Logger: zaptest.NewLogger(t)})

	events := make(chan string, 1)
	ch.Subscribe(CategoryPlayerEvent, func(ev *wire.Envelope) {
		events <- string(ev.Payload)
	})

	resp, err := ch.Call(ctx, TypeGetMediaItemsRequest, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeGetMediaItemsResponse, resp.Type)

	var items []string
	require.NoError(t, cbor.Unmarshal(resp.Payload, &items))
	assert.Equal(t, []string{"movie-night", "concert-recording"}, items)

	select {
	case state := <-events:
		assert.Equal(t, "PLAYING", state)
	case <-time.After(5 * time.Second):
		t.Fatal("player event never arrived")
	}

	require.NoError(t, ch.Close())
	require.NoError(t, <-engineErr, "engine should exit cleanly on termination request")

	_, err = ch.Call(context.Background(), TypeGetPlayerStateRequest, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEngineDisconnectClosesChannel(t *testing.T) {
	ep, err := transport.New()
	require.NoError(t, err)
	defer ep.Close()

	dialErr := make(chan error, 1)
	engineConn := make(chan net.Conn, 1)
	go func() {
		conn, err := net.Dial("unix", ep.Address())
		dialErr <- err
		if err == nil {
			engineConn <- conn
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := ep.Accept(ctx)
	require.NoError(t, err)
	require.NoError(t, <-dialErr)

	ch := New(conn, Options{Logger: zaptest.NewLogger(t)})

	(<-engineConn).Close()

	select {
	case <-ch.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not observe engine disconnect")
	}
	assert.Equal(t, StateClosed, ch.State())
	assert.ErrorIs(t, ch.Err(), ErrEngineExited)
}

func TestOpenFailsForMissingEngineBinary(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Open(ctx, Options{
		EnginePath: "/nonexistent/engine-binary",
		Logger:     zaptest.NewLogger(t),
	})
	require.Error(t, err)
}

func TestOpenReportsEngineExitBeforeConnect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// /bin/true ignores the endpoint address and exits without connecting.
	_, err := Open(ctx, Options{
		EnginePath:    "/bin/true",
		AcceptTimeout: 8 * time.Second,
		Logger:        zaptest.NewLogger(t),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngineExited)
}
