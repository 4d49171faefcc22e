package directchannel

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshlog/oplogsync/internal/common"
	"github.com/meshlog/oplogsync/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.Default())
}

func TestSendListen_RoundTrip(t *testing.T) {
	host := newFakeHost()
	ch := New(host, testLogger())

	var received Message
	ch.Listen(func(m Message) { received = m })

	require.NoError(t, ch.Send(context.Background(), "peer-remote", []byte("hello")))
	host.deliver(ProtocolID)

	require.Equal(t, []byte("hello"), received.Bytes)
	require.Equal(t, "peer-remote", string(received.RemotePeer))
}

func TestSend_UnsupportedProtocolReturnsSentinel(t *testing.T) {
	host := newFakeHost()
	host.refuse = true
	ch := New(host, testLogger())

	err := ch.Send(context.Background(), "peer-remote", []byte("hello"))
	require.True(t, errors.Is(err, common.ErrUnsupportedProtocol))
}

func TestReadFrame_TruncatedPayloadIsSilentlyDropped(t *testing.T) {
	host := newFakeHost()
	ch := New(host, testLogger())

	var called bool
	ch.Listen(func(Message) { called = true })

	// Write a length prefix announcing more bytes than actually follow.
	buf := &pipeHalf{}
	require.NoError(t, writeFrame(buf, []byte("hello world")))
	buf.data = buf.data[:len(buf.data)-3] // truncate the payload

	ch.handleIncoming(&fakeStream{buf: buf})
	require.False(t, called)
}

func TestClose_RemovesHandlerAndListeners(t *testing.T) {
	host := newFakeHost()
	ch := New(host, testLogger())
	ch.Listen(func(Message) {})
	ch.Close()

	require.Empty(t, host.handlers)
	require.Empty(t, ch.listeners)
}
