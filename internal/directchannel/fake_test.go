package directchannel

import (
	"context"
	"errors"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

// fakeStream is a minimal network.Stream-shaped wrapper around a
// single-direction in-memory buffer, enough to exercise frame
// encode/decode without a real libp2p host.
type fakeStream struct {
	network.Stream
	buf *pipeHalf
}

type pipeHalf struct {
	data []byte
}

func (p *pipeHalf) Write(b []byte) (int, error) {
	p.data = append(p.data, b...)
	return len(b), nil
}

func (p *pipeHalf) Read(b []byte) (int, error) {
	if len(p.data) == 0 {
		return 0, errors.New("fake stream: no more data")
	}
	n := copy(b, p.data)
	p.data = p.data[n:]
	return n, nil
}

func (s *fakeStream) Read(b []byte) (int, error)  { return s.buf.Read(b) }
func (s *fakeStream) Write(b []byte) (int, error) { return s.buf.Write(b) }
func (s *fakeStream) Close() error                { return nil }
func (s *fakeStream) Conn() network.Conn          { return fakeConn{} }

type fakeConn struct{ network.Conn }

func (fakeConn) RemotePeer() peer.ID { return "peer-remote" }

// fakeHost is a minimal StreamHost: NewStream hands back a stream
// backed by a shared buffer, and the test drives the registered
// handler explicitly over the same buffer once the client side has
// finished writing — avoiding any goroutine race in what is otherwise
// a one-shot, unbuffered protocol.
type fakeHost struct {
	handlers map[protocol.ID]func(network.Stream)
	refuse   bool
	lastBuf  *pipeHalf
}

func newFakeHost() *fakeHost {
	return &fakeHost{handlers: map[protocol.ID]func(network.Stream){}}
}

func (h *fakeHost) SetStreamHandler(pid protocol.ID, handler func(network.Stream)) {
	h.handlers[pid] = handler
}

func (h *fakeHost) RemoveStreamHandler(pid protocol.ID) {
	delete(h.handlers, pid)
}

func (h *fakeHost) NewStream(_ context.Context, _ peer.ID, pids ...protocol.ID) (network.Stream, error) {
	if h.refuse {
		return nil, errors.New("protocols not supported: [" + string(pids[0]) + "]")
	}
	if _, ok := h.handlers[pids[0]]; !ok {
		return nil, errors.New("protocols not supported: [" + string(pids[0]) + "]")
	}

	buf := &pipeHalf{}
	h.lastBuf = buf
	return &fakeStream{buf: buf}, nil
}

// deliver invokes the registered handler for pid with a fresh stream
// view over the buffer NewStream most recently handed out, simulating
// the remote side receiving what the client wrote.
func (h *fakeHost) deliver(pid protocol.ID) {
	handler := h.handlers[pid]
	handler(&fakeStream{buf: h.lastBuf})
}
