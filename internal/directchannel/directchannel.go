// Package directchannel implements the one-shot, length-prefixed
// binary stream protocol used for direct peer-to-peer head exchange
// (spec.md §4.3, §6). The wire protocol is pinned to the exact ASCII
// string the legacy peer population expects.
package directchannel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	varint "github.com/multiformats/go-varint"

	"github.com/meshlog/oplogsync/internal/common"
	"github.com/meshlog/oplogsync/internal/logging"
)

// ProtocolID is the exact stream protocol identifier required for
// wire-compatibility with existing peers.
const ProtocolID protocol.ID = "/go-orbit-db/direct-channel/1.2.0"

// Message is one decoded channel-message event.
type Message struct {
	RemotePeer peer.ID
	Bytes      []byte
}

// StreamHost is the narrow subset of libp2p's host.Host the direct
// channel needs: register/unregister a protocol handler, and dial a
// peer under a protocol list.
type StreamHost interface {
	SetStreamHandler(pid protocol.ID, handler func(network.Stream))
	RemoveStreamHandler(pid protocol.ID)
	NewStream(ctx context.Context, p peer.ID, pids ...protocol.ID) (network.Stream, error)
}

// Channel is a direct-channel listener/sender bound to one StreamHost.
type Channel struct {
	host   StreamHost
	logger logging.Logger

	mu        sync.Mutex
	listeners []func(Message)
}

func New(host StreamHost, logger logging.Logger) *Channel {
	return &Channel{host: host, logger: logger}
}

// Listen registers the protocol handler. Each accepted stream is
// consumed greedily and decoded once; a successful decode fires every
// registered listener with a channel-message event.
func (c *Channel) Listen(onMessage func(Message)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, onMessage)
	c.mu.Unlock()

	c.host.SetStreamHandler(ProtocolID, func(s network.Stream) {
		c.handleIncoming(s)
	})
}

func (c *Channel) handleIncoming(s network.Stream) {
	defer s.Close()

	payload, ok := readFrame(s)
	if !ok {
		c.logger.Warn(context.Background(), "direct channel: dropped malformed frame")
		return
	}

	remote := s.Conn().RemotePeer()
	c.mu.Lock()
	listeners := append([]func(Message){}, c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		l(Message{RemotePeer: remote, Bytes: payload})
	}
}

// Send dials peer p under the protocol identifier and writes the two
// frames: the varint length prefix, then the payload. Any transport
// error, including an unsupported-protocol signal wrapped in
// ErrUnsupportedProtocol, propagates to the caller.
func (c *Channel) Send(ctx context.Context, p peer.ID, payload []byte) error {
	s, err := c.host.NewStream(ctx, p, ProtocolID)
	if err != nil {
		if isUnsupportedProtocolErr(err) {
			return fmt.Errorf("%w: %v", common.ErrUnsupportedProtocol, err)
		}
		return fmt.Errorf("%w: dial %s: %v", common.ErrTransport, p, err)
	}
	defer s.Close()

	if err := writeFrame(s, payload); err != nil {
		return fmt.Errorf("%w: write frame: %v", common.ErrTransport, err)
	}
	return nil
}

// Close unregisters the handler and drops all listeners.
func (c *Channel) Close() {
	c.host.RemoveStreamHandler(ProtocolID)
	c.mu.Lock()
	c.listeners = nil
	c.mu.Unlock()
}

// writeFrame emits the varint length prefix followed by payload.
func writeFrame(w io.Writer, payload []byte) error {
	if _, err := w.Write(varint.ToUvarint(uint64(len(payload)))); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFrame reads the two-frame message. If the announced length and
// the received payload length disagree, the message is silently
// dropped: ok is false and no error is surfaced (spec.md §4.3).
func readFrame(r io.Reader) (payload []byte, ok bool) {
	br := bufio.NewReader(r)
	length, err := varint.ReadUvarint(br)
	if err != nil {
		return nil, false
	}

	buf := make([]byte, length)
	n, err := io.ReadFull(br, buf)
	if err != nil || uint64(n) != length {
		return nil, false
	}
	return buf, true
}

// isUnsupportedProtocolErr heuristically detects libp2p's
// protocol-negotiation failure, which is not exposed as a typed
// sentinel error by go-libp2p's multistream negotiation.
func isUnsupportedProtocolErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "protocols not supported") ||
		strings.Contains(msg, "protocol not supported") ||
		strings.Contains(msg, "failed to negotiate protocol")
}
