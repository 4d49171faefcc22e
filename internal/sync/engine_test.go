package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/meshlog/oplogsync/internal/common"
	"github.com/meshlog/oplogsync/internal/dialect"
	"github.com/meshlog/oplogsync/internal/directchannel"
	"github.com/meshlog/oplogsync/internal/logging"
	"github.com/meshlog/oplogsync/internal/marshal"
	"github.com/meshlog/oplogsync/internal/oplog/codec"
	"github.com/meshlog/oplogsync/internal/oplog/entry"
	"github.com/meshlog/oplogsync/internal/oplog/identity"
)

// --- fakes -----------------------------------------------------------

type fakeLog struct {
	id    string
	mu    sync.Mutex
	heads []*entry.Entry
}

func (l *fakeLog) ID() string { return l.id }

func (l *fakeLog) Heads(ctx context.Context) ([]*entry.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*entry.Entry{}, l.heads...), nil
}

func (l *fakeLog) Append(ctx context.Context, e *entry.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.heads = append(l.heads, e)
	return nil
}

type fakeChannel struct {
	mu      sync.Mutex
	sent    map[peer.ID][]byte
	onMsg   func(directchannel.Message)
	refuse  bool
	sendErr error
}

func (c *fakeChannel) Listen(onMessage func(directchannel.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMsg = onMessage
}

func (c *fakeChannel) Send(ctx context.Context, p peer.ID, payload []byte) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sent == nil {
		c.sent = map[peer.ID][]byte{}
	}
	c.sent[p] = payload
	return nil
}

func (c *fakeChannel) Close() {}

func (c *fakeChannel) deliver(from peer.ID, payload []byte) {
	c.mu.Lock()
	h := c.onMsg
	c.mu.Unlock()
	if h != nil {
		h(directchannel.Message{RemotePeer: from, Bytes: payload})
	}
}

type fakePubSub struct {
	sub *fakeSubscription
}

func (p *fakePubSub) Subscribe(topic string) (Subscription, error) {
	if p.sub == nil {
		p.sub = &fakeSubscription{peerEvents: make(chan PeerEvent, 8), messages: make(chan *Message, 8)}
	}
	return p.sub, nil
}

func (p *fakePubSub) Publish(ctx context.Context, topic string, data []byte) error { return nil }

type fakeSubscription struct {
	peerEvents chan PeerEvent
	messages   chan *Message
}

func (s *fakeSubscription) Next(ctx context.Context) (*Message, error) {
	select {
	case m := <-s.messages:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
func (s *fakeSubscription) EventHandler() (TopicEventHandler, error) {
	return &fakeEventHandler{s}, nil
}
func (s *fakeSubscription) Cancel() {}

type fakeEventHandler struct{ s *fakeSubscription }

func (h *fakeEventHandler) NextPeerEvent(ctx context.Context) (PeerEvent, error) {
	select {
	case e := <-h.s.peerEvents:
		return e, nil
	case <-ctx.Done():
		return PeerEvent{}, ctx.Err()
	}
}
func (h *fakeEventHandler) Cancel() {}

// --- helpers -----------------------------------------------------------

func newTestEngine(t *testing.T, log Log) (*Engine, *fakeChannel, *fakePubSub) {
	t.Helper()
	ch := &fakeChannel{}
	ps := &fakePubSub{}
	e := New(log, ps, ch, codec.NewIPLDCBORCodec(), dialect.V2, logging.NewSlogLogger(slog.Default()))
	return e, ch, ps
}

func errUnsupported() error {
	return fmt.Errorf("%w: protocols not supported", common.ErrUnsupportedProtocol)
}

func marshalHeadsForTest(t *testing.T, logID string, heads ...map[string]any) ([]byte, error) {
	t.Helper()
	wireHeads := make([]any, 0, len(heads))
	for _, h := range heads {
		wireHeads = append(wireHeads, h)
	}
	return marshal.Marshal(context.Background(), marshal.Envelope{Address: logID, Heads: wireHeads}, dialect.V2, codec.NewIPLDCBORCodec())
}

func makeHeadEntry(t *testing.T) *entry.Entry {
	t.Helper()
	provider, err := identity.GenerateEd25519Provider()
	require.NoError(t, err)
	c := codec.NewIPLDCBORCodec()

	e, err := entry.Create(context.Background(), c, provider, "log-1", map[string]any{"op": "PUT", "key": "k", "value": []byte("hello")}, dialect.V2, entry.CreateOptions{})
	require.NoError(t, err)
	e, err = entry.Encode(context.Background(), c, e)
	require.NoError(t, err)
	return e
}

// --- tests -----------------------------------------------------------

func TestHandlePeerJoin_SendsLocalHeads(t *testing.T) {
	head := makeHeadEntry(t)
	log := &fakeLog{id: "log-1", heads: []*entry.Entry{head}}
	e, ch, _ := newTestEngine(t, log)

	e.mu.Lock()
	e.started = true
	e.peers = map[peer.ID]peerState{}
	e.mu.Unlock()

	e.handlePeerJoin(context.Background(), peer.ID("remote-peer"))

	require.Contains(t, e.Peers(), peer.ID("remote-peer"))
	ch.mu.Lock()
	payload, ok := ch.sent[peer.ID("remote-peer")]
	ch.mu.Unlock()
	require.True(t, ok)
	require.NotEmpty(t, payload)
}

func TestHandlePeerJoin_UnsupportedProtocolIsToleratedAndRemovesPeer(t *testing.T) {
	log := &fakeLog{id: "log-1"}
	e, ch, _ := newTestEngine(t, log)
	ch.sendErr = errUnsupported()

	e.mu.Lock()
	e.started = true
	e.peers = map[peer.ID]peerState{}
	e.mu.Unlock()

	e.handlePeerJoin(context.Background(), peer.ID("remote-peer"))

	require.NotContains(t, e.Peers(), peer.ID("remote-peer"))
	e.mu.Lock()
	_, exists := e.peers[peer.ID("remote-peer")]
	e.mu.Unlock()
	require.False(t, exists)
}

func TestDeliverHeads_AppendsValidHeadAndRejectsTampered(t *testing.T) {
	head := makeHeadEntry(t)
	wm, err := entry.ToWireMap(head)
	require.NoError(t, err)

	log := &fakeLog{id: "log-1"}
	e, _, _ := newTestEngine(t, log)
	events := e.Events()

	e.mu.Lock()
	e.started = true
	e.peers = map[peer.ID]peerState{}
	e.mu.Unlock()

	e.deliverHeads(context.Background(), peer.ID("remote-peer"), []any{wm})
	heads, err := log.Heads(context.Background())
	require.NoError(t, err)
	require.Len(t, heads, 1)

	evt := <-events
	require.Equal(t, EventJoin, evt.Type)

	tampered := map[string]any{}
	for k, v := range wm {
		tampered[k] = v
	}
	tampered["hash"] = "deliberately-wrong-hash"
	e.deliverHeads(context.Background(), peer.ID("remote-peer"), []any{tampered})

	heads, err = log.Heads(context.Background())
	require.NoError(t, err)
	require.Len(t, heads, 1, "tampered head must not be appended")

	evt = <-events
	require.Equal(t, EventError, evt.Type)
}

func TestStartStop_RoundTrip(t *testing.T) {
	log := &fakeLog{id: "log-1"}
	e, _, _ := newTestEngine(t, log)

	require.NoError(t, e.Start(context.Background()))
	require.NoError(t, e.Start(context.Background())) // idempotent

	require.NoError(t, e.Stop(context.Background()))
	require.NoError(t, e.Stop(context.Background())) // idempotent
	require.Empty(t, e.Peers())
}

func TestIncomingStream_DeliversHeads(t *testing.T) {
	head := makeHeadEntry(t)
	wm, err := entry.ToWireMap(head)
	require.NoError(t, err)

	log := &fakeLog{id: "log-1"}
	e, ch, _ := newTestEngine(t, log)
	events := e.Events()

	e.mu.Lock()
	e.started = true
	e.peers = map[peer.ID]peerState{}
	e.mu.Unlock()

	ch.Listen(e.handleIncomingStream)

	payload, err := marshalHeadsForTest(t, e.log.ID(), wm)
	require.NoError(t, err)
	ch.deliver(peer.ID("remote-peer"), payload)

	heads, err := log.Heads(context.Background())
	require.NoError(t, err)
	require.Len(t, heads, 1)

	evt := <-events
	require.Equal(t, EventJoin, evt.Type)
	require.Contains(t, e.Peers(), peer.ID("remote-peer"))
}
