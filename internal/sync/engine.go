// Package sync implements the head-exchange engine that keeps a local
// oplog converging with its remote replicas (spec.md §4.5): a pubsub
// topic announces which peers are replicating the same log, a
// direct-channel stream carries each peer's heads, and every head is
// re-verified against its own claimed content-identifier before it is
// ever handed to the log.
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/meshlog/oplogsync/internal/dialect"
	"github.com/meshlog/oplogsync/internal/directchannel"
	"github.com/meshlog/oplogsync/internal/logging"
	"github.com/meshlog/oplogsync/internal/marshal"
	"github.com/meshlog/oplogsync/internal/oplog/codec"
	"github.com/meshlog/oplogsync/internal/oplog/entry"
)

// DefaultDialTimeout bounds how long the engine will wait for a single
// peer dial (direct-channel Send plus the local heads computation) to
// complete before giving up and emitting EventError.
const DefaultDialTimeout = 30 * time.Second

type peerState int

const (
	peerPendingDial peerState = iota
	peerEngaged
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithDialTimeout overrides DefaultDialTimeout.
func WithDialTimeout(d time.Duration) Option {
	return func(e *Engine) { e.dialTimeout = d }
}

// WithEventBuffer sets the buffer size of the event channel returned
// by Events. The default is 64.
func WithEventBuffer(n int) Option {
	return func(e *Engine) { e.eventBuf = n }
}

// Engine is the sync engine bound to one log. It is safe for
// concurrent use; Start and Stop may be called repeatedly (idempotent
// beyond the first transition).
type Engine struct {
	log     Log
	ps      PubSub
	channel DirectChannel
	codec   codec.Codec
	dialect dialect.Dialect
	logger  logging.Logger

	dialTimeout time.Duration
	eventBuf    int

	mu      sync.Mutex
	started bool
	peers   map[peer.ID]peerState
	events  chan Event

	sub        Subscription
	evtHandler TopicEventHandler

	workCh     chan task
	workerDone chan struct{}
	cancelLoop context.CancelFunc
	loopWG     sync.WaitGroup
}

type task func(ctx context.Context)

// New builds an Engine for the given log. The PubSub topic joined is
// the log's own ID.
func New(log Log, ps PubSub, channel DirectChannel, c codec.Codec, d dialect.Dialect, logger logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		log:         log,
		ps:          ps,
		channel:     channel,
		codec:       c,
		dialect:     d,
		logger:      logger,
		dialTimeout: DefaultDialTimeout,
		eventBuf:    64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Events returns the engine's event channel. It must be called before
// Start (or concurrently drained) to avoid blocking the engine's
// internal dispatch once the channel fills.
func (e *Engine) Events() <-chan Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.events == nil {
		e.events = make(chan Event, e.eventBuf)
	}
	return e.events
}

// Peers returns the snapshot of currently engaged (handshake-complete)
// peers. Pending-dial peers are not included.
func (e *Engine) Peers() []peer.ID {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]peer.ID, 0, len(e.peers))
	for p, st := range e.peers {
		if st == peerEngaged {
			out = append(out, p)
		}
	}
	return out
}

// Start joins the log's pubsub topic, subscribes to it, registers the
// direct-channel handler, and begins dispatching subscription-change
// and head-exchange work through a single serialized queue. Start is a
// no-op if the engine is already started.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.peers = map[peer.ID]peerState{}
	if e.events == nil {
		e.events = make(chan Event, e.eventBuf)
	}
	e.workCh = make(chan task, 256)
	e.workerDone = make(chan struct{})
	e.mu.Unlock()

	go e.worker()

	e.channel.Listen(e.handleIncomingStream)

	sub, err := e.ps.Subscribe(e.log.ID())
	if err != nil {
		return fmt.Errorf("sync: subscribe to %s: %w", e.log.ID(), err)
	}
	evtHandler, err := sub.EventHandler()
	if err != nil {
		sub.Cancel()
		return fmt.Errorf("sync: event handler for %s: %w", e.log.ID(), err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.sub = sub
	e.evtHandler = evtHandler
	e.cancelLoop = cancel
	e.mu.Unlock()

	e.loopWG.Add(2)
	go e.subscriptionLoop(loopCtx, evtHandler)
	go e.messageLoop(loopCtx, sub)

	return nil
}

// Stop unregisters the direct-channel handler, cancels the
// subscription/event loops, drains the serialized work queue, leaves
// the pubsub topic, and clears the peer set. Stop is a no-op if the
// engine is not started.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = false
	cancel := e.cancelLoop
	sub := e.sub
	evtHandler := e.evtHandler
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.loopWG.Wait()

	e.mu.Lock()
	workCh := e.workCh
	e.mu.Unlock()
	close(workCh)
	<-e.workerDone

	e.channel.Close()
	if sub != nil {
		sub.Cancel()
	}
	if evtHandler != nil {
		evtHandler.Cancel()
	}

	e.mu.Lock()
	e.peers = map[peer.ID]peerState{}
	e.sub, e.evtHandler = nil, nil
	e.mu.Unlock()

	return nil
}

// Add forces a direct head-exchange handshake with a peer outside of
// pubsub subscription discovery, e.g. a manually configured bootstrap
// peer. It is idempotent: a peer already pending or engaged is left
// alone.
func (e *Engine) Add(ctx context.Context, p peer.ID) {
	e.enqueue(func(ctx context.Context) { e.handlePeerJoin(ctx, p) })
}

func (e *Engine) worker() {
	for t := range e.workCh {
		t(context.Background())
	}
	close(e.workerDone)
}

func (e *Engine) enqueue(t task) {
	e.mu.Lock()
	ch := e.workCh
	started := e.started
	e.mu.Unlock()
	if !started || ch == nil {
		return
	}
	ch <- t
}

func (e *Engine) subscriptionLoop(ctx context.Context, h TopicEventHandler) {
	defer e.loopWG.Done()
	for {
		evt, err := h.NextPeerEvent(ctx)
		if err != nil {
			return
		}
		e.enqueue(func(ctx context.Context) { e.handleSubscriptionEvent(ctx, evt) })
	}
}

func (e *Engine) messageLoop(ctx context.Context, sub Subscription) {
	defer e.loopWG.Done()
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return
		}
		m := msg
		e.enqueue(func(ctx context.Context) { e.handlePubsubMessage(ctx, m) })
	}
}

func (e *Engine) handleSubscriptionEvent(ctx context.Context, evt PeerEvent) {
	switch evt.Type {
	case PeerJoin:
		e.handlePeerJoin(ctx, evt.Peer)
	case PeerLeave:
		e.handlePeerLeave(evt.Peer)
	}
}

// handlePeerJoin implements head exchange on subscription change
// (spec.md §4.5): a newly subscribed peer is dialed directly and
// handed this log's current heads. Failure removes the peer from the
// set without ever having announced it as engaged.
func (e *Engine) handlePeerJoin(ctx context.Context, p peer.ID) {
	e.mu.Lock()
	if _, exists := e.peers[p]; exists {
		e.mu.Unlock()
		return
	}
	e.peers[p] = peerPendingDial
	e.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, e.dialTimeout)
	defer cancel()

	payload, err := e.encodeLocalHeads(dialCtx)
	if err != nil {
		e.removePeer(p)
		e.emitError(p, err)
		return
	}

	if err := e.channel.Send(dialCtx, p, payload); err != nil {
		e.removePeer(p)
		if isTolerated(err) {
			return
		}
		e.emitError(p, err)
		return
	}

	e.mu.Lock()
	e.peers[p] = peerEngaged
	e.mu.Unlock()
}

func (e *Engine) handlePeerLeave(p peer.ID) {
	_, existed := e.removePeer(p)
	if existed {
		e.emit(Event{Type: EventLeave, Peer: p})
	}
}

func (e *Engine) handlePubsubMessage(ctx context.Context, m *Message) {
	env, err := marshal.Unmarshal(ctx, m.Data, e.dialect, e.codec)
	if err != nil {
		e.emitError(m.From, fmt.Errorf("sync: decode pubsub envelope: %w", err))
		return
	}
	e.deliverHeads(ctx, m.From, env.Heads)
}

// handleIncomingStream implements head exchange on an incoming direct
// channel stream (spec.md §4.5): the sender is added to the peer set
// as engaged without a dial-back, since the stream itself establishes
// connectivity in one direction already.
func (e *Engine) handleIncomingStream(msg directchannel.Message) {
	e.mu.Lock()
	e.peers[msg.RemotePeer] = peerEngaged
	e.mu.Unlock()

	ctx := context.Background()
	env, err := marshal.Unmarshal(ctx, msg.Bytes, e.dialect, e.codec)
	if err != nil {
		e.emitError(msg.RemotePeer, fmt.Errorf("sync: decode channel envelope: %w", err))
		return
	}
	e.deliverHeads(ctx, msg.RemotePeer, env.Heads)
}

// deliverHeads re-verifies each head's claimed hash against its
// re-encoded bytes before appending it to the log (spec.md §4.5, §9).
// A mismatching head is dropped and reported; the rest of the batch is
// still processed.
func (e *Engine) deliverHeads(ctx context.Context, from peer.ID, heads []any) {
	delivered := make([]*entry.Entry, 0, len(heads))
	for _, h := range heads {
		m, ok := h.(map[string]any)
		if !ok {
			e.emitError(from, fmt.Errorf("sync: head is not a structured entry"))
			continue
		}
		parsed, err := entry.FromWireMap(m)
		if err != nil {
			e.emitError(from, fmt.Errorf("sync: parse head: %w", err))
			continue
		}
		claimed := parsed.Hash
		encoded, err := entry.Encode(ctx, e.codec, parsed)
		if err != nil {
			e.emitError(from, fmt.Errorf("sync: encode head: %w", err))
			continue
		}
		if claimed == "" || encoded.Hash != claimed {
			e.emitError(from, fmt.Errorf("sync: head from %s: %w", from, errHashMismatchFor(claimed, encoded.Hash)))
			continue
		}
		if err := e.log.Append(ctx, encoded); err != nil {
			e.emitError(from, fmt.Errorf("sync: append head: %w", err))
			continue
		}
		delivered = append(delivered, encoded)
	}
	if len(delivered) > 0 {
		e.emit(Event{Type: EventJoin, Peer: from, Heads: delivered})
	}
}

func (e *Engine) encodeLocalHeads(ctx context.Context) ([]byte, error) {
	heads, err := e.log.Heads(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: load local heads: %w", err)
	}
	wireHeads := make([]any, 0, len(heads))
	for _, h := range heads {
		wm, err := entry.ToWireMap(h)
		if err != nil {
			return nil, fmt.Errorf("sync: render head: %w", err)
		}
		wireHeads = append(wireHeads, wm)
	}
	return marshal.Marshal(ctx, marshal.Envelope{Address: e.log.ID(), Heads: wireHeads}, e.dialect, e.codec)
}

func (e *Engine) removePeer(p peer.ID) (peerState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.peers[p]
	delete(e.peers, p)
	return st, ok
}

func (e *Engine) emit(evt Event) {
	e.mu.Lock()
	ch := e.events
	e.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- evt:
	default:
		e.logger.Warn(context.Background(), "sync: event channel full, dropping event", "type", evt.Type)
	}
}

func (e *Engine) emitError(p peer.ID, err error) {
	e.logger.Warn(context.Background(), "sync: peer error", "peer", p, "error", err)
	e.emit(Event{Type: EventError, Peer: p, Err: err})
}
