// Package memtransport provides in-process fakes for the sync
// engine's DirectChannel and PubSub capabilities (SPEC_FULL.md §2.4),
// so the engine is testable, and demonstrable in cmd/oplogdemo,
// without a real libp2p host or GossipSub mesh.
package memtransport

import (
	"context"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/meshlog/oplogsync/internal/common"
	"github.com/meshlog/oplogsync/internal/directchannel"
	syncengine "github.com/meshlog/oplogsync/internal/sync"
)

// Network is a shared in-process registry: every peer's Channel and
// PubSub handle created from the same Network can reach every other
// peer's.
type Network struct {
	mu       sync.Mutex
	channels map[peer.ID]*Channel
	topics   map[string]*topic
}

// NewNetwork builds an empty, shared in-process network.
func NewNetwork() *Network {
	return &Network{channels: map[peer.ID]*Channel{}, topics: map[string]*topic{}}
}

// Channel returns this peer's direct-channel handle, creating it on
// first use.
func (n *Network) Channel(id peer.ID) *Channel {
	n.mu.Lock()
	defer n.mu.Unlock()
	if c, ok := n.channels[id]; ok {
		return c
	}
	c := &Channel{id: id, net: n}
	n.channels[id] = c
	return c
}

// PubSub returns this peer's pubsub handle onto the shared topic mesh.
func (n *Network) PubSub(self peer.ID) *PubSub {
	return &PubSub{net: n, self: self}
}

func (n *Network) topicFor(name string) *topic {
	n.mu.Lock()
	defer n.mu.Unlock()
	t, ok := n.topics[name]
	if !ok {
		t = &topic{subs: map[peer.ID]*Subscription{}}
		n.topics[name] = t
	}
	return t
}

// Channel is one peer's in-memory direct-channel handle, implementing
// sync.DirectChannel.
type Channel struct {
	id  peer.ID
	net *Network

	mu       sync.Mutex
	listener func(directchannel.Message)
	refuse   bool
}

// Listen registers the only listener this fake supports; a second
// call replaces the first, matching the real Channel's append-only
// Listen being exercised just once per engine in practice.
func (c *Channel) Listen(onMessage func(directchannel.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = onMessage
}

// Refuse makes this peer's channel reject every incoming Send with
// ErrUnsupportedProtocol, simulating a peer that doesn't speak the
// direct-channel protocol.
func (c *Channel) Refuse(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refuse = v
}

// Send delivers payload to peer p's listener synchronously.
func (c *Channel) Send(ctx context.Context, p peer.ID, payload []byte) error {
	c.net.mu.Lock()
	remote, ok := c.net.channels[p]
	c.net.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: unknown peer %s", common.ErrUnsupportedProtocol, p)
	}

	remote.mu.Lock()
	refuse := remote.refuse
	listener := remote.listener
	remote.mu.Unlock()

	if refuse || listener == nil {
		return fmt.Errorf("%w: peer %s does not support the direct channel protocol", common.ErrUnsupportedProtocol, p)
	}

	listener(directchannel.Message{RemotePeer: c.id, Bytes: append([]byte{}, payload...)})
	return nil
}

// Close drops the listener.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = nil
}

type topic struct {
	mu   sync.Mutex
	subs map[peer.ID]*Subscription
}

// PubSub is one peer's handle onto the shared in-memory topic mesh,
// implementing sync.PubSub.
type PubSub struct {
	net  *Network
	self peer.ID
}

// Subscribe joins topicName, notifying this subscriber about every
// peer already subscribed and every already-subscribed peer about
// this one, matching real pubsub peer-discovery semantics.
func (p *PubSub) Subscribe(topicName string) (syncengine.Subscription, error) {
	t := p.net.topicFor(topicName)
	sub := &Subscription{
		topic:      t,
		self:       p.self,
		messages:   make(chan *syncengine.Message, 64),
		peerEvents: make(chan syncengine.PeerEvent, 64),
	}

	t.mu.Lock()
	for otherID, other := range t.subs {
		notify(other.peerEvents, syncengine.PeerEvent{Type: syncengine.PeerJoin, Peer: p.self})
		notify(sub.peerEvents, syncengine.PeerEvent{Type: syncengine.PeerJoin, Peer: otherID})
	}
	t.subs[p.self] = sub
	t.mu.Unlock()

	return sub, nil
}

// Publish fans data out to every other subscriber of topicName.
func (p *PubSub) Publish(ctx context.Context, topicName string, data []byte) error {
	t := p.net.topicFor(topicName)
	payload := append([]byte{}, data...)

	t.mu.Lock()
	defer t.mu.Unlock()
	for id, sub := range t.subs {
		if id == p.self {
			continue
		}
		notify(sub.messages, &syncengine.Message{Data: payload, From: p.self})
	}
	return nil
}

func notify[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

// Subscription is one peer's view of a topic, implementing both
// sync.Subscription and sync.TopicEventHandler: the in-memory fake has
// no separate event-handler object the way real GossipSub does, so
// Cancel tears down both roles at once.
type Subscription struct {
	topic *topic
	self  peer.ID

	messages   chan *syncengine.Message
	peerEvents chan syncengine.PeerEvent
}

func (s *Subscription) Next(ctx context.Context) (*syncengine.Message, error) {
	select {
	case m := <-s.messages:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Subscription) EventHandler() (syncengine.TopicEventHandler, error) {
	return s, nil
}

func (s *Subscription) NextPeerEvent(ctx context.Context) (syncengine.PeerEvent, error) {
	select {
	case e := <-s.peerEvents:
		return e, nil
	case <-ctx.Done():
		return syncengine.PeerEvent{}, ctx.Err()
	}
}

// Cancel removes this peer from the topic and tells every remaining
// subscriber it left.
func (s *Subscription) Cancel() {
	s.topic.mu.Lock()
	delete(s.topic.subs, s.self)
	for _, other := range s.topic.subs {
		notify(other.peerEvents, syncengine.PeerEvent{Type: syncengine.PeerLeave, Peer: s.self})
	}
	s.topic.mu.Unlock()
}
