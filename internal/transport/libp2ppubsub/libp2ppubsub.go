// Package libp2ppubsub adapts github.com/libp2p/go-libp2p-pubsub's
// GossipSub to the sync engine's narrow PubSub capability interface
// (spec.md §4.5, SPEC_FULL.md §3.4).
package libp2ppubsub

import (
	"context"
	"fmt"
	"sync"

	pubsub "github.com/libp2p/go-libp2p-pubsub"

	syncengine "github.com/meshlog/oplogsync/internal/sync"
)

// Adapter wraps a *pubsub.PubSub, joining topics lazily and caching
// them so Publish and Subscribe against the same topic share one
// underlying *pubsub.Topic.
type Adapter struct {
	ps *pubsub.PubSub

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// New wraps an already-constructed GossipSub instance.
func New(ps *pubsub.PubSub) *Adapter {
	return &Adapter{ps: ps, topics: map[string]*pubsub.Topic{}}
}

func (a *Adapter) joinTopic(topic string) (*pubsub.Topic, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.topics[topic]; ok {
		return t, nil
	}
	t, err := a.ps.Join(topic)
	if err != nil {
		return nil, fmt.Errorf("libp2ppubsub: join %s: %w", topic, err)
	}
	a.topics[topic] = t
	return t, nil
}

// Subscribe joins topic if necessary and subscribes to it.
func (a *Adapter) Subscribe(topic string) (syncengine.Subscription, error) {
	t, err := a.joinTopic(topic)
	if err != nil {
		return nil, err
	}
	sub, err := t.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("libp2ppubsub: subscribe %s: %w", topic, err)
	}
	return &subscription{topic: t, sub: sub}, nil
}

// Publish joins topic if necessary and publishes data to it.
func (a *Adapter) Publish(ctx context.Context, topic string, data []byte) error {
	t, err := a.joinTopic(topic)
	if err != nil {
		return err
	}
	if err := t.Publish(ctx, data); err != nil {
		return fmt.Errorf("libp2ppubsub: publish to %s: %w", topic, err)
	}
	return nil
}

type subscription struct {
	topic *pubsub.Topic
	sub   *pubsub.Subscription
}

func (s *subscription) Next(ctx context.Context) (*syncengine.Message, error) {
	m, err := s.sub.Next(ctx)
	if err != nil {
		return nil, err
	}
	return &syncengine.Message{Data: m.Data, From: m.ReceivedFrom}, nil
}

func (s *subscription) EventHandler() (syncengine.TopicEventHandler, error) {
	h, err := s.topic.EventHandler()
	if err != nil {
		return nil, fmt.Errorf("libp2ppubsub: event handler: %w", err)
	}
	return &eventHandler{h: h}, nil
}

func (s *subscription) Cancel() {
	s.sub.Cancel()
}

type eventHandler struct {
	h *pubsub.TopicEventHandler
}

func (e *eventHandler) NextPeerEvent(ctx context.Context) (syncengine.PeerEvent, error) {
	evt, err := e.h.NextPeerEvent(ctx)
	if err != nil {
		return syncengine.PeerEvent{}, err
	}
	t := syncengine.PeerJoin
	if evt.Type == pubsub.PeerLeave {
		t = syncengine.PeerLeave
	}
	return syncengine.PeerEvent{Type: t, Peer: evt.Peer}, nil
}

func (e *eventHandler) Cancel() {
	e.h.Cancel()
}
