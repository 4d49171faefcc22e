package sync

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/meshlog/oplogsync/internal/directchannel"
	"github.com/meshlog/oplogsync/internal/oplog/entry"
)

// Log is the narrow view of an oplog the sync engine needs: its
// identity, its current heads, and the ability to ingest an entry a
// peer has sent that has already passed content-address verification.
type Log interface {
	ID() string
	Heads(ctx context.Context) ([]*entry.Entry, error)
	Append(ctx context.Context, e *entry.Entry) error
}

// PubSub is the capability the engine needs from a pubsub
// implementation, modeled on go-libp2p-pubsub's PubSub.Subscribe and
// PubSub.Publish.
type PubSub interface {
	Subscribe(topic string) (Subscription, error)
	Publish(ctx context.Context, topic string, data []byte) error
}

// Subscription mirrors go-libp2p-pubsub's *pubsub.Subscription, plus
// access to the topic's join/leave event stream.
type Subscription interface {
	Next(ctx context.Context) (*Message, error)
	EventHandler() (TopicEventHandler, error)
	Cancel()
}

// Message is one message delivered over a topic subscription.
type Message struct {
	Data []byte
	From peer.ID
}

// PeerEventType mirrors go-libp2p-pubsub's pubsub.PeerEventType.
type PeerEventType int

const (
	PeerJoin PeerEventType = iota
	PeerLeave
)

// PeerEvent mirrors go-libp2p-pubsub's pubsub.PeerEvent.
type PeerEvent struct {
	Type PeerEventType
	Peer peer.ID
}

// TopicEventHandler mirrors go-libp2p-pubsub's *pubsub.TopicEventHandler.
type TopicEventHandler interface {
	NextPeerEvent(ctx context.Context) (PeerEvent, error)
	Cancel()
}

// DirectChannel is the narrow view of a directchannel.Channel the
// engine needs: listen for incoming head-exchange streams, and dial a
// peer to push this log's own heads.
type DirectChannel interface {
	Listen(onMessage func(directchannel.Message))
	Send(ctx context.Context, p peer.ID, payload []byte) error
	Close()
}
