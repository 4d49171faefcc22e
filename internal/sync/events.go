package sync

import (
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/meshlog/oplogsync/internal/oplog/entry"
)

// EventType discriminates the events the engine emits on its sink.
type EventType int

const (
	// EventJoin fires when heads received from a peer (over the direct
	// channel or the pubsub topic) pass hash re-verification and are
	// appended; Heads holds the delivered entries. A received batch with
	// no deliverable head emits no EventJoin, and neither does an
	// outgoing dial.
	EventJoin EventType = iota
	// EventLeave fires when a peer drops off the topic. A failed dial
	// removes the peer without emitting EventLeave.
	EventLeave
	// EventError fires for recoverable peer/network misbehavior: a
	// malformed envelope, a hash mismatch, a dial timeout.
	EventError
)

// Event is one item on the engine's event sink.
type Event struct {
	Type  EventType
	Peer  peer.ID
	Heads []*entry.Entry
	Err   error
}
