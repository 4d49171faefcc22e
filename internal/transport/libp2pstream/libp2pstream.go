// Package libp2pstream adapts a real libp2p host.Host to the direct
// channel's narrow StreamHost interface (spec.md §4.3,
// SPEC_FULL.md §3.3).
package libp2pstream

import (
	"context"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

// Adapter narrows a host.Host down to directchannel.StreamHost.
type Adapter struct {
	host host.Host
}

// New wraps an already-constructed libp2p host.
func New(h host.Host) *Adapter {
	return &Adapter{host: h}
}

func (a *Adapter) SetStreamHandler(pid protocol.ID, handler func(network.Stream)) {
	a.host.SetStreamHandler(pid, handler)
}

func (a *Adapter) RemoveStreamHandler(pid protocol.ID) {
	a.host.RemoveStreamHandler(pid)
}

func (a *Adapter) NewStream(ctx context.Context, p peer.ID, pids ...protocol.ID) (network.Stream, error) {
	return a.host.NewStream(ctx, p, pids...)
}
