// Command oplogdemo runs two peers in one process over
// internal/transport/memtransport instead of a real libp2p host, and
// shows one entry created on peer A arrive on peer B through the sync
// engine's head exchange. It is the runnable form of the two-peer
// convergence scenario described in spec.md §8.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/meshlog/oplogsync/internal/dialect"
	"github.com/meshlog/oplogsync/internal/logging"
	"github.com/meshlog/oplogsync/internal/oplog"
	"github.com/meshlog/oplogsync/internal/oplog/codec"
	"github.com/meshlog/oplogsync/internal/oplog/entry"
	"github.com/meshlog/oplogsync/internal/oplog/identity"
	"github.com/meshlog/oplogsync/internal/shared"
	"github.com/meshlog/oplogsync/internal/storage/blockstore"
	syncengine "github.com/meshlog/oplogsync/internal/sync"
	"github.com/meshlog/oplogsync/internal/transport/memtransport"
)

func main() {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Error(ctx, "demo failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger logging.Logger) error {
	suffix, err := shared.MakeRandHexString(4)
	if err != nil {
		return err
	}
	logID := "demo-log-" + suffix
	net := memtransport.NewNetwork()
	c := codec.NewIPLDCBORCodec()
	d := dialect.V2

	peerA, providerA, logA, engineA, err := newDemoPeer(ctx, net, logID, c, d, logger, "peer-a")
	if err != nil {
		return err
	}
	peerB, _, _, engineB, err := newDemoPeer(ctx, net, logID, c, d, logger, "peer-b")
	if err != nil {
		return err
	}

	if err := engineA.Start(ctx); err != nil {
		return err
	}
	defer engineA.Stop(ctx)
	if err := engineB.Start(ctx); err != nil {
		return err
	}
	defer engineB.Stop(ctx)

	events := engineB.Events()

	engineA.Add(ctx, peerB)
	engineB.Add(ctx, peerA)

	if err := waitUntilEngaged(ctx, engineA, peerB); err != nil {
		return err
	}
	logger.Info(ctx, "handshake complete", "peer", peerB.String())

	e, err := oplog.Create(ctx, logA, c, providerA, map[string]any{"greeting": "hello from peer A"}, entry.CreateOptions{})
	if err != nil {
		return err
	}
	logger.Info(ctx, "peer A created entry", "hash", e.Hash)

	if err := engineA.Broadcast(ctx); err != nil {
		return err
	}

	evt, err := waitForPeerEvent(ctx, events, syncengine.EventJoin)
	if err != nil {
		return err
	}
	for _, h := range evt.Heads {
		logger.Info(ctx, "peer B received head", "hash", h.Hash, "from", evt.Peer.String())
	}
	return nil
}

func newDemoPeer(ctx context.Context, net *memtransport.Network, logID string, c codec.Codec, d dialect.Dialect, logger logging.Logger, name peer.ID) (peer.ID, identity.Provider, *oplog.Log, *syncengine.Engine, error) {
	provider, err := identity.GenerateEd25519Provider()
	if err != nil {
		return "", nil, nil, nil, err
	}

	store := blockstore.NewMemoryStore()
	l := oplog.New(logID, store, c, d)
	channel := net.Channel(name)
	ps := net.PubSub(name)

	engine := syncengine.New(l, ps, channel, c, d, logger)
	return name, provider, l, engine, nil
}

func waitForPeerEvent(ctx context.Context, events <-chan syncengine.Event, want syncengine.EventType) (syncengine.Event, error) {
	for {
		select {
		case evt := <-events:
			if evt.Type == want {
				return evt, nil
			}
		case <-ctx.Done():
			return syncengine.Event{}, ctx.Err()
		}
	}
}

// waitUntilEngaged polls until target shows up in e's engaged-peer
// set. memtransport delivers everything synchronously, so this
// resolves almost immediately; a real libp2p dial would take longer.
func waitUntilEngaged(ctx context.Context, e *syncengine.Engine, target peer.ID) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		for _, p := range e.Peers() {
			if p == target {
				return nil
			}
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
