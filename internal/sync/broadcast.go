package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/meshlog/oplogsync/internal/common"
)

// broadcastConcurrency bounds how many peers the engine dials
// simultaneously when pushing a freshly appended head out (spec.md §2,
// "bounded concurrency").
const broadcastConcurrency = 8

// maxDialRetries bounds the transient-error retry budget for a single
// peer dial within Broadcast.
const maxDialRetries = 3

// Broadcast publishes the log's current heads to the pubsub topic and
// fans the same envelope out over the direct channel to every
// currently engaged peer, bounded to broadcastConcurrency simultaneous
// dials. It is meant to be called after a local append, not as part of
// the subscription/head-exchange dispatch the serialized queue owns.
func (e *Engine) Broadcast(ctx context.Context) error {
	payload, err := e.encodeLocalHeads(ctx)
	if err != nil {
		return err
	}

	var errs error
	if err := e.ps.Publish(ctx, e.log.ID(), payload); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("sync: publish to topic: %w", err))
	}

	peers := e.Peers()
	if len(peers) == 0 {
		return errs
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(broadcastConcurrency)

	var collector errCollector
	for _, p := range peers {
		p := p
		g.Go(func() error {
			if err := e.sendWithRetry(gctx, p, payload); err != nil && !isTolerated(err) {
				collector.add(fmt.Errorf("sync: broadcast to %s: %w", p, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return multierr.Append(errs, collector.combined())
}

// sendWithRetry retries transient transport errors (not
// ErrUnsupportedProtocol, which is terminal for that peer) up to
// maxDialRetries times with exponential backoff. Each attempt is bounded
// by the engine's dial timeout.
func (e *Engine) sendWithRetry(ctx context.Context, p peer.ID, payload []byte) error {
	base := retry.NewExponential(100 * time.Millisecond)
	backoff := retry.WithMaxRetries(maxDialRetries, base)
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, e.dialTimeout)
		defer cancel()
		err := e.channel.Send(attemptCtx, p, payload)
		if err == nil {
			return nil
		}
		if errors.Is(err, common.ErrUnsupportedProtocol) {
			return err // terminal, do not retry
		}
		return retry.RetryableError(err)
	})
}

// errCollector accumulates errors from concurrent goroutines under a
// mutex, combined with multierr rather than dropped after the first.
type errCollector struct {
	mu  sync.Mutex
	err error
}

func (c *errCollector) add(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = multierr.Append(c.err, err)
}

func (c *errCollector) combined() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
