// Package oplog provides a minimal, concrete append-only log backing a
// running peer: it persists entries to a block store keyed by hash and
// tracks the current frontier ("heads"), the two responsibilities
// spec.md §1 names as external to the core and leaves to "the
// higher-level database types built on the oplog". This is the
// smallest such type that makes the daemon (cmd/oplogpeerd) and the
// demo (cmd/oplogdemo) runnable; it deliberately does not attempt
// CRDT-style merge semantics or document/key-value views — those
// remain out of scope.
package oplog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ipfs/go-cid"

	"github.com/meshlog/oplogsync/internal/common"
	"github.com/meshlog/oplogsync/internal/dialect"
	"github.com/meshlog/oplogsync/internal/oplog/clock"
	"github.com/meshlog/oplogsync/internal/oplog/codec"
	"github.com/meshlog/oplogsync/internal/oplog/entry"
	"github.com/meshlog/oplogsync/internal/oplog/identity"
)

// BlockStore is the minimal content-addressed capability the log
// needs to persist entries, narrowed the same way
// internal/oplog/manifest narrows it.
type BlockStore interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Log is a concrete sync.Log: it persists every appended entry to a
// block store by its content-identifier and keeps the current set of
// heads (entries with no known successor yet) in memory.
type Log struct {
	id      string
	store   BlockStore
	codec   codec.Codec
	dialect dialect.Dialect

	mu    sync.Mutex
	heads map[string]*entry.Entry
}

// New builds an empty Log for id.
func New(id string, store BlockStore, c codec.Codec, d dialect.Dialect) *Log {
	return &Log{id: id, store: store, codec: c, dialect: d, heads: map[string]*entry.Entry{}}
}

// Open rebuilds a Log's in-memory heads from a previously known set of
// head hashes, loading each from store. Use this to resume a log
// across a process restart instead of starting from an empty frontier.
func Open(ctx context.Context, id string, store BlockStore, c codec.Codec, d dialect.Dialect, headHashes []string) (*Log, error) {
	l := New(id, store, c, d)
	for _, h := range headHashes {
		data, err := store.Get(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("oplog: load head %s: %w", h, err)
		}
		e, err := entry.Decode(ctx, c, data)
		if err != nil {
			return nil, fmt.Errorf("oplog: decode head %s: %w", h, err)
		}
		l.heads[h] = e
	}
	return l, nil
}

func (l *Log) ID() string { return l.id }

// Heads returns the log's current frontier, sorted by hash for a
// stable iteration order.
func (l *Log) Heads(ctx context.Context) ([]*entry.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*entry.Entry, 0, len(l.heads))
	for _, e := range l.heads {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out, nil
}

// Append persists e to the block store and folds it into the
// frontier: e becomes a head, and any of its direct predecessors
// already tracked as heads are dropped, since e now supersedes them.
// This is the sync engine's onSynced delivery path (spec.md §2) as
// much as it is the local mutator's.
func (l *Log) Append(ctx context.Context, e *entry.Entry) error {
	if e == nil || e.Hash == "" || len(e.Bytes) == 0 {
		return fmt.Errorf("%w: entry must be encoded before it can be appended", common.ErrInvalidEntry)
	}

	if err := l.store.Put(ctx, e.Hash, e.Bytes); err != nil {
		return fmt.Errorf("oplog: store entry %s: %w", e.Hash, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, pred := range e.Next {
		predHash, err := pred.StringOfBase(e.Dialect.Multibase())
		if err != nil {
			continue
		}
		delete(l.heads, predHash)
	}
	l.heads[e.Hash] = e
	return nil
}

// Create signs a new entry with provider, pointing at the current
// heads as its direct predecessors, appends it locally, and returns
// it so the caller can hand it to a sync engine's Broadcast. Clock
// monotonicity within the log (spec.md §2 design note 4) is this
// function's responsibility, not entry.Create's: unless the caller
// pins an explicit clock, the new entry's logical time is one past
// the highest time among the current heads.
func Create(ctx context.Context, l *Log, c codec.Codec, provider identity.Provider, payload any, opts entry.CreateOptions) (*entry.Entry, error) {
	heads, err := l.Heads(ctx)
	if err != nil {
		return nil, err
	}

	if opts.Next == nil {
		next, err := headCIDs(heads)
		if err != nil {
			return nil, err
		}
		opts.Next = next
	}

	if opts.Clock == nil {
		id, err := provider.Identity(ctx)
		if err != nil {
			return nil, fmt.Errorf("oplog: load identity: %w", err)
		}
		opts.Clock = &clock.Clock{ID: id.PublicKey, Time: nextClockTime(heads)}
	}

	e, err := entry.Create(ctx, c, provider, l.id, payload, l.dialect, opts)
	if err != nil {
		return nil, err
	}
	encoded, err := entry.Encode(ctx, c, e)
	if err != nil {
		return nil, err
	}
	if err := l.Append(ctx, encoded); err != nil {
		return nil, err
	}
	return encoded, nil
}

// nextClockTime returns one past the highest logical time among
// heads, or 0 for an empty log.
func nextClockTime(heads []*entry.Entry) int64 {
	var max int64 = -1
	for _, h := range heads {
		if h.Clock.Time > max {
			max = h.Clock.Time
		}
	}
	return max + 1
}

func headCIDs(heads []*entry.Entry) ([]cid.Cid, error) {
	out := make([]cid.Cid, len(heads))
	for i, h := range heads {
		c, err := cid.Decode(h.Hash)
		if err != nil {
			return nil, fmt.Errorf("oplog: decode head hash %q: %w", h.Hash, err)
		}
		out[i] = c
	}
	return out, nil
}
