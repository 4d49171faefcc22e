package entry

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/meshlog/oplogsync/internal/common"
	"github.com/meshlog/oplogsync/internal/dialect"
	"github.com/meshlog/oplogsync/internal/oplog/clock"
	"github.com/meshlog/oplogsync/internal/oplog/codec"
	"github.com/meshlog/oplogsync/internal/oplog/identity"
)

// Create signs a new entry. next and refs default to empty sequences;
// clock defaults to {id: identity.publicKey, time: 0}. It fails with
// ErrInvalidArgument if provider, logID or payload is missing.
func Create(ctx context.Context, c codec.Codec, provider identity.Provider, logID string, payload any, d dialect.Dialect, opts CreateOptions) (*Entry, error) {
	if provider == nil || logID == "" || payload == nil {
		return nil, fmt.Errorf("%w: identity, logId and payload are required", common.ErrInvalidArgument)
	}
	if !d.Valid() {
		return nil, fmt.Errorf("%w: unknown dialect", common.ErrInvalidArgument)
	}

	id, err := provider.Identity(ctx)
	if err != nil {
		return nil, fmt.Errorf("entry: load identity: %w", err)
	}

	next := opts.Next
	if next == nil {
		next = []cid.Cid{}
	}
	refs := opts.Refs
	if refs == nil {
		refs = []cid.Cid{}
	}

	clk := clock.Clock{ID: id.PublicKey, Time: 0}
	if opts.Clock != nil {
		clk = *opts.Clock
	}

	e := &Entry{
		ID:          logID,
		Payload:     payload,
		Next:        next,
		Refs:        refs,
		Clock:       clk,
		V:           int(d),
		Key:         id.PublicKey,
		Dialect:     d,
		IdentityDoc: id,
	}

	img, err := signingImage(ctx, c, e)
	if err != nil {
		return nil, fmt.Errorf("entry: build signing image: %w", err)
	}

	sig, err := provider.Sign(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("entry: sign: %w", err)
	}
	e.Sig = hex.EncodeToString(sig)

	return e, nil
}
