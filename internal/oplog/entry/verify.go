package entry

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/meshlog/oplogsync/internal/common"
	"github.com/meshlog/oplogsync/internal/oplog/codec"
	"github.com/meshlog/oplogsync/internal/oplog/identity"
)

// Verify checks the structural shape of e, then recomputes the
// dialect-appropriate signing image and checks the signature against
// e.Key. It never trusts a cached verdict — every call redoes the
// cryptographic check (spec.md invariant 2).
func Verify(ctx context.Context, verifier identity.Provider, c codec.Codec, e *Entry) (bool, error) {
	if err := checkStructure(e); err != nil {
		return false, err
	}

	img, err := signingImage(ctx, c, e)
	if err != nil {
		return false, fmt.Errorf("entry: rebuild signing image: %w", err)
	}

	sig, err := hex.DecodeString(e.Sig)
	if err != nil {
		return false, fmt.Errorf("%w: signature is not valid hex", common.ErrInvalidEntry)
	}

	return verifier.Verify(ctx, e.Key, img, sig)
}

// checkStructure fails with ErrInvalidEntry unless id, next, payload,
// v, clock, refs, key and sig are all present (spec.md §4.2).
func checkStructure(e *Entry) error {
	if e == nil {
		return fmt.Errorf("%w: nil entry", common.ErrInvalidEntry)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", common.ErrInvalidEntry)
	}
	if e.Payload == nil {
		return fmt.Errorf("%w: missing payload", common.ErrInvalidEntry)
	}
	if e.Next == nil {
		return fmt.Errorf("%w: missing next", common.ErrInvalidEntry)
	}
	if e.Refs == nil {
		return fmt.Errorf("%w: missing refs", common.ErrInvalidEntry)
	}
	if e.V == 0 {
		return fmt.Errorf("%w: missing v", common.ErrInvalidEntry)
	}
	if e.Clock.ID == "" {
		return fmt.Errorf("%w: missing clock", common.ErrInvalidEntry)
	}
	if e.Key == "" {
		return fmt.Errorf("%w: missing key", common.ErrInvalidEntry)
	}
	if e.Sig == "" {
		return fmt.Errorf("%w: missing sig", common.ErrInvalidEntry)
	}
	return nil
}
