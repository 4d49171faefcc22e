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

// Decode parses a raw document into a fully populated entry. Dialect
// is inferred from the decoded shape: a string "identity" field means
// v2; anything else (the inline identity document) means v1, and the
// v1 envelope is materialized alongside for later re-verification
// (spec.md §4.2).
func Decode(ctx context.Context, c codec.Codec, data []byte) (*Entry, error) {
	var raw map[string]any
	if err := c.DecodeCBOR(ctx, data, &raw); err != nil {
		return nil, fmt.Errorf("entry: decode document: %w", err)
	}

	id, err := c.CIDForCBOR(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("entry: compute content-identifier: %w", err)
	}

	if _, isV2 := raw["identity"].(string); isV2 {
		return decodeV2(raw, data, id)
	}
	return decodeV1(raw, data, id)
}

func decodeV2(raw map[string]any, data []byte, id cid.Cid) (*Entry, error) {
	next, err := anyToCIDs(raw["next"])
	if err != nil {
		return nil, fmt.Errorf("entry: decode next: %w", err)
	}
	refs, err := anyToCIDs(raw["refs"])
	if err != nil {
		return nil, fmt.Errorf("entry: decode refs: %w", err)
	}
	clk, err := decodeClock(raw["clock"])
	if err != nil {
		return nil, err
	}

	key, err := bytesField(raw["key"])
	if err != nil {
		return nil, fmt.Errorf("entry: decode key: %w", err)
	}
	sig, err := bytesField(raw["sig"])
	if err != nil {
		return nil, fmt.Errorf("entry: decode sig: %w", err)
	}

	identityRef, _ := raw["identity"].(string)

	hash, err := id.StringOfBase(dialect.V2.Multibase())
	if err != nil {
		return nil, fmt.Errorf("entry: render content-identifier: %w", err)
	}

	v, err := intField(raw["v"])
	if err != nil {
		return nil, err
	}

	return &Entry{
		ID:       stringField(raw["id"]),
		Payload:  raw["payload"],
		Next:     next,
		Refs:     refs,
		Clock:    clk,
		V:        v,
		Key:      hex.EncodeToString(key),
		Identity: identityRef,
		Sig:      hex.EncodeToString(sig),
		Hash:     hash,
		Bytes:    data,
		Dialect:  dialect.V2,
	}, nil
}

func decodeV1(raw map[string]any, data []byte, id cid.Cid) (*Entry, error) {
	next, err := base58StringsToCIDs(raw["next"])
	if err != nil {
		return nil, fmt.Errorf("entry: decode next: %w", err)
	}
	refs, err := base58StringsToCIDs(raw["refs"])
	if err != nil {
		return nil, fmt.Errorf("entry: decode refs: %w", err)
	}
	clk, err := decodeClock(raw["clock"])
	if err != nil {
		return nil, err
	}

	idDoc, err := decodeIdentityDoc(raw["identity"])
	if err != nil {
		return nil, err
	}

	hash, err := id.StringOfBase(dialect.V1.Multibase())
	if err != nil {
		return nil, fmt.Errorf("entry: render content-identifier: %w", err)
	}

	v, err := intField(raw["v"])
	if err != nil {
		return nil, err
	}

	e := &Entry{
		ID:          stringField(raw["id"]),
		Payload:     raw["payload"],
		Next:        next,
		Refs:        refs,
		Clock:       clk,
		V:           v,
		Key:         stringField(raw["key"]),
		Sig:         stringField(raw["sig"]),
		Hash:        hash,
		Bytes:       data,
		Dialect:     dialect.V1,
		IdentityDoc: idDoc,
		GoV1:        &V1Envelope{Raw: raw},
	}
	if ad, ok := raw["additional_data"]; ok {
		e.AdditionalData = ad
	}
	return e, nil
}

func decodeClock(v any) (clock.Clock, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return clock.Clock{}, fmt.Errorf("%w: missing clock", common.ErrInvalidEntry)
	}
	t, err := intField(m["time"])
	if err != nil {
		return clock.Clock{}, err
	}
	return clock.Clock{ID: stringOrHex(m["id"]), Time: int64(t)}, nil
}

func decodeIdentityDoc(v any) (identity.Identity, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return identity.Identity{}, fmt.Errorf("%w: missing inline identity document", common.ErrInvalidEntry)
	}
	sigs, _ := m["signatures"].(map[string]any)
	return identity.Identity{
		ID:        stringField(m["id"]),
		PublicKey: stringField(m["publicKey"]),
		Signatures: identity.Signatures{
			ID:        stringField(sigs["id"]),
			PublicKey: stringField(sigs["publicKey"]),
		},
		Type: stringField(m["type"]),
	}, nil
}

// anyToCIDs accepts the several shapes a decoded CBOR link list might
// arrive as — []any of cid.Cid, of string, or of raw link bytes — and
// normalizes to []cid.Cid.
func anyToCIDs(v any) ([]cid.Cid, error) {
	items, ok := v.([]any)
	if !ok {
		if v == nil {
			return []cid.Cid{}, nil
		}
		return nil, fmt.Errorf("%w: not a list", common.ErrInvalidEntry)
	}
	out := make([]cid.Cid, len(items))
	for i, it := range items {
		c, err := anyToCID(it)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func anyToCID(v any) (cid.Cid, error) {
	switch t := v.(type) {
	case cid.Cid:
		return t, nil
	case string:
		return cid.Decode(t)
	case []byte:
		return cid.Cast(t)
	default:
		return cid.Undef, fmt.Errorf("%w: unrecognized content-identifier shape", common.ErrInvalidEntry)
	}
}

func base58StringsToCIDs(v any) ([]cid.Cid, error) {
	items, ok := v.([]any)
	if !ok {
		if v == nil {
			return []cid.Cid{}, nil
		}
		return nil, fmt.Errorf("%w: not a list", common.ErrInvalidEntry)
	}
	out := make([]cid.Cid, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, fmt.Errorf("%w: next/refs entry is not a string", common.ErrInvalidEntry)
		}
		c, err := cid.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("entry: decode base58 cid %q: %w", s, err)
		}
		out[i] = c
	}
	return out, nil
}

func bytesField(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return hex.DecodeString(t)
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: expected byte field", common.ErrInvalidEntry)
	}
}

func stringField(v any) string {
	s, _ := v.(string)
	return s
}

// stringOrHex handles clock.id, which this package writes as a string
// in both dialects; a byte-valued clock.id is rendered as a hex string.
func stringOrHex(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return hex.EncodeToString(t)
	default:
		return ""
	}
}

func intField(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case uint64:
		return int(t), nil
	default:
		return 0, fmt.Errorf("%w: expected integer field", common.ErrInvalidEntry)
	}
}
