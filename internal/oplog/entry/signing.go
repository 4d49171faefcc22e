package entry

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/ipfs/go-cid"
	mbase "github.com/multiformats/go-multibase"

	"github.com/meshlog/oplogsync/internal/canon"
	"github.com/meshlog/oplogsync/internal/common"
	"github.com/meshlog/oplogsync/internal/dialect"
	"github.com/meshlog/oplogsync/internal/oplog/codec"
)

// signingImage returns the exact byte sequence signed at create time
// and recomputed at verify time, per the entry's dialect (spec.md §4.2).
//
// An entry carrying a GoV1 envelope always re-verifies against that
// preserved original document, regardless of its current Dialect: the
// v1 signing image cannot be reconstructed from the v2-shaped fields
// alone once an entry has been projected (spec.md §9, "Entry 'GoV1'
// attached field").
func signingImage(ctx context.Context, c codec.Codec, e *Entry) ([]byte, error) {
	if e.GoV1 != nil {
		return signingImageFromV1Envelope(e.GoV1)
	}
	switch e.Dialect {
	case dialect.V2:
		return signingImageV2(ctx, c, e)
	case dialect.V1:
		return signingImageV1(e)
	default:
		return nil, fmt.Errorf("%w: unknown dialect %d", common.ErrInvalidEntry, e.Dialect)
	}
}

// signingImageFromV1Envelope rebuilds the canonical v1 signing image
// directly from the preserved wire document, rather than from the
// entry's (possibly projected) in-memory fields.
func signingImageFromV1Envelope(env *V1Envelope) ([]byte, error) {
	m := map[string]any{
		"hash":    nil,
		"id":      env.Raw["id"],
		"payload": env.Raw["payload"],
		"next":    env.Raw["next"],
		"refs":    env.Raw["refs"],
		"clock":   env.Raw["clock"],
		"v":       env.Raw["v"],
	}
	if ad, ok := env.Raw["additional_data"]; ok {
		m["additional_data"] = ad
	}
	return canon.JSON(m)
}

func signingImageV2(ctx context.Context, c codec.Codec, e *Entry) ([]byte, error) {
	m := map[string]any{
		"id":      e.ID,
		"payload": e.Payload,
		"next":    cidsToAny(e.Next),
		"refs":    cidsToAny(e.Refs),
		"clock":   clockMap(e.Clock.ID, e.Clock.Time),
		"v":       e.V,
	}
	return c.EncodeCBOR(ctx, m)
}

func signingImageV1(e *Entry) ([]byte, error) {
	next, err := cidsToBase58(e.Next)
	if err != nil {
		return nil, err
	}
	refs, err := cidsToBase58(e.Refs)
	if err != nil {
		return nil, err
	}

	payload, err := payloadForV1SigningImage(e.Payload)
	if err != nil {
		return nil, err
	}

	m := map[string]any{
		"hash":    nil,
		"id":      e.ID,
		"payload": payload,
		"next":    next,
		"refs":    refs,
		"clock":   clockMap(e.Clock.ID, e.Clock.Time),
		"v":       e.V,
	}
	if e.AdditionalData != nil {
		m["additional_data"] = e.AdditionalData
	}
	return canon.JSON(m)
}

// payloadForV1SigningImage implements the legacy quirk: an operation
// record {op, value, ...} whose value is a byte sequence is rewritten
// with value base64-encoded, then serialized as a JSON string — the
// string, not the object, becomes the signing image's payload field.
func payloadForV1SigningImage(payload any) (any, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return payload, nil
	}
	val, hasValue := m["value"]
	if _, hasOp := m["op"]; !hasOp || !hasValue {
		return payload, nil
	}
	b, ok := val.([]byte)
	if !ok {
		return payload, nil
	}

	rewritten := make(map[string]any, len(m))
	for k, v := range m {
		rewritten[k] = v
	}
	rewritten["value"] = base64.StdEncoding.EncodeToString(b)

	encoded, err := json.Marshal(rewritten)
	if err != nil {
		return nil, fmt.Errorf("entry: serialize op record payload: %w", err)
	}
	return string(encoded), nil
}

// clockMap renders a clock in the {id, time} shape both signing images
// use.
func clockMap(id string, t int64) map[string]any {
	return map[string]any{"id": id, "time": t}
}

// cidsToAny exposes a CID slice as a []any of cid.Cid values, the shape
// go-ipld-cbor encodes as native IPLD links (spec.md's "content-identifier
// objects, not strings").
func cidsToAny(cids []cid.Cid) []any {
	out := make([]any, len(cids))
	for i, c := range cids {
		out[i] = c
	}
	return out
}

func cidsToBase58(cids []cid.Cid) ([]string, error) {
	out := make([]string, len(cids))
	for i, c := range cids {
		s, err := c.StringOfBase(mbase.Base58BTC)
		if err != nil {
			return nil, fmt.Errorf("entry: render cid as base58: %w", err)
		}
		out[i] = s
	}
	return out, nil
}
