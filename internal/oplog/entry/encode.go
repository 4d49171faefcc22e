package entry

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/meshlog/oplogsync/internal/common"
	"github.com/meshlog/oplogsync/internal/dialect"
	"github.com/meshlog/oplogsync/internal/oplog/codec"
	"github.com/meshlog/oplogsync/internal/oplog/identity"
)

// Encode populates Hash and Bytes on a signed entry: the full document
// (signed fields plus key, sig and the identity embed-or-reference) is
// encoded with the DAG-CBOR codec and hashed with SHA-256; the result is
// rendered in the dialect's multibase (spec.md §4.2).
func Encode(ctx context.Context, c codec.Codec, e *Entry) (*Entry, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil entry", common.ErrInvalidEntry)
	}

	out := *e

	if out.Dialect == dialect.V2 && out.Identity == "" {
		ref, err := identityHashReference(ctx, c, out.IdentityDoc)
		if err != nil {
			return nil, err
		}
		out.Identity = ref
	}

	doc, err := documentForEncoding(&out)
	if err != nil {
		return nil, err
	}

	data, err := c.EncodeCBOR(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("entry: encode document: %w", err)
	}

	id, err := c.CIDForCBOR(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("entry: compute content-identifier: %w", err)
	}

	hash, err := id.StringOfBase(e.Dialect.Multibase())
	if err != nil {
		return nil, fmt.Errorf("entry: render content-identifier: %w", err)
	}

	out.Bytes = data
	out.Hash = hash
	return &out, nil
}

// identityHashReference computes the v2 attached "identity" field: a
// content-addressed hash of the identity document, stored separately
// by the caller (identity storage is outside the core's scope).
func identityHashReference(ctx context.Context, c codec.Codec, id identity.Identity) (string, error) {
	data, err := c.EncodeCBOR(ctx, identityDocMap(id))
	if err != nil {
		return "", fmt.Errorf("entry: encode identity document: %w", err)
	}
	ref, err := c.CIDForCBOR(ctx, data)
	if err != nil {
		return "", fmt.Errorf("entry: hash identity document: %w", err)
	}
	return ref.StringOfBase(dialect.V2.Multibase())
}

// documentForEncoding builds the full on-wire document for an entry,
// dialect-dependent: v2 carries the identity by hash reference (a plain
// string, which is also how decode tells the dialects apart); v1
// inlines the full identity document.
func documentForEncoding(e *Entry) (map[string]any, error) {
	switch e.Dialect {
	case dialect.V2:
		return documentV2(e)
	case dialect.V1:
		return documentV1(e)
	default:
		return nil, fmt.Errorf("%w: unknown dialect %d", common.ErrInvalidEntry, e.Dialect)
	}
}

func documentV2(e *Entry) (map[string]any, error) {
	keyBytes, err := hex.DecodeString(e.Key)
	if err != nil {
		return nil, fmt.Errorf("entry: decode key: %w", err)
	}
	sigBytes, err := hex.DecodeString(e.Sig)
	if err != nil {
		return nil, fmt.Errorf("entry: decode signature: %w", err)
	}

	return map[string]any{
		"id":       e.ID,
		"payload":  e.Payload,
		"next":     cidsToAny(e.Next),
		"refs":     cidsToAny(e.Refs),
		"clock":    clockMap(e.Clock.ID, e.Clock.Time),
		"v":        e.V,
		"key":      keyBytes,
		"sig":      sigBytes,
		"identity": e.Identity,
	}, nil
}

func documentV1(e *Entry) (map[string]any, error) {
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

	doc := map[string]any{
		"id":       e.ID,
		"payload":  payload,
		"next":     next,
		"refs":     refs,
		"clock":    clockMap(e.Clock.ID, e.Clock.Time),
		"v":        e.V,
		"key":      e.Key,
		"sig":      e.Sig,
		"identity": identityDocMap(e.IdentityDoc),
	}
	if e.AdditionalData != nil {
		doc["additional_data"] = e.AdditionalData
	}
	return doc, nil
}

func identityDocMap(id identity.Identity) map[string]any {
	return map[string]any{
		"id":        id.ID,
		"publicKey": id.PublicKey,
		"signatures": map[string]any{
			"id":        id.Signatures.ID,
			"publicKey": id.Signatures.PublicKey,
		},
		"type": id.Type,
	}
}
