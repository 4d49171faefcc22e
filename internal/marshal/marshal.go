// Package marshal implements the dialect-aware sync envelope codec
// (spec.md §4.4): CBOR-encoded under v2, so op-record byte payloads
// round-trip without the text/binary ambiguity JSON would introduce,
// and encoded/decoded as canonical JSON under v1.
package marshal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/meshlog/oplogsync/internal/canon"
	"github.com/meshlog/oplogsync/internal/dialect"
	"github.com/meshlog/oplogsync/internal/oplog/codec"
)

// Envelope is a sync message: a log address plus the heads being
// advertised or exchanged.
type Envelope struct {
	Address string
	Heads   []any
}

// Marshal renders an envelope to bytes for the given dialect. Under
// v2 the envelope is CBOR-encoded with c, which preserves the
// distinction between a text string and a byte string that
// encoding/json erases — a head's payload can carry raw bytes (an
// op-record's value), and those must decode back to []byte on the
// receiving side, not a base64 string. Under v1 it is canonical JSON
// built with the §4.1 replacer.
func Marshal(ctx context.Context, env Envelope, d dialect.Dialect, c codec.Codec) ([]byte, error) {
	m := map[string]any{
		"address": env.Address,
		"heads":   env.Heads,
	}

	switch d {
	case dialect.V2:
		return c.EncodeCBOR(ctx, m)
	case dialect.V1:
		replaced := canon.Replace(m, d.Multibase())
		return canon.JSON(replaced)
	default:
		return nil, fmt.Errorf("marshal: unknown dialect %d", d)
	}
}

// Unmarshal parses bytes produced by Marshal. Under v1 it applies the
// §4.1 reviver and then performs the documented post-pass: every
// field whose value is known to carry a hex- or text-typed identifier
// rather than an arbitrary byte blob — heads[*].id, heads[*].key,
// heads[*].sig, heads[*].clock.id, and the inline identity document's
// id/publicKey/signatures.{id,publicKey} — is normalized back to a
// string if the reviver turned it into bytes by decoding it as base64
// (spec.md §4.4, §9).
func Unmarshal(ctx context.Context, data []byte, d dialect.Dialect, c codec.Codec) (Envelope, error) {
	switch d {
	case dialect.V2:
		var m map[string]any
		if err := c.DecodeCBOR(ctx, data, &m); err != nil {
			return Envelope{}, fmt.Errorf("marshal: decode envelope: %w", err)
		}
		return envelopeFromMap(m), nil
	case dialect.V1:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return Envelope{}, fmt.Errorf("marshal: decode envelope: %w", err)
		}
		revived, ok := canon.Revive(m).(map[string]any)
		if !ok {
			return Envelope{}, fmt.Errorf("marshal: revived envelope is not an object")
		}
		normalizeAmbiguousFields(revived)
		return envelopeFromMap(revived), nil
	default:
		return Envelope{}, fmt.Errorf("marshal: unknown dialect %d", d)
	}
}

func envelopeFromMap(m map[string]any) Envelope {
	env := Envelope{}
	if addr, ok := m["address"].(string); ok {
		env.Address = addr
	}
	if heads, ok := m["heads"].([]any); ok {
		env.Heads = heads
	}
	return env
}

func normalizeAmbiguousFields(m map[string]any) {
	heads, ok := m["heads"].([]any)
	if !ok {
		return
	}
	for _, h := range heads {
		head, ok := h.(map[string]any)
		if !ok {
			continue
		}
		normalizeBytesToBase64(head, "id")
		normalizeBytesToBase64(head, "key")
		normalizeBytesToBase64(head, "sig")
		if clk, ok := head["clock"].(map[string]any); ok {
			normalizeBytesToBase64(clk, "id")
		}
		if id, ok := head["identity"].(map[string]any); ok {
			normalizeBytesToBase64(id, "id")
			normalizeBytesToBase64(id, "publicKey")
			if sigs, ok := id["signatures"].(map[string]any); ok {
				normalizeBytesToBase64(sigs, "id")
				normalizeBytesToBase64(sigs, "publicKey")
			}
		}
	}
}

func normalizeBytesToBase64(m map[string]any, key string) {
	b, ok := m[key].([]byte)
	if !ok {
		return
	}
	m[key] = base64.StdEncoding.EncodeToString(b)
}
