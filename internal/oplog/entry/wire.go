package entry

import (
	"fmt"

	"github.com/meshlog/oplogsync/internal/common"
	"github.com/meshlog/oplogsync/internal/dialect"
)

// ToWireMap renders an already-encoded entry (Hash and Bytes
// populated) to the structured form carried inline in a heads
// envelope (spec.md §6): every signed and attached field, including
// the claimed hash, so a receiver can independently recompute it and
// reject a mismatch before ever touching the codec's raw bytes.
func ToWireMap(e *Entry) (map[string]any, error) {
	switch e.Dialect {
	case dialect.V2:
		return wireMapV2(e)
	case dialect.V1:
		return wireMapV1(e)
	default:
		return nil, fmt.Errorf("%w: unknown dialect %d", common.ErrInvalidEntry, e.Dialect)
	}
}

func wireMapV2(e *Entry) (map[string]any, error) {
	next, err := cidsToBase58(e.Next)
	if err != nil {
		return nil, err
	}
	refs, err := cidsToBase58(e.Refs)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":       e.ID,
		"payload":  e.Payload,
		"next":     toAnySlice(next),
		"refs":     toAnySlice(refs),
		"clock":    clockMap(e.Clock.ID, e.Clock.Time),
		"v":        e.V,
		"key":      e.Key,
		"sig":      e.Sig,
		"identity": e.Identity,
		"hash":     e.Hash,
	}, nil
}

func wireMapV1(e *Entry) (map[string]any, error) {
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
		"id":       e.ID,
		"payload":  payload,
		"next":     toAnySlice(next),
		"refs":     toAnySlice(refs),
		"clock":    clockMap(e.Clock.ID, e.Clock.Time),
		"v":        e.V,
		"key":      e.Key,
		"sig":      e.Sig,
		"identity": identityDocMap(e.IdentityDoc),
		"hash":     e.Hash,
	}
	if e.AdditionalData != nil {
		m["additional_data"] = e.AdditionalData
	}
	return m, nil
}

// FromWireMap parses a heads-envelope entry back into an Entry with
// its claimed Hash set but Bytes left empty; the caller is expected to
// call Encode and compare the result against the claimed Hash before
// trusting the entry (spec.md §4.5, "Head exchange").
func FromWireMap(m map[string]any) (*Entry, error) {
	if _, isV2 := m["identity"].(string); isV2 {
		return fromWireMapV2(m)
	}
	return fromWireMapV1(m)
}

func fromWireMapV2(m map[string]any) (*Entry, error) {
	next, err := base58StringsToCIDs(m["next"])
	if err != nil {
		return nil, fmt.Errorf("entry: decode next: %w", err)
	}
	refs, err := base58StringsToCIDs(m["refs"])
	if err != nil {
		return nil, fmt.Errorf("entry: decode refs: %w", err)
	}
	clk, err := decodeClock(m["clock"])
	if err != nil {
		return nil, err
	}
	v, err := intField(m["v"])
	if err != nil {
		return nil, err
	}

	return &Entry{
		ID:       stringField(m["id"]),
		Payload:  m["payload"],
		Next:     next,
		Refs:     refs,
		Clock:    clk,
		V:        v,
		Key:      stringField(m["key"]),
		Sig:      stringField(m["sig"]),
		Identity: stringField(m["identity"]),
		Hash:     stringField(m["hash"]),
		Dialect:  dialect.V2,
	}, nil
}

func fromWireMapV1(m map[string]any) (*Entry, error) {
	next, err := base58StringsToCIDs(m["next"])
	if err != nil {
		return nil, fmt.Errorf("entry: decode next: %w", err)
	}
	refs, err := base58StringsToCIDs(m["refs"])
	if err != nil {
		return nil, fmt.Errorf("entry: decode refs: %w", err)
	}
	clk, err := decodeClock(m["clock"])
	if err != nil {
		return nil, err
	}
	v, err := intField(m["v"])
	if err != nil {
		return nil, err
	}
	idDoc, err := decodeIdentityDoc(m["identity"])
	if err != nil {
		return nil, err
	}

	e := &Entry{
		ID:          stringField(m["id"]),
		Payload:     m["payload"],
		Next:        next,
		Refs:        refs,
		Clock:       clk,
		V:           v,
		Key:         stringField(m["key"]),
		Sig:         stringField(m["sig"]),
		Hash:        stringField(m["hash"]),
		Dialect:     dialect.V1,
		IdentityDoc: idDoc,
		GoV1:        &V1Envelope{Raw: m},
	}
	if ad, ok := m["additional_data"]; ok {
		e.AdditionalData = ad
	}
	return e, nil
}
