package entry

import (
	"context"
	"fmt"

	"github.com/meshlog/oplogsync/internal/dialect"
	"github.com/meshlog/oplogsync/internal/oplog/codec"
)

// ProjectToV2 replaces a v1 entry's inline identity document with its
// hash reference and attaches the original v1 envelope so that
// re-verification keeps using the original signed image. The reverse
// projection (v2 to v1) is not required by the core (spec.md §4.2,
// "Dialect interconversion").
func ProjectToV2(ctx context.Context, c codec.Codec, e *Entry) (*Entry, error) {
	if e == nil {
		return nil, fmt.Errorf("entry: cannot project nil entry")
	}
	if e.Dialect != dialect.V1 {
		return e, nil
	}

	ref, err := identityHashReference(ctx, c, e.IdentityDoc)
	if err != nil {
		return nil, fmt.Errorf("entry: project to v2: %w", err)
	}

	out := *e
	out.Identity = ref
	out.Dialect = dialect.V2
	if out.GoV1 == nil {
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
		raw := map[string]any{
			"id":      e.ID,
			"payload": payload,
			"next":    toAnySlice(next),
			"refs":    toAnySlice(refs),
			"clock":   clockMap(e.Clock.ID, e.Clock.Time),
			"v":       e.V,
		}
		if e.AdditionalData != nil {
			raw["additional_data"] = e.AdditionalData
		}
		out.GoV1 = &V1Envelope{Raw: raw}
	}
	return &out, nil
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
