package canon

import (
	"encoding/base64"
	"strings"

	"github.com/ipfs/go-cid"
)

// Revive walks a tree produced by decoding v1 JSON (map[string]any,
// []any, string, json.Number, bool, nil) and heuristically restores the
// byte sequences and content-identifiers the Replacer flattened to
// strings: any string that successfully base64-decodes becomes a []byte,
// and any string found under the JSON key "/" that successfully parses
// as a CID becomes a cid.Cid. A string with a leading '/' is always
// preserved verbatim (it is an address, not base64) even if it would
// otherwise decode.
//
// This is inherently ambiguous — an ordinary short string can also be
// valid base64 — by design (spec.md §4.1, §9); callers that need exact
// field semantics must normalize known-colliding fields themselves (see
// internal/marshal, which does this for each head's id, key, sig and
// clock.id and for the id, publicKey and signatures of its inline
// identity document).
func Revive(v any) any {
	return revive(v, false)
}

func revive(v any, underSlashKey bool) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = revive(val, k == "/")
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = revive(val, false)
		}
		return out
	case string:
		if strings.HasPrefix(t, "/") {
			return t
		}
		if underSlashKey {
			if c, err := cid.Decode(t); err == nil {
				return c
			}
		}
		if b, err := base64.StdEncoding.DecodeString(t); err == nil {
			return b
		}
		return t
	default:
		return t
	}
}
