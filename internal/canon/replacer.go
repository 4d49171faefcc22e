package canon

import (
	"encoding/base64"

	"github.com/ipfs/go-cid"
	mbase "github.com/multiformats/go-multibase"
)

// Replace walks a Go value tree built by hand (not yet passed through
// encoding/json) and rewrites raw byte sequences to base64-padded
// strings and content-identifiers to their multibase string form under
// base, so the result is safe to hand to JSON. It recurses through
// map[string]any and []any; every other type passes through unchanged.
func Replace(v any, base mbase.Encoding) any {
	switch t := v.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case cid.Cid:
		s, err := t.StringOfBase(base)
		if err != nil {
			return t.String()
		}
		return s
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Replace(val, base)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Replace(val, base)
		}
		return out
	default:
		return t
	}
}
