// Package dialect names the two wire formats the oplog core speaks: the
// legacy v1 JSON dialect and the current v2 IPLD-CBOR dialect. It is
// threaded as an explicit sum type through create/encode/decode/marshal/
// unmarshal rather than read off a stringly-typed version field.
package dialect

import mbase "github.com/multiformats/go-multibase"

// Dialect selects the wire format an entry or envelope is expressed in.
type Dialect int

const (
	// V1 is the legacy dialect: canonical JSON signing image, hex/base64
	// wire encodings, base32 content-identifiers, inline identity document.
	V1 Dialect = 1
	// V2 is the current dialect: IPLD-CBOR signing image, base58btc
	// content-identifiers, identity carried by hash reference.
	V2 Dialect = 2
)

func (d Dialect) String() string {
	switch d {
	case V1:
		return "v1"
	case V2:
		return "v2"
	default:
		return "unknown"
	}
}

func (d Dialect) Valid() bool {
	return d == V1 || d == V2
}

// Multibase returns the dialect's preferred multibase encoding for
// rendering content-identifiers: base32 for v1, base58btc for v2.
func (d Dialect) Multibase() mbase.Encoding {
	if d == V1 {
		return mbase.Base32
	}
	return mbase.Base58BTC
}
