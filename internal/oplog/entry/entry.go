// Package entry implements the cryptographic envelope at the center of
// the oplog core: construction, canonical serialization, signing,
// content-addressing and verification of log entries in both wire
// dialects, and lossless projection from the legacy dialect to the
// current one.
package entry

import (
	"github.com/ipfs/go-cid"

	"github.com/meshlog/oplogsync/internal/dialect"
	"github.com/meshlog/oplogsync/internal/oplog/clock"
	"github.com/meshlog/oplogsync/internal/oplog/identity"
)

// Entry is one immutable operation in a log. ID, Payload, Next, Refs,
// Clock and V are the signed fields (§4.2); Key, Identity, Sig, Hash
// and Bytes are attached after signing and encoding.
type Entry struct {
	// Signed fields.
	ID      string
	Payload any
	Next    []cid.Cid
	Refs    []cid.Cid
	Clock   clock.Clock
	V       int

	// AdditionalData is an optional placeholder carried in the v1
	// signing image when present on the originating record. Unset for
	// entries this process creates.
	AdditionalData any

	// Attached fields.
	Key      string // hex-encoded author public key
	Identity string // v2: hash reference to the identity document; v1: unused, see IdentityDoc
	Sig      string // hex-encoded signature over the signing image
	Hash     string // content-identifier of the full document, in the dialect's multibase
	Bytes    []byte // raw encoded document bytes

	Dialect dialect.Dialect

	// IdentityDoc is the full identity document. Create populates it in
	// both dialects, and v1 decoding fills it from the inline document;
	// under v2 only its hash is written to the wire, so an entry decoded
	// from v2 (Decode, FromWireMap) leaves it empty.
	IdentityDoc identity.Identity

	// GoV1 carries the original v1 wire document when this entry was
	// decoded from (or projected out of) a v1 envelope. Re-verification
	// of a v1-origin entry must use this image: the v1 signing image
	// cannot be reconstructed from the v2-shaped fields alone, since it
	// depends on the exact original payload string and field ordering.
	GoV1 *V1Envelope
}

// V1Envelope is the preserved legacy wire document backing an entry
// that originated in (or was projected to look like) the v1 dialect.
type V1Envelope struct {
	// Raw is the v1 document tree: the decoded block for Decode, the
	// wire map for FromWireMap, or, for ProjectToV2 of a locally created
	// v1 entry, a map rebuilt from its signed fields.
	Raw map[string]any
}

// CreateOptions carries the optional inputs to Create.
type CreateOptions struct {
	Clock *clock.Clock
	Next  []cid.Cid
	Refs  []cid.Cid
}

// IsEntry is the structural predicate over an already-decoded value:
// true if obj looks like an entry document (has the signed-field
// shape), independent of whether it verifies.
func IsEntry(obj any) bool {
	m, ok := obj.(map[string]any)
	if !ok {
		return false
	}
	for _, k := range []string{"id", "payload", "next", "refs", "clock", "v"} {
		if _, present := m[k]; !present {
			return false
		}
	}
	return true
}

// IsEqual reports whether a and b are the same content-addressed
// entry.
func IsEqual(a, b *Entry) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Hash == b.Hash
}
