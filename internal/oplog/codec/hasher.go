package codec

import "crypto/sha256"

// Hasher is a plain SHA-256 collaborator for a digest that is not
// itself wrapped in a CID. No package in this module calls it at
// present; CIDs are hashed inside Codec.
type Hasher interface {
	Sum256(data []byte) [32]byte
}

// SHA256Hasher is the default Hasher, backed by the standard library.
// go-ipld-cbor and go-cid only ever hash full blocks; this wraps the
// stdlib directly rather than routing a bare digest through either.
type SHA256Hasher struct{}

func NewSHA256Hasher() SHA256Hasher { return SHA256Hasher{} }

func (SHA256Hasher) Sum256(data []byte) [32]byte {
	return sha256.Sum256(data)
}
