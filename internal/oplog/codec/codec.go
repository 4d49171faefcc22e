// Package codec wraps the two external collaborators spec.md §1 calls
// the "CBOR codec" and "SHA-256 hasher": DAG-CBOR encode/decode for the
// v2 dialect's signing image and content-identifier construction for
// both dialects. The oplog core never imports go-ipld-cbor directly —
// CBOR encoding, decoding and CID construction go through this
// package's Codec interface; go-cid is used elsewhere only for the
// cid.Cid type and for parsing and rendering CID strings.
package codec

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	cbornode "github.com/ipfs/go-ipld-cbor"
	mh "github.com/multiformats/go-multihash"
)

// Multicodec codes for the two block flavors the core produces. These
// mirror the well-known values from the multicodec table; go-cid does
// not re-export them as named constants in every release, so they are
// pinned here explicitly.
const (
	codecRaw     = 0x55
	codecDagCBOR = 0x71
)

// Codec is the DAG-CBOR encode/decode/CID-build collaborator. create,
// encode and decode (spec.md §4.2, §4.3) consume it through this
// interface only.
type Codec interface {
	// EncodeCBOR returns the canonical DAG-CBOR encoding of v.
	EncodeCBOR(ctx context.Context, v any) ([]byte, error)

	// DecodeCBOR decodes a DAG-CBOR block into v, a pointer to a struct
	// or map.
	DecodeCBOR(ctx context.Context, data []byte, v any) error

	// CIDForCBOR returns the CIDv1 a DAG-CBOR block hashes to, without
	// requiring the caller to re-derive the multicodec/multihash
	// parameters itself.
	CIDForCBOR(ctx context.Context, data []byte) (cid.Cid, error)

	// CIDForRaw returns the CIDv1 (raw multicodec) a non-CBOR block of
	// bytes hashes to. Entry and manifest encoding use CIDForCBOR in both
	// dialects, not this.
	CIDForRaw(ctx context.Context, data []byte) (cid.Cid, error)
}

// IPLDCBORCodec is the default Codec, backed by go-ipld-cbor and
// go-cid, hashing with SHA2-256 as both wire dialects require.
type IPLDCBORCodec struct{}

func NewIPLDCBORCodec() *IPLDCBORCodec {
	return &IPLDCBORCodec{}
}

func (c *IPLDCBORCodec) EncodeCBOR(_ context.Context, v any) ([]byte, error) {
	node, err := cbornode.WrapObject(v, mh.SHA2_256, -1)
	if err != nil {
		return nil, fmt.Errorf("codec: encode cbor: %w", err)
	}
	return node.RawData(), nil
}

func (c *IPLDCBORCodec) DecodeCBOR(_ context.Context, data []byte, v any) error {
	node, err := cbornode.Decode(data, mh.SHA2_256, -1)
	if err != nil {
		return fmt.Errorf("codec: decode cbor: %w", err)
	}
	if err := cbornode.DecodeInto(node.RawData(), v); err != nil {
		return fmt.Errorf("codec: decode cbor into value: %w", err)
	}
	return nil
}

func (c *IPLDCBORCodec) CIDForCBOR(_ context.Context, data []byte) (cid.Cid, error) {
	return buildCID(codecDagCBOR, data)
}

func (c *IPLDCBORCodec) CIDForRaw(_ context.Context, data []byte) (cid.Cid, error) {
	return buildCID(codecRaw, data)
}

func buildCID(codecType uint64, data []byte) (cid.Cid, error) {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("codec: hash block: %w", err)
	}
	return cid.NewCidV1(codecType, sum), nil
}
