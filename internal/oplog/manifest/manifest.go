// Package manifest implements the content-addressed manifest record
// that names a database: its type, its access controller, and
// optional metadata (spec.md §6).
package manifest

import (
	"context"
	"fmt"

	"github.com/meshlog/oplogsync/internal/common"
	"github.com/meshlog/oplogsync/internal/dialect"
	"github.com/meshlog/oplogsync/internal/oplog/codec"
)

// Manifest is a database's manifest record. AccessController is
// serialized under the key "access_controller" in the legacy dialect
// and "accessController" in the current one; Decode and Load read either
// form and always expose this canonical field name.
type Manifest struct {
	Name             string
	Type             string
	AccessController string
	Meta             any

	Hash string
}

// Create builds a manifest. It fails with ErrInvalidArgument if name,
// typ or accessController is empty.
func Create(name, typ, accessController string, meta any) (Manifest, error) {
	if name == "" || typ == "" || accessController == "" {
		return Manifest{}, fmt.Errorf("%w: name, type and accessController are required", common.ErrInvalidArgument)
	}
	return Manifest{Name: name, Type: typ, AccessController: accessController, Meta: meta}, nil
}

// buildDoc renders m to its dialect-specific document shape: the
// access controller travels under the legacy "access_controller" key
// in v1 and "accessController" in v2.
func buildDoc(m Manifest, d dialect.Dialect) map[string]any {
	doc := map[string]any{
		"name": m.Name,
		"type": m.Type,
	}
	if d == dialect.V1 {
		doc["access_controller"] = m.AccessController
	} else {
		doc["accessController"] = m.AccessController
	}
	if m.Meta != nil {
		doc["meta"] = m.Meta
	}
	return doc
}

// Encode renders the manifest to its dialect-specific document and
// computes its content-identifier, returning both the encoded
// manifest and the CBOR bytes so a caller that also needs to persist
// it (Store) doesn't have to rebuild the document.
func Encode(ctx context.Context, c codec.Codec, m Manifest, d dialect.Dialect) (Manifest, []byte, error) {
	data, err := c.EncodeCBOR(ctx, buildDoc(m, d))
	if err != nil {
		return Manifest{}, nil, fmt.Errorf("manifest: encode: %w", err)
	}
	id, err := c.CIDForCBOR(ctx, data)
	if err != nil {
		return Manifest{}, nil, fmt.Errorf("manifest: hash: %w", err)
	}
	hash, err := id.StringOfBase(d.Multibase())
	if err != nil {
		return Manifest{}, nil, fmt.Errorf("manifest: render content-identifier: %w", err)
	}

	out := m
	out.Hash = hash
	return out, data, nil
}

// Decode reads a manifest document back, accepting either the legacy
// "access_controller" key or the current "accessController" key.
func Decode(ctx context.Context, c codec.Codec, data []byte) (Manifest, error) {
	var doc map[string]any
	if err := c.DecodeCBOR(ctx, data, &doc); err != nil {
		return Manifest{}, fmt.Errorf("manifest: decode: %w", err)
	}

	accessController, _ := doc["accessController"].(string)
	if accessController == "" {
		accessController, _ = doc["access_controller"].(string)
	}

	name, _ := doc["name"].(string)
	typ, _ := doc["type"].(string)

	return Manifest{
		Name:             name,
		Type:             typ,
		AccessController: accessController,
		Meta:             doc["meta"],
	}, nil
}

// Store encodes the manifest and writes it to the block store, keyed
// by its own content-identifier.
func Store(ctx context.Context, c codec.Codec, store BlockStore, m Manifest, d dialect.Dialect) (Manifest, error) {
	encoded, data, err := Encode(ctx, c, m, d)
	if err != nil {
		return Manifest{}, err
	}

	if err := store.Put(ctx, encoded.Hash, data); err != nil {
		return Manifest{}, fmt.Errorf("manifest: store: %w", err)
	}
	return encoded, nil
}

// Load fetches and decodes a manifest by its content-identifier
// string.
func Load(ctx context.Context, c codec.Codec, store BlockStore, hash string) (Manifest, error) {
	data, err := store.Get(ctx, hash)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest: load: %w", err)
	}
	m, err := Decode(ctx, c, data)
	if err != nil {
		return Manifest{}, err
	}
	m.Hash = hash
	return m, nil
}

// BlockStore is the minimal content-addressed key/value capability
// manifest storage needs. The full block storage contract lives in
// internal/storage/blockstore; this narrower view keeps the manifest
// package's dependency surface small.
type BlockStore interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Loader binds a codec and a block store together so callers that
// only need lookup-by-hash (the admin HTTP surface, §3.8) don't have
// to carry both around separately.
type Loader struct {
	Codec codec.Codec
	Store BlockStore
}

func (l Loader) Load(ctx context.Context, hash string) (Manifest, error) {
	return Load(ctx, l.Codec, l.Store, hash)
}
