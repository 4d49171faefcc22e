package marshal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshlog/oplogsync/internal/dialect"
	"github.com/meshlog/oplogsync/internal/oplog/codec"
)

func TestMarshalUnmarshal_V2RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := codec.NewIPLDCBORCodec()
	env := Envelope{
		Address: "/orbitdb/bafkqaaa/db",
		Heads: []any{
			map[string]any{"id": "log-1", "identity": "identity-hash-ref"},
		},
	}

	data, err := Marshal(ctx, env, dialect.V2, c)
	require.NoError(t, err)

	got, err := Unmarshal(ctx, data, dialect.V2, c)
	require.NoError(t, err)
	require.Equal(t, env.Address, got.Address)
	require.Len(t, got.Heads, 1)

	head := got.Heads[0].(map[string]any)
	require.Equal(t, "log-1", head["id"])
	require.Equal(t, "identity-hash-ref", head["identity"])
}

// TestMarshalUnmarshal_V2PreservesBytePayload guards against routing the
// v2 envelope through encoding/json, which renders a []byte map value as
// a base64 string and silently changes what a receiver re-hashes.
func TestMarshalUnmarshal_V2PreservesBytePayload(t *testing.T) {
	ctx := context.Background()
	c := codec.NewIPLDCBORCodec()
	env := Envelope{
		Address: "/orbitdb/bafkqaaa/db",
		Heads: []any{
			map[string]any{
				"id":      "log-1",
				"payload": map[string]any{"op": "PUT", "key": "k", "value": []byte("hello")},
			},
		},
	}

	data, err := Marshal(ctx, env, dialect.V2, c)
	require.NoError(t, err)

	got, err := Unmarshal(ctx, data, dialect.V2, c)
	require.NoError(t, err)

	head := got.Heads[0].(map[string]any)
	payload := head["payload"].(map[string]any)
	require.Equal(t, []byte("hello"), payload["value"])
}

func TestMarshalUnmarshal_V1RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := codec.NewIPLDCBORCodec()
	env := Envelope{
		Address: "/orbitdb/bafkqaaa/db",
		Heads: []any{
			map[string]any{"id": "log-1", "identity": map[string]any{"id": "pubkey-hex"}},
		},
	}

	data, err := Marshal(ctx, env, dialect.V1, c)
	require.NoError(t, err)

	got, err := Unmarshal(ctx, data, dialect.V1, c)
	require.NoError(t, err)
	require.Equal(t, env.Address, got.Address)
	require.Len(t, got.Heads, 1)
}

func TestUnmarshal_V1NormalizesAmbiguousIdentityID(t *testing.T) {
	ctx := context.Background()
	c := codec.NewIPLDCBORCodec()
	// "aGVsbG8=" decodes as valid base64, so the reviver will turn it
	// into bytes; the marshaler must normalize it back for id fields.
	raw := []byte(`{"address":"/orbitdb/bafkqaaa/db","heads":[{"id":"aGVsbG8=","identity":{"id":"aGVsbG8="}}]}`)

	got, err := Unmarshal(ctx, raw, dialect.V1, c)
	require.NoError(t, err)
	require.Len(t, got.Heads, 1)

	head := got.Heads[0].(map[string]any)
	require.Equal(t, "aGVsbG8=", head["id"])

	id := head["identity"].(map[string]any)
	require.Equal(t, "aGVsbG8=", id["id"])
}

// TestUnmarshal_V1NormalizesHexIdentifiers guards against the reviver
// silently turning key/sig/clock.id/identity hex fields into bytes: hex
// digits are a subset of the base64 alphabet, so a real 64-char public
// key or 128-char signature decodes successfully as base64 garbage
// unless normalizeAmbiguousFields repairs it back to a string.
func TestUnmarshal_V1NormalizesHexIdentifiers(t *testing.T) {
	ctx := context.Background()
	c := codec.NewIPLDCBORCodec()
	key := "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f9"
	sig := key + key
	raw := []byte(`{"address":"/orbitdb/bafkqaaa/db","heads":[{` +
		`"id":"log-1","key":"` + key + `","sig":"` + sig + `",` +
		`"clock":{"id":"` + key + `","time":0},` +
		`"identity":{"id":"` + key + `","publicKey":"` + key + `",` +
		`"signatures":{"id":"` + key + `","publicKey":"` + key + `"}}` +
		`}]}`)

	got, err := Unmarshal(ctx, raw, dialect.V1, c)
	require.NoError(t, err)
	require.Len(t, got.Heads, 1)

	head := got.Heads[0].(map[string]any)
	require.Equal(t, key, head["key"])
	require.Equal(t, sig, head["sig"])

	clk := head["clock"].(map[string]any)
	require.Equal(t, key, clk["id"])

	id := head["identity"].(map[string]any)
	require.Equal(t, key, id["id"])
	require.Equal(t, key, id["publicKey"])

	sigs := id["signatures"].(map[string]any)
	require.Equal(t, key, sigs["id"])
	require.Equal(t, key, sigs["publicKey"])
}
