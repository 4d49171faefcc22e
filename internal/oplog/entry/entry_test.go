package entry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshlog/oplogsync/internal/dialect"
	"github.com/meshlog/oplogsync/internal/oplog/codec"
	"github.com/meshlog/oplogsync/internal/oplog/identity"
)

func newTestProvider(t *testing.T) *identity.Ed25519Provider {
	p, err := identity.GenerateEd25519Provider()
	require.NoError(t, err)
	return p
}

func TestCreateVerifyRoundTrip_V2(t *testing.T) {
	ctx := context.Background()
	c := codec.NewIPLDCBORCodec()
	p := newTestProvider(t)

	e, err := Create(ctx, c, p, "log-1", "hello", dialect.V2, CreateOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, e.V)
	require.Empty(t, e.Next)
	require.Empty(t, e.Refs)

	ok, err := Verify(ctx, p, c, e)
	require.NoError(t, err)
	require.True(t, ok)

	encoded, err := Encode(ctx, c, e)
	require.NoError(t, err)
	require.NotEmpty(t, encoded.Hash)
	require.NotEmpty(t, encoded.Bytes)

	decoded, err := Decode(ctx, c, encoded.Bytes)
	require.NoError(t, err)

	ok, err = Verify(ctx, p, c, decoded)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, encoded.Hash, decoded.Hash)
}

func TestCreateVerifyRoundTrip_V1(t *testing.T) {
	ctx := context.Background()
	c := codec.NewIPLDCBORCodec()
	p := newTestProvider(t)

	e, err := Create(ctx, c, p, "log-1", map[string]any{
		"op":    "PUT",
		"key":   "k",
		"value": []byte("hello"),
	}, dialect.V1, CreateOptions{})
	require.NoError(t, err)

	ok, err := Verify(ctx, p, c, e)
	require.NoError(t, err)
	require.True(t, ok)

	encoded, err := Encode(ctx, c, e)
	require.NoError(t, err)
	require.NotEmpty(t, encoded.Hash)

	decoded, err := Decode(ctx, c, encoded.Bytes)
	require.NoError(t, err)
	require.Equal(t, dialect.V1, decoded.Dialect)
	require.NotNil(t, decoded.GoV1)

	ok, err = Verify(ctx, p, c, decoded)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerify_RejectsTamperedSignature(t *testing.T) {
	ctx := context.Background()
	c := codec.NewIPLDCBORCodec()
	p := newTestProvider(t)

	e, err := Create(ctx, c, p, "log-1", "hello", dialect.V2, CreateOptions{})
	require.NoError(t, err)

	e.Sig = e.Sig[:len(e.Sig)-2] + "00"

	ok, err := Verify(ctx, p, c, e)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerify_FailsStructuralCheck(t *testing.T) {
	ctx := context.Background()
	c := codec.NewIPLDCBORCodec()
	p := newTestProvider(t)

	e := &Entry{}
	_, err := Verify(ctx, p, c, e)
	require.Error(t, err)
}

func TestIsEntry(t *testing.T) {
	require.True(t, IsEntry(map[string]any{
		"id": "x", "payload": "y", "next": []any{}, "refs": []any{}, "clock": map[string]any{}, "v": 2,
	}))
	require.False(t, IsEntry(map[string]any{"id": "x"}))
	require.False(t, IsEntry("not an entry"))
}

func TestIsEqual(t *testing.T) {
	a := &Entry{Hash: "abc"}
	b := &Entry{Hash: "abc"}
	c := &Entry{Hash: "def"}
	require.True(t, IsEqual(a, b))
	require.False(t, IsEqual(a, c))
	require.True(t, IsEqual(nil, nil))
	require.False(t, IsEqual(a, nil))
}

func TestProjectToV2_PreservesReverification(t *testing.T) {
	ctx := context.Background()
	c := codec.NewIPLDCBORCodec()
	p := newTestProvider(t)

	e, err := Create(ctx, c, p, "log-1", "hello", dialect.V1, CreateOptions{})
	require.NoError(t, err)

	projected, err := ProjectToV2(ctx, c, e)
	require.NoError(t, err)
	require.Equal(t, dialect.V2, projected.Dialect)
	require.NotEmpty(t, projected.Identity)
	require.NotNil(t, projected.GoV1)

	ok, err := Verify(ctx, p, c, projected)
	require.NoError(t, err)
	require.True(t, ok)
}
