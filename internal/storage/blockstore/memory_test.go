package blockstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGetHasDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "missing")
	require.True(t, errors.Is(err, ErrBlockNotFound))

	has, err := s.Has(ctx, "missing")
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, s.Put(ctx, "k1", []byte("hello")))

	v, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v)

	has, err = s.Has(ctx, "k1")
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, s.Delete(ctx, "k1"))
	_, err = s.Get(ctx, "k1")
	require.True(t, errors.Is(err, ErrBlockNotFound))
}

func TestMemoryStore_PutCopiesInput(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	b := []byte("hello")
	require.NoError(t, s.Put(ctx, "k1", b))
	b[0] = 'H'

	v, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v)
}
