package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMakeRandHexString_LengthAndUniqueness(t *testing.T) {
	s1, err := MakeRandHexString(16)
	require.NoError(t, err)
	require.Len(t, s1, 32)

	s2, err := MakeRandHexString(16)
	require.NoError(t, err)
	require.NotEqual(t, s1, s2)
}

func TestWipeByteArray_ZeroesInPlace(t *testing.T) {
	b := []byte("super secret passphrase")
	WipeByteArray(b)
	for _, c := range b {
		require.Zero(t, c)
	}
}

func TestWipeByteArray_NilIsNoop(t *testing.T) {
	WipeByteArray(nil)
}
