package canon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSON_SortsKeysRecursively(t *testing.T) {
	a := map[string]any{"b": 1, "a": map[string]any{"z": 1, "y": 2}}
	b := map[string]any{"a": map[string]any{"y": 2, "z": 1}, "b": 1}

	ja, err := JSON(a)
	require.NoError(t, err)
	jb, err := JSON(b)
	require.NoError(t, err)

	require.Equal(t, string(ja), string(jb))
	require.Equal(t, `{"a":{"y":2,"z":1},"b":1}`, string(ja))
}

func TestJSON_IntegersHaveNoDecimalPoint(t *testing.T) {
	out, err := JSON(map[string]any{"time": int64(5)})
	require.NoError(t, err)
	require.Equal(t, `{"time":5}`, string(out))
}

func TestJSON_NoWhitespace(t *testing.T) {
	out, err := JSON([]any{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, `[1,2,3]`, string(out))
}

func TestJSON_StablePermutation(t *testing.T) {
	orderings := []map[string]any{
		{"x": 1, "y": 2, "z": 3},
		{"z": 3, "x": 1, "y": 2},
		{"y": 2, "z": 3, "x": 1},
	}

	var want string
	for i, v := range orderings {
		got, err := JSON(v)
		require.NoError(t, err)
		if i == 0 {
			want = string(got)
			continue
		}
		require.Equal(t, want, string(got))
	}
}
