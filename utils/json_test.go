package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMarshalUnmarshal(t *testing.T) {
	data, err := Marshal(sample{Name: "entry", Count: 3})
	require.NoError(t, err)

	var decoded sample
	require.NoError(t, Unmarshal(data, &decoded))
	require.Equal(t, sample{Name: "entry", Count: 3}, decoded)
}

func TestUnmarshalConfig(t *testing.T) {
	var target sample

	// Typed fast path.
	require.NoError(t, UnmarshalConfig(&sample{Name: "direct", Count: 1}, &target))
	require.Equal(t, "direct", target.Name)

	// Map round trip, the shape YAML config blobs arrive in.
	require.NoError(t, UnmarshalConfig(map[string]interface{}{"name": "mapped", "count": 2}, &target))
	require.Equal(t, sample{Name: "mapped", Count: 2}, target)

	require.Error(t, UnmarshalConfig[sample](nil, &target))
}
