package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHumanSize(t *testing.T) {
	require.Equal(t, "0 B", HumanSize(0))
	require.Equal(t, "0 B", HumanSize(-5))
	require.Equal(t, "1.0 kB", HumanSize(1000))
}

func TestSizeMB(t *testing.T) {
	require.Equal(t, float64(0), SizeMB(0))
	require.Equal(t, float64(1), SizeMB(1024*1024))
	require.Equal(t, 0.5, SizeMB(512*1024))
}

func TestCombinedSize(t *testing.T) {
	require.Equal(t, "0 bytes (0 B)", CombinedSize(0))
	require.Equal(t, "1000 bytes (1.0 kB)", CombinedSize(1000))
}
