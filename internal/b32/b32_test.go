package b32

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 31, 32, 1023, 1024, 1048575, 4294967295}
	for _, v := range values {
		encoded := Encode(v, 7)
		require.Equal(t, v, Decode(encoded))
	}
}

func TestEncodePadsToWidth(t *testing.T) {
	require.Equal(t, "0000000", Encode(0, 7))
	require.Len(t, Encode(1, 7), 7)
	require.Equal(t, "0000001", Encode(1, 7))
}

func TestDecodeIsCaseInsensitive(t *testing.T) {
	require.Equal(t, Decode("abcdef"), Decode("ABCDEF"))
}
