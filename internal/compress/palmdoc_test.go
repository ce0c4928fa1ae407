package compress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecompressPalmDOC(t *testing.T) {
	// 0xC1 = space + ('A'^0x80 == 0x41^0x80 == 0xC1 -> 'A'), exercising the
	// space-plus-letter opcode range alongside plain literals.
	src := []byte{0x03, 'c', 'a', 't', 0xC1}
	require.Equal(t, []byte("cat A"), DecompressPalmDOC(src))
}

func TestDecompressPalmDOCBackReference(t *testing.T) {
	// literal run "abc" followed by a back-reference copying 3 bytes from
	// distance 3 (i.e. "abc" again): combined = (3<<3 | (3-3)) | 0x8000.
	combined := uint16((3&0x7FF)<<3|0) | 0x8000
	src := []byte{0x03, 'a', 'b', 'c', byte(combined >> 8), byte(combined)}
	require.Equal(t, []byte("abcabc"), DecompressPalmDOC(src))
}

func TestPalmDOCRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"a",
		"The quick brown fox jumps over the lazy dog.",
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"Twenty Thousand Leagues Under the Sea, Twenty Thousand Leagues Under the Sea",
	}
	for _, text := range cases {
		compressed := CompressPalmDOC([]byte(text))
		require.Equal(t, text, string(DecompressPalmDOC(compressed)))
	}
}

func TestTrailingFlagsDecode(t *testing.T) {
	entries, multibyte := TrailingFlagsDecode(0b0111)
	require.True(t, multibyte)
	require.Equal(t, 2, entries)

	entries, multibyte = TrailingFlagsDecode(0)
	require.False(t, multibyte)
	require.Equal(t, 0, entries)
}

func TestTrimTrailingEntries(t *testing.T) {
	// A single variable-length trailing entry whose backward septet (the
	// tail byte itself, high bit set) declares a total length of 2 bytes
	// -- itself plus one byte of entry payload -- both stripped.
	data := append([]byte("hello"), 0x82)
	trimmed := TrimTrailingEntries(data, 1, false)
	require.Equal(t, []byte("hell"), trimmed)
}
