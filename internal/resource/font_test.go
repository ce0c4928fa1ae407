package resource

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeobfuscateRoundTrip(t *testing.T) {
	original := make([]byte, 2000)
	for i := range original {
		original[i] = byte(i)
	}
	key := []byte{0x13, 0x37, 0xAB, 0xCD}

	data := append([]byte{}, original...)
	deobfuscate(data, key)
	require.NotEqual(t, original, data)

	deobfuscate(data, key) // applying the same key twice restores the input
	require.Equal(t, original, data)
}

func TestDeobfuscateEmptyKeyIsNoop(t *testing.T) {
	data := []byte{1, 2, 3}
	deobfuscate(data, nil)
	require.Equal(t, []byte{1, 2, 3}, data)
}

func TestFontKeyFromUUID(t *testing.T) {
	key := FontKeyFromUUID("0123456789abcdef0123456789ABCDEF")
	require.Len(t, key, 32)
	require.Equal(t, byte(0x01), key[0])
	require.Equal(t, byte(0xEF), key[15])
}

func TestDecodeFontPlain(t *testing.T) {
	payload := []byte("OTTO-font-bytes-unobfuscated")
	rec := make([]byte, 24)
	copy(rec[0:4], "FONT")
	binary.BigEndian.PutUint32(rec[4:8], uint32(len(payload)))
	binary.BigEndian.PutUint32(rec[12:16], uint32(len(rec)))
	rec = append(rec, payload...)

	info, err := DecodeFont(rec)
	require.NoError(t, err)
	require.True(t, info.IsOTF)
	require.Equal(t, payload, info.Data)
}

func TestDecodeFontBadMagic(t *testing.T) {
	_, err := DecodeFont(make([]byte, 24))
	require.Error(t, err)
}

func TestHashContentDetectsIdenticalContent(t *testing.T) {
	a := []byte("cover image bytes")
	b := append([]byte{}, a...)
	c := []byte("different image bytes")

	require.Equal(t, HashContent(a), HashContent(b))
	require.NotEqual(t, HashContent(a), HashContent(c))
}
