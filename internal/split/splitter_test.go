package split

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mobiunpack/mobiunpack/internal/palmdb"
)

func TestSplitPartitionsRecords(t *testing.T) {
	recs := [][]byte{
		[]byte("mobi6-header"),
		[]byte("mobi6-text-1"),
		[]byte("mobi6-text-2"),
		[]byte("shared-image-1"),
		[]byte("kf8-boundary"),
		[]byte("kf8-header"),
		[]byte("kf8-text-1"),
	}
	// lastContentIndex=2 (the two mobi6 text records), boundary at index 4.
	result, err := Split(recs, 4, 2)
	require.NoError(t, err)

	require.Equal(t, [][]byte{recs[0], recs[1], recs[2], recs[3]}, result.Mobi7Records)
	require.Equal(t, [][]byte{recs[5], recs[6], recs[3]}, result.Mobi8Records)
	require.Equal(t, [][]byte{recs[3]}, result.ImageRecords)
}

func TestSplitMissingBoundary(t *testing.T) {
	_, err := Split([][]byte{[]byte("a")}, 5, 0)
	require.Error(t, err)
}

// TestRebuildPalmDBRoundTrip rebuilds each half produced by Split into a
// standalone Palm-DB container and reads it back via palmdb.New, the S3
// scenario: a split-out half must be independently loadable.
func TestRebuildPalmDBRoundTrip(t *testing.T) {
	records := [][]byte{
		[]byte("record zero, the header"),
		[]byte("record one"),
		[]byte("record two, a bit longer than the others"),
	}

	data, err := RebuildPalmDB("split-half", records)
	require.NoError(t, err)

	sec, err := palmdb.New(data)
	require.NoError(t, err)
	require.True(t, sec.IsMobi)
	require.Equal(t, len(records), sec.NumRecords())

	for i, want := range records {
		require.Equal(t, want, sec.Section(i))
	}
}

func TestPatchExtraFlags(t *testing.T) {
	rec0 := make([]byte, 260)
	binary.BigEndian.PutUint32(rec0[242:246], 0xFFFFFFFF)

	mobi6 := append([]byte{}, rec0...)
	PatchExtraFlags(mobi6, false)
	require.Equal(t, uint32(Mobi7FlagMask), binary.BigEndian.Uint32(mobi6[242:246]))

	mobi8 := append([]byte{}, rec0...)
	PatchExtraFlags(mobi8, true)
	want := (uint32(0xFFFFFFFF) & Mobi8FlagMask) | Mobi8FlagForce
	require.Equal(t, want, binary.BigEndian.Uint32(mobi8[242:246]))
}

func TestRenumberIndex(t *testing.T) {
	require.Equal(t, uint32(0xFFFFFFFF), RenumberIndex(0xFFFFFFFF, -10))
	require.Equal(t, uint32(5), RenumberIndex(15, -10))
}

func TestEXTHPatch(t *testing.T) {
	table := map[uint32][][]byte{
		121: {{1, 2, 3}},
		129: {{4, 5}},
		125: {{0, 0, 0, 9}},
		116: {[]byte("first"), []byte("last")},
		100: {[]byte("kept")},
	}
	out := EXTHPatch(table, 3)

	_, has121 := out[121]
	require.False(t, has121)
	_, has129 := out[129]
	require.False(t, has129)
	require.Equal(t, uint32(3), binary.BigEndian.Uint32(out[125][0]))
	require.Equal(t, [][]byte{[]byte("last")}, out[116])
	require.Equal(t, [][]byte{[]byte("kept")}, out[100])
}
