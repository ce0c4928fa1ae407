package index

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mobiunpack/mobiunpack/varint"
)

// buildTAGX builds a standalone TAGX section, as ReadTagSection expects:
// the header followed by one 4-byte descriptor per tag. Any EndFlag==1
// control-byte-group marker rows are part of the tags the caller passes.
func buildTAGX(controlByteCount int, tags []TagXEntry) []byte {
	var buf []byte
	buf = append(buf, []byte("TAGX")...)
	firstEntryOffset := 12 + len(tags)*4
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(firstEntryOffset))
	buf = append(buf, lenBuf...)
	cbBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(cbBuf, uint32(controlByteCount))
	buf = append(buf, cbBuf...)
	for _, tag := range tags {
		buf = append(buf, tag.Tag, tag.ValuesPerEntry, tag.Mask, tag.EndFlag)
	}
	return buf
}

func TestReadTagSection(t *testing.T) {
	tags := []TagXEntry{
		{Tag: 1, ValuesPerEntry: 1, Mask: 0x01},
		{Tag: 0, ValuesPerEntry: 0, Mask: 0x00, EndFlag: 1},
	}
	data := buildTAGX(1, tags)

	cbCount, entries, err := ReadTagSection(data, 0)
	require.NoError(t, err)
	require.Equal(t, 1, cbCount)
	require.Equal(t, tags, entries)
}

func TestReadTagSectionBadMagic(t *testing.T) {
	_, _, err := ReadTagSection([]byte("NOTTAGX_____"), 0)
	require.Error(t, err)
}

func TestGetTagMapSingleValue(t *testing.T) {
	tags := []TagXEntry{
		{Tag: 1, ValuesPerEntry: 1, Mask: 0x01},
	}
	// one control byte with bit 0 set (count=1), followed by one
	// forward-encoded varint value.
	data := append([]byte{0x01}, varint.EncodeForward(42)...)

	result := GetTagMap(1, tags, data, 0, len(data))
	require.Equal(t, []uint32{42}, result[1])
}

func TestGetTagMapLengthPrefixed(t *testing.T) {
	// a 2-bit mask (0x03) signals a byte-length-prefixed value group.
	tags := []TagXEntry{
		{Tag: 0x2A, ValuesPerEntry: 1, Mask: 0x03},
	}
	values := append(varint.EncodeForward(5), varint.EncodeForward(6)...)
	lengthPrefix := varint.EncodeForward(uint32(len(values)))

	data := append([]byte{0x03}, lengthPrefix...)
	data = append(data, values...)

	result := GetTagMap(1, tags, data, 0, len(data))
	require.Equal(t, []uint32{5, 6}, result[0x2A])
}

// buildDataRecord assembles one INDX data record: its own 13-word header,
// the entry's text bytes, its encoded tag values, and an IDXT offset
// table trailing the record, mirroring what readDataRecord expects.
func buildDataRecord(text string, tagBytes []byte) []byte {
	const idxtHeaderWords = 13
	headerLen := 4 + idxtHeaderWords*4

	entry := append([]byte{byte(len(text))}, []byte(text)...)
	entry = append(entry, tagBytes...)

	idxtPos := headerLen + len(entry)

	rec := make([]byte, headerLen)
	copy(rec[0:4], "INDX")
	putWord := func(i int, v uint32) {
		binary.BigEndian.PutUint32(rec[4+i*4:], v)
	}
	putWord(4, uint32(idxtPos)) // Start (IDXT table offset)
	putWord(5, 1)               // Count: one entry in this record

	rec = append(rec, entry...)
	rec = append(rec, []byte("IDXT")...)
	offBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(offBuf, uint16(headerLen))
	rec = append(rec, offBuf...)
	return rec
}

func TestReadIndexRoundTrip(t *testing.T) {
	tags := []TagXEntry{
		{Tag: 1, ValuesPerEntry: 1, Mask: 0x01},
	}
	tagBytes := append([]byte{0x01}, varint.EncodeForward(7)...)
	dataRec := buildDataRecord("chapter1", tagBytes)

	const rootHeaderWords = 13
	rootHeaderLen := 4 + rootHeaderWords*4
	tagx := buildTAGX(1, append(tags, TagXEntry{EndFlag: 1}))

	root := make([]byte, rootHeaderLen)
	copy(root[0:4], "INDX")
	putRootWord := func(i int, v uint32) {
		binary.BigEndian.PutUint32(root[4+i*4:], v)
	}
	putRootWord(0, uint32(rootHeaderLen)) // Len: TAGX start offset within root
	putRootWord(5, 1)                     // Count: one data record follows
	putRootWord(12, 1)                    // Nctoc: one CNCX record follows
	root = append(root, tagx...)

	cncx := append(varint.EncodeForward(5), []byte("entry")...)

	records := [][]byte{root, dataRec, cncx}
	load := func(i int) []byte {
		if i < 0 || i >= len(records) {
			return nil
		}
		return records[i]
	}

	idx, err := ReadIndex(load, 0)
	require.NoError(t, err)
	require.Len(t, idx.Entries, 1)
	require.Equal(t, "chapter1", string(idx.Entries[0].Text))
	require.Equal(t, []uint32{7}, idx.Entries[0].TagMap[1])
	require.Equal(t, "entry", string(idx.CNCX[0]))
}
