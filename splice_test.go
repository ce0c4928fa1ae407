package mobiunpack

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mobiunpack/mobiunpack/internal/index"
	"github.com/mobiunpack/mobiunpack/internal/logging"
	"github.com/mobiunpack/mobiunpack/internal/mobi"
	"github.com/mobiunpack/mobiunpack/internal/palmdb"
	"github.com/mobiunpack/mobiunpack/internal/split"
	"github.com/mobiunpack/mobiunpack/varint"
)

func TestSpliceHTMLMergesAnchorsInOrder(t *testing.T) {
	html := []byte("0123456789")
	splices := []htmlSplice{
		{offset: 5, text: "[B]"},
		{offset: 2, text: "[A]"},
	}

	out := spliceHTML(html, splices)
	require.Equal(t, "01[A]234[B]56789", string(out))
}

func TestSpliceHTMLNoSplicesReturnsInput(t *testing.T) {
	html := []byte("unchanged")
	require.Equal(t, html, spliceHTML(html, nil))
}

func TestSpliceHTMLSkipsOutOfRangeOffsets(t *testing.T) {
	html := []byte("short")
	splices := []htmlSplice{{offset: 100, text: "[X]"}}
	require.Equal(t, "short", string(spliceHTML(html, splices)))
}

func TestDictionarySplicesAbsentIndex(t *testing.T) {
	h := &mobi.Header{OrthIndex: mobi.AbsentIndex, InflIndex: mobi.AbsentIndex}
	require.Nil(t, dictionarySplices(nil, h, logging.New(nil)))
}

// buildOrthRecord builds one INDX data record for a single orthographic
// entry keyed by word, with tag 0x01 (start) and 0x02 (length).
func buildOrthRecord(word string, start, length int) []byte {
	const idxtHeaderWords = 13
	headerLen := 4 + idxtHeaderWords*4

	tagBytes := []byte{0x03} // control byte: bits for tag 0x01 (mask 0x01) and 0x02 (mask 0x02) set
	tagBytes = append(tagBytes, varint.EncodeForward(uint32(start))...)
	tagBytes = append(tagBytes, varint.EncodeForward(uint32(length))...)

	entry := append([]byte{byte(len(word))}, []byte(word)...)
	entry = append(entry, tagBytes...)

	idxtPos := headerLen + len(entry)
	rec := make([]byte, headerLen)
	copy(rec[0:4], "INDX")
	putWord := func(i int, v uint32) {
		binary.BigEndian.PutUint32(rec[4+i*4:], v)
	}
	putWord(4, uint32(idxtPos))
	putWord(5, 1)

	rec = append(rec, entry...)
	rec = append(rec, []byte("IDXT")...)
	offBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(offBuf, uint16(headerLen))
	rec = append(rec, offBuf...)
	return rec
}

func buildOrthRoot() []byte {
	const rootHeaderWords = 13
	rootHeaderLen := 4 + rootHeaderWords*4

	tags := []index.TagXEntry{
		{Tag: 0x01, ValuesPerEntry: 1, Mask: 0x01},
		{Tag: 0x02, ValuesPerEntry: 1, Mask: 0x02},
		{EndFlag: 1},
	}
	var tagx []byte
	tagx = append(tagx, []byte("TAGX")...)
	firstEntryOffset := 12 + len(tags)*4
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(firstEntryOffset))
	tagx = append(tagx, lenBuf...)
	cbBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(cbBuf, 1)
	tagx = append(tagx, cbBuf...)
	for _, tag := range tags {
		tagx = append(tagx, tag.Tag, tag.ValuesPerEntry, tag.Mask, tag.EndFlag)
	}

	root := make([]byte, rootHeaderLen)
	copy(root[0:4], "INDX")
	putRootWord := func(i int, v uint32) {
		binary.BigEndian.PutUint32(root[4+i*4:], v)
	}
	putRootWord(0, uint32(rootHeaderLen))
	putRootWord(5, 1) // one data record
	putRootWord(12, 0)
	return append(root, tagx...)
}

// TestDictionarySplicesProducesWrappedEntry builds a one-word orthographic
// index inside a real Palm-DB container (via split.RebuildPalmDB, reusing
// the same construction the splitter's round-trip test exercises) and
// checks dictionarySplices wraps the headword's rawML span in
// idx:entry/idx:orth markers at the recorded offsets.
func TestDictionarySplicesProducesWrappedEntry(t *testing.T) {
	root := buildOrthRoot()
	data := buildOrthRecord("nautilus", 3, 8)

	records := [][]byte{
		[]byte("mobi6-header-placeholder"),
		root,
		data,
	}
	blob, err := split.RebuildPalmDB("fixture", records)
	require.NoError(t, err)

	sec, err := palmdb.New(blob)
	require.NoError(t, err)

	h := &mobi.Header{OrthIndex: 1, InflIndex: mobi.AbsentIndex}
	splices := dictionarySplices(sec, h, logging.New(nil))

	require.Len(t, splices, 2)
	require.Equal(t, 3, splices[0].offset)
	require.Equal(t, `<idx:entry scriptable="yes"><idx:orth value="nautilus">`, splices[0].text)
	require.Equal(t, 11, splices[1].offset)
	require.Equal(t, "</idx:orth></idx:entry>", splices[1].text)

	html := []byte("xxx" + "nautilus" + "yyy")
	out := spliceHTML(html, splices)
	require.Equal(t, `xxx<idx:entry scriptable="yes"><idx:orth value="nautilus">nautilus</idx:orth></idx:entry>yyy`, string(out))
}
