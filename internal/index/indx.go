package index

import (
	"encoding/binary"

	"github.com/mobiunpack/mobiunpack/internal/mobierr"
	"github.com/mobiunpack/mobiunpack/varint"
)

// SectionLoader hands back record i's bytes; it is satisfied by
// (*palmdb.Sectionizer).Section, passed in rather than imported directly
// so this package stays free of a dependency on the container layer.
type SectionLoader func(i int) []byte

// Header is a parsed INDX record header.
type Header struct {
	Len    int // tag-section (TAGX) start offset within this record
	Type   uint32
	Gen    uint32
	Start  int // IDXT table offset
	Count  int // on the root record: number of data records; on a data record: number of entries
	Code   uint32
	Lang   uint32
	Total  uint32
	Ordt   int
	Ligt   int
	Nligt  uint32
	Nctoc  uint32
}

// ParseHeader reads the 13 header words that follow the INDX magic. ORDT
// tables are not read.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < 4 || string(data[0:4]) != "INDX" {
		return Header{}, &mobierr.FormatError{Reason: "bad INDX magic"}
	}
	word := func(i int) uint32 {
		off := 4 + i*4
		if off+4 > len(data) {
			return 0
		}
		return binary.BigEndian.Uint32(data[off:])
	}
	h := Header{
		Len:   int(word(0)),
		Type:  word(2),
		Gen:   word(3),
		Start: int(word(4)),
		Count: int(word(5)),
		Code:  word(6),
		Lang:  word(7),
		Total: word(8),
		Ordt:  int(word(9)),
		Ligt:  int(word(10)),
		Nligt: word(11),
		Nctoc: word(12),
	}
	return h, nil
}

// Entry is one decoded INDX data-record entry: its short text key and its
// tag map.
type Entry struct {
	Text   []byte
	TagMap map[byte][]uint32
}

// Index is the full result of reading an INDX chain: every entry across
// all data records, plus the CNCX string table keyed the way the format
// requires — by byte offset plus 0x10000*cncxRecordIndex, since a large
// dictionary's CNCX text spans multiple records and offsets alone would
// collide.
type Index struct {
	Entries []Entry
	CNCX    map[uint32][]byte
}

// ReadIndex parses the INDX chain rooted at record rootRecord: the root
// record's header gives the data-record count and the CNCX record count;
// CNCX records follow immediately after the data records.
func ReadIndex(load SectionLoader, rootRecord int) (*Index, error) {
	root := load(rootRecord)
	header, err := ParseHeader(root)
	if err != nil {
		return nil, err
	}

	controlByteCount, tagTable, err := ReadTagSection(root, header.Len)
	if err != nil {
		return nil, err
	}

	result := &Index{CNCX: make(map[uint32][]byte)}

	dataRecordCount := header.Count
	for rec := 0; rec < dataRecordCount; rec++ {
		data := load(rootRecord + 1 + rec)
		entries, err := readDataRecord(data, controlByteCount, tagTable)
		if err != nil {
			continue
		}
		result.Entries = append(result.Entries, entries...)
	}

	for i := 0; i < int(header.Nctoc); i++ {
		data := load(rootRecord + 1 + dataRecordCount + i)
		parseCNCX(data, uint32(i), result.CNCX)
	}

	return result, nil
}

// readDataRecord parses one INDX data record: its own header (to find the
// IDXT entry-offset table), then each entry in turn.
func readDataRecord(data []byte, controlByteCount int, tagTable []TagXEntry) ([]Entry, error) {
	hdr, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	idxtPos := hdr.Start
	count := hdr.Count
	if count == 0 {
		// Non-root data records store their own entry count at the same
		// field; if absent, derive it from the IDXT table length is not
		// reliable, so bail gracefully.
		return nil, nil
	}

	positions := make([]int, 0, count+1)
	for i := 0; i < count; i++ {
		off := idxtPos + 4 + 2*i
		if off+2 > len(data) {
			break
		}
		positions = append(positions, int(binary.BigEndian.Uint16(data[off:])))
	}
	positions = append(positions, idxtPos)

	var entries []Entry
	for i := 0; i < len(positions)-1; i++ {
		startPos := positions[i]
		endPos := positions[i+1]
		if startPos >= len(data) || startPos < 0 {
			continue
		}
		textLen := int(data[startPos])
		textStart := startPos + 1
		textEnd := textStart + textLen
		if textEnd > len(data) {
			continue
		}
		text := data[textStart:textEnd]
		tagMap := GetTagMap(controlByteCount, tagTable, data, textEnd, endPos)
		entries = append(entries, Entry{Text: text, TagMap: tagMap})
	}
	return entries, nil
}

// parseCNCX parses one CNCX record: a flat sequence of
// (varint length, bytes[length]) pairs, each keyed by its byte offset
// within the record plus 0x10000 times the record's index in the CNCX
// chain.
func parseCNCX(data []byte, recordIndex uint32, out map[uint32][]byte) {
	pos := 0
	for pos < len(data) {
		n, consumed, err := varint.DecodeForward(data[pos:])
		if err != nil {
			break
		}
		start := pos + consumed
		end := start + int(n)
		if end > len(data) {
			end = len(data)
		}
		out[uint32(pos)+0x10000*recordIndex] = data[start:end]
		if end <= pos {
			break
		}
		pos = end
	}
}
