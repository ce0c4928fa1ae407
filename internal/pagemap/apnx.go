package pagemap

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
)

// PageOffsets holds the decoded per-page byte offsets into a book's
// rawML, read from the PAGE resource's binary body (u16 or u32 entries,
// per the resource's own bit-width field).
type PageOffsets struct {
	Offsets []uint32
}

// ParsePageOffsets reads count entries starting at off, each bits16 or
// bits32 wide.
func ParsePageOffsets(data []byte, off, count int, bits32 bool) PageOffsets {
	out := PageOffsets{Offsets: make([]uint32, 0, count)}
	width := 2
	if bits32 {
		width = 4
	}
	for i := 0; i < count; i++ {
		p := off + i*width
		if p+width > len(data) {
			break
		}
		if bits32 {
			out.Offsets = append(out.Offsets, binary.BigEndian.Uint32(data[p:p+4]))
		} else {
			out.Offsets = append(out.Offsets, uint32(binary.BigEndian.Uint16(data[p:p+2])))
		}
	}
	return out
}

type apnxContentHeader struct {
	Version      int    `json:"version"`
	Type         string `json:"type"`
	Format       string `json:"format"`
	AcrChecksum  string `json:"acr,omitempty"`
	PageMap      string `json:"pageMap,omitempty"`
}

type apnxPageHeader struct {
	ASIN        string `json:"asin"`
	PageMapHash string `json:"pageMapHash,omitempty"`
}

// GenerateAPNX builds the legacy binary APNX sidecar: a small fixed
// prologue (version, content-header offset/length, a JSON content
// header, a page count, a JSON page header) followed by one big-endian
// u32 rawML offset per page.
func GenerateAPNX(asin string, offsets []uint32) []byte {
	ch := apnxContentHeader{Version: 1, Type: "standard", Format: "MOBI_8"}
	chBytes, _ := json.Marshal(ch)

	ph := apnxPageHeader{ASIN: asin}
	phBytes, _ := json.Marshal(ph)

	var buf bytes.Buffer
	writeU16 := func(v uint16) { binary.Write(&buf, binary.BigEndian, v) }
	writeU32 := func(v uint32) { binary.Write(&buf, binary.BigEndian, v) }

	writeU16(1) // version
	writeU16(1)
	writeU32(12) // content-header offset (fixed prologue size before it)
	writeU32(uint32(len(chBytes)))
	buf.Write(chBytes)

	writeU16(1)
	writeU16(uint16(8 + len(phBytes)))
	writeU16(uint16(len(offsets)))
	writeU16(32)
	buf.Write(phBytes)

	for _, off := range offsets {
		writeU32(off)
	}
	return buf.Bytes()
}
