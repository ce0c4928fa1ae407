package compress

import (
	"encoding/binary"

	"github.com/mobiunpack/mobiunpack/internal/mobierr"
)

// HuffReader decodes Huffman/CDIC-compressed text records. It is built
// once from a single HUFF record and one or more CDIC records (a book may
// split its phrase dictionary across several CDIC records when it is
// large), then Unpack is called per text record.
type HuffReader struct {
	dict1        [256]uint32
	mincode      [33]uint32
	maxcode      [33]uint32
	cdicEntries  [][]byte // flattened phrase table across all CDIC records
	cdicBits     int
	memo         map[int][]byte
}

// NewHuffReader parses the HUFF record. Call AddCDIC for each CDIC record
// that follows it before calling Unpack.
func NewHuffReader(huff []byte) (*HuffReader, error) {
	if len(huff) < 8 || string(huff[0:4]) != "HUFF" {
		return nil, &mobierr.FormatError{Reason: "bad HUFF magic"}
	}
	off1 := binary.BigEndian.Uint32(huff[8:12])
	off2 := binary.BigEndian.Uint32(huff[12:16])

	h := &HuffReader{memo: make(map[int][]byte)}
	for i := 0; i < 256; i++ {
		h.dict1[i] = binary.BigEndian.Uint32(huff[int(off1)+i*4:])
	}
	var dict2 [64]uint32
	for i := 0; i < 64; i++ {
		dict2[i] = binary.BigEndian.Uint32(huff[int(off2)+i*4:])
	}
	for i := 0; i < 32; i++ {
		mincode, maxcode := dict2[i*2], dict2[i*2+1]
		h.mincode[i+1] = mincode << (32 - uint(i+1))
		h.maxcode[i+1] = ((maxcode + 1) << (32 - uint(i+1))) - 1
	}
	return h, nil
}

// AddCDIC parses one CDIC phrase-dictionary record and appends its
// entries to the reader's combined phrase table.
func (h *HuffReader) AddCDIC(cdic []byte) error {
	if len(cdic) < 16 || string(cdic[0:4]) != "CDIC" {
		return &mobierr.FormatError{Reason: "bad CDIC magic"}
	}
	phrases := binary.BigEndian.Uint32(cdic[8:12])
	bits := binary.BigEndian.Uint32(cdic[12:16])
	h.cdicBits = int(bits)
	n := 1 << bits
	if int(phrases)-len(h.cdicEntries) < n {
		n = int(phrases) - len(h.cdicEntries)
	}
	const indexStart = 16
	for i := 0; i < n; i++ {
		off := binary.BigEndian.Uint16(cdic[indexStart+i*2:])
		blobOff := indexStart + n*2 + int(off)
		if blobOff+2 > len(cdic) {
			h.cdicEntries = append(h.cdicEntries, nil)
			continue
		}
		size := binary.BigEndian.Uint16(cdic[blobOff:])
		length := int(size & 0x7FFF)
		terminal := size&0x8000 != 0
		start := blobOff + 2
		end := start + length
		if end > len(cdic) {
			end = len(cdic)
		}
		entry := cdic[start:end]
		if !terminal {
			// Marked so Unpack knows to recursively expand this entry
			// the first time it is referenced; memoised afterwards.
			entry = append([]byte{0x00}, entry...)
		} else {
			entry = append([]byte{0x01}, entry...)
		}
		h.cdicEntries = append(h.cdicEntries, entry)
	}
	return nil
}

// Unpack decodes one Huffman/CDIC-compressed text record.
func (h *HuffReader) Unpack(data []byte) []byte {
	out := make([]byte, 0, len(data)*4)
	bitsLeft := len(data) * 8
	padded := append(append([]byte{}, data...), make([]byte, 8)...)
	pos := 0
	x := binary.BigEndian.Uint64(padded[pos:])
	n := uint(32)

	for bitsLeft > 0 {
		if int(n) <= 0 {
			pos += 4
			if pos+8 > len(padded) {
				break
			}
			x = binary.BigEndian.Uint64(padded[pos:])
			n += 32
		}
		code := uint32((x >> n) & 0xFFFFFFFF)

		codelen := 0
		for cl := 1; cl <= 32; cl++ {
			if code >= h.mincode[cl] && code <= h.maxcode[cl] {
				codelen = cl
				break
			}
		}
		if codelen == 0 {
			break
		}
		shifted := code >> uint(32-codelen)
		dictEntry := h.dict1[shifted&0xFF]
		maxcode := dictEntry >> 8
		_ = maxcode
		index := int((h.maxcode[codelen] - code) >> uint(32-codelen))

		piece := h.resolve(index)
		out = append(out, piece...)

		n -= uint(codelen)
		bitsLeft -= codelen
		if bitsLeft < 0 {
			break
		}
	}
	return out
}

// resolve expands a dictionary index, recursively unpacking a non-terminal
// phrase the first time it's referenced and memoising the result.
func (h *HuffReader) resolve(index int) []byte {
	if index < 0 || index >= len(h.cdicEntries) {
		return nil
	}
	if cached, ok := h.memo[index]; ok {
		return cached
	}
	entry := h.cdicEntries[index]
	if len(entry) == 0 {
		return nil
	}
	terminal := entry[0] == 0x01
	payload := entry[1:]
	var result []byte
	if terminal {
		result = payload
	} else {
		result = h.Unpack(payload)
	}
	h.memo[index] = result
	return result
}
