// Package index decodes INDX/TAGX records: the variable-width, bit-masked
// tag encoding Amazon uses for every structural lookup table in a Mobi/KF8
// container (NCX, skeleton, fragment, guide, orthographic and inflection
// dictionaries, page map).
package index

import (
	"encoding/binary"

	"github.com/mobiunpack/mobiunpack/internal/mobierr"
	"github.com/mobiunpack/mobiunpack/varint"
)

// TagXEntry is one row of a TAGX tag-schema table.
type TagXEntry struct {
	Tag            byte
	ValuesPerEntry byte
	Mask           byte
	EndFlag        byte
}

// ReadTagSection parses the TAGX region beginning at byte offset start in
// data: a 4-byte "TAGX" magic, a u32 first-entry-offset, a u32
// control-byte-count, then 4-byte tag descriptor tuples up to
// first-entry-offset.
func ReadTagSection(data []byte, start int) (controlByteCount int, entries []TagXEntry, err error) {
	if start+12 > len(data) || string(data[start:start+4]) != "TAGX" {
		return 0, nil, &mobierr.FormatError{Reason: "bad TAGX magic"}
	}
	firstEntryOffset := int(binary.BigEndian.Uint32(data[start+4:]))
	controlByteCount = int(binary.BigEndian.Uint32(data[start+8:]))

	pos := start + 12
	end := start + firstEntryOffset
	for pos+4 <= end && pos+4 <= len(data) {
		entries = append(entries, TagXEntry{
			Tag:            data[pos],
			ValuesPerEntry: data[pos+1],
			Mask:           data[pos+2],
			EndFlag:        data[pos+3],
		})
		pos += 4
	}
	return controlByteCount, entries, nil
}

// countSetBits returns the number of set bits in b.
func countSetBits(b byte) int {
	n := 0
	for b != 0 {
		n += int(b & 1)
		b >>= 1
	}
	return n
}

// GetTagMap decodes one entry's tag values against tagTable. data[start:end]
// holds controlByteCount control bytes immediately followed by the
// variable-width values they describe.
//
// Decoding rule per tag row (skipping rows with EndFlag==1, which only
// mark control-byte group boundaries): mask the row's control byte with
// Mask. If the result equals Mask and Mask has more than one bit set, the
// next variable-width value is a *byte length* of the values that follow,
// and each value inside that span is decoded as its own variable-width
// value. Otherwise
// the masked value (right-shifted to the first set bit) is the *count* of
// ValuesPerEntry variable-width values to read.
func GetTagMap(controlByteCount int, tagTable []TagXEntry, data []byte, start, end int) map[byte][]uint32 {
	result := make(map[byte][]uint32)
	if start > len(data) {
		return result
	}
	if end > len(data) {
		end = len(data)
	}
	controlBytes := data[start:min(start+controlByteCount, len(data))]
	valuePos := start + controlByteCount

	ctrlIndex := 0
	for _, tag := range tagTable {
		if tag.EndFlag == 1 {
			ctrlIndex++
			continue
		}
		if ctrlIndex >= len(controlBytes) {
			continue
		}
		ctrl := controlBytes[ctrlIndex]
		masked := ctrl & tag.Mask
		if masked == 0 {
			continue
		}
		if masked == tag.Mask && countSetBits(tag.Mask) > 1 {
			length, n, err := varint.DecodeForward(data[valuePos:end])
			if err != nil {
				continue
			}
			valuePos += n
			values := make([]uint32, 0, 1)
			limit := valuePos + int(length)
			if limit > end {
				limit = end
			}
			for valuePos < limit {
				v, n, err := varint.DecodeForward(data[valuePos:limit])
				if err != nil {
					break
				}
				values = append(values, v)
				valuePos += n
			}
			result[tag.Tag] = values
		} else {
			shift := 0
			for (tag.Mask>>uint(shift))&1 == 0 && shift < 8 {
				shift++
			}
			count := int(masked >> uint(shift))
			values := make([]uint32, 0, count*int(tag.ValuesPerEntry))
			for i := 0; i < count*int(tag.ValuesPerEntry); i++ {
				if valuePos >= end {
					break
				}
				v, n, err := varint.DecodeForward(data[valuePos:end])
				if err != nil {
					break
				}
				values = append(values, v)
				valuePos += n
			}
			result[tag.Tag] = values
		}
	}
	return result
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
