// Package mobi parses the Mobi header (versions 0/6/8) and its EXTH
// metadata table out of record 0 (or the second header's record, in a
// combo container).
package mobi

import (
	"encoding/binary"

	"github.com/mobiunpack/mobiunpack/internal/mobierr"
)

const AbsentIndex = 0xFFFFFFFF

// Fixed byte offsets within record 0 (or the KF8 half's record 0, for a
// combo container). These match the layout used throughout the reference
// decoder and its splitter.
const (
	offCompression  = 0
	offTextLength   = 4
	offTextRecords  = 8
	offRecordSize   = 10
	offEncryption   = 12
	offMobiMagic    = 16
	offHeaderLength = 20
	offMobiType     = 24
	offCodepage     = 28
	offUID          = 32
	offVersion      = 36
	offFirstNonText = 80
	offTitleOffset  = 84
	offTitleLength  = 88
	offLangCode     = 92
	offMinVersion   = 96
	offFirstResource = 108
	offHuffOffset   = 112
	offHuffCount    = 116
	offHuffTblOff   = 120
	offHuffTblLen   = 124
	offEXTHFlags    = 128
	offExtraFlags   = 242 // trailing-entry bitmask
	offFirstContent = 192 // mobi6: first_content_index; mobi8: fdst_offset
	offLastContent  = 194 // mobi6: last_content_index; mobi8: fdst_flow_count
	offFCISIndex    = 200
	offFLISIndex    = 208
	offSRCSIndex    = 224
	offSRCSCount    = 228
	offNCXIndex     = 244
	offFragIndex    = 248
	offSkelIndex    = 252
	offDATPIndex    = 256
	offGuideIndex   = 260
	offOrthIndex    = 264
	offInflIndex    = 268
)

// Header is the parsed form of one Mobi header (a combo container has two:
// the Mobi6 header at record 0 and the KF8 header at the boundary record).
type Header struct {
	RecordStart int // record number this header's indices are relative to
	Compression int
	TextLength  uint32
	TextRecords uint16
	RecordSize  uint16
	Encryption  uint16
	HeaderLen   uint32
	MobiType    uint32
	Codepage    uint32
	UID         uint32
	Version     uint32
	Title       string
	Language    uint32

	FirstNonText   uint32
	FirstResource  uint32
	HuffFirstRecord uint32
	HuffRecordCount uint32

	FDSTOffset    uint32 // KF8 only
	FDSTFlowCount uint32 // KF8 only
	FirstContent  uint32 // mobi6 only
	LastContent   uint32 // mobi6 only

	FCISIndex  uint32
	FLISIndex  uint32
	SRCSIndex  uint32
	SRCSCount  uint32
	NCXIndex   uint32
	FragIndex  uint32
	SkelIndex  uint32
	GuideIndex uint32
	DATPIndex  uint32
	OrthIndex  uint32
	InflIndex  uint32

	TrailingEntryCount int
	MultibyteOverflow  bool

	EXTH *EXTHTable

	IsKF8 bool
}

func u32(d []byte, off int) uint32 {
	if off+4 > len(d) {
		return 0
	}
	return binary.BigEndian.Uint32(d[off:])
}

func u16(d []byte, off int) uint16 {
	if off+2 > len(d) {
		return 0
	}
	return binary.BigEndian.Uint16(d[off:])
}

func relIndex(base uint32, recordStart int) uint32 {
	if base == AbsentIndex || base == 0 {
		return AbsentIndex
	}
	return base + uint32(recordStart)
}

// Parse reads a Mobi header out of rec0 (record 0 of the owning half of
// the container). recordStart is the record number rec0 itself occupies,
// used to turn the header's record-relative index fields into absolute
// record numbers. forceKF8 is set when parsing the second header of a
// combo container (start != 0), matching the reference decoder's
// "if start!=0 or version==8" branch.
func Parse(rec0 []byte, recordStart int, forceKF8 bool) (*Header, error) {
	if len(rec0) < 16 {
		return nil, &mobierr.FormatError{Reason: "record 0 too short"}
	}
	h := &Header{RecordStart: recordStart}
	h.Compression = int(u16(rec0, offCompression))
	h.TextLength = u32(rec0, offTextLength)
	h.TextRecords = u16(rec0, offTextRecords)
	h.RecordSize = u16(rec0, offRecordSize)
	h.Encryption = u16(rec0, offEncryption)

	if h.Encryption != 0 {
		return nil, &mobierr.EncryptedContent{CryptoType: h.Encryption}
	}

	if len(rec0) < offMobiMagic+4 || string(rec0[offMobiMagic:offMobiMagic+4]) != "MOBI" {
		// Legacy TEXtREAd/PalmDOC-only container: no Mobi header at all.
		return h, nil
	}

	h.HeaderLen = u32(rec0, offHeaderLength)
	h.MobiType = u32(rec0, offMobiType)
	h.Codepage = u32(rec0, offCodepage)
	h.UID = u32(rec0, offUID)
	h.Version = u32(rec0, offVersion)

	if off := int(offTitleOffset); off+4 <= len(rec0) {
		titleOff := int(u32(rec0, offTitleOffset))
		titleLen := int(u32(rec0, offTitleLength))
		if titleOff >= 0 && titleOff+titleLen <= len(rec0) && titleLen >= 0 {
			h.Title = DecodeText(rec0[titleOff:titleOff+titleLen], h.Codepage)
		}
	}
	h.Language = u32(rec0, offLangCode)

	h.FirstNonText = u32(rec0, offFirstNonText)
	h.FirstResource = relIndex(u32(rec0, offFirstResource), recordStart)
	h.HuffFirstRecord = relIndex(u32(rec0, offHuffOffset), recordStart)
	h.HuffRecordCount = u32(rec0, offHuffCount)

	extraFlags := u16(rec0, offExtraFlags)
	h.TrailingEntryCount, h.MultibyteOverflow = trailingFlagsDecode(extraFlags)

	h.FCISIndex = relIndex(u32(rec0, offFCISIndex), recordStart)
	h.FLISIndex = relIndex(u32(rec0, offFLISIndex), recordStart)
	h.SRCSIndex = relIndex(u32(rec0, offSRCSIndex), recordStart)
	h.SRCSCount = u32(rec0, offSRCSCount)
	h.NCXIndex = relIndex(u32(rec0, offNCXIndex), recordStart)
	h.DATPIndex = relIndex(u32(rec0, offDATPIndex), recordStart)

	isKF8 := h.Version == 8 || forceKF8
	h.IsKF8 = isKF8

	if isKF8 {
		h.FDSTOffset = relIndex(u32(rec0, offFirstContent), recordStart)
		h.FDSTFlowCount = u32(rec0, offLastContent)
		if h.FDSTFlowCount <= 1 {
			// Open question in spec: fdstcnt<=1 leaves fdst unreliable;
			// caller falls back to treating rawML as a single flow.
			h.FDSTOffset = AbsentIndex
		}
		h.FragIndex = relIndex(u32(rec0, offFragIndex), recordStart)
		h.SkelIndex = relIndex(u32(rec0, offSkelIndex), recordStart)
		h.GuideIndex = relIndex(u32(rec0, offGuideIndex), recordStart)
		h.OrthIndex = AbsentIndex
		h.InflIndex = AbsentIndex
	} else {
		h.FirstContent = u32(rec0, offFirstContent)
		h.LastContent = u32(rec0, offLastContent)
		h.OrthIndex = relIndex(u32(rec0, offOrthIndex), recordStart)
		h.InflIndex = relIndex(u32(rec0, offInflIndex), recordStart)
	}

	exthFlags := u32(rec0, offEXTHFlags)
	if exthFlags&0x40 != 0 {
		exthStart := int(offEXTHFlags) + 4
		table, err := ParseEXTH(rec0, exthStart, h.Codepage)
		if err != nil {
			return nil, err
		}
		h.EXTH = table
	} else {
		h.EXTH = &EXTHTable{}
	}

	return h, nil
}

func trailingFlagsDecode(flags uint16) (entryCount int, multibyte bool) {
	multibyte = flags&1 != 0
	for b := flags >> 1; b != 0; b >>= 1 {
		if b&1 != 0 {
			entryCount++
		}
	}
	return
}
