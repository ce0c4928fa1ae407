// Package palmdb splits a Palm Database container into its numbered
// records. It is the leaf of the unpacking pipeline: every other package
// is handed byte slices borrowed from the Sectionizer's input buffer.
package palmdb

import (
	"encoding/binary"

	"github.com/mobiunpack/mobiunpack/internal/mobierr"
)

const (
	headerSize   = 78
	identOffset  = 0x3C
	identLen     = 8
	numRecsOffset = 76
	recordEntrySize = 8
)

// Header mirrors the fixed 78-byte Palm-DB header.
type Header struct {
	Name               [32]byte
	Attributes         uint16
	Version            uint16
	CreationDate       uint32
	ModificationDate   uint32
	LastBackupDate     uint32
	ModificationNumber uint32
	AppInfoOffset      uint32
	SortInfoOffset     uint32
	Type               [4]byte
	Creator            [4]byte
	UniqueIDSeed       uint32
	NextRecordListID   uint32
	NumRecords         uint16
}

// Record describes one record's byte range and its attribute byte.
type Record struct {
	Offset     uint32
	Attributes uint8
	UniqueID   uint32
}

// Sectionizer holds the whole input file in memory and the parsed record
// offset table, and exposes record i as a borrowed slice of data.
type Sectionizer struct {
	data    []byte
	Header  Header
	Records []Record
	// IsMobi reports whether the ident bytes were BOOKMOBI (true) or
	// TEXtREAd (false, legacy PalmDOC-only container).
	IsMobi bool
	// Descriptions holds an optional per-record diagnostic label, filled
	// in by later stages (resource classifier, splitter) for logging.
	Descriptions []string
}

// New parses data as a Palm-DB container.
func New(data []byte) (*Sectionizer, error) {
	if len(data) < headerSize {
		return nil, &mobierr.FormatError{Reason: "file shorter than Palm-DB header"}
	}
	ident := data[identOffset : identOffset+identLen]
	var isMobi bool
	switch string(ident) {
	case "BOOKMOBI":
		isMobi = true
	case "TEXtREAd":
		isMobi = false
	default:
		return nil, &mobierr.FormatError{Reason: "unrecognized Palm-DB identifier: " + string(ident)}
	}

	var h Header
	copy(h.Name[:], data[0:32])
	h.Attributes = binary.BigEndian.Uint16(data[32:34])
	h.Version = binary.BigEndian.Uint16(data[34:36])
	h.CreationDate = binary.BigEndian.Uint32(data[36:40])
	h.ModificationDate = binary.BigEndian.Uint32(data[40:44])
	h.LastBackupDate = binary.BigEndian.Uint32(data[44:48])
	h.ModificationNumber = binary.BigEndian.Uint32(data[48:52])
	h.AppInfoOffset = binary.BigEndian.Uint32(data[52:56])
	h.SortInfoOffset = binary.BigEndian.Uint32(data[56:60])
	copy(h.Type[:], data[60:64])
	copy(h.Creator[:], data[64:68])
	h.UniqueIDSeed = binary.BigEndian.Uint32(data[68:72])
	h.NextRecordListID = binary.BigEndian.Uint32(data[72:76])
	h.NumRecords = binary.BigEndian.Uint16(data[numRecsOffset : numRecsOffset+2])

	n := int(h.NumRecords)
	needed := headerSize + n*recordEntrySize
	if len(data) < needed {
		return nil, &mobierr.FormatError{Reason: "truncated Palm-DB record table"}
	}

	recs := make([]Record, n)
	pos := headerSize
	for i := 0; i < n; i++ {
		offset := binary.BigEndian.Uint32(data[pos : pos+4])
		attrAndID := binary.BigEndian.Uint32(data[pos+4 : pos+8])
		recs[i] = Record{
			Offset:     offset,
			Attributes: uint8(attrAndID >> 24),
			UniqueID:   attrAndID & 0x00FFFFFF,
		}
		pos += recordEntrySize
	}

	return &Sectionizer{
		data:         data,
		Header:       h,
		Records:      recs,
		IsMobi:       isMobi,
		Descriptions: make([]string, n),
	}, nil
}

// NumRecords returns the number of records in the container.
func (s *Sectionizer) NumRecords() int { return len(s.Records) }

// Section returns record i as a slice borrowed from the input buffer:
// data[offset_i, offset_{i+1}), with offset_N defined as len(data).
func (s *Sectionizer) Section(i int) []byte {
	if i < 0 || i >= len(s.Records) {
		return nil
	}
	start := s.Records[i].Offset
	var end uint32
	if i+1 < len(s.Records) {
		end = s.Records[i+1].Offset
	} else {
		end = uint32(len(s.data))
	}
	if end < start {
		end = start
	}
	return s.data[start:end]
}

// Describe attaches a diagnostic label to record i (e.g. its classified
// resource kind), for later log lines. It is the only mutable metadata
// the sectionizer owns.
func (s *Sectionizer) Describe(i int, label string) {
	if i >= 0 && i < len(s.Descriptions) {
		s.Descriptions[i] = label
	}
}

// Len returns the total input length.
func (s *Sectionizer) Len() int { return len(s.data) }
