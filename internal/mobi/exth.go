package mobi

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/mobiunpack/mobiunpack/internal/mobierr"
)

// exthKind says how an EXTH record's content bytes should be decoded.
type exthKind int

const (
	kindString exthKind = iota
	kindInt
	kindHex
)

// exthName maps an EXTH id to its canonical metadata key and decode kind.
// Ids not listed here are opaque: stored as hex under "Unknown_<id>" (this
// is deliberate for id 544, whose semantics are undocumented).
var exthName = map[uint32]struct {
	Name string
	Kind exthKind
}{
	100: {"Creator", kindString},
	101: {"Publisher", kindString},
	102: {"Imprint", kindString},
	103: {"Description", kindString},
	104: {"ISBN", kindString},
	105: {"Subject", kindString},
	106: {"Published", kindString},
	107: {"Review", kindString},
	108: {"Contributor", kindString},
	109: {"Rights", kindString},
	110: {"SubjectCode", kindString},
	112: {"Source", kindString},
	113: {"ASIN", kindString},
	114: {"Version", kindString},
	115: {"Sample", kindInt},
	116: {"StartOffset", kindInt},
	117: {"AdultRating", kindInt},
	118: {"RetailPrice", kindString},
	119: {"Currency", kindString},
	121: {"KF8Boundary", kindInt},
	125: {"ResourceCount", kindInt},
	129: {"CoverImage", kindString},
	131: {"UnidentifiedCount", kindInt},
	200: {"CreatorSoftware", kindInt},
	201: {"CoverOffset", kindInt},
	202: {"ThumbOffset", kindInt},
	203: {"HasFakeCover", kindInt},
	501: {"cdeType", kindString},
	503: {"UpdatedTitle", kindString},
	524: {"Language", kindString},
	525: {"PrimaryWritingMode", kindString},
	527: {"PageProgressionDirection", kindString},
}

// EXTHTable is the decoded EXTH metadata multi-map: a key may repeat
// (e.g. multiple Subject records), so values are ordered lists.
type EXTHTable struct {
	Values map[string][]string
	// Raw preserves (id, bytes) pairs in file order, for ids the name
	// table doesn't recognise or for consumers needing the original bytes.
	Raw []RawEXTHRecord
}

type RawEXTHRecord struct {
	ID   uint32
	Data []byte
}

func (t *EXTHTable) add(key, value string) {
	if t.Values == nil {
		t.Values = make(map[string][]string)
	}
	t.Values[key] = append(t.Values[key], value)
}

// Get returns the first value for key, if any.
func (t *EXTHTable) Get(key string) (string, bool) {
	vs := t.Values[key]
	if len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// All returns every value recorded for key, in file order.
func (t *EXTHTable) All(key string) []string {
	return t.Values[key]
}

// ParseEXTH reads the EXTH header and its records starting at offset off
// in rec0 ("EXTH" magic, header length, record count, then the records).
// codepage is the header's declared codepage (offCodepage), applied to
// every kindString record the same way DecodeText applies it to the title.
func ParseEXTH(rec0 []byte, off int, codepage uint32) (*EXTHTable, error) {
	if off+12 > len(rec0) || string(rec0[off:off+4]) != "EXTH" {
		return nil, &mobierr.FormatError{Reason: "bad EXTH magic"}
	}
	count := binary.BigEndian.Uint32(rec0[off+8 : off+12])

	table := &EXTHTable{Values: make(map[string][]string)}
	pos := off + 12
	for i := uint32(0); i < count; i++ {
		if pos+8 > len(rec0) {
			break
		}
		id := binary.BigEndian.Uint32(rec0[pos:])
		size := binary.BigEndian.Uint32(rec0[pos+4:])
		if size < 8 || pos+int(size) > len(rec0) {
			break
		}
		content := rec0[pos+8 : pos+int(size)]
		table.Raw = append(table.Raw, RawEXTHRecord{ID: id, Data: append([]byte{}, content...)})

		meta, known := exthName[id]
		name := meta.Name
		kind := meta.Kind
		if !known {
			name = "Unknown_" + itoa(id)
			kind = kindHex
		}

		switch kind {
		case kindString:
			table.add(name, DecodeText(content, codepage))
		case kindInt:
			table.add(name, itoa(decodeEXTHInt(content)))
		default:
			table.add(name, hex.EncodeToString(content))
		}

		pos += int(size)
	}
	return table, nil
}

func decodeEXTHInt(content []byte) uint32 {
	switch len(content) {
	case 1:
		return uint32(content[0])
	case 2:
		return uint32(binary.BigEndian.Uint16(content))
	case 4:
		return binary.BigEndian.Uint32(content)
	default:
		if len(content) >= 4 {
			return binary.BigEndian.Uint32(content[:4])
		}
		return 0
	}
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
