// Package dict implements the Kindle dictionary extensions: orthographic
// index decoding and inflection rule application, as used by dictionary
// books' lookup index (spec §4.8).
package dict

import (
	"encoding/binary"

	"github.com/mobiunpack/mobiunpack/internal/index"
)

// Entry is one orthographic index entry: a headword's position within
// rawML plus the inflection groups that derive other forms from it.
type Entry struct {
	Word            string
	StartPos        int
	Length          int
	InflectionGroup []int // CNCX offsets of this entry's inflection rule groups
}

// ParsePositionMap decodes the orthographic INDX (tag 0x01 = entry start
// position, 0x02 = entry length, 0x2A = inflection group offset list).
func ParsePositionMap(idx *index.Index) []Entry {
	out := make([]Entry, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		ent := Entry{Word: string(e.Text)}
		if v, ok := e.TagMap[0x01]; ok && len(v) > 0 {
			ent.StartPos = int(v[0])
		}
		if v, ok := e.TagMap[0x02]; ok && len(v) > 0 {
			ent.Length = int(v[0])
		}
		if v, ok := e.TagMap[0x2A]; ok {
			for _, off := range v {
				ent.InflectionGroup = append(ent.InflectionGroup, int(off))
			}
		}
		out = append(out, ent)
	}
	return out
}

// InflectionGroup names the inflection rules associated with one
// orthographic entry: tag 0x05 gives rule-name CNCX offsets, tag 0x1A
// gives rule-data offsets resolved through the inflection-rule index.
type InflectionGroup struct {
	RuleNames []string
	RuleData  [][]byte
}

// ParseInflectionGroups decodes one inflection-group INDX entry (keyed by
// the orthographic entry's group offset) against the group's own CNCX
// table and the separate inflection-rule InflectionData source.
func ParseInflectionGroups(idx *index.Index, groupOffset int, infl *InflectionData) (InflectionGroup, bool) {
	for _, e := range idx.Entries {
		tagVal, ok := e.TagMap[0x1A]
		_ = tagVal
		if !ok {
			continue
		}
		// group membership keyed by CNCX offset of the entry's own text
		if cncxOffsetOf(idx, e) != groupOffset {
			continue
		}
		var g InflectionGroup
		if names, ok := e.TagMap[0x05]; ok {
			for _, off := range names {
				if b, ok := idx.CNCX[off]; ok {
					g.RuleNames = append(g.RuleNames, string(b))
				}
			}
		}
		if rules, ok := e.TagMap[0x1A]; ok {
			for _, off := range rules {
				if b, ok := infl.Lookup(int(off)); ok {
					g.RuleData = append(g.RuleData, b)
				}
			}
		}
		return g, true
	}
	return InflectionGroup{}, false
}

func cncxOffsetOf(idx *index.Index, e index.Entry) int {
	for off, b := range idx.CNCX {
		if string(b) == string(e.Text) {
			return int(off)
		}
	}
	return -1
}

// InflectionData spans the set of contiguous INDX records holding raw
// inflection-rule byte code (not the key/tag encoded kind; these records
// are addressed directly by byte offset across record boundaries).
type InflectionData struct {
	records [][]byte
}

// NewInflectionData collects inflection-rule records starting at
// firstRecord, count records long.
func NewInflectionData(load index.SectionLoader, firstRecord, count int) *InflectionData {
	d := &InflectionData{}
	for i := 0; i < count; i++ {
		d.records = append(d.records, load(firstRecord+i))
	}
	return d
}

// Lookup resolves a global offset (as stored in tag 0x1A) into the bytes
// of one inflection rule: a 2-byte big-endian length prefix followed by
// that many bytes of rule byte code, addressed by summing record lengths.
func (d *InflectionData) Lookup(offset int) ([]byte, bool) {
	rec, pos := d.locate(offset)
	if rec == nil || pos+2 > len(rec) {
		return nil, false
	}
	n := int(binary.BigEndian.Uint16(rec[pos : pos+2]))
	if pos+2+n > len(rec) {
		return nil, false
	}
	return rec[pos+2 : pos+2+n], true
}

func (d *InflectionData) locate(offset int) ([]byte, int) {
	remaining := offset
	for _, rec := range d.records {
		if remaining < len(rec) {
			return rec, remaining
		}
		remaining -= len(rec)
	}
	return nil, 0
}
