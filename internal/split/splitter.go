// Package split breaks a combined Mobi6+KF8 container into its two
// independent Palm-DB payloads, as spec §4.9 describes. It mirrors the
// record-table surgery the reference splitter performs: slicing the
// record list at the BOUNDARY marker, patching each half's MOBI header
// flags, and rewriting the handful of EXTH records that point at record
// indexes which move when the file is split.
package split

import (
	"bytes"
	"encoding/binary"

	"github.com/mobiunpack/mobiunpack/internal/mobierr"
	"github.com/mobiunpack/mobiunpack/internal/palmdb"
)

// Mobi7FlagMask, Mobi8FlagMask and Mobi8FlagForce are the extra_data_flags masks applied to
// each half's MOBI header after a split (spec §4.9, confirmed against
// the reference splitter's exact masks).
const (
	Mobi7FlagMask  = 0x07FF
	Mobi8FlagMask  = 0x1FFF
	Mobi8FlagForce = 0x0800
)

// Result holds the two independently valid Palm-DB record sets produced
// by a split.
type Result struct {
	Mobi7Records [][]byte
	Mobi8Records [][]byte
	ImageRecords [][]byte // resource records shared by both halves, renumbered for mobi8
}

// Split partitions recs at the BOUNDARY marker record at boundaryIndex,
// which itself goes into neither half. The records after the boundary
// form the KF8 half; the records up to lastContentIndex form the Mobi6
// half. The resource records between lastContentIndex and the boundary
// (images, fonts, ...) are appended to both halves, since both a
// standalone Mobi6 file and a standalone KF8 file need them.
func Split(recs [][]byte, boundaryIndex, lastContentIndex int) (*Result, error) {
	if boundaryIndex < 0 || boundaryIndex >= len(recs) {
		return nil, &mobierr.SplitterMissingBoundary{}
	}

	resources := recs[lastContentIndex+1 : boundaryIndex]

	res := &Result{}
	res.Mobi7Records = append(res.Mobi7Records, recs[:lastContentIndex+1]...)
	res.Mobi7Records = append(res.Mobi7Records, resources...)

	res.Mobi8Records = append(res.Mobi8Records, recs[boundaryIndex+1:]...)
	res.Mobi8Records = append(res.Mobi8Records, resources...)
	res.ImageRecords = resources
	return res, nil
}

// PatchExtraFlags rewrites the extra_data_flags field (header offset
// 242) of a copied MOBI header in place for the half it now belongs to.
func PatchExtraFlags(rec0 []byte, isMobi8 bool) {
	if len(rec0) < 244 {
		return
	}
	v := binary.BigEndian.Uint32(rec0[242:246])
	if isMobi8 {
		v = (v & Mobi8FlagMask) | Mobi8FlagForce
	} else {
		v = v & Mobi7FlagMask
	}
	binary.BigEndian.PutUint32(rec0[242:246], v)
}

// RenumberIndex shifts an absolute record index field by delta, leaving
// the mobi.AbsentIndex sentinel (all bits set for the field
// width) untouched. Used on the KF8 half's NCX/skeleton/fragment/guide/
// DATP index fields, which point at records that moved when the
// preceding Mobi6 records were dropped.
func RenumberIndex(field uint32, delta int) uint32 {
	if field == 0xFFFFFFFF {
		return field
	}
	return uint32(int(field) + delta)
}

// EXTHPatch describes the EXTH rewrites spec §4.9 requires when
// producing a standalone KF8 file from a combined container: id 121
// (the KF8 boundary pointer) and id 129 (cover image) are dropped, id 125
// (resource count) is rewritten to the number of image/resource records
// carried forward, and only the last of any repeated id 116 (start
// offset) is kept.
func EXTHPatch(table map[uint32][][]byte, resourceCount int) map[uint32][][]byte {
	out := make(map[uint32][][]byte, len(table))
	for id, vals := range table {
		switch id {
		case 121:
			continue
		case 129:
			continue
		case 125:
			buf := make([]byte, 4)
			binary.BigEndian.PutUint32(buf, uint32(resourceCount))
			out[id] = [][]byte{buf}
		case 116:
			if len(vals) > 0 {
				out[id] = [][]byte{vals[len(vals)-1]}
			}
		default:
			out[id] = vals
		}
	}
	return out
}

// RebuildPalmDB repacks a record slice into a standalone Palm-DB file via
// internal/palmdb.Writer, the same container shell Sectionizer reads:
// splitting a combo container back out into two loadable single-format
// files needs exactly the shell producing a Mobi file from scratch does.
func RebuildPalmDB(name string, records [][]byte) ([]byte, error) {
	w := palmdb.NewWriter(name)
	for _, r := range records {
		w.AddRecord(r)
	}
	var buf bytes.Buffer
	if err := w.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
