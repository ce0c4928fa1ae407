package kf8

import (
	"strconv"

	"github.com/mobiunpack/mobiunpack/internal/index"
)

// Skeleton is one output XHTML file's scaffolding: a byte range of flow 0
// plus the number of fragments that will be spliced into it.
type Skeleton struct {
	Num           int
	Name          string
	FragmentCount int
	Start         int
	Length        int
}

// ParseSkeletonIndex decodes the skeleton INDX: key text is the skeleton's
// file name; tag 1 holds the fragment count; tag 6 holds (start, length)
// in rawML.
func ParseSkeletonIndex(idx *index.Index) []Skeleton {
	out := make([]Skeleton, 0, len(idx.Entries))
	for i, e := range idx.Entries {
		s := Skeleton{Num: i, Name: string(e.Text)}
		if v, ok := e.TagMap[1]; ok && len(v) > 0 {
			s.FragmentCount = int(v[0])
		}
		if v, ok := e.TagMap[6]; ok && len(v) >= 2 {
			s.Start = int(v[0])
			s.Length = int(v[1])
		}
		out = append(out, s)
	}
	return out
}

// Fragment is a dynamically inserted slice of flow-0 text, belonging to
// exactly one skeleton.
type Fragment struct {
	InsertPos int    // position in rawML (flow 0) where this fragment splices in
	AIDText   string // the aid attribute text of the element this fragment starts at
	FileNum   int
	SeqNum    int
	Start     int // start offset in rawML of this fragment's own bytes
	Length    int
}

// ParseFragmentIndex decodes the fragment INDX: the entry's own key text is
// the decimal ASCII insert position; tag 2 is a CNCX offset for the aid
// text, tag 3 is the file number, tag 4 the sequence number, tag 6 holds
// (start, length).
func ParseFragmentIndex(idx *index.Index) []Fragment {
	out := make([]Fragment, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		pos, _ := strconv.Atoi(string(e.Text))
		f := Fragment{InsertPos: pos}
		if v, ok := e.TagMap[2]; ok && len(v) > 0 {
			if aid, ok := idx.CNCX[v[0]]; ok {
				f.AIDText = string(aid)
			}
		}
		if v, ok := e.TagMap[3]; ok && len(v) > 0 {
			f.FileNum = int(v[0])
		}
		if v, ok := e.TagMap[4]; ok && len(v) > 0 {
			f.SeqNum = int(v[0])
		}
		if v, ok := e.TagMap[6]; ok && len(v) >= 2 {
			f.Start = int(v[0])
			f.Length = int(v[1])
		}
		out = append(out, f)
	}
	return out
}
