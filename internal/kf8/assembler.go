package kf8

import (
	"bytes"
	"fmt"

	"github.com/mobiunpack/mobiunpack/internal/mobierr"
)

// Part is one assembled output XHTML file.
type Part struct {
	SkelNum  int
	Dir      string
	Filename string
	Start    int // start offset within rawML this part's bytes came from
	End      int
	AIDText  string
	Body     []byte
}

// Assemble reconstructs one XHTML part per skeleton by splicing each
// skeleton's fragments into it at their recorded insertion points, as
// described in spec §4.5. Fragment positions are corrected in place (the
// fragments slice is mutated) when a split lands mid-tag, so link
// resolution done afterwards sees the same corrected offsets.
func Assemble(rawML []byte, skeletons []Skeleton, fragments []Fragment, warn func(error)) []Part {
	parts := make([]Part, 0, len(skeletons))
	fragCursor := 0

	for _, skel := range skeletons {
		end := skel.Start + skel.Length
		if end > len(rawML) {
			end = len(rawML)
		}
		buf := append([]byte{}, rawML[skel.Start:end]...)

		n := skel.FragmentCount
		var aidText string
		growth := 0
		for i := 0; i < n && fragCursor < len(fragments); i++ {
			frag := &fragments[fragCursor]
			fragCursor++

			fend := frag.Start + frag.Length
			if fend > len(rawML) {
				fend = len(rawML)
			}
			if frag.Start > fend {
				continue
			}
			fragBytes := rawML[frag.Start:fend]
			if aidText == "" {
				aidText = frag.AIDText
			}

			insertPos := frag.InsertPos - skel.Start + growth
			if insertPos < 0 {
				insertPos = 0
			}
			if insertPos > len(buf) {
				insertPos = len(buf)
			}

			if landsInsideTag(buf, insertPos) {
				if repaired, ok := repairPosition(buf, frag.AIDText); ok {
					insertPos = repaired
					frag.InsertPos = skel.Start + insertPos - growth
				} else if warn != nil {
					warn(&mobierr.IndexInconsistency{
						Detail: fmt.Sprintf("skeleton %d fragment insertion at %d landed mid-tag, repair failed", skel.Num, frag.InsertPos),
					})
				}
			}

			buf = spliceAt(buf, insertPos, fragBytes)
			growth += len(fragBytes)
		}

		parts = append(parts, Part{
			SkelNum:  skel.Num,
			Dir:      "Text",
			Filename: partFilename(skel.Num),
			Start:    skel.Start,
			End:      end,
			AIDText:  aidText,
			Body:     buf,
		})
	}
	return parts
}

func partFilename(n int) string {
	return fmt.Sprintf("part%04d.xhtml", n)
}

func spliceAt(buf []byte, pos int, insert []byte) []byte {
	out := make([]byte, 0, len(buf)+len(insert))
	out = append(out, buf[:pos]...)
	out = append(out, insert...)
	out = append(out, buf[pos:]...)
	return out
}

// landsInsideTag reports whether pos falls inside an open "<...>" tag:
// true when the nearest '<' before pos occurs after the nearest '>'
// before pos.
func landsInsideTag(buf []byte, pos int) bool {
	if pos > len(buf) {
		pos = len(buf)
	}
	head := buf[:pos]
	lastOpen := bytes.LastIndexByte(head, '<')
	lastClose := bytes.LastIndexByte(head, '>')
	return lastOpen > lastClose
}

// repairPosition finds the tag carrying aid="<aidText>" in buf and
// returns the byte offset just after that tag's closing '>'.
func repairPosition(buf []byte, aidText string) (int, bool) {
	if aidText == "" {
		return 0, false
	}
	needle := []byte(`aid="` + aidText + `"`)
	idx := bytes.Index(buf, needle)
	if idx < 0 {
		return 0, false
	}
	closeOff := bytes.IndexByte(buf[idx:], '>')
	if closeOff < 0 {
		return 0, false
	}
	return idx + closeOff + 1, true
}
