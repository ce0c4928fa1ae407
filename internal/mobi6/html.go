// Package mobi6 post-processes legacy Mobipocket 6 rawML into browsable
// HTML: filepos= link resolution, recindex= image link resolution, and
// NCX/dictionary position-anchor insertion (spec §4.4's legacy path).
package mobi6

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	filePosPattern  = regexp.MustCompile(`(?i)filepos=['"]?(\d+)['"]?`)
	recIndexPattern = regexp.MustCompile(`(?i)recindex=['"]?(\d+)['"]?`)
)

// ImageResolver maps a 1-based recindex to an output-relative image name.
type ImageResolver func(recindex int) (name string, ok bool)

// RewriteFilePos replaces every filepos="NNNNNNNNNN" attribute with an
// href="#filepos<offset>" link, the offset written as ten zero-padded
// digits (the same id format the anchors spliced into rawML use).
func RewriteFilePos(html []byte) []byte {
	return filePosPattern.ReplaceAllFunc(html, func(m []byte) []byte {
		sub := filePosPattern.FindSubmatch(m)
		pos, _ := strconv.Atoi(string(sub[1]))
		return []byte(fmt.Sprintf(`href="#filepos%010d"`, pos))
	})
}

// RewriteImages replaces every recindex="NNNN" attribute (found on <img>
// and similar elements) with a src pointing at the resolved image file.
func RewriteImages(html []byte, resolve ImageResolver) []byte {
	return recIndexPattern.ReplaceAllFunc(html, func(m []byte) []byte {
		sub := recIndexPattern.FindSubmatch(m)
		n, _ := strconv.Atoi(string(sub[1]))
		name, ok := resolve(n)
		if !ok {
			return m
		}
		return []byte(fmt.Sprintf(`src="Images/%s"`, name))
	})
}

// Anchor is one position where an NCX entry or dictionary headword
// points into rawML; the caller splices a matching <a id=...> tag in at
// Offset (see unpack.go's spliceHTML, which merges these alongside
// dictionary markers into one offset-ordered pass).
type Anchor struct {
	Offset int
	ID     string
}

// GuideRef is one entry from the legacy <guide> block (spec's guide
// reference table): a type keyword (e.g. "toc", "start", "cover") and
// the filepos it resolves to.
type GuideRef struct {
	Type    string
	Title   string
	FilePos int
}

var guidePattern = regexp.MustCompile(`(?is)<reference\s+type=['"]([^'"]+)['"]\s*(?:title=['"]([^'"]*)['"])?\s*filepos=['"]?(\d+)['"]?\s*/?>`)

// ExtractGuide scans a legacy guide block's raw markup for <reference>
// elements.
func ExtractGuide(block []byte) []GuideRef {
	var out []GuideRef
	for _, m := range guidePattern.FindAllSubmatch(block, -1) {
		pos, _ := strconv.Atoi(string(m[3]))
		out = append(out, GuideRef{Type: string(m[1]), Title: string(m[2]), FilePos: pos})
	}
	return out
}
