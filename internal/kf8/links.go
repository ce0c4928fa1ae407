package kf8

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mobiunpack/mobiunpack/internal/b32"
)

// Resolver answers the two cross-references the link rewriter needs:
// where a pos:fid target lands, and what a resource's output-relative
// name is. Implemented by the top-level unpack orchestrator, which owns
// the fragment table and the resource name array.
type Resolver interface {
	// ResolvePosFid turns a (fid, offset) pair from a kindle:pos:fid:X:off:Y
	// URI into (filename, idAttr). idAttr is "" if no id applies.
	ResolvePosFid(fid, offset uint64) (filename, idAttr string)
	// ResourceName returns the output-relative name for resource index n
	// (1-based, as encoded in the URI), or "" if unknown.
	ResourceName(n uint64) string
	// FlowInfo returns (mime, dir, filename, inline) for flow index n.
	FlowInfo(n uint64) (mime, dir, filename string, inline bool)
	// Flow returns the raw bytes of flow n, for inline splicing.
	Flow(n uint64) []byte
}

var (
	posFidPattern  = regexp.MustCompile(`(?i)['"]kindle:pos:fid:([0-9A-V]+):off:([0-9A-V]+)[^'"]*['"]`)
	embedImgPattern = regexp.MustCompile(`(?i)['"(]kindle:embed:([0-9A-V]+)\?mime=image[^'")]*['")]`)
	embedFontPattern = regexp.MustCompile(`(?i)['"(]kindle:embed:([0-9A-V]+)['")]`)
	flowPattern     = regexp.MustCompile(`(?i)['"]kindle:flow:([0-9A-V]+)\?mime=([^'"]+)['"]`)
	aidAttrPattern  = regexp.MustCompile(`(?i)\said\s*=\s*['"]([^'"]*)['"]`)
	pageBreakPattern = regexp.MustCompile(`(?i)\sdata-AmznPageBreak=['"]([^'"]*)['"]`)
)

// RewriteLinks applies the byte-level link transforms to one assembled
// part's body: kindle:pos:fid resolution, kindle:embed/kindle:flow
// resolution, aid stripping/rewriting, data-AmznPageBreak conversion.
// The SVG attribute casing and <li value> fixups are done by FinalCleanup.
// usedResources collects every resource/flow name actually referenced.
func RewriteLinks(body []byte, r Resolver, linkedAIDs map[string]bool, usedResources map[string]bool) []byte {
	body = posFidPattern.ReplaceAllFunc(body, func(m []byte) []byte {
		sub := posFidPattern.FindSubmatch(m)
		fid := b32.Decode(string(sub[1]))
		off := b32.Decode(string(sub[2]))
		filename, id := r.ResolvePosFid(fid, off)
		if id != "" {
			linkedAIDs[id] = true
			return []byte(fmt.Sprintf(`"%s#aid-%s"`, filename, id))
		}
		return []byte(fmt.Sprintf(`"%s"`, filename))
	})

	body = embedImgPattern.ReplaceAllFunc(body, func(m []byte) []byte {
		sub := embedImgPattern.FindSubmatch(m)
		n := b32.Decode(string(sub[1]))
		name := r.ResourceName(n)
		if name == "" {
			return m
		}
		usedResources[name] = true
		open, close := edgeRunes(m)
		return []byte(fmt.Sprintf("%c../Images/%s%c", open, name, close))
	})

	body = embedFontPattern.ReplaceAllFunc(body, func(m []byte) []byte {
		sub := embedFontPattern.FindSubmatch(m)
		n := b32.Decode(string(sub[1]))
		name := r.ResourceName(n)
		if name == "" {
			return m
		}
		usedResources[name] = true
		open, close := edgeRunes(m)
		return []byte(fmt.Sprintf("%c../Fonts/%s%c", open, name, close))
	})

	body = flowPattern.ReplaceAllFunc(body, func(m []byte) []byte {
		sub := flowPattern.FindSubmatch(m)
		n := b32.Decode(string(sub[1]))
		mime, dir, filename, inline := r.FlowInfo(n)
		if filename == "" && !inline {
			return m
		}
		usedResources[filename] = true
		if inline || strings.Contains(mime, "inline") {
			return r.Flow(n)
		}
		return []byte(fmt.Sprintf(`"../%s/%s"`, dir, filename))
	})

	body = pageBreakPattern.ReplaceAllFunc(body, func(m []byte) []byte {
		sub := pageBreakPattern.FindSubmatch(m)
		return []byte(fmt.Sprintf(` style="page-break-after:%s"`, sub[1]))
	})

	body = aidAttrPattern.ReplaceAllFunc(body, func(m []byte) []byte {
		sub := aidAttrPattern.FindSubmatch(m)
		aid := string(sub[1])
		if linkedAIDs[aid] {
			return []byte(fmt.Sprintf(` id="aid-%s"`, aid))
		}
		return nil
	})

	return body
}

func edgeRunes(m []byte) (byte, byte) {
	if len(m) == 0 {
		return '"', '"'
	}
	return m[0], m[len(m)-1]
}

// FinalCleanup runs the DOM-level fixups spec §4.6's last bullet
// describes: lowercasing SVG preserveaspectratio/viewbox, stripping
// illegal <li value="..">. These operate on a (mostly) well-formed XHTML
// tree, unlike the byte-level kindle: URI rewriting above, so a real
// parser (goquery/cascadia) is used instead of another regex pass.
func FinalCleanup(body []byte) []byte {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return body
	}

	doc.Find("svg, image, linearGradient, radialGradient").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("preserveaspectratio"); ok {
			s.RemoveAttr("preserveaspectratio")
			s.SetAttr("preserveAspectRatio", v)
		}
		if v, ok := s.Attr("viewbox"); ok {
			s.RemoveAttr("viewbox")
			s.SetAttr("viewBox", v)
		}
	})
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		s.RemoveAttr("value")
	})

	out, err := doc.Html()
	if err != nil {
		return body
	}
	return []byte(out)
}
