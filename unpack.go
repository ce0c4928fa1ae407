// Package mobiunpack decodes a Palm-DB container carrying Mobipocket 6
// and/or Kindle Format 8 payloads and reassembles it into a publishable
// directory tree: an EPUB-like package for KF8 content, a legacy
// HTML+NCX tree for Mobi6-only content. Unpack wires every decoding
// stage together; Result.Write lays the decoded book out on disk.
package mobiunpack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mobiunpack/mobiunpack/epub"
	"github.com/mobiunpack/mobiunpack/internal/b32"
	"github.com/mobiunpack/mobiunpack/internal/compress"
	"github.com/mobiunpack/mobiunpack/internal/dict"
	"github.com/mobiunpack/mobiunpack/internal/index"
	"github.com/mobiunpack/mobiunpack/internal/kf8"
	"github.com/mobiunpack/mobiunpack/internal/logging"
	"github.com/mobiunpack/mobiunpack/internal/mobi"
	"github.com/mobiunpack/mobiunpack/internal/mobi6"
	"github.com/mobiunpack/mobiunpack/internal/mobierr"
	"github.com/mobiunpack/mobiunpack/internal/pagemap"
	"github.com/mobiunpack/mobiunpack/internal/palmdb"
	"github.com/mobiunpack/mobiunpack/internal/resc"
	"github.com/mobiunpack/mobiunpack/internal/resource"
	"github.com/mobiunpack/mobiunpack/internal/split"
	"github.com/mobiunpack/mobiunpack/opf"
)

// Options controls how Unpack decodes its input and how Result.Write
// lays its output out, mirroring the CLI flags in cmd/mobiunpack.
type Options struct {
	Dump        bool
	Raw         bool
	Split       bool
	HDImages    bool
	APNX        bool
	EPUBVersion string
}

// Result holds everything Unpack decoded from one container, ready for
// Write to commit to outdir.
type Result struct {
	Book      *opf.OEBBook
	IsKF8     bool
	RawML     []byte
	Resources []resource.Classified
	Split     *split.Result
	APNX      []byte
	Logger    *logging.Logger

	// NeedsEPUB3 reports whether a RESC record in the container required
	// EPUB3-only manifest features; Write picks the package version from
	// this unless Options.EPUBVersion overrides it.
	NeedsEPUB3 bool
}

// Unpack decodes data (the full bytes of a .mobi/.azw/.azw3 file) per
// opts. It never aborts on a single bad resource or inflection rule —
// those are logged as warnings (mobierr.Fatal distinguishes the errors
// that do abort: bad container magic, encrypted content).
func Unpack(data []byte, opts Options) (*Result, error) {
	logger := logging.New(nil)

	sec, err := palmdb.New(data)
	if err != nil {
		return nil, err
	}

	header, err := mobi.Parse(sec.Section(0), 0, false)
	if err != nil {
		return nil, err
	}

	var kf8Header *mobi.Header
	if v, ok := header.EXTH.Get("KF8Boundary"); ok {
		if n, convErr := strconv.Atoi(v); convErr == nil && n > 0 && n < sec.NumRecords() {
			if h2, parseErr := mobi.Parse(sec.Section(n), n, true); parseErr == nil {
				kf8Header = h2
			} else {
				logger.Warnf("kf8 header at record %d: %v", n, parseErr)
			}
		}
	}

	active := header
	if kf8Header != nil {
		active = kf8Header
	}

	rawML, err := buildRawML(sec, header, logger)
	if err != nil {
		return nil, err
	}

	resources := classifyResources(sec, active, logger)

	book := opf.NewOEBBook()
	book.Metadata = opf.ConvertMetadataFromEXTH(header.Title, header.EXTH.Values, time.Time{})
	addTitlePage(book)

	var needsEPUB3 bool
	if kf8Header != nil {
		needsEPUB3 = assembleKF8(sec, kf8Header, rawML, resources, book, logger)
	} else {
		assembleMobi6(sec, header, rawML, resources, book, logger)
	}

	attachResourceManifest(book, resources, opts)

	result := &Result{
		Book:       book,
		IsKF8:      kf8Header != nil,
		RawML:      rawML,
		Resources:  resources,
		Logger:     logger,
		NeedsEPUB3: needsEPUB3,
	}

	if opts.APNX {
		result.APNX = buildAPNX(sec, active)
	}

	if opts.Split {
		if v, ok := header.EXTH.Get("KF8Boundary"); ok {
			if n, convErr := strconv.Atoi(v); convErr == nil && n > 0 {
				sres, splitErr := split.Split(allRecords(sec), n, int(header.LastContent))
				if splitErr != nil {
					logger.Warnf("split: %v", splitErr)
				} else {
					result.Split = sres
				}
			} else {
				logger.Warnf("split requested: %v", &mobierr.SplitterMissingBoundary{})
			}
		} else {
			logger.Warnf("split requested: %v", &mobierr.SplitterMissingBoundary{})
		}
	}

	return result, nil
}

// buildRawML concatenates and decompresses every text record per the
// header's declared compression id, trimming each record's trailing
// multibyte/variable-length entries first.
func buildRawML(sec *palmdb.Sectionizer, h *mobi.Header, logger *logging.Logger) ([]byte, error) {
	var huff *compress.HuffReader
	if compress.Kind(h.Compression) == compress.HuffCDIC {
		if h.HuffFirstRecord == mobi.AbsentIndex {
			return nil, &mobierr.FormatError{Reason: "HuffCDIC declared but no HUFF record recorded"}
		}
		hr, err := compress.NewHuffReader(sec.Section(int(h.HuffFirstRecord)))
		if err != nil {
			return nil, err
		}
		for i := 1; i < int(h.HuffRecordCount); i++ {
			if err := hr.AddCDIC(sec.Section(int(h.HuffFirstRecord) + i)); err != nil {
				logger.Warnf("cdic record %d: %v", int(h.HuffFirstRecord)+i, err)
			}
		}
		huff = hr
	}

	var buf bytes.Buffer
	for i := 1; i <= int(h.TextRecords); i++ {
		raw := compress.TrimTrailingEntries(sec.Section(i), h.TrailingEntryCount, h.MultibyteOverflow)
		switch compress.Kind(h.Compression) {
		case compress.None:
			buf.Write(raw)
		case compress.PalmDOC:
			buf.Write(compress.DecompressPalmDOC(raw))
		case compress.HuffCDIC:
			if huff == nil {
				return nil, &mobierr.FormatError{Reason: "HuffCDIC text record with no usable HUFF/CDIC table"}
			}
			buf.Write(huff.Unpack(raw))
		default:
			buf.Write(raw)
		}
	}
	return buf.Bytes(), nil
}

// classifyResources walks every record from the header's firstresource
// pointer to the end of the container, dispatching each to the resource
// classifier and assigning the output-relative name it will be written
// under.
func classifyResources(sec *palmdb.Sectionizer, h *mobi.Header, logger *logging.Logger) []resource.Classified {
	if h.FirstResource == mobi.AbsentIndex {
		return nil
	}
	var out []resource.Classified
	imgNum, fontNum, hdNum := 0, 0, 0
	seenHash := make(map[uint64]int) // content hash -> first record index that carried it
	for i := int(h.FirstResource); i < sec.NumRecords(); i++ {
		data := sec.Section(i)
		kind := resource.Classify(data)
		c := resource.Classified{Kind: kind, Data: data}

		switch kind {
		case resource.Image:
			imgNum++
			c.Name = fmt.Sprintf("image%05d%s", imgNum, resource.Extension(data))
		case resource.HDImage:
			hdNum++
			body := data
			if len(data) > 12 {
				body = data[12:]
			}
			c.Name = fmt.Sprintf("image%05d%s", hdNum, resource.Extension(body))
			c.Data = body
		case resource.Font:
			fontNum++
			info, err := resource.DecodeFont(data)
			if err != nil {
				logger.Warnf("resource %d: %v", i, &mobierr.ResourceDecodeFailure{Index: i, Reason: err.Error()})
				c.Kind = resource.Unknown
				break
			}
			ext := ".ttf"
			if info.IsOTF {
				ext = ".otf"
			}
			c.Name = fmt.Sprintf("font%05d%s", fontNum, ext)
			c.Data = info.Data
		case resource.Source:
			c.Name = "kindlegensrc.zip"
			if len(data) > 16 {
				c.Data = data[16:]
			}
		case resource.BuildLog:
			c.Name = "kindlegenbuild.log"
			if len(data) > 10 {
				c.Data = data[10:]
			}
		}

		if c.Kind == resource.Image || c.Kind == resource.HDImage || c.Kind == resource.Font {
			c.Hash = resource.HashContent(c.Data)
			if first, ok := seenHash[c.Hash]; ok {
				logger.Infof("resource %d: content identical to resource %d (%s)", i, first, sec.Descriptions[first])
			} else {
				seenHash[c.Hash] = i
			}
		}

		sec.Describe(i, fmt.Sprintf("%d:%s", kind, c.Name))
		out = append(out, c)
	}
	return out
}

// resourceNameTable builds the 1-based index -> output-name mapping that
// kindle:embed URIs address: images, HD images and fonts share one
// numbering space, in resource-table order.
func resourceNameTable(resources []resource.Classified) map[uint64]string {
	names := make(map[uint64]string)
	var n uint64
	for _, r := range resources {
		switch r.Kind {
		case resource.Image, resource.HDImage, resource.Font:
			n++
			if r.Name != "" {
				names[n] = r.Name
			}
		}
	}
	return names
}

// kf8Resolver implements kf8.Resolver over one book's decoded fragment
// table, skeleton-to-filename map, and resource name table.
type kf8Resolver struct {
	fragSkel       []int
	filenameBySkel map[int]string
	resourceNames  map[uint64]string
	fdst           *kf8.FDST
	rawML          []byte
}

func (r *kf8Resolver) ResolvePosFid(fid, offset uint64) (string, string) {
	i := int(fid)
	if i < 0 || i >= len(r.fragSkel) {
		return "", ""
	}
	filename := r.filenameBySkel[r.fragSkel[i]]
	id := strings.ToLower(b32.Encode(fid, 0))
	return filename, id
}

func (r *kf8Resolver) ResourceName(n uint64) string {
	return r.resourceNames[n]
}

func (r *kf8Resolver) FlowInfo(n uint64) (mime, dir, filename string, inline bool) {
	if r.fdst == nil || r.fdst.Flow(r.rawML, int(n)) == nil {
		return "", "", "", true
	}
	return "text/css", "Styles", fmt.Sprintf("style%04d.css", n), false
}

func (r *kf8Resolver) Flow(n uint64) []byte {
	if r.fdst == nil {
		return nil
	}
	return r.fdst.Flow(r.rawML, int(n))
}

// assembleKF8 reconstructs every KF8 XHTML part, rewrites its internal
// links, and builds the book's spine/manifest/TOC from the skeleton,
// fragment and NCX indices. RESC overrides (spine order, cover, EPUB3
// requirement) are applied last, since they take precedence over the
// structural reconstruction.
func assembleKF8(sec *palmdb.Sectionizer, h *mobi.Header, rawML []byte, resources []resource.Classified, book *opf.OEBBook, logger *logging.Logger) bool {
	var fdst *kf8.FDST
	if h.FDSTOffset != mobi.AbsentIndex {
		f, err := kf8.ParseFDST(sec.Section(int(h.FDSTOffset)))
		if err != nil {
			logger.Warnf("fdst: %v", err)
			fdst = kf8.SingleFlowFallback(len(rawML))
		} else {
			fdst = f
		}
	} else {
		fdst = kf8.SingleFlowFallback(len(rawML))
	}

	flow0 := fdst.Flow(rawML, 0)
	if flow0 == nil {
		flow0 = rawML
	}

	var skeletons []kf8.Skeleton
	if h.SkelIndex != mobi.AbsentIndex {
		if idx, err := index.ReadIndex(sec.Section, int(h.SkelIndex)); err != nil {
			logger.Warnf("skeleton index: %v", err)
		} else {
			skeletons = kf8.ParseSkeletonIndex(idx)
		}
	}
	if len(skeletons) == 0 {
		skeletons = []kf8.Skeleton{{Num: 0, Name: "part0000", Start: 0, Length: len(flow0)}}
	}

	var fragments []kf8.Fragment
	if h.FragIndex != mobi.AbsentIndex {
		if idx, err := index.ReadIndex(sec.Section, int(h.FragIndex)); err != nil {
			logger.Warnf("fragment index: %v", err)
		} else {
			fragments = kf8.ParseFragmentIndex(idx)
		}
	}

	parts := kf8.Assemble(flow0, skeletons, fragments, func(err error) { logger.Warnf("%v", err) })

	fragSkel := make([]int, len(fragments))
	cursor := 0
	for _, sk := range skeletons {
		for i := 0; i < sk.FragmentCount && cursor < len(fragments); i++ {
			fragSkel[cursor] = sk.Num
			cursor++
		}
	}
	filenameBySkel := make(map[int]string, len(parts))
	for _, p := range parts {
		filenameBySkel[p.SkelNum] = p.Filename
	}

	resolver := &kf8Resolver{
		fragSkel:       fragSkel,
		filenameBySkel: filenameBySkel,
		resourceNames:  resourceNameTable(resources),
		fdst:           fdst,
		rawML:          rawML,
	}

	linkedAIDs := make(map[string]bool)
	usedResources := make(map[string]bool)
	for _, p := range parts {
		body := kf8.RewriteLinks(p.Body, resolver, linkedAIDs, usedResources)
		body = kf8.FinalCleanup(body)
		id := fmt.Sprintf("text-%04d", p.SkelNum)
		book.AddResource(id, "Text/"+p.Filename, "application/xhtml+xml", body)
		book.AddToSpine(id)
	}

	if h.NCXIndex != mobi.AbsentIndex {
		if idx, err := index.ReadIndex(sec.Section, int(h.NCXIndex)); err != nil {
			logger.Warnf("ncx index: %v", err)
		} else {
			buildTOCFromNCXIndex(book, idx, skeletons, filenameBySkel)
		}
	}

	return applyRESCOverrides(resources, book)
}

// buildTOCFromNCXIndex turns one KF8 NCX INDX into book.TOC: each entry's
// key text is the label, tag 1 an absolute rawML (flow 0) offset that is
// mapped back to whichever skeleton's byte range contains it.
func buildTOCFromNCXIndex(book *opf.OEBBook, idx *index.Index, skeletons []kf8.Skeleton, filenameBySkel map[int]string) {
	book.TOC.Label = book.Metadata.Title
	for i, e := range idx.Entries {
		label := string(e.Text)
		pos := 0
		if v, ok := e.TagMap[1]; ok && len(v) > 0 {
			pos = int(v[0])
		}
		href := hrefForPos(pos, skeletons, filenameBySkel)
		book.TOC.AddChild(fmt.Sprintf("nav-%d", i), label, "Text/"+href)
	}
}

func hrefForPos(pos int, skeletons []kf8.Skeleton, filenameBySkel map[int]string) string {
	for _, sk := range skeletons {
		if pos >= sk.Start && pos < sk.Start+sk.Length {
			return filenameBySkel[sk.Num]
		}
	}
	if len(skeletons) > 0 {
		return filenameBySkel[skeletons[0].Num]
	}
	return ""
}

// applyRESCOverrides looks for a RESC resource record among resources
// and, if present, lets it override the book's spine order and cover,
// and reports whether it signalled an EPUB3 requirement.
func applyRESCOverrides(resources []resource.Classified, book *opf.OEBBook) bool {
	needsEPUB3 := false
	for _, r := range resources {
		if r.Kind != resource.Resc {
			continue
		}
		doc, err := resc.Parse(r.Data)
		if err != nil {
			continue
		}
		if doc.NeedsEPUB3 {
			needsEPUB3 = true
		}
		if doc.CoverName != "" {
			for id, res := range book.Manifest {
				if strings.Contains(res.Href, doc.CoverName) {
					book.Metadata.CoverID = id
					break
				}
			}
		}
		if len(doc.SpineOrder) == 0 {
			continue
		}
		var newSpine []string
		for _, item := range doc.SpineOrder {
			id := "text-" + item.IDRef
			if _, ok := book.Manifest[id]; ok {
				newSpine = append(newSpine, id)
			} else if _, ok := book.Manifest[item.IDRef]; ok {
				newSpine = append(newSpine, item.IDRef)
			}
		}
		if len(newSpine) > 0 {
			book.Spine = newSpine
		}
	}
	return needsEPUB3
}

// addTitlePage builds a standalone title-page document from the book's
// metadata using the teacher's HTML templating helpers, and adds it to
// the manifest (under the "titlepage" id buildOPFGuide already looks
// for) without placing it in the spine.
func addTitlePage(book *opf.OEBBook) {
	proc := opf.NewHTMLProcessor()
	content := proc.GenerateTitlePage(book.Metadata)
	html := proc.WrapInHTML(content, book.Metadata.Title, book.Metadata.Language)
	book.AddResource("titlepage", "titlepage.xhtml", "application/xhtml+xml", []byte(html))
}

// assembleMobi6 runs the legacy Mobi6 HTML post-processing path: image
// and filepos link resolution plus NCX anchor insertion, directly over
// rawML (which for Mobi6 already is the book's HTML text) since every
// offset these steps consume is a byte offset into the original rawML.
// Only once every offset-dependent rewrite is done is the teacher's
// whitespace/encoding cleanup pass run over the result.
func assembleMobi6(sec *palmdb.Sectionizer, h *mobi.Header, rawML []byte, resources []resource.Classified, book *opf.OEBBook, logger *logging.Logger) {
	html := append([]byte{}, rawML...)

	imageNames := make(map[int]string)
	n := 0
	for _, r := range resources {
		if r.Kind == resource.Image || r.Kind == resource.HDImage {
			n++
			imageNames[n] = r.Name
		}
	}
	html = mobi6.RewriteImages(html, func(idx int) (string, bool) {
		name, ok := imageNames[idx]
		return name, ok
	})

	var anchors []mobi6.Anchor
	if h.NCXIndex != mobi.AbsentIndex {
		if idx, err := index.ReadIndex(sec.Section, int(h.NCXIndex)); err != nil {
			logger.Warnf("ncx index: %v", err)
		} else {
			for i, e := range idx.Entries {
				pos := 0
				if v, ok := e.TagMap[1]; ok && len(v) > 0 {
					pos = int(v[0])
				}
				id := fmt.Sprintf("filepos%010d", pos)
				anchors = append(anchors, mobi6.Anchor{Offset: pos, ID: id})
				book.TOC.AddChild(fmt.Sprintf("nav-%d", i), string(e.Text), "content.html#"+id)
			}
		}
	}

	splices := make([]htmlSplice, 0, len(anchors))
	for _, a := range anchors {
		splices = append(splices, htmlSplice{offset: a.Offset, text: fmt.Sprintf(`<a id="%s"></a>`, a.ID)})
	}
	splices = append(splices, dictionarySplices(sec, h, logger)...)

	html = spliceHTML(html, splices)
	html = mobi6.RewriteFilePos(html)
	html = []byte(opf.NewHTMLProcessor().Process(string(html)))

	book.AddResource("content", "content.html", "text/html", html)
	book.AddToSpine("content")

	for _, g := range mobi6.ExtractGuide(rawML) {
		if g.Type != "cover" {
			continue
		}
		id := fmt.Sprintf("filepos%010d", g.FilePos)
		for name, res := range book.Manifest {
			if strings.HasSuffix(res.Href, "#"+id) {
				book.Metadata.CoverID = name
			}
		}
	}
}

// htmlSplice is one text insertion at a byte offset into rawML-coordinate
// HTML. NCX anchors need a single insertion point; dictionary entries
// need a pair (open before the word, close after it). Both kinds of
// offset-based rewrite over the same buffer are collected into one list
// and applied in a single forward pass so neither invalidates the
// other's offsets.
type htmlSplice struct {
	offset int
	text   string
}

// spliceHTML inserts every splice's text at its offset, in ascending
// offset order, stopping an insertion that would run backwards or past
// the end of html rather than corrupting the buffer.
func spliceHTML(html []byte, splices []htmlSplice) []byte {
	if len(splices) == 0 {
		return html
	}
	sorted := append([]htmlSplice{}, splices...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].offset < sorted[j].offset })

	var out bytes.Buffer
	last := 0
	for _, s := range sorted {
		if s.offset < last || s.offset > len(html) {
			continue
		}
		out.Write(html[last:s.offset])
		out.WriteString(s.text)
		last = s.offset
	}
	out.Write(html[last:])
	return out.Bytes()
}

// dictionarySplices decodes h's orthographic index (spec §4.8), applies
// each entry's inflection rules, and returns the idx:entry/idx:orth/
// idx:infl splices to wrap each headword in place. Returns nil when h
// declares no orthographic index, or the index fails to parse.
func dictionarySplices(sec *palmdb.Sectionizer, h *mobi.Header, logger *logging.Logger) []htmlSplice {
	if h.OrthIndex == mobi.AbsentIndex {
		return nil
	}
	idx, err := index.ReadIndex(sec.Section, int(h.OrthIndex))
	if err != nil {
		logger.Warnf("orthographic index: %v", err)
		return nil
	}

	var infl *dict.InflectionData
	if h.InflIndex != mobi.AbsentIndex {
		inflHeader, err := index.ParseHeader(sec.Section(int(h.InflIndex)))
		if err != nil {
			logger.Warnf("inflection index: %v", err)
		} else {
			infl = dict.NewInflectionData(sec.Section, int(h.InflIndex)+1, inflHeader.Count)
		}
	}

	var splices []htmlSplice
	for _, e := range dict.ParsePositionMap(idx) {
		if e.Length <= 0 || e.StartPos < 0 {
			continue
		}
		var inflTags strings.Builder
		if infl != nil {
			for _, groupOffset := range e.InflectionGroup {
				group, ok := dict.ParseInflectionGroups(idx, groupOffset, infl)
				if !ok {
					continue
				}
				for i, rule := range group.RuleData {
					name := ""
					if i < len(group.RuleNames) {
						name = group.RuleNames[i]
					}
					inflected, err := dict.ApplyInflectionRule(e.Word, rule, name)
					if err != nil {
						logger.Warnf("inflection rule %q: %v", name, err)
						continue
					}
					fmt.Fprintf(&inflTags, `<idx:iform name="%s" value="%s"/>`, xmlAttrEscape(name), xmlAttrEscape(inflected))
				}
			}
		}

		closeTag := "</idx:orth></idx:entry>"
		if inflTags.Len() > 0 {
			closeTag = "<idx:infl>" + inflTags.String() + "</idx:infl>" + closeTag
		}
		splices = append(splices,
			htmlSplice{offset: e.StartPos, text: fmt.Sprintf(`<idx:entry scriptable="yes"><idx:orth value="%s">`, xmlAttrEscape(e.Word))},
			htmlSplice{offset: e.StartPos + e.Length, text: closeTag},
		)
	}
	return splices
}

func xmlAttrEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return strings.ReplaceAll(s, "<", "&lt;")
}

// attachResourceManifest adds every named resource (images, fonts, the
// passthrough source archive/build log) to the book's manifest. With
// opts.HDImages, a CRES record overwrites the low-resolution image at
// the same numbered slot instead of being added as a separate asset.
func attachResourceManifest(book *opf.OEBBook, resources []resource.Classified, opts Options) {
	for _, r := range resources {
		if r.Name == "" {
			continue
		}
		switch r.Kind {
		case resource.Image:
			book.AddResource(r.Name, "Images/"+r.Name, imageMediaType(r.Name), r.Data)
		case resource.HDImage:
			if opts.HDImages {
				if existing, ok := book.GetResource(r.Name); ok {
					existing.Data = r.Data
					continue
				}
				book.AddResource(r.Name, "Images/"+r.Name, imageMediaType(r.Name), r.Data)
				continue
			}
			book.AddResource("hd-"+r.Name, "HDImages/"+r.Name, imageMediaType(r.Name), r.Data)
		case resource.Font:
			book.AddResource(r.Name, "Fonts/"+r.Name, fontMediaType(r.Name), r.Data)
		case resource.Source:
			book.AddResource(r.Name, r.Name, "application/zip", r.Data)
		case resource.BuildLog:
			book.AddResource(r.Name, r.Name, "text/plain", r.Data)
		}
	}
}

func imageMediaType(name string) string {
	switch {
	case strings.HasSuffix(name, ".png"):
		return "image/png"
	case strings.HasSuffix(name, ".gif"):
		return "image/gif"
	case strings.HasSuffix(name, ".bmp"):
		return "image/bmp"
	default:
		return "image/jpeg"
	}
}

func fontMediaType(name string) string {
	if strings.HasSuffix(name, ".otf") {
		return "font/otf"
	}
	return "font/ttf"
}

// buildAPNX locates the PAGE resource (if any) and turns it into the
// legacy binary APNX sidecar: a u16 page count and a bits32 flag at
// fixed offsets, followed by the per-page offset table itself.
func buildAPNX(sec *palmdb.Sectionizer, h *mobi.Header) []byte {
	var pageData []byte
	for i := 0; i < sec.NumRecords(); i++ {
		d := sec.Section(i)
		if resource.Classify(d) == resource.PageMap {
			pageData = d
			break
		}
	}
	if len(pageData) < 8 {
		return nil
	}
	count := int(binary.BigEndian.Uint16(pageData[4:6]))
	bits32 := pageData[6] != 0
	offsets := pagemap.ParsePageOffsets(pageData, 8, count, bits32)
	asin, _ := h.EXTH.Get("ASIN")
	return pagemap.GenerateAPNX(asin, offsets.Offsets)
}

func allRecords(sec *palmdb.Sectionizer) [][]byte {
	out := make([][]byte, sec.NumRecords())
	for i := range out {
		out[i] = sec.Section(i)
	}
	return out
}

// bookFileName derives a filesystem-safe base name from the book's
// title, falling back to "book" if the title sanitizes to nothing.
func bookFileName(book *opf.OEBBook) string {
	var b strings.Builder
	for _, r := range book.Metadata.Title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" {
		return "book"
	}
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

// Write lays the decoded book out under outdir: an EPUB package for KF8
// content, a plain HTML+NCX directory tree for Mobi6-only content, plus
// an optional APNX sidecar and the two standalone Palm-DB files a split
// produces.
func (res *Result) Write(outdir string, opts Options) error {
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return fmt.Errorf("mobiunpack: %w", err)
	}
	base := bookFileName(res.Book)

	if res.IsKF8 {
		path := filepath.Join(outdir, base+".epub")
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("mobiunpack: %w", err)
		}
		defer f.Close()

		version := opts.EPUBVersion
		if version == "" && res.NeedsEPUB3 {
			version = "3.0"
		}
		if err := epub.NewEPUBWriter(res.Book).WithVersion(version).Write(f); err != nil {
			return fmt.Errorf("mobiunpack: epub: %w", err)
		}
	} else {
		if err := epub.WriteLegacyTree(res.Book, filepath.Join(outdir, base)); err != nil {
			return fmt.Errorf("mobiunpack: legacy tree: %w", err)
		}
	}

	if len(res.APNX) > 0 {
		if err := os.WriteFile(filepath.Join(outdir, base+".apnx"), res.APNX, 0o644); err != nil {
			return fmt.Errorf("mobiunpack: apnx: %w", err)
		}
	}

	if res.Split != nil {
		if err := writeSplitOutputs(res.Split, outdir, base); err != nil {
			return err
		}
	}

	if opts.Raw {
		if err := os.WriteFile(filepath.Join(outdir, base+".rawml"), res.RawML, 0o644); err != nil {
			return fmt.Errorf("mobiunpack: rawml: %w", err)
		}
	}

	return nil
}

func writeSplitOutputs(s *split.Result, outdir, base string) error {
	mobi7, err := split.RebuildPalmDB(base+"-mobi6", s.Mobi7Records)
	if err != nil {
		return fmt.Errorf("mobiunpack: split: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outdir, base+".mobi6.prc"), mobi7, 0o644); err != nil {
		return fmt.Errorf("mobiunpack: split: %w", err)
	}

	mobi8, err := split.RebuildPalmDB(base+"-kf8", s.Mobi8Records)
	if err != nil {
		return fmt.Errorf("mobiunpack: split: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outdir, base+".azw3"), mobi8, 0o644); err != nil {
		return fmt.Errorf("mobiunpack: split: %w", err)
	}
	return nil
}
