package opf

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// NCXDoc is a Navigation Control XML document, the legacy table-of-contents
// format both EPUB2-style KF8 output and the plain Mobi6 tree carry.
type NCXDoc struct {
	XMLName  xml.Name  `xml:"ncx"`
	Version  string    `xml:"version,attr"`
	XMLNS    string    `xml:"xmlns,attr"`
	Head     NCXHead   `xml:"head"`
	DocTitle NCXText   `xml:"docTitle"`
	NavMap   NCXNavMap `xml:"navMap"`
}

type NCXHead struct {
	XMLName   xml.Name  `xml:"head"`
	MetaItems []NCXMeta `xml:"meta"`
}

type NCXMeta struct {
	XMLName xml.Name `xml:"meta"`
	Name    string   `xml:"name,attr"`
	Content string   `xml:"content,attr"`
}

type NCXText struct {
	Text string `xml:"text"`
}

type NCXNavMap struct {
	NavPoints []NCXNavPoint `xml:"navPoint"`
}

type NCXNavPoint struct {
	ID        string        `xml:"id,attr"`
	PlayOrder int           `xml:"playOrder,attr"`
	NavLabel  NCXText       `xml:"navLabel>text"`
	Content   NCXContent    `xml:"content"`
	Children  []NCXNavPoint `xml:"navPoint"`
}

type NCXContent struct {
	Src string `xml:"src,attr"`
}

// GenerateNCX renders the book's TOC tree as an NCX document.
func (b *OEBBook) GenerateNCX() ([]byte, error) {
	playOrder := 1
	navMap := NCXNavMap{NavPoints: b.buildNCXNavPoints(&b.TOC, &playOrder)}

	ncx := NCXDoc{
		Version: "2005-1",
		XMLNS:   "http://www.daisy.org/z3986/2005/ncx/",
		Head: NCXHead{
			MetaItems: []NCXMeta{
				{Name: "dtb:uid", Content: "book_id"},
				{Name: "dtb:depth", Content: fmt.Sprintf("%d", b.TOC.MaxDepth()+1)},
				{Name: "dtb:totalPageCount", Content: "0"},
				{Name: "dtb:maxPageNumber", Content: "0"},
			},
		},
		DocTitle: NCXText{Text: b.Metadata.Title},
		NavMap:   navMap,
	}

	data, err := xml.MarshalIndent(ncx, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal NCX: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE ncx PUBLIC "-//NISO//DTD ncx 2005-1//EN" "http://www.daisy.org/z3986/2005/ncx-2005-1.dtd">
`)
	buf.Write(data)
	return buf.Bytes(), nil
}

// buildNCXNavPoints walks toc's children (the synthetic root entry itself
// carries no label and is never emitted as its own navPoint).
func (b *OEBBook) buildNCXNavPoints(toc *TOCEntry, playOrder *int) []NCXNavPoint {
	points := make([]NCXNavPoint, 0, len(toc.Children))
	for _, child := range toc.Children {
		points = append(points, b.buildNCXNavPoint(child, playOrder))
	}
	return points
}

func (b *OEBBook) buildNCXNavPoint(toc *TOCEntry, playOrder *int) NCXNavPoint {
	id := toc.ID
	if id == "" {
		id = fmt.Sprintf("navpoint_%d", *playOrder)
	}
	href := toc.Href
	if href == "" {
		href = "#"
	}

	point := NCXNavPoint{
		ID:        id,
		PlayOrder: *playOrder,
		NavLabel:  NCXText{Text: toc.Label},
		Content:   NCXContent{Src: href},
	}
	*playOrder++

	for _, child := range toc.Children {
		point.Children = append(point.Children, b.buildNCXNavPoint(child, playOrder))
	}
	return point
}
