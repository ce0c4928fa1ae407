package resc

import (
	"strconv"
	"strings"

	"github.com/mobiunpack/mobiunpack/internal/b32"
)

// opfParentTags are the elements whose own attributes, and whose direct
// children's attributes, RESC parsing inspects when inferring EPUB3
// requirements and spine/cover overrides.
var opfParentTags = map[string]bool{
	"package": true, "metadata": true, "manifest": true,
	"spine": true, "guide": true, "item": true, "itemref": true,
}

// SpineItem is one <itemref> override from a RESC document's spine.
type SpineItem struct {
	SkelID     string
	IDRef      string
	Linear     bool
	Properties string
}

// Document is a parsed RESC record.
type Document struct {
	SpineOrder []SpineItem
	CoverName  string
	NeedsEPUB3 bool
}

// Parse extracts the RESC payload from a raw resource record and parses
// its content. A RESC record begins with "RESC" followed by a
// "length=<base32>" header parameter giving the exact payload length;
// when absent the payload runs to the record's trailing NUL (or its end).
func Parse(rec []byte) (*Document, error) {
	if len(rec) < 4 || string(rec[0:4]) != "RESC" {
		return nil, errNotResc
	}
	body := rec[4:]

	length := -1
	if idx := indexFromStr(body, "length="); idx >= 0 {
		start := idx + len("length=")
		end := start
		for end < len(body) && isB32Digit(body[end]) {
			end++
		}
		if end > start {
			length = int(b32.Decode(string(body[start:end])))
		}
	}

	var payload []byte
	if length >= 0 && length <= len(body) {
		payload = body[:length]
	} else if nul := indexByteFrom(body, 0, 0x00); nul >= 0 {
		payload = body[:nul]
	} else {
		payload = body
	}

	tags := Scan(payload)
	return parseData(tags), nil
}

func parseData(tags []Tag) *Document {
	doc := &Document{}
	var path []string

	for _, t := range tags {
		switch t.Kind {
		case TagBegin:
			path = append(path, t.Name)
			handleTag(doc, path, t)
		case TagSingle:
			path = append(path, t.Name)
			handleTag(doc, path, t)
			path = path[:len(path)-1]
		case TagEnd:
			if len(path) > 0 {
				path = path[:len(path)-1]
			}
		}
	}
	return doc
}

func handleTag(doc *Document, path []string, t Tag) {
	if !inParentWhitelist(path) {
		return
	}
	switch t.Name {
	case "itemref":
		doc.SpineOrder = append(doc.SpineOrder, SpineItem{
			SkelID:     t.Attrs["skelid"],
			IDRef:      t.Attrs["idref"],
			Linear:     t.Attrs["linear"] != "no",
			Properties: t.Attrs["properties"],
		})
	case "meta":
		if t.Attrs["name"] == "cover" {
			doc.CoverName = t.Attrs["content"]
		}
	case "package":
		if v, ok := t.Attrs["version"]; ok {
			if n, err := strconv.ParseFloat(v, 64); err == nil && n >= 3 {
				doc.NeedsEPUB3 = true
			}
		}
	case "spine":
		if t.Attrs["page-progression-direction"] == "rtl" {
			doc.NeedsEPUB3 = true
		}
	}
	if t.Attrs["properties"] != "" || hasKey(t.Order, "refines") {
		doc.NeedsEPUB3 = true
	}
}

func hasKey(order []string, key string) bool {
	for _, k := range order {
		if k == key {
			return true
		}
	}
	return false
}

func inParentWhitelist(path []string) bool {
	if len(path) == 0 {
		return false
	}
	if opfParentTags[path[len(path)-1]] {
		return true
	}
	return len(path) > 1 && opfParentTags[path[len(path)-2]]
}

func isB32Digit(c byte) bool {
	return strings.IndexByte("0123456789ABCDEFGHIJKLMNOPQRSTUVabcdefghijklmnopqrstuv", c) >= 0
}

func indexFromStr(data []byte, sub string) int {
	return strings.Index(string(data), sub)
}

type rescError string

func (e rescError) Error() string { return string(e) }

const errNotResc = rescError("not a RESC record")
