package opf

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// HTMLProcessor runs the final cleanup pass over reassembled Mobi6 legacy
// HTML, and renders the standalone title page both output paths share.
// It must only run after every byte-offset-dependent rewrite (anchor
// splicing, filepos link rewriting) is done, since normalizing whitespace
// and converting elements shifts or removes bytes those rewrites address
// by absolute offset.
type HTMLProcessor struct{}

// NewHTMLProcessor returns a ready-to-use processor; it carries no state.
func NewHTMLProcessor() *HTMLProcessor {
	return &HTMLProcessor{}
}

// Process cleans up one legacy HTML document: strips any XML declaration,
// normalizes line endings, promotes paragraph-like divs to <p>, repairs a
// handful of common encoding mistakes, drops empty elements, and collapses
// whitespace.
func (p *HTMLProcessor) Process(html string) string {
	html = p.stripXMLDeclaration(html)
	html = p.normalizeLineBreaks(html)
	html = p.convertParagraphDivs(html)
	html = p.fixHTMLEncoding(html)
	html = p.removeEmptyElements(html)
	html = p.normalizeWhitespace(html)
	return html
}

var xmlDeclPattern = regexp.MustCompile(`^<\?xml[^>]*\?>\s*`)

func (p *HTMLProcessor) stripXMLDeclaration(html string) string {
	return xmlDeclPattern.ReplaceAllString(html, "")
}

func (p *HTMLProcessor) normalizeLineBreaks(html string) string {
	html = strings.ReplaceAll(html, "\r\n", "\n")
	html = strings.ReplaceAll(html, "\r", "\n")
	return html
}

var (
	paragraphDivPattern = regexp.MustCompile(`<div\s+class=["']paragraph["']\s*>(.*?)</div>`)
	plainDivPattern     = regexp.MustCompile(`<div\s*>([^<]+)</div>`)
)

func (p *HTMLProcessor) convertParagraphDivs(html string) string {
	html = paragraphDivPattern.ReplaceAllString(html, "<p>$1</p>")
	html = plainDivPattern.ReplaceAllString(html, "<p>$1</p>")
	return html
}

// fixHTMLEncoding repairs bare ampersands a legacy reassembler commonly
// leaves unescaped; well-formed entities pass through untouched.
func (p *HTMLProcessor) fixHTMLEncoding(html string) string {
	return strings.ReplaceAll(html, " & ", " &amp; ")
}

var (
	emptyParagraphPattern = regexp.MustCompile(`<p>\s*</p>`)
	emptyDivPattern       = regexp.MustCompile(`<div>\s*</div>`)
	emptySpanPattern      = regexp.MustCompile(`<span>\s*</span>`)
)

func (p *HTMLProcessor) removeEmptyElements(html string) string {
	html = emptyParagraphPattern.ReplaceAllString(html, "")
	html = emptyDivPattern.ReplaceAllString(html, "")
	html = emptySpanPattern.ReplaceAllString(html, "")
	return html
}

var whitespaceRunPattern = regexp.MustCompile(`\s+`)

func (p *HTMLProcessor) normalizeWhitespace(html string) string {
	html = whitespaceRunPattern.ReplaceAllString(html, " ")

	lines := strings.Split(html, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// WrapInHTML wraps content (already-serialized body markup) in a complete
// HTML document with a plain serif reading stylesheet, the same baseline
// styling convention legacy Mobi6 readers expect.
func (p *HTMLProcessor) WrapInHTML(content, title, lang string) string {
	if lang == "" {
		lang = "en"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<!DOCTYPE html>\n<html lang=\"%s\">\n<head>\n", lang)
	buf.WriteString("    <meta charset=\"UTF-8\">\n")
	fmt.Fprintf(&buf, "    <title>%s</title>\n", htmlEscape(title))
	buf.WriteString(`    <style type="text/css">
        body { font-family: serif; margin: 2em; text-align: justify; }
        h1, h2, h3, h4, h5, h6 { font-weight: bold; margin-top: 1em; margin-bottom: 0.5em; }
        h1 { font-size: 160%; border: 1px solid black; background-color: #E7E7E7; padding: 0.5em; }
        h2 { font-size: 130%; border: 1px solid gray; background-color: #EEEEEE; padding: 0.5em; }
        h3 { font-size: 110%; border: 1px solid silver; background-color: #F1F1F1; padding: 0.5em; }
        p { text-indent: 2em; margin: 0; line-height: 1.3; }
        blockquote { margin-left: 4em; }
        table { border-collapse: collapse; margin: 1em auto; }
        td, th { border: 1px solid black; padding: 0.3em; }
    </style>
</head>
<body>
`)
	buf.WriteString(content)
	buf.WriteString("\n</body>\n</html>")
	return buf.String()
}

// GenerateTitlePage renders a standalone title-page body (title, authors,
// series, publisher, year, ISBN) for the shared "titlepage" manifest
// entry both the KF8 and Mobi6 assembly paths attach.
func (p *HTMLProcessor) GenerateTitlePage(metadata Metadata) string {
	var buf bytes.Buffer
	buf.WriteString("<div style=\"text-align: center; page-break-after: always;\">\n")

	if metadata.Title != "" {
		fmt.Fprintf(&buf, "<h1>%s</h1>\n", htmlEscape(metadata.Title))
	}

	if len(metadata.Authors) > 0 {
		for _, author := range metadata.Authors {
			if author.FullName != "" {
				fmt.Fprintf(&buf, "<h2>%s</h2>\n", htmlEscape(author.FullName))
			}
		}
		buf.WriteString("<br/>\n")
	}

	if metadata.Series != "" {
		seriesText := metadata.Series
		if metadata.SeriesIndex > 0 {
			seriesText += fmt.Sprintf(" (#%d)", metadata.SeriesIndex)
		}
		fmt.Fprintf(&buf, "<h3>%s</h3>\n<br/>\n", htmlEscape(seriesText))
	}

	if metadata.Publisher != "" {
		fmt.Fprintf(&buf, "<p>%s</p>\n", htmlEscape(metadata.Publisher))
	}
	if metadata.Year != "" {
		fmt.Fprintf(&buf, "<p>%s</p>\n", htmlEscape(metadata.Year))
	}
	if metadata.ISBN != "" {
		fmt.Fprintf(&buf, "<p>ISBN: %s</p>\n", htmlEscape(metadata.ISBN))
	}

	buf.WriteString("</div>\n")
	return buf.String()
}

func htmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
