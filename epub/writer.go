// Package epub provides EPUB file generation.
package epub

import (
	"archive/zip"
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/mobiunpack/mobiunpack/opf"
)

// Regex to match id attributes: id="value" or id='value'
var idRegex = regexp.MustCompile(`id=["']([^"']+)["']`)

// EPUBWriter writes EPUB files
type EPUBWriter struct {
	book    *opf.OEBBook
	bookID  string
	uuid    string
	ocfPath string // Default: OEBPS
	version string
}

// NewEPUBWriter creates a new EPUB writer. The package defaults to EPUB
// 2.0, the widest-compatibility target; call WithVersion to override it.
func NewEPUBWriter(book *opf.OEBBook) *EPUBWriter {
	return &EPUBWriter{
		book:    book,
		bookID:  generateUUID(),
		uuid:    generateUUID(),
		ocfPath: "OEBPS",
		version: "2.0",
	}
}

// WithVersion overrides the generated package's version attribute (e.g.
// "3.0" when a RESC record signals EPUB3-only content such as a
// right-to-left page progression or properties/refines attributes the
// 2.0 manifest vocabulary can't express). An
// empty version leaves the default in place.
func (w *EPUBWriter) WithVersion(version string) *EPUBWriter {
	if version != "" {
		w.version = version
	}
	return w
}

// Write writes the EPUB file to a writer
func (w *EPUBWriter) Write(output io.Writer) error {
	// Create ZIP writer
	zipWriter := zip.NewWriter(output)
	defer zipWriter.Close()

	// 1. Write mimetype (must be first, uncompressed)
	if err := w.writeMimetype(zipWriter); err != nil {
		return fmt.Errorf("failed to write mimetype: %w", err)
	}

	// 2. Write META-INF/container.xml
	if err := w.writeContainer(zipWriter); err != nil {
		return fmt.Errorf("failed to write container.xml: %w", err)
	}

	// 3. Write content.opf
	if err := w.writeOPF(zipWriter); err != nil {
		return fmt.Errorf("failed to write content.opf: %w", err)
	}

	// 4. Write toc.ncx
	if err := w.writeNCX(zipWriter); err != nil {
		return fmt.Errorf("failed to write toc.ncx: %w", err)
	}

	// 5. Write content XHTML
	if err := w.writeContent(zipWriter); err != nil {
		return fmt.Errorf("failed to write content.xhtml: %w", err)
	}

	// 6. Write resources (images, etc.)
	if err := w.writeResources(zipWriter); err != nil {
		return fmt.Errorf("failed to write resources: %w", err)
	}

	return nil
}

// writeMimetype writes the mimetype file (must be uncompressed, first in archive)
func (w *EPUBWriter) writeMimetype(zipWriter *zip.Writer) error {
	header := &zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store, // Uncompressed (required for mimetype)
	}
	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = writer.Write([]byte("application/epub+zip"))
	return err
}

// writeContainer writes META-INF/container.xml
func (w *EPUBWriter) writeContainer(zipWriter *zip.Writer) error {
	const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="%s/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

	writer, err := zipWriter.Create("META-INF/container.xml")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(writer, containerXML, w.ocfPath)
	return err
}

// writeOPF writes the content.opf file
func (w *EPUBWriter) writeOPF(zipWriter *zip.Writer) error {
	var buf bytes.Buffer

	// Header
	fmt.Fprintf(&buf, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<package xmlns=\"http://www.idpf.org/2007/opf\" version=\"%s\" unique-identifier=\"bookid\">\n", w.version)

	// Metadata
	w.writeMetadata(&buf)

	// Manifest
	w.writeManifest(&buf)

	// Spine
	w.writeSpine(&buf)

	// Footer
	buf.WriteString(`</package>
`)

	writer, err := zipWriter.Create(fmt.Sprintf("%s/content.opf", w.ocfPath))
	if err != nil {
		return err
	}
	_, err = buf.WriteTo(writer)
	return err
}

// writeMetadata writes the metadata section of content.opf
func (w *EPUBWriter) writeMetadata(buf *bytes.Buffer) {
	m := w.book.Metadata

	buf.WriteString(`  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`)

	// Identifier (required)
	buf.WriteString(fmt.Sprintf(`    <dc:identifier id="bookid">%s</dc:identifier>
`, w.bookID))

	// Title
	if m.Title != "" {
		buf.WriteString(fmt.Sprintf(`    <dc:title>%s</dc:title>
`, escapeXML(m.Title)))
	}

	// Authors
	for _, author := range m.Authors {
		buf.WriteString(fmt.Sprintf(`    <dc:creator>%s</dc:creator>
`, escapeXML(author.FullName)))
	}

	// Publisher
	if m.Publisher != "" {
		buf.WriteString(fmt.Sprintf(`    <dc:publisher>%s</dc:publisher>
`, escapeXML(m.Publisher)))
	}

	// ISBN
	if m.ISBN != "" {
		buf.WriteString(fmt.Sprintf(`    <dc:identifier>urn:isbn:%s</dc:identifier>
`, escapeXML(m.ISBN)))
	}

	// Date/Year
	if !m.PubDate.IsZero() {
		year := m.PubDate.Year()
		month := m.PubDate.Month()
		day := m.PubDate.Day()
		buf.WriteString(fmt.Sprintf(`    <dc:date>%04d-%02d-%02d</dc:date>
`, year, month, day))
	} else if m.Year != "" {
		buf.WriteString(fmt.Sprintf(`    <dc:date>%s</dc:date>
`, escapeXML(m.Year)))
	}

	// Language
	if m.Language != "" {
		buf.WriteString(fmt.Sprintf(`    <dc:language>%s</dc:language>
`, escapeXML(m.Language)))
	}

	// Annotation (description)
	if m.Annotation != "" {
		buf.WriteString(`    <dc:description>
`)
		// Indent each line of annotation
		lines := strings.Split(m.Annotation, "\n")
		for _, line := range lines {
			buf.WriteString(fmt.Sprintf("      %s\n", escapeXML(line)))
		}
		buf.WriteString(`    </dc:description>
`)
	}

	// Cover
	if m.CoverID != "" {
		buf.WriteString(fmt.Sprintf(`    <meta name="cover" content="%s"/>
`, m.CoverID))
	}

	buf.WriteString(`  </metadata>
`)
}

// writeManifest writes the manifest section of content.opf. Every book
// resource (spine parts, images, fonts, CSS) gets one item keyed by its
// own manifest ID; spine order is resolved separately in writeSpine.
func (w *EPUBWriter) writeManifest(buf *bytes.Buffer) {
	buf.WriteString(`  <manifest>
`)

	buf.WriteString(`    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
`)

	ids := w.book.GetManifestIDs()
	for _, id := range ids {
		res, ok := w.book.GetResource(id)
		if !ok {
			continue
		}
		href := res.Href
		if href == "" {
			href = id
		}
		props := ""
		if w.book.Metadata.CoverID == id {
			props = ` properties="cover-image"`
		}
		buf.WriteString(fmt.Sprintf(`    <item id="%s" href="%s" media-type="%s"%s/>
`, id, href, res.MediaType, props))
	}

	buf.WriteString(`  </manifest>
`)
}

// writeSpine writes the spine section of content.opf, in the order
// recorded by the book's Spine slice (one entry per assembled KF8 part,
// or a single legacy-content entry for Mobi6 books).
func (w *EPUBWriter) writeSpine(buf *bytes.Buffer) {
	buf.WriteString(`  <spine toc="ncx">
`)

	for _, id := range w.book.Spine {
		buf.WriteString(fmt.Sprintf(`    <itemref idref="%s"/>
`, id))
	}

	buf.WriteString(`  </spine>
`)
}

// writeNCX writes the toc.ncx file. Each entry's Href already points at
// the spine part containing its target (e.g. "Text/part0003.xhtml"); it
// carries no anchor within that part. This just delegates to the book's
// own NCX generator.
func (w *EPUBWriter) writeNCX(zipWriter *zip.Writer) error {
	data, err := w.book.GenerateNCX()
	if err != nil {
		return err
	}
	writer, err := zipWriter.Create(fmt.Sprintf("%s/toc.ncx", w.ocfPath))
	if err != nil {
		return err
	}
	_, err = writer.Write(data)
	return err
}

// rewriteDuplicateIDs finds and rewrites duplicate IDs in HTML content
func (w *EPUBWriter) rewriteDuplicateIDs(html string) string {
	// Find all id attributes in the HTML
	idCounts := make(map[string]int)

	// Pattern to find id="value" or id='value'
	matches := idRegex.FindAllStringSubmatch(html, -1)

	for _, match := range matches {
		if len(match) >= 2 {
			id := match[1]
			idCounts[id]++
		}
	}

	// If no duplicates, return original
	hasDuplicates := false
	for _, count := range idCounts {
		if count > 1 {
			hasDuplicates = true
			break
		}
	}
	if !hasDuplicates {
		return html
	}

	// Now replace IDs in HTML, tracking occurrences
	occurrences := make(map[string]int)
	result := idRegex.ReplaceAllStringFunc(html, func(match string) string {
		// Extract the ID value from this match
		parts := idRegex.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		id := parts[1]

		occurrences[id]++
		occurrence := occurrences[id]

		if idCounts[id] > 1 && occurrence > 1 {
			// This is a duplicate ID (not the first occurrence)
			newID := fmt.Sprintf("%s-%d", id, occurrence)
			// Preserve the original quote style
			quoteChar := "'"
			if strings.Contains(match, `"`) {
				quoteChar = `"`
			}
			return fmt.Sprintf(`id=%s%s%s`, quoteChar, newID, quoteChar)
		}
		return match
	})

	return result
}

// writeContent writes every spine part's XHTML file. Each spine
// resource's Data already holds a complete, assembled XHTML document
// (unlike the single-document FB2 case this writer originally served),
// so only duplicate-ID repair is applied here.
func (w *EPUBWriter) writeContent(zipWriter *zip.Writer) error {
	for _, id := range w.book.Spine {
		res, ok := w.book.GetResource(id)
		if !ok {
			continue
		}
		xhtml := w.rewriteDuplicateIDs(string(res.Data))

		href := res.Href
		if href == "" {
			href = id
		}
		writer, err := zipWriter.Create(fmt.Sprintf("%s/%s", w.ocfPath, href))
		if err != nil {
			return err
		}
		if _, err := writer.Write([]byte(xhtml)); err != nil {
			return fmt.Errorf("failed to write spine part %s: %w", id, err)
		}
	}
	return nil
}

func inSpine(spine []string, id string) bool {
	for _, s := range spine {
		if s == id {
			return true
		}
	}
	return false
}

// writeResources writes every manifest resource not already handled by
// writeContent (images, fonts, stylesheets) into the package.
func (w *EPUBWriter) writeResources(zipWriter *zip.Writer) error {
	ids := w.book.GetManifestIDs()
	for _, id := range ids {
		if inSpine(w.book.Spine, id) {
			continue
		}
		res, ok := w.book.GetResource(id)
		if !ok {
			continue
		}

		href := res.Href
		if href == "" {
			href = id
		}
		path := fmt.Sprintf("%s/%s", w.ocfPath, href)

		writer, err := zipWriter.Create(path)
		if err != nil {
			return err
		}

		if _, err := writer.Write(res.Data); err != nil {
			return fmt.Errorf("failed to write resource %s: %w", id, err)
		}
	}

	return nil
}

// escapeXML escapes special XML characters
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}

// generateUUID generates a random UUID for the book
func generateUUID() string {
	// Generate 16 random bytes
	rnd := make([]byte, 16)
	if _, err := rand.Read(rnd); err != nil {
		// Fallback to simple ID if random fails
		return "urn:uuid:fb2c-book-id"
	}

	// Set version (4) and variant bits
	rnd[6] = (rnd[6] & 0x0f) | 0x40 // Version 4
	rnd[8] = (rnd[8] & 0x3f) | 0x80 // Variant 1

	return fmt.Sprintf("urn:uuid:%08x-%04x-%04x-%04x-%012x",
		binary.BigEndian.Uint32(rnd[0:4]),
		binary.BigEndian.Uint16(rnd[4:6]),
		binary.BigEndian.Uint16(rnd[6:8]),
		binary.BigEndian.Uint16(rnd[8:10]),
		binary.BigEndian.Uint64(rnd[8:16])&0x0FFFFFFFFFFFF)
}

// ConvertOEBToEPUB converts an OEBBook to EPUB
func ConvertOEBToEPUB(book *opf.OEBBook, output io.Writer) error {
	writer := NewEPUBWriter(book)
	return writer.Write(output)
}
