package epub

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mobiunpack/mobiunpack/opf"
)

// WriteLegacyTree writes a book out as a plain directory tree rather
// than an EPUB zip: a content.opf, a toc.ncx, one HTML file per spine
// entry, and the resource files, laid out the way Mobi6-only sources
// are published (no OCF container, no mimetype sentinel). This is the
// "legacy HTML+NCX" output mode.
func WriteLegacyTree(book *opf.OEBBook, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("legacy output: %w", err)
	}

	opfData, err := book.GenerateOPF()
	if err != nil {
		return fmt.Errorf("legacy output: opf: %w", err)
	}
	if err := writeFile(dir, "content.opf", opfData); err != nil {
		return err
	}

	ncxData, err := book.GenerateNCX()
	if err != nil {
		return fmt.Errorf("legacy output: ncx: %w", err)
	}
	if err := writeFile(dir, "toc.ncx", ncxData); err != nil {
		return err
	}

	for _, id := range book.Spine {
		res, ok := book.GetResource(id)
		if !ok {
			continue
		}
		href := res.Href
		if href == "" {
			href = id
		}
		if err := writeFile(dir, href, res.Data); err != nil {
			return err
		}
	}

	for _, id := range book.GetManifestIDs() {
		if inSpine(book.Spine, id) {
			continue
		}
		res, ok := book.GetResource(id)
		if !ok {
			continue
		}
		href := res.Href
		if href == "" {
			href = id
		}
		if err := writeFile(dir, href, res.Data); err != nil {
			return err
		}
	}

	return nil
}

func writeFile(dir, href string, data []byte) error {
	path := filepath.Join(dir, filepath.FromSlash(href))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("legacy output: %s: %w", href, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("legacy output: %s: %w", href, err)
	}
	return nil
}
