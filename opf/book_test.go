package opf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewOEBBook(t *testing.T) {
	book := NewOEBBook()
	require.NotNil(t, book.Manifest)
	require.Empty(t, book.Manifest)
	require.Empty(t, book.Spine)
}

func TestAddResourceAndSpine(t *testing.T) {
	book := NewOEBBook()

	res := book.AddResource("part0001", "part0001.xhtml", "application/xhtml+xml", []byte("<html><body>ch1</body></html>"))
	require.Equal(t, "part0001", res.ID)
	require.Len(t, book.Manifest, 1)

	retrieved, ok := book.GetResource("part0001")
	require.True(t, ok)
	require.Same(t, res, retrieved)

	book.AddToSpine("part0001")
	require.Equal(t, []string{"part0001"}, book.Spine)

	_, ok = book.GetResource("missing")
	require.False(t, ok)
}

func TestHasImages(t *testing.T) {
	book := NewOEBBook()
	require.False(t, book.HasImages())

	book.AddResource("part0001", "part0001.xhtml", "application/xhtml+xml", []byte("<html/>"))
	require.False(t, book.HasImages())

	book.AddResource("image00001", "images/00001.jpeg", "image/jpeg", []byte{0xFF, 0xD8})
	require.True(t, book.HasImages())
}

func TestNewAuthor(t *testing.T) {
	author := NewAuthor("Jules Verne", "aut")
	require.Equal(t, "Jules Verne", author.FullName)
	require.Equal(t, "Jules Verne", author.SortName)
	require.Equal(t, "aut", author.Role)

	defaulted := NewAuthor("Anonymous", "")
	require.Equal(t, "aut", defaulted.Role)
}

func TestConvertMetadataFromEXTH(t *testing.T) {
	exth := map[string][]string{
		"Creator":     {"Jules Verne"},
		"Contributor": {"Translator Name"},
		"Publisher":   {"Hetzel"},
		"ISBN":        {"978-0-000000-00-0"},
		"Language":    {"fr"},
		"Description": {"A voyage beneath the waves."},
		"Subject":     {"Adventure", "Science Fiction"},
	}
	pubDate := time.Date(1870, 1, 1, 0, 0, 0, 0, time.UTC)

	m := ConvertMetadataFromEXTH("Twenty Thousand Leagues Under the Sea", exth, pubDate)

	require.Equal(t, "Twenty Thousand Leagues Under the Sea", m.Title)
	require.Equal(t, "Hetzel", m.Publisher)
	require.Equal(t, "978-0-000000-00-0", m.ISBN)
	require.Equal(t, "fr", m.Language)
	require.Equal(t, []string{"fr"}, m.Languages)
	require.Equal(t, pubDate, m.PubDate)
	require.Len(t, m.Authors, 1)
	require.Equal(t, "Jules Verne", m.Authors[0].FullName)
	require.Equal(t, []string{"Translator Name"}, m.Contributors)
	require.Equal(t, "A voyage beneath the waves.", m.Annotation)
	require.Contains(t, m.Keywords, "Adventure")
	require.Contains(t, m.Keywords, "Science Fiction")
}

func TestTOCEntry(t *testing.T) {
	root := &TOCEntry{ID: "root", Label: "Root", Level: 0}

	ch1 := root.AddChild("part0001.xhtml#ch1", "Chapter 1", "part0001.xhtml#ch1")
	ch2 := root.AddChild("part0002.xhtml#ch2", "Chapter 2", "part0002.xhtml#ch2")
	require.Len(t, root.Children, 2)
	require.Equal(t, 1, ch1.Level)
	require.Equal(t, "Chapter 2", ch2.Label)

	require.Len(t, root.Flatten(), 3)
	require.Equal(t, 1, root.MaxDepth())

	ch1.AddChild("part0001.xhtml#s1", "Section 1.1", "part0001.xhtml#s1")
	require.Equal(t, 2, root.MaxDepth())
}

func TestGenerateOPF(t *testing.T) {
	book := NewOEBBook()
	book.Metadata = Metadata{
		Title:       "Twenty Thousand Leagues Under the Sea",
		Language:    "fr",
		Publisher:   "Hetzel",
		ISBN:        "978-0-000000-00-0",
		PubDate:     time.Date(1870, 1, 1, 0, 0, 0, 0, time.UTC),
		Series:      "Voyages Extraordinaires",
		SeriesIndex: 6,
		Genres:      []string{"Adventure"},
		CoverID:     "cover",
	}
	book.Metadata.Authors = []Author{NewAuthor("Jules Verne", "aut")}

	book.AddResource("part0001", "part0001.xhtml", "application/xhtml+xml", []byte("<html/>"))
	book.AddResource("cover", "images/cover.jpeg", "image/jpeg", []byte{0xFF, 0xD8})
	book.AddResource("ncx", "toc.ncx", "application/x-dtbncx+xml", []byte("ncx"))
	book.AddToSpine("part0001")

	data, err := book.GenerateOPF()
	require.NoError(t, err)

	opfStr := string(data)
	require.Contains(t, opfStr, `<?xml version="1.0" encoding="UTF-8"?>`)
	require.Contains(t, opfStr, `<package`)
	require.Contains(t, opfStr, `version="2.0"`)
	require.Contains(t, opfStr, `<dc:title>Twenty Thousand Leagues Under the Sea</dc:title>`)
	require.Contains(t, opfStr, `<dc:publisher>Hetzel</dc:publisher>`)
	require.Contains(t, opfStr, `<dc:language>fr</dc:language>`)
	require.Contains(t, opfStr, `<item id="part0001"`)
	require.Contains(t, opfStr, `<itemref idref="part0001"`)
	require.Contains(t, opfStr, `type="cover"`)
}

func TestGenerateNCX(t *testing.T) {
	book := NewOEBBook()
	book.Metadata = Metadata{Title: "Twenty Thousand Leagues Under the Sea"}
	book.TOC = TOCEntry{
		ID:    "root",
		Label: "Root",
		Level: 0,
		Children: []*TOCEntry{
			{ID: "ch1", Label: "Part One", Href: "part0001.xhtml", Level: 1},
			{
				ID: "ch2", Label: "Part Two", Href: "part0002.xhtml", Level: 1,
				Children: []*TOCEntry{
					{ID: "ch2s1", Label: "Chapter 1", Href: "part0002.xhtml#ch1", Level: 2},
				},
			},
		},
	}

	data, err := book.GenerateNCX()
	require.NoError(t, err)

	ncxStr := string(data)
	require.Contains(t, ncxStr, `version="2005-1"`)
	require.Contains(t, ncxStr, `<text>Twenty Thousand Leagues Under the Sea</text>`)
	require.Contains(t, ncxStr, `<navPoint id="ch1"`)
	require.Contains(t, ncxStr, `<text>Part One</text>`)
	require.Contains(t, ncxStr, `content src="part0001.xhtml"`)
	require.Contains(t, ncxStr, `<text>Chapter 1</text>`)
}

func TestHTMLProcessorProcess(t *testing.T) {
	processor := NewHTMLProcessor()

	tests := []struct {
		name        string
		input       string
		contains    []string
		notContains []string
	}{
		{
			name:        "strip xml declaration",
			input:       `<?xml version="1.0"?><html><body>Nemo</body></html>`,
			contains:    []string{"<html>", "Nemo"},
			notContains: []string{"<?xml"},
		},
		{
			name:        "convert paragraph divs",
			input:       `<div class="paragraph">The Nautilus dove.</div>`,
			contains:    []string{"<p>The Nautilus dove.</p>"},
			notContains: []string{`<div class="paragraph">`},
		},
		{
			name:        "drop empty elements, promote plain div",
			input:       `<p></p><div>Captain Nemo</div><p></p>`,
			contains:    []string{"<p>Captain Nemo</p>"},
			notContains: []string{"<p></p>", "<div>Captain Nemo</div>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := processor.Process(tt.input)
			for _, want := range tt.contains {
				require.Contains(t, result, want)
			}
			for _, unwanted := range tt.notContains {
				require.NotContains(t, result, unwanted)
			}
		})
	}
}

func TestWrapInHTML(t *testing.T) {
	processor := NewHTMLProcessor()
	doc := processor.WrapInHTML("<p>Body</p>", "Twenty Thousand Leagues", "fr")

	require.Contains(t, doc, `<html lang="fr">`)
	require.Contains(t, doc, `<title>Twenty Thousand Leagues</title>`)
	require.Contains(t, doc, "<p>Body</p>")

	defaulted := processor.WrapInHTML("<p>Body</p>", "Title", "")
	require.Contains(t, defaulted, `<html lang="en">`)
}

func TestGenerateTitlePage(t *testing.T) {
	processor := NewHTMLProcessor()
	metadata := Metadata{
		Title:       "Twenty Thousand Leagues Under the Sea",
		Publisher:   "Hetzel",
		Year:        "1870",
		ISBN:        "978-0-000000-00-0",
		Series:      "Voyages Extraordinaires",
		SeriesIndex: 6,
	}
	metadata.Authors = []Author{NewAuthor("Jules Verne", "aut")}

	titlePage := processor.GenerateTitlePage(metadata)

	require.Contains(t, titlePage, `<div style="text-align: center`)
	require.Contains(t, titlePage, "<h1>Twenty Thousand Leagues Under the Sea</h1>")
	require.Contains(t, titlePage, "<h2>Jules Verne</h2>")
	require.Contains(t, titlePage, "<h3>Voyages Extraordinaires (#6)</h3>")
	require.Contains(t, titlePage, "<p>Hetzel</p>")
	require.Contains(t, titlePage, "<p>1870</p>")
	require.Contains(t, titlePage, "<p>ISBN: 978-0-000000-00-0</p>")
}
