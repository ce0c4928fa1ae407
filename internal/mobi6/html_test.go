package mobi6

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRewriteFilePos(t *testing.T) {
	html := []byte(`<a filepos="0000012345">link</a>`)
	out := RewriteFilePos(html)
	require.Equal(t, `<a href="#filepos0000012345">link</a>`, string(out))
}

func TestRewriteImages(t *testing.T) {
	html := []byte(`<img recindex="0003"/>`)
	resolve := func(n int) (string, bool) {
		if n == 3 {
			return "00003.jpeg", true
		}
		return "", false
	}
	out := RewriteImages(html, resolve)
	require.Equal(t, `<img src="Images/00003.jpeg"/>`, string(out))
}

func TestRewriteImagesUnresolved(t *testing.T) {
	html := []byte(`<img recindex="0099"/>`)
	resolve := func(n int) (string, bool) { return "", false }
	out := RewriteImages(html, resolve)
	require.Equal(t, string(html), string(out))
}

func TestExtractGuide(t *testing.T) {
	block := []byte(`<reference type="toc" title="Table of Contents" filepos="0000001000"/>
<reference type="start" filepos="0000002000"/>`)

	refs := ExtractGuide(block)
	require.Len(t, refs, 2)
	require.Equal(t, "toc", refs[0].Type)
	require.Equal(t, "Table of Contents", refs[0].Title)
	require.Equal(t, 1000, refs[0].FilePos)
	require.Equal(t, "start", refs[1].Type)
	require.Equal(t, 2000, refs[1].FilePos)
}
