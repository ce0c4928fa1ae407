package mobi

import (
	"golang.org/x/text/encoding/charmap"
)

// DecodeText converts raw header/text bytes to a Go string per the
// header's declared codepage: 1252 (Windows-1252) or 65001 (UTF-8).
// Any other value is treated as Windows-1252, matching the reference
// decoder's fallback.
func DecodeText(raw []byte, codepage uint32) string {
	if codepage == 65001 {
		return string(raw)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
