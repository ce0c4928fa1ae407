// Package resource classifies the records following a Mobi header's
// firstresource pointer: fonts, images, HD image variants, source
// archives, build logs, page maps, RESC XML, and container headers.
package resource

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
)

// Kind identifies what a resource record turned out to be.
type Kind int

const (
	Unknown Kind = iota
	Image
	Font
	HDImage
	Source
	BuildLog
	PageMap
	Resc
	ContHeader
	Boundary
	Trailer
	Placeholder
)

// Classified is one dispatched resource record.
type Classified struct {
	Kind Kind
	Name string // output-relative file name, "" if not emitted as a named asset
	Data []byte
	Hash uint64 // xxhash of Data, for duplicate-content detection across records
}

// HashContent fingerprints a resource's final bytes (after any HD-image
// header strip or font deobfuscation) so the caller can notice when two
// differently-numbered records carry identical content, e.g. the same
// cover image embedded at both its low-res and CRES slots.
func HashContent(data []byte) uint64 {
	return xxhash.Sum64(data)
}

var placeholderMagic = []byte{0xA0, 0xA0, 0xA0, 0xA0}

// Classify inspects a record's leading bytes per spec §4.10/§3.
func Classify(data []byte) Kind {
	switch {
	case hasPrefix(data, "FONT"):
		return Font
	case hasPrefix(data, "CRES"):
		return HDImage
	case hasPrefix(data, "SRCS"):
		return Source
	case hasPrefix(data, "CMET"):
		return BuildLog
	case hasPrefix(data, "PAGE"):
		return PageMap
	case hasPrefix(data, "RESC"):
		return Resc
	case hasPrefix(data, "CONT"):
		return ContHeader
	case hasPrefix(data, "BOUNDARY"):
		return Boundary
	case hasPrefix(data, "FLIS"), hasPrefix(data, "FCIS"), hasPrefix(data, "FDST"), hasPrefix(data, "DATP"):
		return Trailer
	case hasPrefix(data, "\xE9\x8E\x0D\x0A"):
		return Trailer
	case bytes.Equal(firstN(data, 4), placeholderMagic):
		return Placeholder
	case looksLikeImage(data):
		return Image
	default:
		return Unknown
	}
}

func hasPrefix(data []byte, prefix string) bool {
	return len(data) >= len(prefix) && string(data[:len(prefix)]) == prefix
}

func firstN(data []byte, n int) []byte {
	if len(data) < n {
		return data
	}
	return data[:n]
}

func looksLikeImage(data []byte) bool {
	switch {
	case len(data) >= 4 && data[0] == 0xFF && data[1] == 0xD8 && data[len(data)-2] == 0xFF && data[len(data)-1] == 0xD9:
		return true // JPEG
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return true // PNG
	case len(data) >= 6 && (string(data[:6]) == "GIF87a" || string(data[:6]) == "GIF89a"):
		return true // GIF
	case len(data) >= 2 && data[0] == 'B' && data[1] == 'M':
		return true // BMP
	default:
		return false
	}
}

// Extension returns the conventional file extension for a sniffed image.
func Extension(data []byte) string {
	switch {
	case len(data) >= 4 && data[0] == 0xFF && data[1] == 0xD8:
		return ".jpg"
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return ".png"
	case len(data) >= 6 && (string(data[:6]) == "GIF87a" || string(data[:6]) == "GIF89a"):
		return ".gif"
	case len(data) >= 2 && data[0] == 'B' && data[1] == 'M':
		return ".bmp"
	default:
		return ".dat"
	}
}
