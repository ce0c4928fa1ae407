package resource

import (
	"encoding/binary"

	"github.com/klauspost/compress/zlib"
	"io"

	"github.com/mobiunpack/mobiunpack/internal/mobierr"
)

const obfuscatedRegionLen = 1024

// FontFlags bits within a FONT record's header.
const (
	FontFlagZlib = 0x0001
	FontFlagXOR  = 0x0002
)

// FontInfo is a decoded FONT resource record.
type FontInfo struct {
	Data  []byte
	IsTTF bool
	IsOTF bool
}

// DecodeFont parses a FONT record per spec §4.10: header at bytes 4..24
// gives uncompressed size, flag bits, data offset, and the XOR key's
// offset/length; the key deobfuscates the font's first 1024 bytes via
// cyclic XOR, after which zlib inflation is applied if flagged.
func DecodeFont(rec []byte) (*FontInfo, error) {
	if len(rec) < 24 || string(rec[0:4]) != "FONT" {
		return nil, &mobierr.ResourceDecodeFailure{Reason: "bad FONT magic"}
	}
	usize := binary.BigEndian.Uint32(rec[4:8])
	flags := binary.BigEndian.Uint32(rec[8:12])
	dstart := binary.BigEndian.Uint32(rec[12:16])
	xorLen := binary.BigEndian.Uint32(rec[16:20])
	xorStart := binary.BigEndian.Uint32(rec[20:24])

	if int(dstart) > len(rec) {
		return nil, &mobierr.ResourceDecodeFailure{Reason: "FONT data offset out of range"}
	}
	payload := append([]byte{}, rec[dstart:]...)

	if flags&FontFlagXOR != 0 {
		if int(xorStart)+int(xorLen) > len(rec) {
			return nil, &mobierr.ResourceDecodeFailure{Reason: "FONT xor key out of range"}
		}
		key := rec[xorStart : xorStart+xorLen]
		deobfuscate(payload, key)
	}

	if flags&FontFlagZlib != 0 {
		zr, err := zlib.NewReader(byteReader(payload))
		if err != nil {
			return nil, &mobierr.ResourceDecodeFailure{Reason: "FONT zlib header invalid: " + err.Error()}
		}
		defer zr.Close()
		out := make([]byte, 0, usize)
		buf := make([]byte, 4096)
		for {
			n, err := zr.Read(buf)
			if n > 0 {
				out = append(out, buf[:n]...)
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, &mobierr.ResourceDecodeFailure{Reason: "FONT zlib inflate failed: " + err.Error()}
			}
		}
		payload = out
	}

	info := &FontInfo{Data: payload}
	if len(payload) >= 4 {
		switch {
		case payload[0] == 0 && payload[1] == 1 && payload[2] == 0 && payload[3] == 0:
			info.IsTTF = true
		case string(payload[0:4]) == "OTTO":
			info.IsOTF = true
		}
	}
	return info, nil
}

// deobfuscate XORs the first 1024 bytes of data in place with key,
// cycling the key as needed. Symmetric: applying it twice with the same
// key restores the original bytes (testable property 7).
func deobfuscate(data, key []byte) {
	if len(key) == 0 {
		return
	}
	n := obfuscatedRegionLen
	if n > len(data) {
		n = len(data)
	}
	for i := 0; i < n; i++ {
		data[i] ^= key[i%len(key)]
	}
}

// FontKeyFromUUID derives the obfuscation key from a book's UUID: the hex
// digits of the UUID, unhexlified and repeated to 32 bytes.
func FontKeyFromUUID(uuidHex string) []byte {
	clean := make([]byte, 0, len(uuidHex))
	for i := 0; i < len(uuidHex); i++ {
		c := uuidHex[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			clean = append(clean, c)
		}
	}
	raw := make([]byte, len(clean)/2)
	for i := range raw {
		hi := hexVal(clean[2*i])
		lo := hexVal(clean[2*i+1])
		raw[i] = hi<<4 | lo
	}
	key := make([]byte, 0, 32)
	for len(key) < 32 && len(raw) > 0 {
		key = append(key, raw...)
	}
	if len(key) > 32 {
		key = key[:32]
	}
	return key
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}

type byteReaderT struct {
	b   []byte
	pos int
}

func (r *byteReaderT) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}

func byteReader(b []byte) io.Reader { return &byteReaderT{b: b} }
