// Package kf8 reconstructs per-file XHTML parts from a KF8 rawML flow
// using the FDST flow-descriptor table and the skeleton/fragment INDX
// tables, then rewrites the kindle: URI scheme into relative file links.
package kf8

import (
	"encoding/binary"

	"github.com/mobiunpack/mobiunpack/internal/mobierr"
)

// FDST is the flow-descriptor table: flowCount+1 offsets into rawML.
// Flow 0 is the xhtml body; flows 1..n are CSS, SVG, font refs, inline
// script.
type FDST struct {
	Offsets []uint32
}

// ParseFDST reads an FDST record: "FDST" magic, u32 data-start, u32
// flow-count, then flow-count+1 u32 offsets.
func ParseFDST(data []byte) (*FDST, error) {
	if len(data) < 12 || string(data[0:4]) != "FDST" {
		return nil, &mobierr.FormatError{Reason: "bad FDST magic"}
	}
	dataStart := binary.BigEndian.Uint32(data[4:8])
	count := binary.BigEndian.Uint32(data[8:12])
	offsets := make([]uint32, 0, count+1)
	pos := int(dataStart)
	for i := uint32(0); i <= count && pos+4 <= len(data); i++ {
		offsets = append(offsets, binary.BigEndian.Uint32(data[pos:]))
		pos += 4
	}
	return &FDST{Offsets: offsets}, nil
}

// NumFlows returns the number of flows (excluding the trailing sentinel
// offset).
func (f *FDST) NumFlows() int {
	if len(f.Offsets) == 0 {
		return 0
	}
	return len(f.Offsets) - 1
}

// Flow returns rawML[f.Offsets[i], f.Offsets[i+1]).
func (f *FDST) Flow(rawML []byte, i int) []byte {
	if i < 0 || i+1 >= len(f.Offsets) {
		return nil
	}
	start, end := f.Offsets[i], f.Offsets[i+1]
	if end > uint32(len(rawML)) {
		end = uint32(len(rawML))
	}
	if start > end {
		return nil
	}
	return rawML[start:end]
}

// SingleFlowFallback builds a degenerate FDST covering rawML as one flow,
// used when the header's fdstcnt<=1 sentinel made the real FDST record
// unreliable (spec's open question on this path).
func SingleFlowFallback(rawMLLen int) *FDST {
	return &FDST{Offsets: []uint32{0, uint32(rawMLLen)}}
}
