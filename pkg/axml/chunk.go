// Package axml decodes Android binary XML, the compiled form of
// AndroidManifest.xml found inside APKs.
//
// The decoder is a forward-only, single pass reader. Callers register
// callbacks for absolute element paths and then run the pass once:
//
//	err := axml.NewTree(r).
//		Register("/manifest", func(e *axml.Element) { ... }).
//		Register("/manifest/uses-permission", func(e *axml.Element) { ... }).
//		Map()
package axml

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Chunk types.
const (
	chunkNull          = 0x0000
	chunkStringPool    = 0x0001
	chunkXML           = 0x0003
	chunkXMLStartNS    = 0x0100
	chunkXMLEndNS      = 0x0101
	chunkXMLStartElem  = 0x0102
	chunkXMLEndElem    = 0x0103
	chunkXMLCData      = 0x0104
	chunkXMLResourceID = 0x0180
)

const (
	chunkHeaderSize = 8
	nodeHeaderSize  = 16
	noIndex         = 0xFFFFFFFF
)

var (
	// ErrPlainText is returned for textual XML, which this package does not read.
	ErrPlainText = errors.New("axml: input is plain text XML")
	// ErrConsumed is returned when Map is called a second time.
	ErrConsumed = errors.New("axml: tree already consumed")
)

// FormatError describes malformed binary XML.
type FormatError struct {
	Offset int
	Msg    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("axml: malformed input at offset %#x: %s", e.Offset, e.Msg)
}

func formatErr(off int, format string, args ...interface{}) error {
	return &FormatError{Offset: off, Msg: fmt.Sprintf(format, args...)}
}

type chunkHeader struct {
	typ        uint16
	headerSize uint16
	size       uint32
}

// readChunkHeader reads and validates the header of the chunk at off.
// The returned chunk is guaranteed to fit inside buf.
func readChunkHeader(buf []byte, off int) (chunkHeader, error) {
	if off < 0 || len(buf)-off < chunkHeaderSize {
		return chunkHeader{}, formatErr(off, "truncated chunk header")
	}
	h := chunkHeader{
		typ:        binary.LittleEndian.Uint16(buf[off:]),
		headerSize: binary.LittleEndian.Uint16(buf[off+2:]),
		size:       binary.LittleEndian.Uint32(buf[off+4:]),
	}
	if h.headerSize < chunkHeaderSize {
		return h, formatErr(off, "chunk 0x%04x header size %d too small", h.typ, h.headerSize)
	}
	if uint32(h.headerSize) > h.size {
		return h, formatErr(off, "chunk 0x%04x header size %d exceeds chunk size %d", h.typ, h.headerSize, h.size)
	}
	if uint64(off)+uint64(h.size) > uint64(len(buf)) {
		return h, formatErr(off, "chunk 0x%04x size %d runs past end of data", h.typ, h.size)
	}
	return h, nil
}

func u16(b []byte, off int) uint16 { return binary.LittleEndian.Uint16(b[off:]) }
func u32(b []byte, off int) uint32 { return binary.LittleEndian.Uint32(b[off:]) }
