package axml

import (
	"unicode/utf16"
)

const (
	poolHeaderSize = 28
	poolFlagUTF8   = 1 << 8
)

// stringPool decodes strings lazily; manifests reference a small subset.
type stringPool struct {
	data    []byte // the whole chunk
	offsets []uint32
	start   int
	utf8    bool
	cache   []*string
}

func parseStringPool(buf []byte, off int, h chunkHeader) (*stringPool, error) {
	if h.headerSize < poolHeaderSize {
		return nil, formatErr(off, "string pool header size %d too small", h.headerSize)
	}
	chunk := buf[off : off+int(h.size)]
	count := u32(chunk, 8)
	flags := u32(chunk, 16)
	stringsStart := u32(chunk, 20)

	idx := int(h.headerSize)
	if uint64(count)*4 > uint64(len(chunk)-idx) {
		return nil, formatErr(off, "string pool declares %d strings, chunk too small", count)
	}
	if count > 0 && (stringsStart < uint32(idx) || stringsStart > uint32(len(chunk))) {
		return nil, formatErr(off, "string pool data offset %d out of range", stringsStart)
	}

	p := &stringPool{
		data:    chunk,
		offsets: make([]uint32, count),
		start:   int(stringsStart),
		utf8:    flags&poolFlagUTF8 != 0,
		cache:   make([]*string, count),
	}
	for i := range p.offsets {
		p.offsets[i] = u32(chunk, idx+4*i)
	}
	return p, nil
}

func (p *stringPool) len() int {
	if p == nil {
		return 0
	}
	return len(p.offsets)
}

// get returns string i. The bool is false for noIndex; out of range
// indices and bad encodings are errors.
func (p *stringPool) get(i uint32) (string, bool, error) {
	if i == noIndex {
		return "", false, nil
	}
	if p == nil || int64(i) >= int64(len(p.offsets)) {
		return "", false, formatErr(0, "string index %d out of range (pool has %d)", i, p.len())
	}
	if s := p.cache[i]; s != nil {
		return *s, true, nil
	}
	pos := p.start + int(p.offsets[i])
	var (
		s   string
		err error
	)
	if p.utf8 {
		s, err = p.decodeUTF8(pos)
	} else {
		s, err = p.decodeUTF16(pos)
	}
	if err != nil {
		return "", false, err
	}
	p.cache[i] = &s
	return s, true, nil
}

func (p *stringPool) decodeUTF8(pos int) (string, error) {
	// UTF-16 length first, then the byte length; each is 1 or 2 bytes.
	_, pos, err := p.utf8Len(pos)
	if err != nil {
		return "", err
	}
	n, pos, err := p.utf8Len(pos)
	if err != nil {
		return "", err
	}
	if pos+n > len(p.data) {
		return "", formatErr(pos, "utf-8 string of %d bytes runs past pool", n)
	}
	return string(p.data[pos : pos+n]), nil
}

func (p *stringPool) utf8Len(pos int) (int, int, error) {
	if pos >= len(p.data) {
		return 0, pos, formatErr(pos, "string length past pool")
	}
	n := int(p.data[pos])
	pos++
	if n&0x80 != 0 {
		if pos >= len(p.data) {
			return 0, pos, formatErr(pos, "string length past pool")
		}
		n = (n&0x7F)<<8 | int(p.data[pos])
		pos++
	}
	return n, pos, nil
}

func (p *stringPool) decodeUTF16(pos int) (string, error) {
	if pos+2 > len(p.data) {
		return "", formatErr(pos, "string length past pool")
	}
	n := int(u16(p.data, pos))
	pos += 2
	if n&0x8000 != 0 {
		if pos+2 > len(p.data) {
			return "", formatErr(pos, "string length past pool")
		}
		n = (n&0x7FFF)<<16 | int(u16(p.data, pos))
		pos += 2
	}
	if pos+2*n > len(p.data) {
		return "", formatErr(pos, "utf-16 string of %d units runs past pool", n)
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = u16(p.data, pos+2*i)
	}
	return string(utf16.Decode(units)), nil
}
