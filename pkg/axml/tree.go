package axml

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
)

// DefaultLimit caps the amount of binary XML read from the stream.
const DefaultLimit = 8 << 20

type match struct {
	fns  []func(*Element)
	elem *Element
}

// Tree is a single use traversal over one binary XML document.
type Tree struct {
	r        io.Reader
	limit    int64
	handlers map[string][]func(*Element)
	consumed bool
}

// NewTree prepares a traversal over r. Nothing is read until Map.
func NewTree(r io.Reader) *Tree {
	return &Tree{
		r:        r,
		limit:    DefaultLimit,
		handlers: make(map[string][]func(*Element)),
	}
}

// Limit overrides the maximum document size.
func (t *Tree) Limit(n int64) *Tree {
	if n > 0 {
		t.limit = n
	}
	return t
}

// Register adds fn for every element at the absolute path, e.g.
// "/manifest/application". Several callbacks may share a path; they run in
// registration order.
func (t *Tree) Register(path string, fn func(*Element)) *Tree {
	path = "/" + strings.Trim(path, "/")
	t.handlers[path] = append(t.handlers[path], fn)
	return t
}

// Map runs the pass. Callbacks fire in document order, and only after the
// whole document decoded cleanly; on error no callback runs.
func (t *Tree) Map() error {
	return t.MapContext(context.Background())
}

// MapContext is Map with cancellation checked between chunks.
func (t *Tree) MapContext(ctx context.Context) error {
	if t.consumed {
		return ErrConsumed
	}
	t.consumed = true

	data, err := io.ReadAll(io.LimitReader(t.r, t.limit+1))
	if err != nil {
		return fmt.Errorf("axml: read: %w", err)
	}
	if int64(len(data)) > t.limit {
		return fmt.Errorf("axml: document larger than %d bytes", t.limit)
	}

	matches, err := t.decode(ctx, data)
	if err != nil {
		return err
	}
	for _, m := range matches {
		for _, fn := range m.fns {
			fn(m.elem)
		}
	}
	return nil
}

func (t *Tree) decode(ctx context.Context, data []byte) ([]match, error) {
	if looksLikeText(data) {
		return nil, ErrPlainText
	}

	root, err := readChunkHeader(data, 0)
	if err != nil {
		return nil, err
	}
	if root.typ != chunkXML {
		return nil, formatErr(0, "not a binary XML document (chunk type 0x%04x)", root.typ)
	}
	data = data[:root.size]

	var (
		pool    *stringPool
		resIDs  []uint32
		stack   []string
		matches []match
		chunks  int
	)

	for off := int(root.headerSize); off < len(data); {
		if chunks++; chunks%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		h, err := readChunkHeader(data, off)
		if err != nil {
			return nil, err
		}

		switch h.typ {
		case chunkStringPool:
			if pool == nil {
				if pool, err = parseStringPool(data, off, h); err != nil {
					return nil, err
				}
			}

		case chunkXMLResourceID:
			n := (int(h.size) - int(h.headerSize)) / 4
			resIDs = make([]uint32, n)
			for i := range resIDs {
				resIDs[i] = u32(data, off+int(h.headerSize)+4*i)
			}

		case chunkXMLStartElem:
			elem, err := parseStartElement(data, off, h, pool, resIDs)
			if err != nil {
				return nil, err
			}
			stack = append(stack, elem.Name)
			elem.Path = "/" + strings.Join(stack, "/")
			if fns := t.handlers[elem.Path]; len(fns) > 0 {
				matches = append(matches, match{fns: fns, elem: elem})
			}

		case chunkXMLEndElem:
			if len(stack) == 0 {
				return nil, formatErr(off, "end tag without matching start tag")
			}
			stack = stack[:len(stack)-1]

		case chunkXMLStartNS, chunkXMLEndNS, chunkXMLCData:
			if h.headerSize < nodeHeaderSize {
				return nil, formatErr(off, "node chunk 0x%04x header size %d too small", h.typ, h.headerSize)
			}

		default:
			// unknown chunks are skipped, as the platform parser does
		}

		off += int(h.size)
	}

	if len(stack) != 0 {
		return nil, formatErr(len(data), "%d unclosed element(s), innermost <%s>", len(stack), stack[len(stack)-1])
	}
	return matches, nil
}

func parseStartElement(data []byte, off int, h chunkHeader, pool *stringPool, resIDs []uint32) (*Element, error) {
	if h.headerSize < nodeHeaderSize {
		return nil, formatErr(off, "start tag header size %d too small", h.headerSize)
	}
	end := off + int(h.size)
	ext := off + int(h.headerSize)
	if ext+20 > end {
		return nil, formatErr(off, "start tag truncated")
	}

	nsIdx := u32(data, ext)
	nameIdx := u32(data, ext+4)
	attrStart := int(u16(data, ext+8))
	attrSize := int(u16(data, ext+10))
	attrCount := int(u16(data, ext+12))

	name, ok, err := pool.get(nameIdx)
	if err != nil {
		return nil, err
	}
	if !ok || name == "" {
		return nil, formatErr(off, "start tag without a name")
	}
	ns, _, err := pool.get(nsIdx)
	if err != nil {
		return nil, err
	}

	elem := &Element{
		Namespace: ns,
		Name:      name,
		Line:      u32(data, off+8),
	}
	if attrCount == 0 {
		return elem, nil
	}
	if attrSize < attrMinSize {
		return nil, formatErr(off, "attribute size %d too small", attrSize)
	}
	base := ext + attrStart
	if base < ext || base+attrCount*attrSize > end {
		return nil, formatErr(off, "%d attributes run past the start tag chunk", attrCount)
	}

	elem.attrs = make([]Attribute, 0, attrCount)
	for i := 0; i < attrCount; i++ {
		p := base + i*attrSize
		a, err := parseAttribute(data, p, pool, resIDs)
		if err != nil {
			return nil, err
		}
		elem.attrs = append(elem.attrs, a)
	}
	return elem, nil
}

func parseAttribute(data []byte, p int, pool *stringPool, resIDs []uint32) (Attribute, error) {
	nsIdx := u32(data, p)
	nameIdx := u32(data, p+4)
	rawIdx := u32(data, p+8)

	a := Attribute{
		Type: data[p+15],
		Data: u32(data, p+16),
		pool: pool,
	}
	if int64(nameIdx) < int64(len(resIDs)) {
		a.ResourceID = resIDs[nameIdx]
	}

	if canonical, ok := frameworkAttrs[a.ResourceID]; ok {
		a.Name = canonical
		a.Namespace = AndroidNamespace
	} else {
		name, _, err := pool.get(nameIdx)
		if err != nil {
			return a, err
		}
		ns, _, err := pool.get(nsIdx)
		if err != nil {
			return a, err
		}
		a.Name, a.Namespace = name, ns
	}

	if rawIdx != noIndex {
		raw, _, err := pool.get(rawIdx)
		if err != nil {
			return a, err
		}
		a.Raw, a.HasRaw = raw, true
	}
	if a.Type == TypeString && !a.HasRaw {
		if _, _, err := pool.get(a.Data); err != nil {
			return a, err
		}
	}
	return a, nil
}

func looksLikeText(data []byte) bool {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = bytes.TrimLeft(data, " \t\r\n")
	return len(data) > 0 && data[0] == '<'
}
