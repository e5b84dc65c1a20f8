// Package testutil builds binary manifests, APKs and container archives for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

// AndroidNS is the android: namespace URI.
const AndroidNS = "http://schemas.android.com/apk/res/android"

// Framework attribute ids used by the fixtures.
const (
	ResLabel            = 0x01010001
	ResIcon             = 0x01010002
	ResName             = 0x01010003
	ResSharedUserID     = 0x0101000b
	ResMinSdkVersion    = 0x0101020c
	ResVersionCode      = 0x0101021b
	ResVersionName      = 0x0101021c
	ResTargetSdkVersion = 0x01010270
	ResRoundIcon        = 0x0101052c
	ResVersionCodeMajor = 0x01010576
)

// Value types.
const (
	TypeReference = 0x01
	TypeString    = 0x03
	TypeIntDec    = 0x10
	TypeIntHex    = 0x11
	TypeBool      = 0x12
)

// Attr is one attribute of a fixture element.
type Attr struct {
	NS    string
	Name  string
	ResID uint32
	// Str is written as the raw value when Type is TypeString.
	Str  string
	Type uint8
	Data uint32
}

// Node is a fixture element.
type Node struct {
	Name     string
	Attrs    []Attr
	Children []*Node
}

// Add appends children and returns n.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Elem builds a Node.
func Elem(name string, attrs ...Attr) *Node {
	return &Node{Name: name, Attrs: attrs}
}

// Str is a plain string attribute without namespace.
func Str(name, value string) Attr {
	return Attr{Name: name, Str: value, Type: TypeString}
}

// AStr is an android: string attribute.
func AStr(name string, resID uint32, value string) Attr {
	return Attr{NS: AndroidNS, Name: name, ResID: resID, Str: value, Type: TypeString}
}

// AInt is an android: decimal integer attribute.
func AInt(name string, resID uint32, v int32) Attr {
	return Attr{NS: AndroidNS, Name: name, ResID: resID, Type: TypeIntDec, Data: uint32(v)}
}

// ARef is an android: reference attribute.
func ARef(name string, resID uint32, id uint32) Attr {
	return Attr{NS: AndroidNS, Name: name, ResID: resID, Type: TypeReference, Data: id}
}

// EncodeOptions tweaks the encoder.
type EncodeOptions struct {
	UTF16 bool
	// StripAttrNames blanks every attribute name that has a resource id,
	// the way some obfuscators do.
	StripAttrNames bool
}

// EncodeXML encodes root as Android binary XML.
func EncodeXML(root *Node) []byte {
	return EncodeXMLWith(root, EncodeOptions{})
}

// EncodeXMLWith encodes root with options.
func EncodeXMLWith(root *Node, opts EncodeOptions) []byte {
	e := &encoder{index: map[string]uint32{}, opts: opts}

	// attribute names with resource ids go first so the resource map lines up
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, a := range n.Attrs {
			if a.ResID != 0 {
				e.resName(a)
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	e.intern(AndroidNS)
	e.intern("android")
	e.collect(root)

	var body bytes.Buffer
	e.writeNS(&body, 0x0100)
	e.writeNode(&body, root)
	e.writeNS(&body, 0x0101)

	var out bytes.Buffer
	pool := e.stringPool()
	resmap := e.resourceMap()
	total := 8 + len(pool) + len(resmap) + body.Len()
	writeHeader(&out, 0x0003, 8, uint32(total))
	out.Write(pool)
	out.Write(resmap)
	out.Write(body.Bytes())
	return out.Bytes()
}

type encoder struct {
	strs   []string
	index  map[string]uint32
	resIDs []uint32
	opts   EncodeOptions
}

func (e *encoder) resName(a Attr) uint32 {
	key := "\x00res:" + a.Name
	if i, ok := e.index[key]; ok {
		return i
	}
	i := uint32(len(e.strs))
	name := a.Name
	if e.opts.StripAttrNames {
		name = ""
	}
	e.strs = append(e.strs, name)
	e.resIDs = append(e.resIDs, a.ResID)
	e.index[key] = i
	return i
}

func (e *encoder) intern(s string) uint32 {
	if i, ok := e.index[s]; ok {
		return i
	}
	i := uint32(len(e.strs))
	e.strs = append(e.strs, s)
	e.index[s] = i
	return i
}

func (e *encoder) collect(n *Node) {
	e.intern(n.Name)
	for _, a := range n.Attrs {
		if a.ResID == 0 {
			e.intern(a.Name)
		}
		if a.Type == TypeString {
			e.intern(a.Str)
		}
	}
	for _, c := range n.Children {
		e.collect(c)
	}
}

func (e *encoder) ref(s string) uint32 {
	if s == "" {
		return 0xFFFFFFFF
	}
	return e.index[s]
}

func (e *encoder) attrName(a Attr) uint32 {
	if a.ResID != 0 {
		return e.index["\x00res:"+a.Name]
	}
	return e.index[a.Name]
}

func (e *encoder) writeNS(w *bytes.Buffer, typ uint16) {
	writeHeader(w, typ, 16, 24)
	le32(w, 1)
	le32(w, 0xFFFFFFFF)
	le32(w, e.index["android"])
	le32(w, e.index[AndroidNS])
}

func (e *encoder) writeNode(w *bytes.Buffer, n *Node) {
	size := 16 + 20 + 20*len(n.Attrs)
	writeHeader(w, 0x0102, 16, uint32(size))
	le32(w, 1)
	le32(w, 0xFFFFFFFF)
	le32(w, 0xFFFFFFFF)
	le32(w, e.index[n.Name])
	le16(w, 20)
	le16(w, 20)
	le16(w, uint16(len(n.Attrs)))
	le16(w, 0)
	le16(w, 0)
	le16(w, 0)
	for _, a := range n.Attrs {
		le32(w, e.ref(a.NS))
		le32(w, e.attrName(a))
		data := a.Data
		if a.Type == TypeString {
			idx := e.index[a.Str]
			le32(w, idx)
			data = idx
		} else {
			le32(w, 0xFFFFFFFF)
		}
		le16(w, 8)
		w.WriteByte(0)
		w.WriteByte(a.Type)
		le32(w, data)
	}
	for _, c := range n.Children {
		e.writeNode(w, c)
	}
	writeHeader(w, 0x0103, 16, 24)
	le32(w, 1)
	le32(w, 0xFFFFFFFF)
	le32(w, 0xFFFFFFFF)
	le32(w, e.index[n.Name])
}

func (e *encoder) stringPool() []byte {
	var data bytes.Buffer
	offsets := make([]uint32, len(e.strs))
	for i, s := range e.strs {
		offsets[i] = uint32(data.Len())
		if e.opts.UTF16 {
			units := utf16.Encode([]rune(s))
			le16(&data, uint16(len(units)))
			for _, u := range units {
				le16(&data, u)
			}
			le16(&data, 0)
		} else {
			writeLen8(&data, len([]rune(s)))
			writeLen8(&data, len(s))
			data.WriteString(s)
			data.WriteByte(0)
		}
	}
	for data.Len()%4 != 0 {
		data.WriteByte(0)
	}

	const header = 28
	stringsStart := header + 4*len(e.strs)
	size := stringsStart + data.Len()
	var flags uint32
	if !e.opts.UTF16 {
		flags = 1 << 8
	}

	var out bytes.Buffer
	writeHeader(&out, 0x0001, header, uint32(size))
	le32(&out, uint32(len(e.strs)))
	le32(&out, 0)
	le32(&out, flags)
	le32(&out, uint32(stringsStart))
	le32(&out, 0)
	for _, o := range offsets {
		le32(&out, o)
	}
	out.Write(data.Bytes())
	return out.Bytes()
}

func (e *encoder) resourceMap() []byte {
	var out bytes.Buffer
	writeHeader(&out, 0x0180, 8, uint32(8+4*len(e.resIDs)))
	for _, id := range e.resIDs {
		le32(&out, id)
	}
	return out.Bytes()
}

func writeLen8(w *bytes.Buffer, n int) {
	if n > 0x7F {
		w.WriteByte(byte(n>>8) | 0x80)
	}
	w.WriteByte(byte(n))
}

func writeHeader(w *bytes.Buffer, typ, headerSize uint16, size uint32) {
	le16(w, typ)
	le16(w, headerSize)
	le32(w, size)
}

func le16(w *bytes.Buffer, v uint16) {
	_ = binary.Write(w, binary.LittleEndian, v)
}

func le32(w *bytes.Buffer, v uint32) {
	_ = binary.Write(w, binary.LittleEndian, v)
}
