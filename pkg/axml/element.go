package axml

import (
	"fmt"
	"math"
	"strconv"
)

// AndroidNamespace is the URI bound to the android: prefix.
const AndroidNamespace = "http://schemas.android.com/apk/res/android"

// Typed value data types.
const (
	TypeNull      uint8 = 0x00
	TypeReference uint8 = 0x01
	TypeAttribute uint8 = 0x02
	TypeString    uint8 = 0x03
	TypeFloat     uint8 = 0x04
	TypeDimension uint8 = 0x05
	TypeFraction  uint8 = 0x06
	TypeIntDec    uint8 = 0x10
	TypeIntHex    uint8 = 0x11
	TypeIntBool   uint8 = 0x12
	TypeFirstInt  uint8 = 0x10
	TypeLastInt   uint8 = 0x1f
)

const attrMinSize = 20

// Attribute is one decoded attribute of an element.
type Attribute struct {
	Namespace string
	Name      string
	// ResourceID is the framework attribute id from the resource map, 0 if none.
	ResourceID uint32
	// Raw is the literal string value; HasRaw is false when the value is typed.
	Raw    string
	HasRaw bool
	Type   uint8
	Data   uint32

	pool *stringPool
}

// Element is a start tag with its attributes. It stays valid after the callback returns.
type Element struct {
	Namespace string
	Name      string
	Path      string
	Line      uint32
	attrs     []Attribute
}

// Attributes returns the element's attributes in document order.
func (e *Element) Attributes() []Attribute {
	return e.attrs
}

func (e *Element) find(ns, name string) *Attribute {
	for i := range e.attrs {
		a := &e.attrs[i]
		if a.Name == name && a.Namespace == ns {
			return a
		}
	}
	return nil
}

// Has reports whether the attribute is present.
func (e *Element) Has(ns, name string) bool {
	return e.find(ns, name) != nil
}

// AttributeValue returns the attribute as text: the raw string when present,
// otherwise the typed value rendered the way aapt dump does.
func (e *Element) AttributeValue(ns, name string) (string, bool) {
	a := e.find(ns, name)
	if a == nil {
		return "", false
	}
	return a.String()
}

// RawValue returns the attribute only when it holds a literal string,
// never a coerced typed value.
func (e *Element) RawValue(ns, name string) (string, bool) {
	a := e.find(ns, name)
	if a == nil {
		return "", false
	}
	if a.HasRaw {
		return a.Raw, true
	}
	if a.Type == TypeString {
		return a.String()
	}
	return "", false
}

// AttributeResourceValue returns the resource id of a reference attribute,
// or def when the attribute is absent or not a reference.
func (e *Element) AttributeResourceValue(ns, name string, def int32) int32 {
	a := e.find(ns, name)
	if a == nil || a.Type != TypeReference {
		return def
	}
	return int32(a.Data)
}

// AttributeIntValue returns the data of an integer typed attribute, or def.
func (e *Element) AttributeIntValue(ns, name string, def int32) int32 {
	a := e.find(ns, name)
	if a == nil || a.Type < TypeFirstInt || a.Type > TypeLastInt {
		return def
	}
	return int32(a.Data)
}

// String renders the attribute value. The bool is false for a null value.
func (a *Attribute) String() (string, bool) {
	if a.HasRaw {
		return a.Raw, true
	}
	switch a.Type {
	case TypeNull:
		return "", false
	case TypeString:
		s, ok, err := a.pool.get(a.Data)
		if err != nil || !ok {
			return "", false
		}
		return s, true
	case TypeReference:
		return "@" + strconv.FormatUint(uint64(a.Data), 10), true
	case TypeAttribute:
		return "?" + strconv.FormatUint(uint64(a.Data), 10), true
	case TypeFloat:
		return strconv.FormatFloat(float64(math.Float32frombits(a.Data)), 'g', -1, 32), true
	case TypeIntHex:
		return fmt.Sprintf("0x%x", a.Data), true
	case TypeIntBool:
		if a.Data != 0 {
			return "true", true
		}
		return "false", true
	}
	if a.Type >= TypeFirstInt && a.Type <= TypeLastInt {
		return strconv.FormatInt(int64(int32(a.Data)), 10), true
	}
	return fmt.Sprintf("0x%08x", a.Data), true
}
