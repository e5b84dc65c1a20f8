package apk

import (
	"bytes"
	"fmt"
	"image"
	"path"
	"strings"

	"github.com/shogo82148/androidbinary"
)

const resourcesTable = "resources.arsc"

// ResourceResolver looks up manifest resource references. A false result
// means the value is absent; resolution never fails harder than that.
type ResourceResolver interface {
	ResolveString(id uint32) (string, bool)
	ResolveDrawable(id uint32) (image.Image, bool)
}

// DrawablePathLoader is implemented by resolvers that can also load a
// drawable given directly as an entry path.
type DrawablePathLoader interface {
	LoadDrawable(path string) (image.Image, bool)
}

// TableResolver resolves references against an APK's resources.arsc.
type TableResolver struct {
	table   *androidbinary.TableFile
	src     EntrySource
	names   []string
	config  *androidbinary.ResTableConfig
	decoder *IconDecoder
	limit   int64
}

// NewTableResolver loads resources.arsc from src. Drawables are looked up
// for density and scaled to iconSize.
func NewTableResolver(src EntrySource, density uint16, iconSize uint, limit int64) (r *TableResolver, err error) {
	data, err := src.ReadFile(resourcesTable, limit)
	if err != nil {
		return nil, err
	}

	// androidbinary panics on some truncated tables
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("%s: %v", resourcesTable, p)
		}
	}()
	table, err := androidbinary.NewTableFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", resourcesTable, err)
	}

	var config *androidbinary.ResTableConfig
	if density > 0 {
		config = &androidbinary.ResTableConfig{Density: density}
	}
	return &TableResolver{
		table:   table,
		src:     src,
		names:   src.Names(),
		config:  config,
		decoder: NewIconDecoder(iconSize),
		limit:   limit,
	}, nil
}

func (r *TableResolver) ResolveString(id uint32) (string, bool) {
	s := r.lookup(id, 10)
	return s, s != ""
}

func (r *TableResolver) ResolveDrawable(id uint32) (image.Image, bool) {
	p := r.lookup(id, 10)
	if p == "" {
		return nil, false
	}
	return r.LoadDrawable(p)
}

// LoadDrawable decodes the drawable at entry path p. For an adaptive icon
// the best raster sibling with the same resource name is used instead.
func (r *TableResolver) LoadDrawable(p string) (image.Image, bool) {
	p = strings.TrimPrefix(p, "/")
	if strings.EqualFold(path.Ext(p), ".xml") {
		p = bitmapSibling(r.names, p)
		if p == "" {
			return nil, false
		}
	}
	data, err := r.src.ReadFile(p, r.limit)
	if err != nil {
		return nil, false
	}
	img, err := r.decoder.Decode(data, p)
	if err != nil {
		return nil, false
	}
	return img, true
}

// lookup follows references until a string value is found.
func (r *TableResolver) lookup(id uint32, depth int) (s string) {
	if depth <= 0 || id == 0 {
		return ""
	}
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()

	v, err := r.table.GetResource(androidbinary.ResID(id), r.config)
	if err != nil {
		return ""
	}
	switch v := v.(type) {
	case string:
		return v
	case uint32:
		if v&0xFF000000 != 0 {
			return r.lookup(v, depth-1)
		}
	}
	return ""
}
