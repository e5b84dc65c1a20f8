package apk

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"path"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/webp"
)

// StandardIconSize is the edge length icons are scaled to by default
const StandardIconSize = 144

// IconDecoder turns drawable entries into images
type IconDecoder struct {
	targetSize uint
}

// NewIconDecoder creates a decoder that scales to size pixels; 0 keeps the original size
func NewIconDecoder(size uint) *IconDecoder {
	return &IconDecoder{targetSize: size}
}

// Decode decodes a PNG, JPEG or WebP drawable. Vector and adaptive icons
// (compiled XML) are not rasterised and return an error.
func (d *IconDecoder) Decode(data []byte, name string) (image.Image, error) {
	ext := strings.ToLower(path.Ext(name))
	if ext == ".xml" {
		return nil, fmt.Errorf("%s: vector drawables are not supported", name)
	}

	var (
		img image.Image
		err error
	)
	if ext == ".webp" {
		img, err = webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode webp: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
	}

	if d.targetSize == 0 {
		return img, nil
	}
	b := img.Bounds()
	if b.Dx() == int(d.targetSize) && b.Dy() == int(d.targetSize) {
		return img, nil
	}
	return resize.Resize(d.targetSize, d.targetSize, img, resize.Lanczos3), nil
}

// launcherFallbacks lists the bitmaps tried when the manifest icon is an
// adaptive icon, best density first.
var launcherFallbacks = []string{
	"mipmap-xxxhdpi", "mipmap-xxhdpi", "mipmap-xhdpi", "mipmap-hdpi", "mipmap-mdpi",
	"drawable-xxxhdpi", "drawable-xxhdpi", "drawable-xhdpi", "drawable-hdpi", "drawable-mdpi",
}

// bitmapSibling finds a raster drawable with the same resource name as an
// XML drawable, e.g. res/mipmap-xxhdpi-v4/ic_launcher.png for
// res/mipmap-anydpi-v26/ic_launcher.xml.
func bitmapSibling(names []string, xmlPath string) string {
	stem := strings.TrimSuffix(path.Base(xmlPath), path.Ext(xmlPath))
	byDir := make(map[string]string)
	for _, n := range names {
		if !strings.HasPrefix(n, "res/") {
			continue
		}
		ext := strings.ToLower(path.Ext(n))
		if ext != ".png" && ext != ".webp" {
			continue
		}
		if strings.TrimSuffix(path.Base(n), path.Ext(n)) != stem {
			continue
		}
		dir := path.Base(path.Dir(n))
		if i := strings.Index(dir, "-v"); i > 0 {
			dir = dir[:i]
		}
		if _, ok := byDir[dir]; !ok {
			byDir[dir] = n
		}
	}
	for _, dir := range launcherFallbacks {
		if n, ok := byDir[dir]; ok {
			return n
		}
	}
	return ""
}

// EncodePNG writes img as PNG
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}
