// Package archive wraps archive/zip with the conventions used by the
// analyser: a faster deflate decompressor, first-wins name lookup and bounded
// entry reads.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/flate"
)

// DefaultEntryLimit caps in-memory reads of a single entry.
const DefaultEntryLimit = 32 << 20

// ErrEntryTooLarge is returned when an entry exceeds the read limit.
var ErrEntryTooLarge = errors.New("archive entry exceeds read limit")

// Reader is an opened ZIP archive.
type Reader struct {
	*zip.Reader

	closer io.Closer
	index  map[string]*zip.File
}

// NewReader opens the archive held by r.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	index := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		if _, ok := index[f.Name]; !ok {
			index[f.Name] = f
		}
	}
	return &Reader{Reader: zr, index: index}, nil
}

// OpenFile opens the archive at path. Close releases the file.
func OpenFile(name string) (*Reader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := NewReader(f, st.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// WithCloser makes r.Close also close c, for readers built over a source
// the caller opened.
func WithCloser(r *Reader, c io.Closer) *Reader {
	r.closer = c
	return r
}

// Close releases the underlying file if the reader owns one.
func (r *Reader) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Lookup returns the first entry with the exact name, or nil.
func (r *Reader) Lookup(name string) *zip.File {
	return r.index[name]
}

// Has reports whether an entry with the exact name exists.
func (r *Reader) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// ReadEntry reads the whole entry, refusing anything larger than limit bytes.
// A limit <= 0 means DefaultEntryLimit.
func (r *Reader) ReadEntry(f *zip.File, limit int64) ([]byte, error) {
	return ReadFile(f, limit)
}

// ReadFile reads a zip entry with a size cap.
func ReadFile(f *zip.File, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultEntryLimit
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: %w", f.Name, ErrEntryTooLarge)
	}
	return data, nil
}

// IsDir reports whether the entry is a directory record.
func IsDir(f *zip.File) bool {
	return strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir()
}

// HasExt reports whether name ends with ext, ignoring case. ext includes the dot.
func HasExt(name, ext string) bool {
	return len(name) >= len(ext) && strings.EqualFold(name[len(name)-len(ext):], ext)
}

// Stem returns the base name of an entry without directory and extension.
func Stem(name string) string {
	base := path.Base(name)
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}

// IsNotArchive reports whether err means the bytes are not a ZIP container,
// as opposed to an I/O failure.
func IsNotArchive(err error) bool {
	return errors.Is(err, zip.ErrFormat) ||
		errors.Is(err, zip.ErrAlgorithm) ||
		errors.Is(err, zip.ErrChecksum) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
