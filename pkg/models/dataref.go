package models

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/huanfeng/pkgscope/pkg/archive"
)

// DataRef locates installable bytes. The set of implementations is closed:
// *FileRef, *FDRef and *EntryRef.
type DataRef interface {
	// Open returns a fresh stream over the referenced bytes.
	Open() (io.ReadCloser, error)
	// Size returns the byte length, or -1 when it cannot be determined cheaply.
	Size() int64
	String() string

	dataRef()
}

// FileRef is a path on disk. Temp marks a file the analyser extracted and
// therefore owns; Origin records which archive entry it came from.
type FileRef struct {
	Path   string
	Temp   bool
	Origin *EntryRef
}

func (r *FileRef) dataRef() {}

func (r *FileRef) Open() (io.ReadCloser, error) {
	return os.Open(r.Path)
}

func (r *FileRef) Size() int64 {
	st, err := os.Stat(r.Path)
	if err != nil {
		return -1
	}
	return st.Size()
}

func (r *FileRef) String() string {
	if r.Origin != nil {
		return fmt.Sprintf("%s (from %s)", r.Path, r.Origin)
	}
	return r.Path
}

// FDRef is an already open file owned by the caller. It is read from offset
// zero with ReadAt and never closed here.
type FDRef struct {
	File *os.File
	Name string
}

func (r *FDRef) dataRef() {}

func (r *FDRef) Open() (io.ReadCloser, error) {
	size := r.Size()
	if size < 0 {
		return nil, fmt.Errorf("stat %s: size unavailable", r)
	}
	return io.NopCloser(io.NewSectionReader(r.File, 0, size)), nil
}

func (r *FDRef) Size() int64 {
	if r.File == nil {
		return -1
	}
	st, err := r.File.Stat()
	if err != nil {
		return -1
	}
	return st.Size()
}

func (r *FDRef) String() string {
	if r.Name != "" {
		return r.Name
	}
	if r.File != nil {
		return fmt.Sprintf("fd:%d", r.File.Fd())
	}
	return "fd:<nil>"
}

// EntryRef is a named entry inside the archive referenced by Parent.
// Parents may nest; the chain ends in a *FileRef or *FDRef.
type EntryRef struct {
	Parent DataRef
	Name   string
}

func (r *EntryRef) dataRef() {}

func (r *EntryRef) Open() (io.ReadCloser, error) {
	src, err := OpenSource(r.Parent)
	if err != nil {
		return nil, err
	}
	zr, err := archive.NewReader(src, src.Size())
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("open archive %s: %w", r.Parent, err)
	}
	f := zr.Lookup(r.Name)
	if f == nil {
		src.Close()
		return nil, fmt.Errorf("entry %q not found in %s: %w", r.Name, r.Parent, os.ErrNotExist)
	}
	rc, err := f.Open()
	if err != nil {
		src.Close()
		return nil, err
	}
	return &stackedCloser{ReadCloser: rc, outer: src}, nil
}

func (r *EntryRef) Size() int64 {
	src, err := OpenSource(r.Parent)
	if err != nil {
		return -1
	}
	defer src.Close()
	zr, err := archive.NewReader(src, src.Size())
	if err != nil {
		return -1
	}
	if f := zr.Lookup(r.Name); f != nil {
		return int64(f.UncompressedSize64)
	}
	return -1
}

func (r *EntryRef) String() string {
	return fmt.Sprintf("%s!/%s", r.Parent, r.Name)
}

type stackedCloser struct {
	io.ReadCloser
	outer io.Closer
}

func (c *stackedCloser) Close() error {
	return errors.Join(c.ReadCloser.Close(), c.outer.Close())
}

// Root follows the nesting chain to the concrete byte source.
func Root(ref DataRef) DataRef {
	for {
		e, ok := ref.(*EntryRef)
		if !ok || e.Parent == nil {
			return ref
		}
		ref = e.Parent
	}
}

// Source is a random access view over a DataRef.
type Source interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

type fileSource struct {
	*os.File
	size  int64
	owned bool
}

func (s *fileSource) Size() int64 { return s.size }

func (s *fileSource) Close() error {
	if s.owned {
		return s.File.Close()
	}
	return nil
}

type memSource struct {
	*bytes.Reader
}

func (memSource) Close() error { return nil }

// nestedEntryLimit caps the bytes OpenSource buffers for an EntryRef.
var nestedEntryLimit int64 = archive.DefaultEntryLimit * 8

// OpenSource opens ref for random access. Nested entries are buffered in memory;
// callers with large nested payloads should materialize them to disk instead.
func OpenSource(ref DataRef) (Source, error) {
	switch r := ref.(type) {
	case *FileRef:
		f, err := os.Open(r.Path)
		if err != nil {
			return nil, err
		}
		st, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		return &fileSource{File: f, size: st.Size(), owned: true}, nil
	case *FDRef:
		if r.File == nil {
			return nil, fmt.Errorf("%s: nil file", r)
		}
		st, err := r.File.Stat()
		if err != nil {
			return nil, err
		}
		return &fileSource{File: r.File, size: st.Size()}, nil
	case *EntryRef:
		rc, err := r.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, nestedEntryLimit+1))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > nestedEntryLimit {
			return nil, fmt.Errorf("%s: %w", r, archive.ErrEntryTooLarge)
		}
		return memSource{bytes.NewReader(data)}, nil
	default:
		return nil, fmt.Errorf("unsupported data reference %T", ref)
	}
}

// IsOwned reports whether ref is a temporary file the analyser created.
func IsOwned(ref DataRef) bool {
	f, ok := ref.(*FileRef)
	return ok && f.Temp
}

// ReleaseRef deletes ref when it is an owned temporary file.
func ReleaseRef(ref DataRef) error {
	if !IsOwned(ref) {
		return nil
	}
	err := os.Remove(ref.(*FileRef).Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Release deletes every owned temporary file referenced by entities.
// Failures are joined and returned; they never invalidate the entities' metadata.
func Release(entities []AppEntity) error {
	var errs []error
	seen := make(map[DataRef]struct{}, len(entities))
	for _, e := range entities {
		ref := e.Ref()
		if ref == nil {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		if err := ReleaseRef(ref); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
