package apk

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/avast/apkparser"
	"github.com/huanfeng/pkgscope/pkg/archive"
)

// ZipOpener reads APKs with archive/zip.
type ZipOpener struct{}

func (ZipOpener) Open(path string) (EntrySource, error) {
	zr, err := archive.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return &ZipSource{r: zr}, nil
}

func (ZipOpener) Info() OpenerInfo {
	return OpenerInfo{
		Name:         "zip",
		Version:      "stdlib",
		Capabilities: []string{"central-directory", "deflate"},
		Available:    true,
		Priority:     1,
	}
}

// ZipSource is an EntrySource over an opened archive.
type ZipSource struct {
	r *archive.Reader
}

// NewZipSource wraps an already open archive. Closing the source closes r.
func NewZipSource(r *archive.Reader) *ZipSource {
	return &ZipSource{r: r}
}

func (s *ZipSource) Names() []string {
	names := make([]string, 0, len(s.r.File))
	for _, f := range s.r.File {
		names = append(names, f.Name)
	}
	return names
}

func (s *ZipSource) ReadFile(name string, limit int64) ([]byte, error) {
	f := s.r.Lookup(name)
	if f == nil {
		return nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}
	return archive.ReadFile(f, limit)
}

func (s *ZipSource) Close() error {
	return s.r.Close()
}

// TolerantOpener reads APKs with avast/apkparser's zip reader, which walks
// local file headers and copes with archives whose central directory is
// damaged or deliberately malformed.
type TolerantOpener struct{}

func (TolerantOpener) Open(path string) (EntrySource, error) {
	zr, err := apkparser.OpenZip(path)
	if err != nil {
		return nil, err
	}
	return &tolerantSource{zr: zr}, nil
}

func (TolerantOpener) Info() OpenerInfo {
	return OpenerInfo{
		Name:         "tolerant-zip",
		Version:      "avast/apkparser",
		Capabilities: []string{"local-headers", "broken-central-directory"},
		Available:    true,
		Priority:     2,
	}
}

type tolerantSource struct {
	zr *apkparser.ZipReader
}

func (s *tolerantSource) Names() []string {
	names := make([]string, 0, len(s.zr.File))
	for name := range s.zr.File {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *tolerantSource) ReadFile(name string, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = archive.DefaultEntryLimit
	}
	f := s.zr.File[name]
	if f == nil {
		return nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}
	if err := f.Open(); err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	// an entry name can occur several times; take the first copy that reads
	var lastErr error
	for f.Next() {
		data, err := io.ReadAll(io.LimitReader(f, limit+1))
		if err != nil {
			lastErr = err
			continue
		}
		if int64(len(data)) > limit {
			return nil, fmt.Errorf("%s: %w", name, archive.ErrEntryTooLarge)
		}
		return data, nil
	}
	if lastErr == nil {
		lastErr = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read %s: %w", name, lastErr)
}

func (s *tolerantSource) Close() error {
	s.zr.Close()
	return nil
}
