package analyser

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	pkgerrors "github.com/huanfeng/pkgscope/internal/errors"
	"github.com/huanfeng/pkgscope/pkg/models"
)

// tempExt is used for every extracted file, whatever the entry was called.
const tempExt = ".apk"

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// materialize copies an archive entry to <uuid>.apk in the cache directory.
// The returned reference owns the file; a failed copy leaves nothing behind.
func materialize(ctx context.Context, opts Options, f *zip.File, parent models.DataRef, cacheDir string) (*models.FileRef, error) {
	if cacheDir == "" {
		cacheDir = os.TempDir()
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, pkgerrors.NewFileSystemError(pkgerrors.CodeExtract, "cannot create cache directory", err).
			WithContext("dir", cacheDir)
	}

	name := filepath.Join(cacheDir, uuid.NewString()+tempExt)
	n, err := copyEntry(ctx, f, name)
	if err != nil {
		if rmErr := os.Remove(name); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			opts.logger().Warn("failed to remove partial extraction %s: %v", name, rmErr)
		}
		return nil, pkgerrors.NewFileSystemError(pkgerrors.CodeExtract, fmt.Sprintf("cannot extract %s", f.Name), err).
			WithContext("entry", f.Name)
	}
	opts.Metrics.RecordExtraction(n)
	opts.logger().Debug("extracted %s to %s (%d bytes)", f.Name, name, n)

	return &models.FileRef{
		Path:   name,
		Temp:   true,
		Origin: &models.EntryRef{Parent: parent, Name: f.Name},
	}, nil
}

func copyEntry(ctx context.Context, f *zip.File, name string) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, ctxReader{ctx: ctx, r: rc})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// release deletes an owned reference, logging instead of failing.
func release(opts Options, ref models.DataRef) {
	if err := models.ReleaseRef(ref); err != nil {
		opts.logger().Warn("failed to remove temp file %s: %v", ref, err)
	}
}
