package analyser

import (
	"context"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/huanfeng/pkgscope/internal/errors"
	"github.com/huanfeng/pkgscope/pkg/apk"
	"github.com/huanfeng/pkgscope/pkg/archive"
	"github.com/huanfeng/pkgscope/pkg/models"
)

// Strategy enumerates the installable entities of one container type.
// zr is the archive the dispatcher already opened, or nil.
type Strategy interface {
	Name() string
	Analyze(ctx context.Context, opts Options, ref models.DataRef, zr *archive.Reader, extra Extra) ([]models.AppEntity, error)
}

// withArchive runs fn on zr, opening ref itself when zr is nil.
func withArchive(ref models.DataRef, zr *archive.Reader, fn func(*archive.Reader) ([]models.AppEntity, error)) ([]models.AppEntity, error) {
	if zr != nil {
		return fn(zr)
	}
	opened, err := openArchive(ref)
	if err != nil {
		return nil, pkgerrors.WrapError(err, pkgerrors.ErrorTypeAnchorMissing, pkgerrors.CodeOpenArchive,
			"cannot open archive").WithContext("source", ref.String())
	}
	defer opened.Close()
	return fn(opened)
}

// SingleApkStrategy reads a plain APK.
type SingleApkStrategy struct{}

func (SingleApkStrategy) Name() string { return "single-apk" }

func (SingleApkStrategy) Analyze(ctx context.Context, opts Options, ref models.DataRef, _ *archive.Reader, extra Extra) ([]models.AppEntity, error) {
	pkg, data, err := parseRef(ctx, opts, ref, extra.CacheDir)
	if err != nil {
		return nil, pkgerrors.NewParsingError(pkgerrors.CodeBadManifest, "cannot parse APK", err).
			WithContext("source", ref.String())
	}
	return []models.AppEntity{pkg.Entity(data, extra.DataType)}, nil
}

// parseRef parses the APK behind any reference kind. Nested entries are
// extracted first; the returned reference is what entities should point at.
func parseRef(ctx context.Context, opts Options, ref models.DataRef, cacheDir string) (*apk.Package, models.DataRef, error) {
	switch r := ref.(type) {
	case *models.FileRef:
		pkg, err := apk.Parse(ctx, r.Path, opts.apk())
		return pkg, r, err

	case *models.FDRef:
		if r.File == nil {
			return nil, nil, io.ErrUnexpectedEOF
		}
		size := r.Size()
		pkg, err := apk.ParseReader(ctx, io.NewSectionReader(r.File, 0, size), size, r.String(), opts.apk())
		return pkg, r, err

	case *models.EntryRef:
		parent, err := openArchive(r.Parent)
		if err != nil {
			return nil, nil, err
		}
		defer parent.Close()
		f := parent.Lookup(r.Name)
		if f == nil {
			return nil, nil, fmt.Errorf("%s: %w", r, os.ErrNotExist)
		}
		tmp, err := materialize(ctx, opts, f, r.Parent, cacheDir)
		if err != nil {
			return nil, nil, err
		}
		pkg, err := apk.Parse(ctx, tmp.Path, opts.apk())
		if err != nil {
			release(opts, tmp)
			return nil, nil, err
		}
		return pkg, tmp, nil
	}
	return nil, nil, pkgerrors.NewError(pkgerrors.ErrorTypeValidation, "", "unsupported data reference")
}
