package analyser

import (
	"archive/zip"
	"context"
	"path"
	"strings"

	pkgerrors "github.com/huanfeng/pkgscope/internal/errors"
	"github.com/huanfeng/pkgscope/pkg/apk"
	"github.com/huanfeng/pkgscope/pkg/archive"
	"github.com/huanfeng/pkgscope/pkg/models"
)

// ApksStrategy reads split bundles: one base APK plus any number of splits.
type ApksStrategy struct{}

func (ApksStrategy) Name() string { return "apks" }

func (ApksStrategy) Analyze(ctx context.Context, opts Options, ref models.DataRef, zr *archive.Reader, extra Extra) ([]models.AppEntity, error) {
	return withArchive(ref, zr, func(zr *archive.Reader) ([]models.AppEntity, error) {
		log := opts.logger().WithField("source", ref.String())

		var (
			base   *zip.File
			splits []*zip.File
		)
		for _, f := range zr.File {
			if archive.IsDir(f) || !archive.HasExt(f.Name, ".apk") {
				continue
			}
			name := path.Base(f.Name)
			if base == nil && (strings.EqualFold(name, "base.apk") || strings.EqualFold(name, "base-master.apk")) {
				base = f
				continue
			}
			if strings.HasPrefix(strings.ToLower(name), "base-master") {
				log.Debug("skipping extra base variant %s", f.Name)
				continue
			}
			splits = append(splits, f)
		}
		if base == nil {
			return nil, pkgerrors.NewAnchorMissingError(pkgerrors.CodeMissingBase, ref.String(),
				"split bundle has no base.apk or base-master.apk", nil)
		}

		tmp, err := materialize(ctx, opts, base, ref, extra.CacheDir)
		if err != nil {
			return nil, pkgerrors.NewAnchorMissingError(pkgerrors.CodeMissingBase, ref.String(),
				"cannot extract base APK", err)
		}
		pkg, err := apk.Parse(ctx, tmp.Path, opts.apk())
		if err == nil && pkg.Manifest.IsSplit() {
			err = pkgerrors.NewError(pkgerrors.ErrorTypeParsing, pkgerrors.CodeBadManifest,
				"base entry declares split "+pkg.Manifest.Split)
		}
		if err != nil {
			release(opts, tmp)
			return nil, pkgerrors.NewAnchorMissingError(pkgerrors.CodeMissingBase, ref.String(),
				"cannot parse base APK "+base.Name, err)
		}

		b := pkg.Entity(tmp, extra.DataType).(*models.BaseEntity)
		out := make([]models.AppEntity, 0, len(splits)+1)
		out = append(out, b)
		for _, f := range splits {
			out = append(out, bundleSplit(b, ref, f.Name, extra.DataType))
		}
		log.Debug("base %s with %d splits", b.Package, len(splits))
		return out, nil
	})
}

// SplitName derives a split name from a bundle entry: the file stem with a
// leading "split_" removed.
func SplitName(entry string) string {
	return strings.TrimPrefix(archive.Stem(entry), "split_")
}

func bundleSplit(base *models.BaseEntity, parent models.DataRef, entry string, source models.ContainerType) *models.SplitEntity {
	name := SplitName(entry)
	meta := apk.ParseSplitMetadata(name)
	s := &models.SplitEntity{
		Common: models.Common{
			Package:    base.Package,
			Data:       &models.EntryRef{Parent: parent, Name: entry},
			SourceType: source,
		},
		SplitName: name,
		MinSDK:    base.MinSDK,
		TargetSDK: base.TargetSDK,
		Metadata:  meta,
	}
	if meta.Filter == models.FilterABI {
		s.Arch = models.Architecture(meta.ConfigValue)
	}
	return s
}
