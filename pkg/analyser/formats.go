package analyser

import (
	"context"
	"path"
	"strings"

	"github.com/huanfeng/pkgscope/pkg/archive"
	"github.com/huanfeng/pkgscope/pkg/models"
)

// ApkmStrategy reads APKMirror bundles. Metadata comes from info.json; the
// embedded manifests are not parsed.
type ApkmStrategy struct{}

func (ApkmStrategy) Name() string { return "apkm" }

func (ApkmStrategy) Analyze(ctx context.Context, opts Options, ref models.DataRef, zr *archive.Reader, extra Extra) ([]models.AppEntity, error) {
	return withArchive(ref, zr, func(zr *archive.Reader) ([]models.AppEntity, error) {
		var info apkmInfo
		if err := readSidecar(zr, ref, apkmSidecar, &info); err != nil {
			return nil, err
		}

		base := &models.BaseEntity{
			Common:      models.Common{Package: info.Package, SourceType: extra.DataType},
			VersionCode: int64(info.VersionCode),
			VersionName: info.ReleaseVersion,
			Label:       info.label(),
			Icon:        sidecarIconImage(opts, zr),
			MinSDK:      string(info.MinAPI),
		}

		var out []models.AppEntity
		for _, f := range zr.File {
			if archive.IsDir(f) {
				continue
			}
			split := archive.Stem(f.Name)
			if e := sidecarEntity(ref, f.Name, split, base); e != nil {
				out = append(out, e)
			}
		}
		return out, nil
	})
}

// XApkStrategy reads APKPure bundles described by manifest.json.
type XApkStrategy struct{}

func (XApkStrategy) Name() string { return "xapk" }

func (XApkStrategy) Analyze(ctx context.Context, opts Options, ref models.DataRef, zr *archive.Reader, extra Extra) ([]models.AppEntity, error) {
	return withArchive(ref, zr, func(zr *archive.Reader) ([]models.AppEntity, error) {
		var m xapkManifest
		if err := readSidecar(zr, ref, xapkSidecar, &m); err != nil {
			return nil, err
		}

		base := &models.BaseEntity{
			Common:      models.Common{Package: m.Package, SourceType: extra.DataType},
			VersionCode: int64(m.VersionCode),
			VersionName: m.VersionName,
			Label:       m.Name,
			Icon:        sidecarIconImage(opts, zr),
			MinSDK:      string(m.MinSDK),
			TargetSDK:   string(m.TargetSDK),
		}

		var out []models.AppEntity
		if m.Splits != nil {
			for _, s := range m.Splits {
				if e := sidecarEntity(ref, s.File, s.ID, base); e != nil {
					out = append(out, e)
				}
			}
			return out, nil
		}

		// Single-APK XAPKs often omit split_apks and ship <package>.apk next
		// to the OBB expansions.
		opts.logger().Debug("%s: no split_apks, using archive entries", ref)
		for _, f := range zr.File {
			if archive.IsDir(f) {
				continue
			}
			name := path.Base(f.Name)
			split := archive.Stem(f.Name)
			if strings.EqualFold(name, "base.apk") || strings.EqualFold(name, m.Package+".apk") {
				split = ""
			}
			if e := sidecarEntity(ref, f.Name, split, base); e != nil {
				out = append(out, e)
			}
		}
		return out, nil
	})
}
