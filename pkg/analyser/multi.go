package analyser

import (
	"archive/zip"
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/huanfeng/pkgscope/pkg/apk"
	"github.com/huanfeng/pkgscope/pkg/archive"
	"github.com/huanfeng/pkgscope/pkg/models"
)

// MultiApkZipStrategy treats every APK in a plain zip as its own package.
type MultiApkZipStrategy struct{}

func (MultiApkZipStrategy) Name() string { return "multi-apk-zip" }

func (MultiApkZipStrategy) Analyze(ctx context.Context, opts Options, ref models.DataRef, zr *archive.Reader, extra Extra) ([]models.AppEntity, error) {
	return withArchive(ref, zr, func(zr *archive.Reader) ([]models.AppEntity, error) {
		var entries []*zip.File
		for _, f := range zr.File {
			if !archive.IsDir(f) && archive.HasExt(f.Name, ".apk") {
				entries = append(entries, f)
			}
		}
		opts.logger().Debug("found %d APKs in %s", len(entries), ref)

		results := make([]models.AppEntity, len(entries))
		var g errgroup.Group
		g.SetLimit(opts.workers())
		for i, f := range entries {
			i, f := i, f
			g.Go(func() error {
				results[i] = parseEntry(ctx, opts, ref, f, extra)
				return nil
			})
		}
		_ = g.Wait()

		out := make([]models.AppEntity, 0, len(results))
		for _, e := range results {
			if e != nil {
				out = append(out, e)
			}
		}
		if err := ctx.Err(); err != nil {
			if rerr := models.Release(out); rerr != nil {
				opts.logger().Warn("cleanup after cancel: %v", rerr)
			}
			return nil, err
		}
		return out, nil
	})
}

// parseEntry extracts and parses one embedded APK. Failures are logged and
// yield nil.
func parseEntry(ctx context.Context, opts Options, parent models.DataRef, f *zip.File, extra Extra) models.AppEntity {
	log := opts.logger().WithField("entry", f.Name)

	tmp, err := materialize(ctx, opts, f, parent, extra.CacheDir)
	if err != nil {
		log.Warn("skipping %s: %v", f.Name, err)
		opts.Metrics.RecordDropped(extra.DataType.String())
		return nil
	}
	pkg, err := apk.Parse(ctx, tmp.Path, opts.apk())
	if err != nil {
		log.Warn("skipping %s: %v", f.Name, err)
		opts.Metrics.RecordDropped(extra.DataType.String())
		release(opts, tmp)
		return nil
	}

	e := pkg.Entity(tmp, extra.DataType)
	if b, ok := e.(*models.BaseEntity); ok && b.Label == "" {
		b.Label = models.DisplayName(f.Name)
	}
	return e
}
