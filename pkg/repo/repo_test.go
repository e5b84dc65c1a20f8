package repo

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/huanfeng/pkgscope/internal/errors"
	"github.com/huanfeng/pkgscope/internal/testutil"
	"github.com/huanfeng/pkgscope/pkg/analyser"
	"github.com/huanfeng/pkgscope/pkg/models"
)

func newTestAnalyser() *Analyser {
	return NewAnalyser(analyser.NewDispatcher(analyser.Options{
		Archs:   []models.Architecture{models.ArchARM64},
		Workers: 1,
	}))
}

func TestReconcile(t *testing.T) {
	dir := t.TempDir()
	first := testutil.WriteFile(t, dir, "first.apk", []byte("x"))
	dup := testutil.WriteFile(t, dir, "dup.apk", []byte("x"))

	baseA := &models.BaseEntity{Common: models.Common{Package: "com.a", Data: &models.FileRef{Path: first, Temp: true}},
		VersionCode: 1, VersionName: "1", TargetSDK: "33"}
	splitA := &models.SplitEntity{Common: models.Common{Package: "com.a"}, SplitName: "config.en", TargetSDK: "21"}
	dupA := &models.BaseEntity{Common: models.Common{Package: "com.a", Data: &models.FileRef{Path: dup, Temp: true}},
		VersionCode: 1, VersionName: "1", TargetSDK: "30"}
	newerA := &models.BaseEntity{Common: models.Common{Package: "com.a"}, VersionCode: 2, VersionName: "2"}
	module := &models.ModuleEntity{Common: models.Common{Package: "mod"}, ID: "mod"}
	orphan := &models.SplitEntity{Common: models.Common{Package: "com.b"}, SplitName: "config.fr", TargetSDK: "19"}

	out := newTestAnalyser().reconcile([]models.AppEntity{baseA, splitA, module, dupA, orphan, newerA})

	assert.Equal(t, []models.AppEntity{baseA, splitA, newerA, module, orphan}, out)
	assert.Equal(t, "33", splitA.TargetSDK)
	assert.Equal(t, "19", orphan.TargetSDK)
	assert.FileExists(t, first)
	assert.NoFileExists(t, dup)
}

func TestReleaseUnsharedKeepsSharedParent(t *testing.T) {
	p := testutil.WriteFile(t, t.TempDir(), "bundle.apk", []byte("x"))
	parent := &models.FileRef{Path: p, Temp: true}

	kept := []models.AppEntity{&models.SplitEntity{Common: models.Common{Data: &models.EntryRef{Parent: parent, Name: "a.apk"}}}}
	dropped := []models.AppEntity{&models.BaseEntity{Common: models.Common{Data: parent}}}

	require.NoError(t, releaseUnshared(dropped, kept))
	assert.FileExists(t, p)
}

func TestAnalyse(t *testing.T) {
	dir := t.TempDir()
	app := testutil.APK(t, testutil.Manifest{Package: "com.example", VersionCode: 3, VersionName: "3.0", MinSDK: 24, TargetSDK: 34})
	refs := []models.DataRef{
		&models.FileRef{Path: testutil.WriteFile(t, dir, "a.apk", app)},
		&models.FileRef{Path: testutil.WriteFile(t, dir, "notes.txt", []byte("plain text"))},
		&models.FileRef{Path: testutil.WriteFile(t, dir, "broken.apk", []byte("junk"))},
		&models.FileRef{Path: testutil.WriteFile(t, dir, "copy.apk", app)},
	}

	a := newTestAnalyser()
	var progress []int
	a.OnReport = func(done, total int, r Report) {
		assert.Equal(t, len(refs), total)
		progress = append(progress, done)
	}

	res, err := a.Analyse(context.Background(), refs, analyser.Extra{CacheDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, progress)

	require.Len(t, res.Entities, 1)
	base, ok := res.Entities[0].(*models.BaseEntity)
	require.True(t, ok)
	assert.Equal(t, "com.example", base.Package)
	assert.Same(t, refs[0], base.Ref())

	require.Len(t, res.Reports, 4)
	assert.Equal(t, models.ContainerNone, res.Reports[1].Type)
	assert.NoError(t, res.Reports[1].Err)
	assert.Equal(t, models.ContainerAPK, res.Reports[2].Type)
	assert.True(t, errors.Is(res.Reports[2].Err, pkgerrors.ErrParsing))

	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Same(t, refs[2], failed[0].Ref)
	assert.Equal(t, 1, res.Stats.TotalErrors)
	assert.Equal(t, 1, res.Stats.ErrorsByType[pkgerrors.ErrorTypeParsing])
}

func TestAnalyseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := testutil.WriteFile(t, t.TempDir(), "a.apk", testutil.APK(t, testutil.Manifest{Package: "com.example"}))

	_, err := newTestAnalyser().Analyse(ctx, []models.DataRef{&models.FileRef{Path: p}}, analyser.Extra{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScannerMatches(t *testing.T) {
	s := NewScanner(models.ScanningConfig{ExcludePattern: []string{"*.tmp.apk", "*/cache/*"}}, nil, analyser.Extra{})
	assert.True(t, s.Matches("dl/app.apk"))
	assert.True(t, s.Matches("dl/bundle.XAPK"))
	assert.False(t, s.Matches("dl/readme.md"))
	assert.False(t, s.Matches("dl/partial.tmp.apk"))
	assert.False(t, s.Matches("dl/cache/app.apk"))

	s = NewScanner(models.ScanningConfig{IncludePattern: []string{"*.apk"}}, nil, analyser.Extra{})
	assert.True(t, s.Matches("app.apk"))
	assert.False(t, s.Matches("module.zip"))
}

func TestScannerFiles(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "b.apk", []byte("x"))
	testutil.WriteFile(t, dir, "a.zip", []byte("x"))
	testutil.WriteFile(t, dir, "notes.txt", []byte("x"))
	testutil.WriteFile(t, dir, "sub/c.apkm", []byte("x"))

	flat := NewScanner(models.ScanningConfig{}, nil, analyser.Extra{})
	files, skipped, walkErrs, err := flat.Files(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, walkErrs)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, []string{filepath.Join(dir, "a.zip"), filepath.Join(dir, "b.apk")}, files)

	deep := NewScanner(models.ScanningConfig{Recursive: true}, nil, analyser.Extra{})
	files, _, _, err = deep.Files(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.zip"),
		filepath.Join(dir, "b.apk"),
		filepath.Join(dir, "sub", "c.apkm"),
	}, files)
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "app.apk", testutil.APK(t, testutil.Manifest{Package: "com.example", VersionCode: 1}))
	testutil.WriteFile(t, dir, "mod.zip", testutil.Zip(t, testutil.Text("module.prop", "id=demo\nname=Demo\nversionCode=2\n")))

	s := NewScanner(models.ScanningConfig{}, newTestAnalyser(), analyser.Extra{CacheDir: t.TempDir(), ModuleFlashEnabled: true})
	res, err := s.Scan(context.Background(), dir)
	require.NoError(t, err)
	defer models.Release(res.Entities)

	assert.Equal(t, 2, res.TotalFiles)
	require.Len(t, res.Entities, 2)
	assert.Equal(t, "com.example", res.Entities[0].PackageName())
	assert.Equal(t, models.KindModule, res.Entities[1].Kind())
}

func TestIndex(t *testing.T) {
	src := t.TempDir()
	appPath := testutil.WriteFile(t, src, "app.apk", []byte("app bytes"))
	resignedPath := testutil.WriteFile(t, src, "resigned.apk", []byte("other bytes"))
	bundlePath := testutil.WriteFile(t, src, "bundle.apks", []byte("bundle bytes"))
	extracted := &models.FileRef{
		Path:   testutil.WriteFile(t, t.TempDir(), "x.apk", []byte("x")),
		Temp:   true,
		Origin: &models.EntryRef{Parent: &models.FileRef{Path: bundlePath}, Name: "base.apk"},
	}

	base := func(ref models.DataRef, code int64, sig string) *models.BaseEntity {
		return &models.BaseEntity{
			Common:      models.Common{Package: "com.example", Data: ref, SourceType: models.ContainerAPK},
			VersionCode: code, VersionName: "v", Label: "Example", SignatureHash: sig,
			Icon: image.NewRGBA(image.Rect(0, 0, 8, 8)),
		}
	}
	res := &ScanResult{Root: src, Result: &Result{Entities: []models.AppEntity{
		base(&models.FileRef{Path: appPath}, 1, "aaaaaaaaaaaa"),
		base(&models.FileRef{Path: resignedPath}, 1, "bbbbbbbbbbbb"),
		base(extracted, 2, "aaaaaaaaaaaa"),
		&models.SplitEntity{
			Common:    models.Common{Package: "com.example", Data: &models.EntryRef{Parent: extracted.Origin.Parent, Name: "split.apk"}},
			SplitName: "config.arm64_v8a",
			Arch:      models.ArchARM64,
			Metadata:  models.SplitMetadata{Type: models.SplitTypeArchitecture, ConfigValue: "arm64_v8a"},
		},
		&models.DexMetadataEntity{Common: models.Common{Package: "com.example", Data: &models.EntryRef{Parent: extracted.Origin.Parent, Name: "base.dm"}}, DMName: "base"},
		&models.ModuleEntity{Common: models.Common{Package: "demo", Data: &models.FileRef{Path: appPath}}, ID: "demo", ModuleName: "Demo", VersionCode: 7},
	}}}

	ix, err := NewIndex(filepath.Join(t.TempDir(), "index"), nil)
	require.NoError(t, err)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ix.now = func() time.Time { return fixed }

	idx, err := ix.Update(res)
	require.NoError(t, err)

	pkg := idx.Packages["com.example"]
	require.NotNil(t, pkg)
	assert.Equal(t, "Example", pkg.Label)
	assert.Equal(t, "2", pkg.Latest)
	assert.FileExists(t, filepath.Join(ix.Layout().RootDir, filepath.FromSlash(pkg.Icon)))

	require.Len(t, pkg.Versions, 3)
	assert.Equal(t, "app.apk", pkg.Versions["1"].Source.Path)
	assert.Equal(t, "bbbbbbbb", pkg.Versions["1-bbbbbbbb"].SignatureVariant)

	v2 := pkg.Versions["2"]
	assert.Equal(t, "bundle.apks", v2.Source.Path)
	assert.Equal(t, int64(len("bundle bytes")), v2.Source.Size)
	assert.Len(t, v2.Source.SHA256, 64)
	assert.Equal(t, []models.IndexedSplit{{Name: "config.arm64_v8a", Type: models.SplitTypeArchitecture, Config: "arm64_v8a", Arch: models.ArchARM64}}, v2.Splits)
	assert.Equal(t, []string{"base"}, v2.DexMetadata)

	mod := idx.Packages["demo"]
	require.NotNil(t, mod)
	assert.Equal(t, models.KindModule, mod.Kind)
	assert.Equal(t, "7", mod.Latest)

	// app.apk is shared by the module entry
	assert.Equal(t, 3, idx.TotalFiles)

	loaded, err := ix.Load()
	require.NoError(t, err)
	assert.Equal(t, idx.Packages["com.example"].Versions["2"].Splits, loaded.Packages["com.example"].Versions["2"].Splits)
	assert.Equal(t, models.KindModule, loaded.Packages["demo"].Kind)
	assert.True(t, fixed.Equal(loaded.UpdatedAt))
}

func TestIndexLoadMissing(t *testing.T) {
	ix, err := NewIndex(t.TempDir(), nil)
	require.NoError(t, err)
	idx, err := ix.Load()
	require.NoError(t, err)
	assert.Empty(t, idx.Packages)

	require.NoError(t, os.WriteFile(ix.Layout().IndexPath(), []byte("{"), 0o644))
	_, err = ix.Load()
	assert.Error(t, err)
}

func TestSourcePath(t *testing.T) {
	outer := &models.FileRef{Path: "/data/bundle.apks"}
	assert.Equal(t, "/data/bundle.apks", SourcePath(outer))
	assert.Equal(t, "/data/bundle.apks", SourcePath(&models.EntryRef{Parent: outer, Name: "base.apk"}))

	nested := &models.FileRef{Path: "/tmp/1.apk", Temp: true, Origin: &models.EntryRef{Parent: outer, Name: "a.apk"}}
	assert.Equal(t, "/data/bundle.apks", SourcePath(&models.FileRef{
		Path: "/tmp/2.apk", Temp: true, Origin: &models.EntryRef{Parent: nested, Name: "b.apk"},
	}))
	assert.Empty(t, SourcePath(nil))
}
