package apk

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huanfeng/pkgscope/internal/testutil"
	"github.com/huanfeng/pkgscope/pkg/models"
)

var armDevice = []models.Architecture{models.ArchARM64, models.ArchARMv7, models.ArchARM}

func TestParse(t *testing.T) {
	data := testutil.APK(t, testutil.Manifest{
		Package: "com.example", VersionCode: 12, VersionName: "1.2", MinSDK: 23, TargetSDK: 34, Label: "Example",
		Permissions: []string{"android.permission.INTERNET"},
	},
		testutil.File("lib/arm64-v8a/libnative.so", []byte("elf")),
		testutil.File("lib/x86_64/libnative.so", []byte("elf")),
	)
	p := testutil.WriteFile(t, t.TempDir(), "app.apk", data)

	pkg, err := Parse(context.Background(), p, Options{Archs: armDevice})
	require.NoError(t, err)

	assert.Equal(t, "zip", pkg.Reader)
	assert.Equal(t, "com.example", pkg.Manifest.Package)
	assert.Equal(t, []models.Architecture{models.ArchARM64, models.ArchX86_64}, pkg.ABIs)
	assert.Equal(t, models.ArchARM64, pkg.Arch)
	assert.Empty(t, pkg.SignatureHash)

	ref := &models.FileRef{Path: p}
	base, ok := pkg.Entity(ref, models.ContainerAPK).(*models.BaseEntity)
	require.True(t, ok)
	assert.Equal(t, "com.example", base.Package)
	assert.Equal(t, int64(12), base.VersionCode)
	assert.Equal(t, "1.2", base.VersionName)
	assert.Equal(t, "Example", base.Label)
	assert.Equal(t, "23", base.MinSDK)
	assert.Equal(t, "34", base.TargetSDK)
	assert.Equal(t, []string{"android.permission.INTERNET"}, base.Permissions)
	assert.Equal(t, models.ArchARM64, base.Arch)
	assert.Same(t, ref, base.Ref())
}

func TestParseSignatureHash(t *testing.T) {
	cert := []byte("certificate")
	data := withSigningBlock(t, testutil.APK(t, testutil.Manifest{Package: "com.example"}),
		map[uint32][]byte{schemeV2: schemeValue(cert)})
	p := testutil.WriteFile(t, t.TempDir(), "signed.apk", data)

	pkg, err := Parse(context.Background(), p, Options{SignatureHash: true})
	require.NoError(t, err)
	assert.Equal(t, certHash(cert), pkg.SignatureHash)

	pkg, err = ParseReader(context.Background(), bytes.NewReader(data), int64(len(data)), "signed.apk", Options{SignatureHash: true})
	require.NoError(t, err)
	assert.Equal(t, certHash(cert), pkg.SignatureHash)
}

func TestParseSplitEntity(t *testing.T) {
	data := testutil.APK(t, testutil.Manifest{Package: "com.example", Split: "config.armeabi_v7a", MinSDK: 21})
	pkg, err := ParseReader(context.Background(), bytes.NewReader(data), int64(len(data)), "split.apk", Options{})
	require.NoError(t, err)

	s, ok := pkg.Entity(nil, models.ContainerMultiAPKZip).(*models.SplitEntity)
	require.True(t, ok)
	assert.Equal(t, "config.armeabi_v7a", s.SplitName)
	assert.Equal(t, models.ArchARMv7, s.Arch)
	assert.Equal(t, models.SplitTypeArchitecture, s.Metadata.Type)
	assert.Equal(t, "21", s.MinSDK)
	assert.Equal(t, models.ArchNone, pkg.Arch)
}

func TestParseFailures(t *testing.T) {
	dir := t.TempDir()

	t.Run("no manifest", func(t *testing.T) {
		p := testutil.WriteFile(t, dir, "empty.apk", testutil.Zip(t, testutil.Text("classes.dex", "dex")))
		_, err := Parse(context.Background(), p, Options{})
		var missing *MissingManifestError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, p, missing.Source)
	})

	t.Run("no package", func(t *testing.T) {
		p := testutil.WriteFile(t, dir, "nopkg.apk", testutil.APK(t, testutil.Manifest{VersionCode: 1}))
		_, err := Parse(context.Background(), p, Options{})
		assert.True(t, errors.Is(err, ErrNoPackage))
	})

	t.Run("not a zip", func(t *testing.T) {
		p := testutil.WriteFile(t, dir, "junk.apk", []byte("junk"))
		_, err := Parse(context.Background(), p, Options{})
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Parse(context.Background(), dir+"/absent.apk", Options{})
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})
}

type stubOpener struct {
	info OpenerInfo
	err  error
}

func (o stubOpener) Open(string) (EntrySource, error) {
	if o.err != nil {
		return nil, o.err
	}
	return stubSource{}, nil
}

func (o stubOpener) Info() OpenerInfo { return o.info }

type stubSource struct{}

func (stubSource) Names() []string                        { return nil }
func (stubSource) ReadFile(string, int64) ([]byte, error) { return nil, os.ErrNotExist }
func (stubSource) Close() error                           { return nil }

func TestOpenerChain(t *testing.T) {
	boom := errors.New("boom")
	c := NewOpenerChain(nil)
	c.AddOpener(stubOpener{info: OpenerInfo{Name: "last", Available: true, Priority: 3}})
	c.AddOpener(stubOpener{info: OpenerInfo{Name: "broken", Available: true, Priority: 1}, err: boom})
	c.AddOpener(stubOpener{info: OpenerInfo{Name: "off", Available: false, Priority: 2}})

	var names []string
	for _, info := range c.Openers() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"broken", "off", "last"}, names)

	res, err := c.Open("x.apk")
	require.NoError(t, err)
	assert.Equal(t, "last", res.Opener)
	assert.Equal(t, []string{"broken: boom"}, res.Errors)

	failing := NewOpenerChain(nil)
	failing.AddOpener(stubOpener{info: OpenerInfo{Name: "broken", Available: true}, err: boom})
	_, err = failing.Open("x.apk")
	assert.ErrorIs(t, err, boom)

	_, err = NewOpenerChain(nil).Open("x.apk")
	assert.Error(t, err)

	infos := DefaultOpenerChain(nil).Openers()
	require.Len(t, infos, 2)
	assert.Equal(t, "zip", infos[0].Name)
	assert.Equal(t, "tolerant-zip", infos[1].Name)
}

func TestCalculateHashes(t *testing.T) {
	p := testutil.WriteFile(t, t.TempDir(), "a.bin", []byte("abc"))
	h, err := CalculateHashes(p)
	require.NoError(t, err)
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", h.MD5)
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", h.SHA1)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h.SHA256)
}

func TestIsPackageFile(t *testing.T) {
	for _, n := range []string{"a.apk", "b.APKS", "c.apkm", "d.xapk", "e.zip"} {
		assert.True(t, IsPackageFile(n), n)
	}
	for _, n := range []string{"a.obb", "b", "c.apk.txt"} {
		assert.False(t, IsPackageFile(n), n)
	}
}

func TestIconDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, image.NewRGBA(image.Rect(0, 0, 32, 32))))

	img, err := NewIconDecoder(0).Decode(buf.Bytes(), "icon.png")
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())

	img, err = NewIconDecoder(16).Decode(buf.Bytes(), "res/mipmap-hdpi/ic_launcher.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())

	_, err = NewIconDecoder(0).Decode([]byte("<vector/>"), "ic_launcher.xml")
	assert.Error(t, err)
	_, err = NewIconDecoder(0).Decode([]byte("junk"), "icon.webp")
	assert.Error(t, err)
}

func TestBitmapSibling(t *testing.T) {
	names := []string{
		"res/mipmap-anydpi-v26/ic_launcher.xml",
		"res/mipmap-hdpi-v4/ic_launcher.png",
		"res/mipmap-xxhdpi-v4/ic_launcher.webp",
		"res/mipmap-xxxhdpi-v4/ic_launcher_round.png",
		"res/drawable-xxxhdpi/ic_launcher.png",
	}
	assert.Equal(t, "res/mipmap-xxhdpi-v4/ic_launcher.webp", bitmapSibling(names, "res/mipmap-anydpi-v26/ic_launcher.xml"))
	assert.Equal(t, "res/mipmap-xxxhdpi-v4/ic_launcher_round.png", bitmapSibling(names, "res/mipmap-anydpi-v26/ic_launcher_round.xml"))
	assert.Empty(t, bitmapSibling(names, "res/drawable/ic_other.xml"))
}
