package apk

import (
	"bytes"
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huanfeng/pkgscope/internal/testutil"
)

type fakeResolver struct {
	strings map[uint32]string
	icons   map[uint32]image.Image
}

func (r fakeResolver) ResolveString(id uint32) (string, bool) {
	s, ok := r.strings[id]
	return s, ok
}

func (r fakeResolver) ResolveDrawable(id uint32) (image.Image, bool) {
	img, ok := r.icons[id]
	return img, ok
}

func parseNode(t *testing.T, root *testutil.Node, res ResourceResolver) (*Manifest, error) {
	t.Helper()
	return ParseManifest(context.Background(), bytes.NewReader(testutil.EncodeXML(root)), res, 0)
}

func TestParseManifestVersionCode(t *testing.T) {
	m, err := parseNode(t, testutil.Manifest{Package: "com.example", VersionCode: 5, VersionCodeMajor: 1}.Node(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4294967301), m.VersionCode)

	m, err = parseNode(t, testutil.Manifest{Package: "com.example", VersionCode: -1}.Node(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0xFFFFFFFF), m.VersionCode)
}

func TestParseManifestMissingPackage(t *testing.T) {
	_, err := parseNode(t, testutil.Manifest{VersionCode: 1}.Node(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPackage))
}

func TestParseManifestFields(t *testing.T) {
	root := testutil.Manifest{
		Package:     " com.example ",
		VersionCode: 3,
		VersionName: "3.0-beta",
		MinSDK:      21,
		Label:       "Example",
		Permissions: []string{"android.permission.INTERNET", "  "},
	}.Node()
	root.Add(testutil.Elem("uses-permission-sdk-23", testutil.AStr("name", testutil.ResName, "android.permission.CAMERA")))

	m, err := parseNode(t, root, nil)
	require.NoError(t, err)

	assert.Equal(t, "com.example", m.Package)
	assert.Equal(t, int64(3), m.VersionCode)
	assert.Equal(t, "3.0-beta", m.VersionName)
	assert.Equal(t, "21", m.MinSDK)
	assert.Equal(t, "21", m.TargetSDK, "target falls back to min")
	assert.Equal(t, "Example", m.Label)
	assert.Equal(t, []string{"android.permission.INTERNET", "android.permission.CAMERA"}, m.Permissions)
	assert.False(t, m.IsSplit())
	assert.Nil(t, m.Icon)
}

func TestParseManifestSplit(t *testing.T) {
	root := testutil.Manifest{Package: "com.example", Split: "config.xxhdpi", MinSDK: 24, TargetSDK: 33}.Node()
	m, err := parseNode(t, root, nil)
	require.NoError(t, err)
	assert.True(t, m.IsSplit())
	assert.Equal(t, "config.xxhdpi", m.Split)
	assert.Equal(t, "33", m.TargetSDK)
}

func TestParseManifestResourceReferences(t *testing.T) {
	const (
		nameID  = 0x7f0e0001
		labelID = 0x7f0e0002
		iconID  = 0x7f080003
	)
	icon := image.NewRGBA(image.Rect(0, 0, 2, 2))
	res := fakeResolver{
		strings: map[uint32]string{nameID: "2.0.1", labelID: "Resolved Label"},
		icons:   map[uint32]image.Image{iconID: icon},
	}

	build := func(label testutil.Attr) *testutil.Node {
		return testutil.Elem("manifest",
			testutil.Str("package", "com.example"),
			testutil.AInt("versionCode", testutil.ResVersionCode, 1),
			testutil.ARef("versionName", testutil.ResVersionName, nameID),
		).Add(testutil.Elem("application", label, testutil.ARef("icon", testutil.ResIcon, iconID)))
	}

	t.Run("resolved", func(t *testing.T) {
		m, err := parseNode(t, build(testutil.ARef("label", testutil.ResLabel, labelID)), res)
		require.NoError(t, err)
		assert.Equal(t, "2.0.1", m.VersionName)
		assert.Equal(t, "Resolved Label", m.Label)
		assert.Same(t, icon, m.Icon)
	})

	t.Run("zero reference means no label", func(t *testing.T) {
		m, err := parseNode(t, build(testutil.ARef("label", testutil.ResLabel, 0)), res)
		require.NoError(t, err)
		assert.Empty(t, m.Label)
	})

	t.Run("unresolvable", func(t *testing.T) {
		m, err := parseNode(t, build(testutil.ARef("label", testutil.ResLabel, 0x7f0e00ff)), fakeResolver{})
		require.NoError(t, err)
		assert.Empty(t, m.Label)
		assert.Empty(t, m.VersionName)
		assert.Nil(t, m.Icon)
	})

	t.Run("no resolver", func(t *testing.T) {
		m, err := parseNode(t, build(testutil.ARef("label", testutil.ResLabel, labelID)), nil)
		require.NoError(t, err)
		assert.Empty(t, m.Label)
		assert.Nil(t, m.Icon)
	})
}

func TestParseManifestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	data := testutil.EncodeXML(testutil.Manifest{Package: "com.example"}.Node())
	_, err := ParseManifest(ctx, bytes.NewReader(data), nil, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
