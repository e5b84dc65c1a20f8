package axml_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/huanfeng/pkgscope/internal/testutil"
	"github.com/huanfeng/pkgscope/pkg/axml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleManifest() *testutil.Node {
	return testutil.Elem("manifest",
		testutil.Str("package", "com.example.app"),
		testutil.AInt("versionCode", testutil.ResVersionCode, 42),
		testutil.AStr("versionName", testutil.ResVersionName, "4.2"),
	).Add(
		testutil.Elem("uses-sdk",
			testutil.AInt("minSdkVersion", testutil.ResMinSdkVersion, 21),
			testutil.AInt("targetSdkVersion", testutil.ResTargetSdkVersion, 34),
		),
		testutil.Elem("uses-permission", testutil.AStr("name", testutil.ResName, "android.permission.INTERNET")),
		testutil.Elem("uses-permission", testutil.AStr("name", testutil.ResName, "android.permission.CAMERA")),
		testutil.Elem("application",
			testutil.ARef("label", testutil.ResLabel, 0x7f100001),
			testutil.ARef("icon", testutil.ResIcon, 0x7f080002),
		).Add(testutil.Elem("activity", testutil.AStr("name", testutil.ResName, ".Main"))),
	)
}

func TestMapDispatchesByPath(t *testing.T) {
	for _, utf16 := range []bool{false, true} {
		data := testutil.EncodeXMLWith(sampleManifest(), testutil.EncodeOptions{UTF16: utf16})

		var (
			pkg   string
			code  int32
			name  string
			perms []string
			label int32
			acts  []string
		)
		err := axml.NewTree(bytes.NewReader(data)).
			Register("/manifest", func(e *axml.Element) {
				pkg, _ = e.AttributeValue("", "package")
				code = e.AttributeIntValue(axml.AndroidNamespace, "versionCode", -1)
				name, _ = e.AttributeValue(axml.AndroidNamespace, "versionName")
			}).
			Register("/manifest/uses-permission", func(e *axml.Element) {
				p, _ := e.AttributeValue(axml.AndroidNamespace, "name")
				perms = append(perms, p)
			}).
			Register("/manifest/application", func(e *axml.Element) {
				label = e.AttributeResourceValue(axml.AndroidNamespace, "label", -1)
			}).
			Register("manifest/application/activity/", func(e *axml.Element) {
				a, _ := e.AttributeValue(axml.AndroidNamespace, "name")
				acts = append(acts, a)
			}).
			Map()
		require.NoError(t, err, "utf16=%v", utf16)

		assert.Equal(t, "com.example.app", pkg)
		assert.Equal(t, int32(42), code)
		assert.Equal(t, "4.2", name)
		assert.Equal(t, []string{"android.permission.INTERNET", "android.permission.CAMERA"}, perms)
		assert.Equal(t, int32(0x7f100001), label)
		assert.Equal(t, []string{".Main"}, acts)
	}
}

func TestAccessorDefaults(t *testing.T) {
	data := testutil.EncodeXML(sampleManifest())

	var checked bool
	err := axml.NewTree(bytes.NewReader(data)).
		Register("/manifest", func(e *axml.Element) {
			checked = true
			// string attribute is not an int or a reference
			assert.Equal(t, int32(7), e.AttributeIntValue("", "package", 7))
			assert.Equal(t, int32(-1), e.AttributeResourceValue("", "package", -1))
			// absent attribute
			_, ok := e.AttributeValue(axml.AndroidNamespace, "sharedUserId")
			assert.False(t, ok)
			// namespace must match
			_, ok = e.AttributeValue("", "versionName")
			assert.False(t, ok)
			// typed int renders as decimal text
			v, ok := e.AttributeValue(axml.AndroidNamespace, "versionCode")
			assert.True(t, ok)
			assert.Equal(t, "42", v)
		}).
		Register("/manifest/application", func(e *axml.Element) {
			v, ok := e.AttributeValue(axml.AndroidNamespace, "label")
			assert.True(t, ok)
			assert.Equal(t, "@2131755009", v)
			assert.Equal(t, int32(-5), e.AttributeIntValue(axml.AndroidNamespace, "label", -5))
		}).
		Map()
	require.NoError(t, err)
	assert.True(t, checked)
}

func TestStrippedAttributeNamesResolveByResourceID(t *testing.T) {
	data := testutil.EncodeXMLWith(sampleManifest(), testutil.EncodeOptions{StripAttrNames: true})

	var code int32
	var minSDK int32
	err := axml.NewTree(bytes.NewReader(data)).
		Register("/manifest", func(e *axml.Element) {
			code = e.AttributeIntValue(axml.AndroidNamespace, "versionCode", -1)
		}).
		Register("/manifest/uses-sdk", func(e *axml.Element) {
			minSDK = e.AttributeIntValue(axml.AndroidNamespace, "minSdkVersion", -1)
		}).
		Map()
	require.NoError(t, err)
	assert.Equal(t, int32(42), code)
	assert.Equal(t, int32(21), minSDK)
}

func TestMapIsSinglePass(t *testing.T) {
	tree := axml.NewTree(bytes.NewReader(testutil.EncodeXML(sampleManifest())))
	require.NoError(t, tree.Map())
	assert.ErrorIs(t, tree.Map(), axml.ErrConsumed)
}

func TestMalformedInputFailsWithoutCallbacks(t *testing.T) {
	good := testutil.EncodeXML(sampleManifest())

	corruptSize := append([]byte(nil), good...)
	// first chunk after the file header is the string pool; blow up its size
	corruptSize[12] = 0xff
	corruptSize[13] = 0xff
	corruptSize[14] = 0xff

	cases := map[string][]byte{
		"empty":        {},
		"truncated":    good[:len(good)-10],
		"chunk size":   corruptSize,
		"wrong type":   append([]byte{0x02, 0x00, 0x08, 0x00}, good[4:]...),
		"header only":  good[:8],
		"random bytes": bytes.Repeat([]byte{0x5a}, 64),
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			called := false
			err := axml.NewTree(bytes.NewReader(data)).
				Register("/manifest", func(*axml.Element) { called = true }).
				Map()
			require.Error(t, err)
			assert.False(t, called, "callbacks must not run on a failed decode")
		})
	}
}

func TestTruncatedFileHeaderSizeIsFormatError(t *testing.T) {
	good := testutil.EncodeXML(sampleManifest())
	err := axml.NewTree(bytes.NewReader(good[:len(good)-10])).Map()

	var fe *axml.FormatError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Contains(t, fe.Error(), "runs past end")
}

func TestPlainTextRejected(t *testing.T) {
	src := "\ufeff  <?xml version=\"1.0\"?><manifest package=\"x\"/>"
	err := axml.NewTree(strings.NewReader(src)).Map()
	assert.ErrorIs(t, err, axml.ErrPlainText)
}

func TestLimit(t *testing.T) {
	data := testutil.EncodeXML(sampleManifest())
	err := axml.NewTree(bytes.NewReader(data)).Limit(16).Map()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "larger than")
}

func TestCancelledContext(t *testing.T) {
	root := testutil.Elem("manifest", testutil.Str("package", "p"))
	for i := 0; i < 200; i++ {
		root.Add(testutil.Elem("uses-permission", testutil.AStr("name", testutil.ResName, "p")))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := axml.NewTree(bytes.NewReader(testutil.EncodeXML(root))).MapContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
