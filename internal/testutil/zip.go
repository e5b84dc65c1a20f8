package testutil

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Entry is one file of a fixture archive. A Name ending in "/" is a directory.
type Entry struct {
	Name  string
	Data  []byte
	Store bool
}

// File is shorthand for a deflated Entry.
func File(name string, data []byte) Entry {
	return Entry{Name: name, Data: data}
}

// Text is shorthand for a deflated Entry holding s.
func Text(name, s string) Entry {
	return Entry{Name: name, Data: []byte(s)}
}

// Dir is a directory record.
func Dir(name string) Entry {
	return Entry{Name: name}
}

// Zip builds an archive with the entries in order.
func Zip(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		method := zip.Deflate
		if e.Store {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: method})
		require.NoError(t, err)
		if len(e.Data) > 0 {
			_, err = w.Write(e.Data)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// WriteFile writes data under dir and returns the path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, data, 0644))
	return p
}

// Manifest describes the fields most tests need in an AndroidManifest.xml.
type Manifest struct {
	Package          string
	VersionCode      int32
	VersionCodeMajor int32
	VersionName      string
	Split            string
	MinSDK           int32
	TargetSDK        int32
	Label            string
	Permissions      []string
}

// Node renders m as a fixture tree.
func (m Manifest) Node() *Node {
	root := Elem("manifest")
	if m.Package != "" {
		root.Attrs = append(root.Attrs, Str("package", m.Package))
	}
	if m.Split != "" {
		root.Attrs = append(root.Attrs, Str("split", m.Split))
	}
	root.Attrs = append(root.Attrs, AInt("versionCode", ResVersionCode, m.VersionCode))
	if m.VersionCodeMajor != 0 {
		root.Attrs = append(root.Attrs, AInt("versionCodeMajor", ResVersionCodeMajor, m.VersionCodeMajor))
	}
	if m.VersionName != "" {
		root.Attrs = append(root.Attrs, AStr("versionName", ResVersionName, m.VersionName))
	}

	sdk := Elem("uses-sdk")
	if m.MinSDK != 0 {
		sdk.Attrs = append(sdk.Attrs, AInt("minSdkVersion", ResMinSdkVersion, m.MinSDK))
	}
	if m.TargetSDK != 0 {
		sdk.Attrs = append(sdk.Attrs, AInt("targetSdkVersion", ResTargetSdkVersion, m.TargetSDK))
	}
	root.Add(sdk)

	for _, p := range m.Permissions {
		root.Add(Elem("uses-permission", AStr("name", ResName, p)))
	}

	app := Elem("application")
	if m.Label != "" {
		app.Attrs = append(app.Attrs, AStr("label", ResLabel, m.Label))
	}
	root.Add(app)
	return root
}

// APK builds an APK-shaped archive with the manifest and extra entries.
func APK(t testing.TB, m Manifest, extra ...Entry) []byte {
	t.Helper()
	entries := append([]Entry{File("AndroidManifest.xml", EncodeXML(m.Node()))}, extra...)
	return Zip(t, entries...)
}

// Truncated keeps only the first local file header signature and a few bytes
// after it, which neither the strict nor the tolerant reader can recover.
func Truncated(data []byte) []byte {
	n := 16
	if len(data) < n {
		n = len(data)
	}
	return append([]byte(nil), data[:n]...)
}
