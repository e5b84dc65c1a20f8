package analyser

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/tidwall/gjson"

	pkgerrors "github.com/huanfeng/pkgscope/internal/errors"
	"github.com/huanfeng/pkgscope/pkg/archive"
	"github.com/huanfeng/pkgscope/pkg/models"
)

const (
	moduleProp       = "module.prop"
	commonModuleProp = "common/module.prop"
	xapkSidecar      = "manifest.json"
	apkmSidecar      = "info.json"
	rootManifest     = "AndroidManifest.xml"
	bundleTOC        = "toc.pb"
	sidecarLimit     = 4 << 20
)

// Classify assigns a container type to ref. An input that cannot be opened
// as an archive is an APK if its name ends in .apk, NONE if the bytes are
// not a ZIP at all, and a classification error otherwise.
func Classify(ctx context.Context, ref models.DataRef, moduleFlash bool) (models.ContainerType, error) {
	if err := ctx.Err(); err != nil {
		return models.ContainerNone, err
	}

	zr, err := openArchive(ref)
	if err != nil {
		if archive.HasExt(refName(ref), ".apk") {
			return models.ContainerAPK, nil
		}
		if archive.IsNotArchive(err) {
			return models.ContainerNone, nil
		}
		return models.ContainerNone, pkgerrors.NewClassificationError(ref.String(), err)
	}
	defer zr.Close()

	return ClassifyArchive(zr, moduleFlash), nil
}

// ClassifyArchive applies the detection rules to an open archive, first
// match wins.
func ClassifyArchive(zr *archive.Reader, moduleFlash bool) models.ContainerType {
	if moduleFlash && (zr.Has(moduleProp) || zr.Has(commonModuleProp)) {
		switch {
		case zr.Has(rootManifest):
			return models.ContainerMixedModuleAPK
		case hasAPKEntry(zr):
			return models.ContainerMixedModuleZip
		default:
			return models.ContainerModuleZip
		}
	}

	if zr.Has(xapkSidecar) {
		return models.ContainerXAPK
	}
	if f := zr.Lookup(apkmSidecar); f != nil {
		if data, err := archive.ReadFile(f, sidecarLimit); err == nil && looksLikeAPKM(data) {
			return models.ContainerAPKM
		}
	}
	if zr.Has(rootManifest) {
		return models.ContainerAPK
	}
	if zr.Has(bundleTOC) {
		return models.ContainerAPKS
	}
	for _, f := range zr.File {
		if isBaseName(path.Base(f.Name)) {
			return models.ContainerAPKS
		}
	}
	if hasAPKEntry(zr) {
		return models.ContainerMultiAPKZip
	}
	return models.ContainerNone
}

// looksLikeAPKM checks for the two keys every APKMirror info.json carries.
func looksLikeAPKM(data []byte) bool {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !gjson.ValidBytes(data) {
		return false
	}
	res := gjson.GetManyBytes(data, "pname", "versioncode")
	return res[0].Exists() && res[1].Exists()
}

func isBaseName(name string) bool {
	return strings.EqualFold(name, "base.apk") || strings.HasPrefix(strings.ToLower(name), "base-master")
}

func hasAPKEntry(zr *archive.Reader) bool {
	for _, f := range zr.File {
		if !archive.IsDir(f) && archive.HasExt(f.Name, ".apk") {
			return true
		}
	}
	return false
}

// openArchive opens ref as a ZIP. Nested entries are read into memory.
func openArchive(ref models.DataRef) (*archive.Reader, error) {
	if f, ok := ref.(*models.FileRef); ok {
		return archive.OpenFile(f.Path)
	}
	src, err := models.OpenSource(ref)
	if err != nil {
		return nil, err
	}
	zr, err := archive.NewReader(src, src.Size())
	if err != nil {
		src.Close()
		return nil, err
	}
	return archive.WithCloser(zr, src), nil
}

func refName(ref models.DataRef) string {
	switch r := ref.(type) {
	case *models.FileRef:
		return r.Path
	case *models.FDRef:
		if r.Name != "" {
			return r.Name
		}
		if r.File != nil {
			return r.File.Name()
		}
	case *models.EntryRef:
		return r.Name
	}
	return ""
}
