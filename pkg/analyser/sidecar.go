package analyser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"path"
	"strconv"
	"strings"

	pkgerrors "github.com/huanfeng/pkgscope/internal/errors"
	"github.com/huanfeng/pkgscope/pkg/apk"
	"github.com/huanfeng/pkgscope/pkg/archive"
	"github.com/huanfeng/pkgscope/pkg/models"
)

const sidecarIcon = "icon.png"

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// flexInt accepts a JSON number or a string holding one.
type flexInt int64

func (v *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(s)), 10, 64)
	if err != nil {
		return fmt.Errorf("version code %q: %w", string(s), err)
	}
	*v = flexInt(n)
	return nil
}

// apkmInfo is APKMirror's info.json.
type apkmInfo struct {
	Package        string     `json:"pname"`
	VersionCode    flexInt    `json:"versioncode"`
	ReleaseVersion string     `json:"release_version"`
	AppName        string     `json:"app_name"`
	APKTitle       string     `json:"apk_title"`
	ReleaseTitle   string     `json:"release_title"`
	MinAPI         flexString `json:"min_api"`
}

func (i *apkmInfo) label() string {
	for _, s := range []string{i.AppName, i.APKTitle, i.ReleaseTitle} {
		if s != "" {
			return s
		}
	}
	return ""
}

// xapkManifest is APKPure's manifest.json.
type xapkManifest struct {
	Package     string     `json:"package_name"`
	Name        string     `json:"name"`
	VersionCode flexInt    `json:"version_code"`
	VersionName string     `json:"version_name"`
	MinSDK      flexString `json:"min_sdk_version"`
	TargetSDK   flexString `json:"target_sdk_version"`
	Splits      []struct {
		File string `json:"file"`
		ID   string `json:"id"`
	} `json:"split_apks"`
	Expansions []struct {
		File        string `json:"file"`
		InstallPath string `json:"install_path"`
	} `json:"expansions"`
}

// readSidecar decodes a JSON sidecar. Missing or unreadable sidecars are
// anchor failures: nothing else in the container can be interpreted.
func readSidecar(zr *archive.Reader, ref models.DataRef, name string, v interface{ pkg() string }) error {
	f := zr.Lookup(name)
	if f == nil {
		return pkgerrors.NewAnchorMissingError(pkgerrors.CodeMissingSidecar, ref.String(), "missing "+name, nil)
	}
	data, err := archive.ReadFile(f, sidecarLimit)
	if err != nil {
		return pkgerrors.NewAnchorMissingError(pkgerrors.CodeBadSidecar, ref.String(), "cannot read "+name, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if err := json.Unmarshal(data, v); err != nil {
		return pkgerrors.NewAnchorMissingError(pkgerrors.CodeBadSidecar, ref.String(), "malformed "+name, err)
	}
	if strings.TrimSpace(v.pkg()) == "" {
		return pkgerrors.NewAnchorMissingError(pkgerrors.CodeBadSidecar, ref.String(), name+" has no package name", nil)
	}
	return nil
}

func (i *apkmInfo) pkg() string     { return i.Package }
func (m *xapkManifest) pkg() string { return m.Package }

func sidecarIconImage(opts Options, zr *archive.Reader) image.Image {
	f := zr.Lookup(sidecarIcon)
	if f == nil {
		return nil
	}
	data, err := archive.ReadFile(f, sidecarLimit)
	if err != nil {
		return nil
	}
	img, err := apk.NewIconDecoder(opts.IconSize).Decode(data, sidecarIcon)
	if err != nil {
		opts.logger().Debug("ignoring sidecar icon: %v", err)
		return nil
	}
	return img
}

// sidecarEntity maps one listed file to an entity. splitName "" or "base"
// makes a copy of base. Files other than .apk and .dm yield nil.
func sidecarEntity(parent models.DataRef, file, splitName string, base *models.BaseEntity) models.AppEntity {
	common := base.Common
	common.Data = &models.EntryRef{Parent: parent, Name: file}

	switch strings.ToLower(path.Ext(file)) {
	case ".apk":
		if splitName == "" || splitName == "base" {
			b := *base
			b.Common = common
			return &b
		}
		meta := apk.ParseSplitMetadata(splitName)
		s := &models.SplitEntity{
			Common:    common,
			SplitName: splitName,
			MinSDK:    base.MinSDK,
			TargetSDK: base.TargetSDK,
			Metadata:  meta,
		}
		if meta.Filter == models.FilterABI {
			s.Arch = models.Architecture(meta.ConfigValue)
		}
		return s
	case ".dm":
		name := archive.Stem(file)
		if name == "" {
			return nil
		}
		return &models.DexMetadataEntity{
			Common:    common,
			DMName:    name,
			MinSDK:    base.MinSDK,
			TargetSDK: base.TargetSDK,
		}
	}
	return nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}
