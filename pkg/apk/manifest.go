package apk

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"

	"github.com/huanfeng/pkgscope/pkg/axml"
	"github.com/huanfeng/pkgscope/pkg/models"
)

const ns = axml.AndroidNamespace

// ErrNoPackage is returned for a manifest without a package attribute.
var ErrNoPackage = errors.New("manifest has no package name")

// Manifest holds the values read from AndroidManifest.xml.
type Manifest struct {
	Package        string
	VersionCode    int64
	VersionName    string
	Label          string
	Icon           image.Image
	RoundIcon      image.Image
	MinSDK         string
	TargetSDK      string
	Permissions    []string
	SharedUserID   string
	Split          string
	ConfigForSplit string
	FeatureSplit   bool
}

// IsSplit reports whether the manifest belongs to a split APK.
func (m *Manifest) IsSplit() bool {
	return m.Split != ""
}

type appAttrs struct {
	label, icon, roundIcon int32
	rawLabel, rawIcon      string
	hasRawIcon             bool
}

// ParseManifest decodes a binary AndroidManifest.xml. res may be nil, in
// which case resource references are treated as absent.
func ParseManifest(ctx context.Context, r io.Reader, res ResourceResolver, limit int64) (*Manifest, error) {
	m := &Manifest{}
	var (
		major, minor int64
		versionID    int32
		rawVersion   string
		hasRawVer    bool
		app          = appAttrs{label: -1, icon: -1, roundIcon: -1}
	)

	err := axml.NewTree(r).Limit(limit).
		Register("/manifest", func(e *axml.Element) {
			m.Package, _ = e.RawValue("", "package")
			m.Package = strings.TrimSpace(m.Package)
			minor = int64(uint32(intAttr(e, "versionCode")))
			major = int64(uint32(intAttr(e, "versionCodeMajor")))
			versionID = e.AttributeResourceValue(ns, "versionName", 0)
			rawVersion, hasRawVer = e.RawValue(ns, "versionName")
			m.SharedUserID, _ = e.RawValue(ns, "sharedUserId")
			m.Split, _ = e.RawValue("", "split")
			m.ConfigForSplit, _ = e.RawValue("", "configForSplit")
			if v, ok := e.AttributeValue(ns, "isFeatureSplit"); ok {
				m.FeatureSplit = v == "true"
			}
		}).
		Register("/manifest/uses-sdk", func(e *axml.Element) {
			m.MinSDK, _ = e.AttributeValue(ns, "minSdkVersion")
			m.TargetSDK, _ = e.AttributeValue(ns, "targetSdkVersion")
		}).
		Register("/manifest/uses-permission", m.addPermission).
		Register("/manifest/uses-permission-sdk-23", m.addPermission).
		Register("/manifest/application", func(e *axml.Element) {
			app.label = e.AttributeResourceValue(ns, "label", -1)
			app.rawLabel, _ = e.RawValue(ns, "label")
			app.icon = e.AttributeResourceValue(ns, "icon", -1)
			app.rawIcon, app.hasRawIcon = e.RawValue(ns, "icon")
			app.roundIcon = e.AttributeResourceValue(ns, "roundIcon", -1)
		}).
		MapContext(ctx)
	if err != nil {
		return nil, err
	}

	if m.Package == "" {
		return nil, ErrNoPackage
	}

	m.VersionCode = models.ComposeVersionCode(major, minor)
	if m.TargetSDK == "" {
		m.TargetSDK = m.MinSDK
	}

	if versionID != 0 && res != nil {
		if s, ok := res.ResolveString(uint32(versionID)); ok {
			m.VersionName = s
		}
	}
	if m.VersionName == "" && hasRawVer {
		m.VersionName = rawVersion
	}

	switch app.label {
	case -1:
		m.Label = app.rawLabel
	case 0:
	default:
		if res != nil {
			m.Label, _ = res.ResolveString(uint32(app.label))
		}
	}

	m.Icon = resolveIcon(res, app.icon, app.rawIcon, app.hasRawIcon)
	m.RoundIcon = resolveIcon(res, app.roundIcon, "", false)

	return m, nil
}

func (m *Manifest) addPermission(e *axml.Element) {
	name, _ := e.AttributeValue(ns, "name")
	if name = strings.TrimSpace(name); name != "" {
		m.Permissions = append(m.Permissions, name)
	}
}

// intAttr reads an integer attribute, also accepting a literal decimal
// string, which some hand-built manifests carry.
func intAttr(e *axml.Element, name string) int32 {
	const unset = -0x7ead
	if v := e.AttributeIntValue(ns, name, unset); v != unset {
		return v
	}
	if s, ok := e.RawValue(ns, name); ok {
		if v, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64); err == nil {
			return int32(v)
		}
	}
	return 0
}

func resolveIcon(res ResourceResolver, id int32, raw string, hasRaw bool) image.Image {
	switch id {
	case 0:
		return nil
	case -1:
		if !hasRaw || res == nil {
			return nil
		}
		if l, ok := res.(DrawablePathLoader); ok {
			img, _ := l.LoadDrawable(raw)
			return img
		}
		return nil
	default:
		if res == nil {
			return nil
		}
		img, _ := res.ResolveDrawable(uint32(id))
		return img
	}
}

// MissingManifestError is returned when an archive has no AndroidManifest.xml.
type MissingManifestError struct {
	Source string
}

func (e *MissingManifestError) Error() string {
	return fmt.Sprintf("%s: no AndroidManifest.xml", e.Source)
}
