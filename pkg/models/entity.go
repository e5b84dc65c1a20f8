package models

import (
	"fmt"
	"image"
	"path"
	"strings"
)

// EntityKind tags the AppEntity variants.
type EntityKind int

const (
	KindBase EntityKind = iota
	KindSplit
	KindDexMetadata
	KindModule
)

func (k EntityKind) String() string {
	switch k {
	case KindBase:
		return "base"
	case KindSplit:
		return "split"
	case KindDexMetadata:
		return "dex_metadata"
	case KindModule:
		return "module"
	default:
		return "unknown"
	}
}

func (k EntityKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *EntityKind) UnmarshalText(b []byte) error {
	for _, v := range []EntityKind{KindBase, KindSplit, KindDexMetadata, KindModule} {
		if v.String() == string(b) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown entity kind %q", string(b))
}

// AppEntity is one installable item found in a container. The set of
// implementations is closed: *BaseEntity, *SplitEntity, *DexMetadataEntity
// and *ModuleEntity.
type AppEntity interface {
	PackageName() string
	Ref() DataRef
	Source() ContainerType
	Kind() EntityKind
	// Name is the file name an installer session would use for the item.
	Name() string

	appEntity()
}

// Common holds the fields every entity variant carries.
type Common struct {
	Package    string        `json:"package_name" yaml:"package_name"`
	Data       DataRef       `json:"-" yaml:"-"`
	SourceType ContainerType `json:"source_type" yaml:"source_type"`
}

func (c *Common) PackageName() string   { return c.Package }
func (c *Common) Ref() DataRef          { return c.Data }
func (c *Common) Source() ContainerType { return c.SourceType }

// BaseEntity is the main application APK.
type BaseEntity struct {
	Common `yaml:",inline"`

	VersionCode   int64        `json:"version_code" yaml:"version_code"`
	VersionName   string       `json:"version_name" yaml:"version_name"`
	Label         string       `json:"label,omitempty" yaml:"label,omitempty"`
	Icon          image.Image  `json:"-" yaml:"-"`
	RoundIcon     image.Image  `json:"-" yaml:"-"`
	MinSDK        string       `json:"min_sdk,omitempty" yaml:"min_sdk,omitempty"`
	TargetSDK     string       `json:"target_sdk,omitempty" yaml:"target_sdk,omitempty"`
	Permissions   []string     `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	SharedUserID  string       `json:"shared_user_id,omitempty" yaml:"shared_user_id,omitempty"`
	SignatureHash string       `json:"signature_hash,omitempty" yaml:"signature_hash,omitempty"`
	Arch          Architecture `json:"arch,omitempty" yaml:"arch,omitempty"`
}

func (*BaseEntity) appEntity()       {}
func (*BaseEntity) Kind() EntityKind { return KindBase }
func (*BaseEntity) Name() string     { return "base.apk" }

// DisplayIcon prefers the round icon when one was decoded.
func (e *BaseEntity) DisplayIcon() image.Image {
	if e.RoundIcon != nil {
		return e.RoundIcon
	}
	return e.Icon
}

// SplitEntity is a configuration or feature split belonging to a base package.
type SplitEntity struct {
	Common `yaml:",inline"`

	SplitName string        `json:"split_name" yaml:"split_name"`
	MinSDK    string        `json:"min_sdk,omitempty" yaml:"min_sdk,omitempty"`
	TargetSDK string        `json:"target_sdk,omitempty" yaml:"target_sdk,omitempty"`
	Arch      Architecture  `json:"arch,omitempty" yaml:"arch,omitempty"`
	Metadata  SplitMetadata `json:"metadata" yaml:"metadata"`
}

func (*SplitEntity) appEntity()       {}
func (*SplitEntity) Kind() EntityKind { return KindSplit }
func (e *SplitEntity) Name() string   { return e.SplitName + ".apk" }

// DexMetadataEntity is a .dm file shipped next to an APK.
type DexMetadataEntity struct {
	Common `yaml:",inline"`

	DMName    string `json:"dm_name" yaml:"dm_name"`
	MinSDK    string `json:"min_sdk,omitempty" yaml:"min_sdk,omitempty"`
	TargetSDK string `json:"target_sdk,omitempty" yaml:"target_sdk,omitempty"`
}

func (*DexMetadataEntity) appEntity()       {}
func (*DexMetadataEntity) Kind() EntityKind { return KindDexMetadata }
func (e *DexMetadataEntity) Name() string   { return e.DMName + ".dm" }

// ModuleEntity describes a root module archive.
type ModuleEntity struct {
	Common `yaml:",inline"`

	ID          string `json:"id" yaml:"id"`
	ModuleName  string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	VersionCode int64  `json:"version_code" yaml:"version_code"`
	Author      string `json:"author" yaml:"author"`
	Description string `json:"description" yaml:"description"`
}

func (*ModuleEntity) appEntity()       {}
func (*ModuleEntity) Kind() EntityKind { return KindModule }

func (e *ModuleEntity) Name() string {
	id := strings.ReplaceAll(e.ID, "/", "_")
	return id + ".zip"
}

// ComposeVersionCode packs the major part into the high 32 bits.
func ComposeVersionCode(major, minor int64) int64 {
	return major<<32 | minor&0xFFFFFFFF
}

// SplitVersionCode is the inverse of ComposeVersionCode.
func SplitVersionCode(code int64) (major, minor int64) {
	return code >> 32, code & 0xFFFFFFFF
}

// DisplayName strips directories and the extension from an entry name.
func DisplayName(entryName string) string {
	base := path.Base(strings.ReplaceAll(entryName, "\\", "/"))
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}
