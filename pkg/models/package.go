package models

import "time"

// PackageIndex is the summary a directory scan writes to disk.
type PackageIndex struct {
	Version    string                     `json:"version" yaml:"version"`
	Root       string                     `json:"root" yaml:"root"`
	UpdatedAt  time.Time                  `json:"updated_at" yaml:"updated_at"`
	TotalFiles int                        `json:"total_files" yaml:"total_files"`
	TotalSize  int64                      `json:"total_size" yaml:"total_size"`
	Packages   map[string]*IndexedPackage `json:"packages" yaml:"packages"`
}

// IndexedPackage groups every version of one package or module.
type IndexedPackage struct {
	PackageID string                     `json:"package_id" yaml:"package_id"`
	Kind      EntityKind                 `json:"kind" yaml:"kind"`
	Label     string                     `json:"label,omitempty" yaml:"label,omitempty"`
	Icon      string                     `json:"icon,omitempty" yaml:"icon,omitempty"` // relative to the index root
	Versions  map[string]*IndexedVersion `json:"versions" yaml:"versions"`
	Latest    string                     `json:"latest" yaml:"latest"` // key into Versions
}

// IndexedVersion is one version of a package as found in one source file.
type IndexedVersion struct {
	VersionCode   int64          `json:"version_code" yaml:"version_code"`
	VersionName   string         `json:"version_name" yaml:"version_name"`
	MinSDK        string         `json:"min_sdk,omitempty" yaml:"min_sdk,omitempty"`
	TargetSDK     string         `json:"target_sdk,omitempty" yaml:"target_sdk,omitempty"`
	Arch          Architecture   `json:"arch,omitempty" yaml:"arch,omitempty"`
	SignatureHash string         `json:"signature_hash,omitempty" yaml:"signature_hash,omitempty"`
	Permissions   []string       `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Splits        []IndexedSplit `json:"splits,omitempty" yaml:"splits,omitempty"`
	DexMetadata   []string       `json:"dex_metadata,omitempty" yaml:"dex_metadata,omitempty"`
	Source        SourceInfo     `json:"source" yaml:"source"`
	// SignatureVariant is set when another file has the same version code
	// signed with a different certificate.
	SignatureVariant string `json:"signature_variant,omitempty" yaml:"signature_variant,omitempty"`
}

// IndexedSplit is a split shipped with a version.
type IndexedSplit struct {
	Name   string       `json:"name" yaml:"name"`
	Type   SplitType    `json:"type" yaml:"type"`
	Config string       `json:"config,omitempty" yaml:"config,omitempty"`
	Arch   Architecture `json:"arch,omitempty" yaml:"arch,omitempty"`
}

// SourceInfo describes the file a version was read from.
type SourceInfo struct {
	Path      string        `json:"path" yaml:"path"` // relative to the scanned root when possible
	Container ContainerType `json:"container" yaml:"container"`
	Size      int64         `json:"size" yaml:"size"`
	SHA256    string        `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	ScannedAt time.Time     `json:"scanned_at" yaml:"scanned_at"`
}
