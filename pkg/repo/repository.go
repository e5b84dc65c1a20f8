package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/huanfeng/pkgscope/pkg/apk"
	"github.com/huanfeng/pkgscope/pkg/models"
	"github.com/huanfeng/pkgscope/pkg/utils"
)

const indexVersion = "1.0"

// Index maintains a scan index: one JSON file plus extracted icons.
type Index struct {
	layout *models.IndexLayout
	logger utils.Logger
	now    func() time.Time
}

// NewIndex creates an index rooted at rootDir.
func NewIndex(rootDir string, logger utils.Logger) (*Index, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve index directory: %w", err)
	}
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Index{
		layout: models.NewIndexLayout(absRoot),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Layout returns the on-disk layout.
func (ix *Index) Layout() *models.IndexLayout {
	return ix.layout
}

// Initialize creates the index directory structure
func (ix *Index) Initialize() error {
	dirs := []string{
		ix.layout.RootDir,
		filepath.Join(ix.layout.RootDir, ix.layout.IconsDir),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Load reads the index file. A missing file yields an empty index.
func (ix *Index) Load() (*models.PackageIndex, error) {
	data, err := os.ReadFile(ix.layout.IndexPath())
	if errors.Is(err, os.ErrNotExist) {
		return ix.empty(""), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	var idx models.PackageIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index: %w", err)
	}
	if idx.Packages == nil {
		idx.Packages = make(map[string]*models.IndexedPackage)
	}
	return &idx, nil
}

// Save writes idx atomically.
func (ix *Index) Save(idx *models.PackageIndex) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	path := ix.layout.IndexPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace index: %w", err)
	}
	return nil
}

// Update merges a scan into the stored index, writes icons and saves it.
func (ix *Index) Update(res *ScanResult) (*models.PackageIndex, error) {
	if err := ix.Initialize(); err != nil {
		return nil, err
	}
	idx, err := ix.Load()
	if err != nil {
		return nil, err
	}
	ix.Merge(idx, res)
	if err := ix.Save(idx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (ix *Index) empty(root string) *models.PackageIndex {
	return &models.PackageIndex{
		Version:   indexVersion,
		Root:      root,
		UpdatedAt: ix.now(),
		Packages:  make(map[string]*models.IndexedPackage),
	}
}

// Merge folds the entities of a scan into idx. Splits and dex metadata are
// attached to the version of the base read from the same source file.
func (ix *Index) Merge(idx *models.PackageIndex, res *ScanResult) {
	idx.Version = indexVersion
	idx.Root = res.Root
	idx.UpdatedAt = ix.now()

	hashes := make(map[string]apk.Hashes)
	versions := make(map[string]*models.IndexedVersion) // source path + package
	for _, e := range res.Entities {
		src := SourcePath(e.Ref())
		key := src + "\x00" + e.PackageName()

		switch v := e.(type) {
		case *models.BaseEntity:
			iv := &models.IndexedVersion{
				VersionCode:   v.VersionCode,
				VersionName:   v.VersionName,
				MinSDK:        v.MinSDK,
				TargetSDK:     v.TargetSDK,
				Arch:          v.Arch,
				SignatureHash: v.SignatureHash,
				Permissions:   v.Permissions,
				Source:        ix.sourceInfo(res.Root, src, v.SourceType, hashes),
			}
			pkg := ix.pkg(idx, v.Package, models.KindBase)
			if v.Label != "" {
				pkg.Label = v.Label
			}
			if icon := v.DisplayIcon(); icon != nil {
				if rel, err := ix.saveIcon(v.Package, v); err != nil {
					ix.logger.Warn("failed to save icon for %s: %v", v.Package, err)
				} else {
					pkg.Icon = rel
				}
			}
			addVersion(pkg, iv)
			versions[key] = iv

		case *models.SplitEntity:
			iv := versions[key]
			if iv == nil {
				ix.logger.Debug("split %s of %s has no base in %s", v.SplitName, v.Package, src)
				continue
			}
			iv.Splits = append(iv.Splits, models.IndexedSplit{
				Name:   v.SplitName,
				Type:   v.Metadata.Type,
				Config: v.Metadata.ConfigValue,
				Arch:   v.Arch,
			})

		case *models.DexMetadataEntity:
			if iv := versions[key]; iv != nil {
				iv.DexMetadata = append(iv.DexMetadata, v.DMName)
			}

		case *models.ModuleEntity:
			pkg := ix.pkg(idx, v.ID, models.KindModule)
			pkg.Label = v.ModuleName
			addVersion(pkg, &models.IndexedVersion{
				VersionCode: v.VersionCode,
				VersionName: v.Version,
				Source:      ix.sourceInfo(res.Root, src, v.SourceType, hashes),
			})
		}
	}

	idx.TotalFiles = 0
	idx.TotalSize = 0
	seen := make(map[string]bool)
	for _, pkg := range idx.Packages {
		for _, v := range pkg.Versions {
			if seen[v.Source.Path] {
				continue
			}
			seen[v.Source.Path] = true
			idx.TotalFiles++
			idx.TotalSize += v.Source.Size
		}
	}
}

func (ix *Index) pkg(idx *models.PackageIndex, id string, kind models.EntityKind) *models.IndexedPackage {
	pkg, ok := idx.Packages[id]
	if !ok {
		pkg = &models.IndexedPackage{
			PackageID: id,
			Kind:      kind,
			Versions:  make(map[string]*models.IndexedVersion),
		}
		idx.Packages[id] = pkg
	}
	return pkg
}

func (ix *Index) sourceInfo(root, path string, container models.ContainerType, cache map[string]apk.Hashes) models.SourceInfo {
	info := models.SourceInfo{Path: path, Container: container, ScannedAt: ix.now()}
	if rel, err := filepath.Rel(root, path); err == nil && root != "" {
		info.Path = filepath.ToSlash(rel)
	}
	if fi, err := os.Stat(path); err == nil {
		info.Size = fi.Size()
	}

	h, ok := cache[path]
	if !ok {
		var err error
		if h, err = apk.CalculateHashes(path); err != nil {
			ix.logger.Debug("no digest for %s: %v", path, err)
		}
		cache[path] = h
	}
	info.SHA256 = h.SHA256
	return info
}

func (ix *Index) saveIcon(packageID string, b *models.BaseEntity) (string, error) {
	rel := ix.layout.IconPath(packageID)
	f, err := os.Create(filepath.Join(ix.layout.RootDir, rel))
	if err != nil {
		return "", err
	}
	if err := apk.EncodePNG(f, b.DisplayIcon()); err != nil {
		f.Close()
		return "", err
	}
	return filepath.ToSlash(rel), f.Close()
}

// addVersion stores v under its version code. A second file with the same
// code but another signing certificate is kept as a signature variant.
func addVersion(pkg *models.IndexedPackage, v *models.IndexedVersion) {
	key := strconv.FormatInt(v.VersionCode, 10)
	if existing, ok := pkg.Versions[key]; ok && existing.Source.Path != v.Source.Path &&
		existing.SignatureHash != "" && v.SignatureHash != "" && existing.SignatureHash != v.SignatureHash {
		v.SignatureVariant = v.SignatureHash[:min(8, len(v.SignatureHash))]
		key = key + "-" + v.SignatureVariant
	}
	pkg.Versions[key] = v
	updateLatestVersion(pkg)
}

// updateLatestVersion updates the latest version field for a package
func updateLatestVersion(pkg *models.IndexedPackage) {
	var latestVersion *models.IndexedVersion
	var latestVersionKey string

	for versionKey, version := range pkg.Versions {
		// Skip alternative signature versions when determining latest
		if version.SignatureVariant != "" {
			continue
		}

		if latestVersion == nil || version.VersionCode > latestVersion.VersionCode {
			latestVersion = version
			latestVersionKey = versionKey
		}
	}

	if latestVersionKey != "" {
		pkg.Latest = latestVersionKey
	}
}

// SourcePath follows extracted files and archive entries back to the file
// the user supplied.
func SourcePath(ref models.DataRef) string {
	if ref == nil {
		return ""
	}
	if f, ok := ref.(*models.FileRef); ok && f.Origin != nil {
		ref = f.Origin
	}
	switch r := models.Root(ref).(type) {
	case *models.FileRef:
		if r.Origin != nil {
			return SourcePath(r.Origin)
		}
		return r.Path
	default:
		return r.String()
	}
}
