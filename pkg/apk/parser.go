package apk

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/huanfeng/pkgscope/pkg/archive"
	"github.com/huanfeng/pkgscope/pkg/axml"
	"github.com/huanfeng/pkgscope/pkg/models"
	"github.com/huanfeng/pkgscope/pkg/utils"
)

const manifestEntry = "AndroidManifest.xml"

// Options controls how much work Parse does beyond reading the manifest.
type Options struct {
	// Archs is the device ABI list used to pick the package architecture.
	Archs []models.Architecture
	// IconSize scales decoded icons; 0 keeps their size.
	IconSize uint
	// IconDensity selects drawable densities from resources.arsc.
	IconDensity uint16
	// SignatureHash enables the signing certificate hash.
	SignatureHash bool
	// ManifestLimit caps the manifest and resource table size.
	ManifestLimit int64
	Logger        utils.Logger
}

func (o Options) logger() utils.Logger {
	if o.Logger == nil {
		return utils.NopLogger()
	}
	return o.Logger
}

func (o Options) limit() int64 {
	if o.ManifestLimit <= 0 {
		return axml.DefaultLimit
	}
	return o.ManifestLimit
}

// Package is a parsed APK.
type Package struct {
	Manifest      *Manifest
	ABIs          []models.Architecture
	Arch          models.Architecture
	SignatureHash string
	// Reader names the zip reader that opened the file.
	Reader string
}

// Parse reads the APK at path.
func Parse(ctx context.Context, path string, opts Options) (*Package, error) {
	res, err := DefaultOpenerChain(opts.logger()).Open(path)
	if err != nil {
		return nil, err
	}
	defer res.Source.Close()

	pkg, err := parseSource(ctx, res.Source, path, opts)
	if err != nil {
		return nil, err
	}
	pkg.Reader = res.Opener

	if opts.SignatureHash {
		pkg.SignatureHash = fileSignatureHash(path, res.Source, opts.logger())
	}
	return pkg, nil
}

// ParseReader reads an APK from ra. name is only used in messages.
func ParseReader(ctx context.Context, ra io.ReaderAt, size int64, name string, opts Options) (*Package, error) {
	zr, err := archive.NewReader(ra, size)
	if err != nil {
		return nil, err
	}
	src := NewZipSource(zr)
	defer src.Close()

	pkg, err := parseSource(ctx, src, name, opts)
	if err != nil {
		return nil, err
	}
	pkg.Reader = ZipOpener{}.Info().Name

	if opts.SignatureHash {
		h, err := SignatureHash(ra, size, src)
		if err != nil {
			opts.logger().Debug("no signature hash for %s: %v", name, err)
		}
		pkg.SignatureHash = h
	}
	return pkg, nil
}

func parseSource(ctx context.Context, src EntrySource, name string, opts Options) (*Package, error) {
	log := opts.logger()

	data, err := src.ReadFile(manifestEntry, opts.limit())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &MissingManifestError{Source: name}
		}
		return nil, fmt.Errorf("read manifest of %s: %w", name, err)
	}

	var res ResourceResolver
	if tr, err := NewTableResolver(src, opts.IconDensity, opts.IconSize, opts.limit()); err == nil {
		res = tr
	} else {
		log.Debug("resources unavailable for %s: %v", name, err)
	}

	m, err := ParseManifest(ctx, bytes.NewReader(data), res, opts.limit())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	abis := NativeABIs(src.Names())
	arch := BestArchitecture(abis, opts.Archs)
	log.Debug("%s: package %s, arch %s", name, m.Package, arch)

	return &Package{Manifest: m, ABIs: abis, Arch: arch}, nil
}

func fileSignatureHash(path string, src EntrySource, log utils.Logger) string {
	f, err := os.Open(path)
	if err != nil {
		log.Debug("no signature hash for %s: %v", path, err)
		return ""
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return ""
	}
	h, err := SignatureHash(f, fi.Size(), src)
	if err != nil {
		log.Debug("no signature hash for %s: %v", path, err)
	}
	return h
}

// Entity converts the package into a Base entity, or a Split entity when
// the manifest names a split.
func (p *Package) Entity(ref models.DataRef, source models.ContainerType) models.AppEntity {
	m := p.Manifest
	common := models.Common{Package: m.Package, Data: ref, SourceType: source}

	if m.IsSplit() {
		meta := ParseSplitMetadata(m.Split)
		var arch models.Architecture
		if meta.Filter == models.FilterABI {
			arch = models.Architecture(meta.ConfigValue)
		}
		return &models.SplitEntity{
			Common:    common,
			SplitName: m.Split,
			MinSDK:    m.MinSDK,
			TargetSDK: m.TargetSDK,
			Arch:      arch,
			Metadata:  meta,
		}
	}

	return &models.BaseEntity{
		Common:        common,
		VersionCode:   m.VersionCode,
		VersionName:   m.VersionName,
		Label:         m.Label,
		Icon:          m.Icon,
		RoundIcon:     m.RoundIcon,
		MinSDK:        m.MinSDK,
		TargetSDK:     m.TargetSDK,
		Permissions:   m.Permissions,
		SharedUserID:  m.SharedUserID,
		SignatureHash: p.SignatureHash,
		Arch:          p.Arch,
	}
}

// Hashes are content digests of a file.
type Hashes struct {
	MD5    string `json:"md5" yaml:"md5"`
	SHA1   string `json:"sha1" yaml:"sha1"`
	SHA256 string `json:"sha256" yaml:"sha256"`
}

// CalculateHashes digests the file at path in one pass.
func CalculateHashes(path string) (Hashes, error) {
	file, err := os.Open(path)
	if err != nil {
		return Hashes{}, err
	}
	defer file.Close()

	md5Hash := md5.New()
	sha1Hash := sha1.New()
	sha256Hash := sha256.New()

	if _, err := io.Copy(io.MultiWriter(md5Hash, sha1Hash, sha256Hash), file); err != nil {
		return Hashes{}, err
	}

	return Hashes{
		MD5:    hex.EncodeToString(md5Hash.Sum(nil)),
		SHA1:   hex.EncodeToString(sha1Hash.Sum(nil)),
		SHA256: hex.EncodeToString(sha256Hash.Sum(nil)),
	}, nil
}

// IsPackageFile checks if the file name looks like something Classify can handle
func IsPackageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".apk", ".apks", ".apkm", ".xapk", ".zip":
		return true
	default:
		return false
	}
}
