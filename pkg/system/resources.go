// Package system checks host resources the analyser depends on.
package system

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/go-units"

	pkgerrors "github.com/huanfeng/pkgscope/internal/errors"
)

// DiskUsage is the space on the file system holding a path, in bytes.
type DiskUsage struct {
	Total     uint64 `json:"total"`
	Used      uint64 `json:"used"`
	Free      uint64 `json:"free"`
	Available uint64 `json:"available"` // free space usable without privileges
}

// UsedPct returns the used share of Total in percent.
func (d *DiskUsage) UsedPct() float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(d.Used) / float64(d.Total) * 100
}

// DiskUsageOf reports usage for the file system holding path.
func DiskUsageOf(path string) (*DiskUsage, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	return getDiskUsage(absPath)
}

// CacheCheck is the outcome of CheckCacheDir.
type CacheCheck struct {
	Dir       string
	Writable  bool
	Available uint64
}

// CheckCacheDir creates dir if needed, verifies that files can be created in
// it and that at least need bytes are available. need == 0 skips the space
// check.
func CheckCacheDir(dir string, need uint64) (*CacheCheck, error) {
	res := &CacheCheck{Dir: dir}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return res, pkgerrors.NewFileSystemError(pkgerrors.CodeExtract, "cannot create cache directory "+dir, err)
	}

	probe, err := os.CreateTemp(dir, ".pkgscope_write_test")
	if err != nil {
		return res, pkgerrors.NewFileSystemError(pkgerrors.CodeExtract, "cache directory is not writable: "+dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())
	res.Writable = true

	usage, err := DiskUsageOf(dir)
	if err != nil {
		// some file systems do not report usage; writability is what matters
		return res, nil
	}
	res.Available = usage.Available
	if need > 0 && usage.Available < need {
		return res, pkgerrors.NewFileSystemError(pkgerrors.CodeExtract,
			fmt.Sprintf("cache directory %s has %s free, extraction may need %s",
				dir, units.BytesSize(float64(usage.Available)), units.BytesSize(float64(need))), nil)
	}
	return res, nil
}
