//go:build !windows

package system

import (
	"fmt"
	"syscall"
)

func getDiskUsage(absPath string) (*DiskUsage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(absPath, &stat); err != nil {
		return nil, fmt.Errorf("failed to get disk statistics: %w", err)
	}

	total := uint64(stat.Blocks) * uint64(stat.Bsize)
	free := uint64(stat.Bfree) * uint64(stat.Bsize)
	return &DiskUsage{
		Total:     total,
		Used:      total - free,
		Free:      free,
		Available: uint64(stat.Bavail) * uint64(stat.Bsize),
	}, nil
}
