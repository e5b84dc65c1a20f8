package system

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/huanfeng/pkgscope/internal/errors"
)

func TestCheckCacheDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache", "nested")

	res, err := CheckCacheDir(dir, 0)
	require.NoError(t, err)
	assert.True(t, res.Writable)
	assert.DirExists(t, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file is removed")

	if res.Available > 0 {
		_, err = CheckCacheDir(dir, 1<<62)
		assert.True(t, errors.Is(err, pkgerrors.ErrFileSystem))
	}
}

func TestCheckCacheDirNotCreatable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	res, err := CheckCacheDir(filepath.Join(file, "sub"), 0)
	assert.True(t, errors.Is(err, pkgerrors.ErrFileSystem))
	assert.False(t, res.Writable)
}

func TestDiskUsage(t *testing.T) {
	u, err := DiskUsageOf(t.TempDir())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, u.Total, u.Free)
	assert.GreaterOrEqual(t, u.UsedPct(), 0.0)
	assert.Zero(t, (&DiskUsage{}).UsedPct())
}
