package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherBatchesEvents(t *testing.T) {
	dir := t.TempDir()
	calls := make(chan []string, 4)

	w, err := New(dir, Options{
		Recursive: true,
		Debounce:  100 * time.Millisecond,
		Match:     func(p string) bool { return strings.HasSuffix(p, ".apk") },
	}, func(_ context.Context, changed []string) error {
		calls <- changed
		return nil
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.apk"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.apk"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case changed := <-calls:
		assert.ElementsMatch(t, []string{filepath.Join(dir, "a.apk"), filepath.Join(dir, "b.apk")}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherPicksUpMovedInDirectory(t *testing.T) {
	dir := t.TempDir()
	staging := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(staging, "batch", "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "batch", "c.apk"), []byte("c"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "batch", "nested", "d.apk"), []byte("d"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "batch", "readme.md"), []byte("r"), 0o644))

	calls := make(chan []string, 4)
	w, err := New(dir, Options{
		Recursive: true,
		Debounce:  100 * time.Millisecond,
		Match:     func(p string) bool { return strings.HasSuffix(p, ".apk") },
	}, func(_ context.Context, changed []string) error {
		calls <- changed
		return nil
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.Rename(filepath.Join(staging, "batch"), filepath.Join(dir, "batch")))

	select {
	case changed := <-calls:
		assert.ElementsMatch(t, []string{
			filepath.Join(dir, "batch", "c.apk"),
			filepath.Join(dir, "batch", "nested", "d.apk"),
		}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}
}

func TestNewMissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent"), Options{}, nil, nil)
	assert.Error(t, err)
}
