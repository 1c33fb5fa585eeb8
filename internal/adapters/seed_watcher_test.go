package adapters

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedWatcherReloadsOnChange(t *testing.T) {
	dir := writeSeedDir(t, map[string]string{"catalogs/stable.yaml": catalogSeed})
	var reloads atomic.Int32
	watcher, err := NewSeedWatcher(dir, 20*time.Millisecond, func(ctx context.Context) error {
		reloads.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, watcher.Start(t.Context()))
	t.Cleanup(func() { _ = watcher.Stop() })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalogs", "stable.yaml"), []byte(catalogSeed+"\n"), 0644))
	require.Eventually(t, func() bool { return reloads.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)

	// non-seed files are ignored
	before := reloads.Load()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, before, reloads.Load())
}

func TestSeedWatcherStopIsIdempotent(t *testing.T) {
	watcher, err := NewSeedWatcher(t.TempDir(), 0, func(context.Context) error { return nil })
	require.NoError(t, err)
	require.NoError(t, watcher.Start(t.Context()))
	require.NoError(t, watcher.Stop())
	require.NoError(t, watcher.Stop())

	_, err = NewSeedWatcher(t.TempDir(), 0, nil)
	require.Error(t, err)
}
