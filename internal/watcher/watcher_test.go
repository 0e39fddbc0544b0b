package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDB(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("stub"), 0o600))
}

func TestGuardFiresOnDeletion(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "records.db")
	writeDB(t, dbPath)

	var fired atomic.Int32
	g, err := NewGuard(dbPath, func() { fired.Add(1) })
	require.NoError(t, err)
	require.NoError(t, g.Start())
	defer g.Stop()

	require.NoError(t, os.Remove(dbPath))

	assert.Eventually(t, func() bool {
		return fired.Load() == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestGuardIgnoresAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "records.db")
	writeDB(t, dbPath)

	var fired atomic.Int32
	g, err := NewGuard(dbPath, func() { fired.Add(1) })
	require.NoError(t, err)
	g.debounce = 200 * time.Millisecond
	require.NoError(t, g.Start())
	defer g.Stop()

	// Remove then immediately recreate, as an atomic swap would.
	require.NoError(t, os.Remove(dbPath))
	writeDB(t, dbPath)

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestGuardIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "records.db")
	other := filepath.Join(dir, "settings.yaml")
	writeDB(t, dbPath)
	writeDB(t, other)

	var fired atomic.Int32
	g, err := NewGuard(dbPath, func() { fired.Add(1) })
	require.NoError(t, err)
	require.NoError(t, g.Start())
	defer g.Stop()

	require.NoError(t, os.Remove(other))

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestGuardStartStopIdempotent(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "records.db")
	writeDB(t, dbPath)

	g, err := NewGuard(dbPath, nil)
	require.NoError(t, err)
	require.NoError(t, g.Start())
	require.NoError(t, g.Start())
	require.NoError(t, g.Stop())
	require.NoError(t, g.Stop())
}
