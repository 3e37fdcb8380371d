package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLayout(t *testing.T) {
	root := t.TempDir()
	store := NewPhotoStore(root)

	now := time.Date(2024, 1, 5, 13, 45, 30, 0, time.UTC)
	webPath, err := store.Save(42, []byte("jpeg-bytes"), now)
	require.NoError(t, err)
	assert.Equal(t, "/static/images/2024-01-05/42/13-45-30.jpg", webPath)

	data, err := os.ReadFile(filepath.Join(root, "2024-01-05", "42", "13-45-30.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestDiskPathRoundTrip(t *testing.T) {
	store := NewPhotoStore(t.TempDir())

	webPath, err := store.Save(7, []byte("x"), time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.True(t, store.Exists(webPath))
	_, err = os.Stat(store.DiskPath(webPath))
	assert.NoError(t, err)
}

func TestRemove(t *testing.T) {
	store := NewPhotoStore(t.TempDir())

	webPath, err := store.Save(7, []byte("x"), time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.NoError(t, store.Remove(webPath))
	assert.False(t, store.Exists(webPath))

	// Removing again is not an error.
	assert.NoError(t, store.Remove(webPath))
}

func TestSamePhotoTwiceInOneSecondOverwrites(t *testing.T) {
	store := NewPhotoStore(t.TempDir())
	now := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	first, err := store.Save(7, []byte("one"), now)
	require.NoError(t, err)
	second, err := store.Save(7, []byte("two"), now)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	data, err := os.ReadFile(store.DiskPath(second))
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)
}
