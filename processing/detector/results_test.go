package detector

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs", "detect", "predict")
	store := NewResultStore(dir)

	path, err := store.ResultImage()
	require.NoError(t, err)
	assert.Empty(t, path, "missing directory has no result")
	require.NoError(t, store.Clear())

	saved, err := store.Save(imaging.New(4, 4, color.White), "b.jpg")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	_, err = store.Save(imaging.New(4, 4, color.White), "a.png")
	require.NoError(t, err)

	path, err = store.ResultImage()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.png"), path)
	assert.FileExists(t, saved)

	require.NoError(t, store.Clear())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	path, err = store.ResultImage()
	require.NoError(t, err)
	assert.Empty(t, path)
}
