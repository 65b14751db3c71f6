package localdir

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestAdapter_FolderLayout(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Amphiprion_ocellaris", "a.jpg"))
	touch(t, filepath.Join(root, "Amphiprion_ocellaris", "b.PNG"))
	touch(t, filepath.Join(root, "Amphiprion_ocellaris", "notes.txt"))
	touch(t, filepath.Join(root, "Paracanthurus_hepatus", "c.webp"))

	a := NewAdapter(root)
	items, next, err := a.FetchBatch(context.Background(), "", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "2", next)
	assert.Equal(t, "Amphiprion ocellaris", items[0].ScientificName)
	assert.Equal(t, "jpg", items[0].Format)
	assert.Equal(t, "png", items[1].Format)

	items, next, err = a.FetchBatch(context.Background(), next, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Empty(t, next)
	assert.Equal(t, "Paracanthurus hepatus", items[0].ScientificName)
}

func TestAdapter_Manifest(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, ImagesDir, "nemo.jpg"))
	manifest := `{"id":"1","filename":"nemo.jpg","scientific_name":"Amphiprion ocellaris","tags":["reef"]}
not json
{"id":"2","filename":"missing.jpg","scientific_name":"Amphiprion ocellaris"}
{"id":"3","source_url":"https://example.com/dory.png?x=1","scientific_name":"Paracanthurus hepatus"}
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ManifestFileName), []byte(manifest), 0o644))

	items, next, err := NewAdapter(root).FetchBatch(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, next)
	require.Len(t, items, 2)
	assert.Equal(t, []string{"reef"}, items[0].Tags)
	assert.NotEmpty(t, items[0].LocalPath)
	assert.Equal(t, "https://example.com/dory.png?x=1", items[1].URL)
	assert.Equal(t, "png", items[1].Format)
}

func TestAdapter_InvalidCursor(t *testing.T) {
	_, _, err := NewAdapter(t.TempDir()).FetchBatch(context.Background(), "abc", 1)
	assert.Error(t, err)
}
