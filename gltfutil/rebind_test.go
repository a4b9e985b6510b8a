package gltfutil

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestRebind(t *testing.T) {
	root := t.TempDir()
	container := filepath.Join(root, "Models", "crate.glb")
	texture := filepath.Join(root, "Textures", "tex.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(container), 0755))
	writeTestGLB(t, container, "old.png")
	writeTestPNG(t, texture, 4, 2)

	require.NoError(t, Rebind(container, texture))

	assert.FileExists(t, filepath.Join(root, "Models", "tex.png"))
	doc, err := Load(container)
	require.NoError(t, err)
	require.Len(t, doc.Images, 1)
	assert.Equal(t, "tex.png", doc.Images[0].URI)
	assert.Equal(t, "image/png", doc.Images[0].MimeType)

	b, err := os.ReadFile(container)
	require.NoError(t, err)
	jsonLen := binary.LittleEndian.Uint32(b[12:16])
	jsonData := bytes.TrimRight(b[20:20+jsonLen], " ")
	assert.Equal(t, AlignChunk(uint64(len(jsonData))), uint64(jsonLen))
	binLen := binary.LittleEndian.Uint32(b[20+jsonLen : 24+jsonLen])
	assert.Equal(t, uint32(12+8+jsonLen+8+binLen), binary.LittleEndian.Uint32(b[8:12]))
	assert.Equal(t, uint32(len(b)), binary.LittleEndian.Uint32(b[8:12]))

	var raw struct {
		Images []struct {
			URI string `json:"uri"`
		} `json:"images"`
	}
	require.NoError(t, json.Unmarshal(jsonData, &raw))
	assert.Equal(t, "tex.png", raw.Images[0].URI)
}

func TestRebindIdempotent(t *testing.T) {
	root := t.TempDir()
	container := filepath.Join(root, "crate.glb")
	texture := filepath.Join(root, "src", "tex.png")
	writeTestGLB(t, container, "old.png", "other.jpg")
	writeTestPNG(t, texture, 2, 2)

	require.NoError(t, Rebind(container, texture))
	first, err := os.ReadFile(container)
	require.NoError(t, err)
	copied, err := os.Stat(filepath.Join(root, "tex.png"))
	require.NoError(t, err)

	require.NoError(t, Rebind(container, texture))
	second, err := os.ReadFile(container)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	again, err := os.Stat(filepath.Join(root, "tex.png"))
	require.NoError(t, err)
	assert.Equal(t, copied.ModTime(), again.ModTime())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 3) // crate.glb, tex.png, src
}

func TestRebindExistingTextureNotOverwritten(t *testing.T) {
	root := t.TempDir()
	container := filepath.Join(root, "crate.glb")
	writeTestGLB(t, container, "old.png")
	writeTestPNG(t, filepath.Join(root, "src", "tex.png"), 2, 2)
	require.NoError(t, os.WriteFile(filepath.Join(root, "tex.png"), []byte("already here"), 0644))

	require.NoError(t, Rebind(container, filepath.Join(root, "src", "tex.png")))
	b, err := os.ReadFile(filepath.Join(root, "tex.png"))
	require.NoError(t, err)
	assert.Equal(t, "already here", string(b))
}

func TestRebindNoRelativePath(t *testing.T) {
	root := t.TempDir()
	container := filepath.Join(root, "crate.glb")
	writeTestGLB(t, container, "old.png")
	before, err := os.ReadFile(container)
	require.NoError(t, err)

	err = Rebind(container, "relative/tex.png")
	assert.True(t, errors.Is(err, ErrNoRelativePath))
	after, err := os.ReadFile(container)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRebindMissingContainer(t *testing.T) {
	root := t.TempDir()
	assert.Error(t, Rebind(filepath.Join(root, "missing.glb"), filepath.Join(root, "tex.png")))
}
