package unity

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tarEntry struct {
	name string
	body string
	dir  bool
}

func writeTestPackage(t *testing.T, path string, entries []tarEntry) {
	t.Helper()
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)
	for _, e := range entries {
		h := &tar.Header{Name: e.name, Mode: 0644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if e.dir {
			h.Typeflag, h.Mode, h.Size = tar.TypeDir, 0755, 0
		}
		require.NoError(t, tw.WriteHeader(h))
		if !e.dir {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestExtractPackage(t *testing.T) {
	pkg := filepath.Join(t.TempDir(), "test.unitypackage")
	writeTestPackage(t, pkg, []tarEntry{
		{name: "0f1e2d3c/", dir: true},
		{name: "0f1e2d3c/pathname", body: "Assets/Textures/crate.png\n00"},
		{name: "0f1e2d3c/asset", body: "png"},
		{name: "0f1e2d3c/asset.meta", body: "guid: 0f1e2d3c"},
		// no directory entry
		{name: "9a8b7c6d/pathname", body: "Assets/Textures"},
	})

	dst := t.TempDir()
	require.NoError(t, ExtractPackage(pkg, dst))

	b, err := os.ReadFile(filepath.Join(dst, "0f1e2d3c", "asset"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(b))
	assert.FileExists(t, filepath.Join(dst, "0f1e2d3c", "asset.meta"))
	assert.FileExists(t, filepath.Join(dst, "9a8b7c6d", "pathname"))
}

func TestExtractPackageRejectsEscape(t *testing.T) {
	pkg := filepath.Join(t.TempDir(), "evil.unitypackage")
	writeTestPackage(t, pkg, []tarEntry{{name: "../escape", body: "x"}})
	assert.Error(t, ExtractPackage(pkg, t.TempDir()))
}

func TestExtractPackageNotGzip(t *testing.T) {
	pkg := filepath.Join(t.TempDir(), "plain.unitypackage")
	require.NoError(t, os.WriteFile(pkg, []byte("not a package"), 0644))
	assert.Error(t, ExtractPackage(pkg, t.TempDir()))
}
