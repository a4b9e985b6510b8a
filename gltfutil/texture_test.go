package gltfutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func TestProbeTexturePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	writeTestPNG(t, path, 16, 8)

	info, err := ProbeTexture(path)
	require.NoError(t, err)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, 16, info.Width)
	assert.Equal(t, 8, info.Height)
	assert.Equal(t, "image/png", info.MimeType())
}

func TestProbeTextureBMP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 5))))
	path := filepath.Join(t.TempDir(), "a.bmp")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	info, err := ProbeTexture(path)
	require.NoError(t, err)
	assert.Equal(t, "bmp", info.Format)
	assert.Equal(t, 3, info.Width)
	assert.Equal(t, 5, info.Height)
	assert.Equal(t, "", info.MimeType())
}

func TestProbeTextureMissing(t *testing.T) {
	_, err := ProbeTexture(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestProbeTextureJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 6, 4)), nil))
	path := filepath.Join(t.TempDir(), "a.jpg")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	info, err := ProbeTexture(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", info.Format)
	assert.Equal(t, 6, info.Width)
	assert.Equal(t, 4, info.Height)
	assert.Equal(t, "image/jpeg", info.MimeType())
}

func TestProbeTextureTGA(t *testing.T) {
	// uncompressed 24bit truecolor, 3x2
	header := []byte{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	header = binary.LittleEndian.AppendUint16(header, 3)
	header = binary.LittleEndian.AppendUint16(header, 2)
	header = append(header, 24, 0)
	data := append(header, make([]byte, 3*2*3)...)
	path := filepath.Join(t.TempDir(), "a.TGA")
	require.NoError(t, os.WriteFile(path, data, 0644))

	info, err := ProbeTexture(path)
	require.NoError(t, err)
	assert.Equal(t, "tga", info.Format)
	assert.Equal(t, 3, info.Width)
	assert.Equal(t, 2, info.Height)
	assert.Equal(t, "", info.MimeType())
}

func TestProbeTextureUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))
	_, err := ProbeTexture(path)
	assert.Error(t, err)
}
