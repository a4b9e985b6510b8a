package gltfutil

import (
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/blezek/tga"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/oov/psd"
	_ "golang.org/x/image/bmp"
)

type TextureInfo struct {
	Format string
	Width  int
	Height int
}

// MimeType returns the glTF image mime type, or "" for formats glTF cannot reference.
func (t *TextureInfo) MimeType() string {
	switch t.Format {
	case "png":
		return "image/png"
	case "jpeg":
		return "image/jpeg"
	}
	return ""
}

// ProbeTexture reads the image header of a texture file.
func ProbeTexture(path string) (*TextureInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err == nil {
		return &TextureInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
	}
	if strings.ToLower(filepath.Ext(path)) != ".tga" {
		return nil, err
	}
	// tga has no magic number, so it is never registered with image.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	cfg, err = tga.DecodeConfig(f)
	if err != nil {
		return nil, err
	}
	return &TextureInfo{Format: "tga", Width: cfg.Width, Height: cfg.Height}, nil
}
