package gltfutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

var ErrNoRelativePath = errors.New("texture is not reachable from container directory")

// Rebind points every image of the GLB container at texturePath. The texture is
// copied next to the container unless a file with the same name is already
// there, and the image URI is set to its base name.
func Rebind(containerPath, texturePath string) error {
	doc, err := Load(containerPath)
	if err != nil {
		return fmt.Errorf("load %s: %w", containerPath, err)
	}

	dir := filepath.Dir(containerPath)
	if _, err := filepath.Rel(dir, texturePath); err != nil {
		return fmt.Errorf("%w: %v", ErrNoRelativePath, err)
	}
	if len(doc.Images) == 0 {
		log.Debug().Str("container", containerPath).Msg("no images to rebind")
		return nil
	}

	name := filepath.Base(texturePath)
	dst := filepath.Join(dir, name)
	if _, err := os.Stat(dst); errors.Is(err, os.ErrNotExist) {
		if err := copyFile(texturePath, dst); err != nil {
			return fmt.Errorf("copy texture: %w", err)
		}
	} else if err != nil {
		return err
	}

	mimeType := ""
	if info, err := ProbeTexture(dst); err != nil {
		log.Warn().Err(err).Str("texture", dst).Msg("cannot read texture header")
	} else {
		mimeType = info.MimeType()
		if mimeType == "" {
			log.Warn().Str("texture", dst).Str("format", info.Format).Msg("texture format is not supported by glTF viewers")
		}
		log.Debug().Str("texture", dst).Int("width", info.Width).Int("height", info.Height).Msg("texture")
	}

	for _, img := range doc.Images {
		img.URI = name
		img.BufferView = nil
		img.MimeType = mimeType
	}

	if err := SaveBinary(doc, containerPath); err != nil {
		return fmt.Errorf("save %s: %w", containerPath, err)
	}
	log.Info().Str("container", containerPath).Str("texture", name).Int("images", len(doc.Images)).Msg("rebound")
	return nil
}

func copyFile(src, dst string) error {
	r, err := os.Open(src)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		os.Remove(dst)
		return err
	}
	return w.Close()
}
