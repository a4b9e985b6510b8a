package converter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
)

type FBXToGLTFOption struct {
	// Tool is the FBX2glTF executable.
	Tool string
}

type fbxToGltf struct {
	options *FBXToGLTFOption
}

func NewFBXToGLTFConverter(options *FBXToGLTFOption) *fbxToGltf {
	if options == nil {
		options = &FBXToGLTFOption{}
	}
	return &fbxToGltf{
		options: options,
	}
}

// Convert converts src into a binary glTF next to dst (dst with a .glb extension).
func (c *fbxToGltf) Convert(ctx context.Context, src, dst string) (string, error) {
	out := strings.TrimSuffix(dst, filepath.Ext(dst))
	cmd := exec.CommandContext(ctx, c.options.Tool, "--input", src, "-b", "--output", out)
	log.Debug().Strs("args", cmd.Args).Msg("fbx2gltf")
	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		log.Debug().Str("src", src).Str("output", string(output)).Msg("fbx2gltf output")
	}
	if err != nil {
		return "", fmt.Errorf("fbx2gltf %s: %w", src, err)
	}
	glb := out + ".glb"
	if _, err := os.Stat(glb); err != nil {
		return "", fmt.Errorf("fbx2gltf did not produce %s: %w", glb, err)
	}
	return glb, nil
}

// CheckExecutable reports whether path can be run as the converter.
func CheckExecutable(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}
	if stat.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS == "windows" {
		if !strings.HasSuffix(strings.ToLower(path), ".exe") {
			return fmt.Errorf("%s is not an .exe", path)
		}
		return nil
	}
	if stat.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}
