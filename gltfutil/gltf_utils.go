package gltfutil

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
)

var ErrContainerTooLarge = errors.New("glb exceeds 4GiB")

const (
	glbMagic             = 0x46546C67 // "glTF"
	glbVersion           = 2
	glbHeaderLength      = 12
	glbChunkHeaderLength = 8
	glbChunkJSON         = 0x4E4F534A // "JSON"
	glbChunkBIN          = 0x004E4942 // "BIN\x00"
)

type glbHeader struct {
	Magic   uint32
	Version uint32
	Length  uint32
}

type glbChunkHeader struct {
	Length uint32
	Type   uint32
}

func Load(path string) (*gltf.Document, error) {
	return gltf.Open(path)
}

// AlignChunk rounds n up to the 4 byte boundary required between GLB chunks.
func AlignChunk(n uint64) uint64 {
	return (n + 3) &^ 3
}

// containerLength returns the total GLB length for chunks of the given (unpadded) sizes.
func containerLength(jsonLen, binLen uint64) (uint32, error) {
	if jsonLen > math.MaxUint32 || binLen > math.MaxUint32 {
		return 0, ErrContainerTooLarge
	}
	total := glbHeaderLength + glbChunkHeaderLength + AlignChunk(jsonLen)
	if binLen > 0 {
		total += glbChunkHeaderLength + AlignChunk(binLen)
	}
	if total > math.MaxUint32 {
		return 0, ErrContainerTooLarge
	}
	return uint32(total), nil
}

// EncodeBinary serializes doc as GLB. The JSON chunk is written compactly and
// padded with spaces, the first buffer becomes the BIN chunk.
func EncodeBinary(doc *gltf.Document) ([]byte, error) {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var bin []byte
	if len(doc.Buffers) > 0 && doc.Buffers[0].URI == "" {
		bin = doc.Buffers[0].Data
	}
	total, err := containerLength(uint64(len(jsonData)), uint64(len(bin)))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(int(total))
	binary.Write(&buf, binary.LittleEndian, glbHeader{Magic: glbMagic, Version: glbVersion, Length: total})

	jsonLen := AlignChunk(uint64(len(jsonData)))
	binary.Write(&buf, binary.LittleEndian, glbChunkHeader{Length: uint32(jsonLen), Type: glbChunkJSON})
	buf.Write(jsonData)
	buf.Write(bytes.Repeat([]byte{' '}, int(jsonLen)-len(jsonData)))

	if len(bin) > 0 {
		binLen := AlignChunk(uint64(len(bin)))
		binary.Write(&buf, binary.LittleEndian, glbChunkHeader{Length: uint32(binLen), Type: glbChunkBIN})
		buf.Write(bin)
		buf.Write(make([]byte, int(binLen)-len(bin)))
	}
	return buf.Bytes(), nil
}

// SaveBinary writes doc to path through a temporary file, so a failed write
// leaves the previous file untouched.
func SaveBinary(doc *gltf.Document, path string) error {
	data, err := EncodeBinary(doc)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
