package unity

import (
	"errors"
	"fmt"
)

// MainTextureProperty is the texture slot used for rebinding.
const MainTextureProperty = "_MainTex"

var (
	ErrNoDocuments = errors.New("no documents in material file")
	ErrNotUnique   = errors.New("more than one document in material file")
	ErrInvalidKind = errors.New("not a material")
)

type Material struct {
	Name           string `yaml:"m_Name"`
	Shader         *Ref   `yaml:"m_Shader"`
	ShaderKeywords string `yaml:"m_ShaderKeywords"`

	LightmapFlags     int               `yaml:"m_LightmapFlags"`
	CustomRenderQueue int               `yaml:"m_CustomRenderQueue"`
	StringTagMap      map[string]string `yaml:"stringTagMap"`

	SavedProperties struct {
		SerializedVersion int                      `yaml:"serializedVersion"`
		TexEnvs           []map[string]*TextureEnv `yaml:"m_TexEnvs"`
		Floats            []map[string]float32     `yaml:"m_Floats"`
		Colors            []map[string]*Color      `yaml:"m_Colors"`
	} `yaml:"m_SavedProperties"`
}

func (m *Material) ObjectType() string { return "Material" }

type Vector2 struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
}

type Color struct {
	R float32 `yaml:"r"`
	G float32 `yaml:"g"`
	B float32 `yaml:"b"`
	A float32 `yaml:"a"`
}

type TextureEnv struct {
	Texture *Ref    `yaml:"m_Texture"`
	Scale   Vector2 `yaml:"m_Scale"`
	Offset  Vector2 `yaml:"m_Offset"`
}

func (m *Material) GetTextureProperty(name string) *TextureEnv {
	for _, t := range m.SavedProperties.TexEnvs {
		if tex, ok := t[name]; ok {
			return tex
		}
	}
	return nil
}

func (m *Material) GetColorProperty(name string) *Color {
	for _, t := range m.SavedProperties.Colors {
		if col, ok := t[name]; ok {
			return col
		}
	}
	return nil
}

func (m *Material) GetFloatProperty(name string) (float32, bool) {
	for _, t := range m.SavedProperties.Floats {
		if v, ok := t[name]; ok {
			return v, true
		}
	}
	return 0, false
}

// MainTexture returns the GUID referenced by the _MainTex slot, or "".
func (m *Material) MainTexture() string {
	tex := m.GetTextureProperty(MainTextureProperty)
	if tex == nil || tex.Texture == nil {
		return ""
	}
	return tex.Texture.GUID
}

// ReadSingleMaterial decodes a .mat file which must contain exactly one Material document.
func ReadSingleMaterial(data []byte) (*Material, error) {
	objects, err := DecodeDocuments(data)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, ErrNoDocuments
	}
	if len(objects) > 1 {
		return nil, fmt.Errorf("%w: %d documents", ErrNotUnique, len(objects))
	}
	for _, obj := range objects {
		mat, ok := obj.(*Material)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidKind, obj.ObjectType())
		}
		return mat, nil
	}
	return nil, ErrNoDocuments
}
