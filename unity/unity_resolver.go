package unity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	opt "github.com/repeale/fp-go/option"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotMaterial       = errors.New("asset is not a material")
	ErrDanglingReference = errors.New("texture not found in package")
)

// Match is a prefab whose model, material and texture have been resolved.
type Match struct {
	Prefab   *Asset
	Model    *Asset
	Material *Asset
	Texture  *Asset
}

// TextureGUID returns the GUID of the material's main texture. An empty
// material file has no texture.
func TextureGUID(asset *Asset) (opt.Option[string], error) {
	if asset.Kind != KindMaterial {
		return opt.None[string](), ErrNotMaterial
	}
	data, err := asset.ReadSource()
	if err != nil {
		return opt.None[string](), err
	}
	mat, err := ReadSingleMaterial(data)
	if errors.Is(err, ErrNoDocuments) {
		log.Debug().Str("material", asset.GUID).Msg("empty material")
		return opt.None[string](), nil
	}
	if err != nil {
		return opt.None[string](), fmt.Errorf("material %s: %w", asset.GUID, err)
	}
	if guid := mat.MainTexture(); guid != "" {
		return opt.Some(guid), nil
	}
	return opt.None[string](), nil
}

type ResolveOptions struct {
	Workers int
}

type Resolution struct {
	Matches []*Match
	Skipped int
	errs    ErrorList
}

// Errors returns per-prefab failures that did not stop the resolution.
func (r *Resolution) Errors() []error {
	return r.errs.Errors()
}

// referencedBy returns the assets whose GUID occurs in content.
func referencedBy(content string, assets []*Asset) []*Asset {
	var found []*Asset
	for _, a := range assets {
		if strings.Contains(content, a.GUID) {
			found = append(found, a)
		}
	}
	return found
}

// Resolve finds, for every prefab, the single model and material it references
// and the texture of that material. Prefabs referencing zero or several models
// or materials are skipped. A texture GUID missing from the catalog aborts the
// resolution with ErrDanglingReference.
func Resolve(ctx context.Context, catalog *Catalog, opts ResolveOptions) (*Resolution, error) {
	models := catalog.OfKind(KindModel)
	materials := catalog.OfKind(KindMaterial)
	prefabs := catalog.OfKind(KindPrefab)

	res := &Resolution{}
	matches := make([]*Match, len(prefabs))
	var skipped atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(opts.Workers))
	for i, prefab := range prefabs {
		i, prefab := i, prefab
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := resolvePrefab(catalog, prefab, models, materials)
			switch {
			case errors.Is(err, ErrDanglingReference):
				return err
			case err != nil:
				res.errs.Add(err)
			case m == nil:
				skipped.Add(1)
			}
			matches[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, m := range matches {
		if m != nil {
			res.Matches = append(res.Matches, m)
		}
	}
	res.Skipped = int(skipped.Load())
	return res, nil
}

// resolvePrefab returns a nil Match for a skipped prefab. Errors other than
// ErrDanglingReference belong to this prefab only.
func resolvePrefab(catalog *Catalog, prefab *Asset, models, materials []*Asset) (*Match, error) {
	logger := log.With().Str("prefab", prefab.GUID).Logger()

	data, err := prefab.ReadSource()
	if err != nil {
		logger.Warn().Err(err).Msg("cannot read prefab")
		return nil, fmt.Errorf("prefab %s: %w", prefab.GUID, err)
	}
	content := string(data)

	foundMaterials := referencedBy(content, materials)
	foundModels := referencedBy(content, models)
	if len(foundMaterials) != 1 || len(foundModels) != 1 {
		logger.Debug().
			Int("materials", len(foundMaterials)).
			Int("models", len(foundModels)).
			Msg("no unique model/material pair")
		return nil, nil
	}

	material := foundMaterials[0]
	texGUID, err := TextureGUID(material)
	if err != nil {
		logger.Warn().Err(err).Str("material", material.GUID).Msg("cannot resolve texture")
		return nil, fmt.Errorf("prefab %s: %w", prefab.GUID, err)
	}
	if opt.IsNone(texGUID) {
		logger.Debug().Str("material", material.GUID).Msg("material has no main texture")
		return nil, nil
	}

	texture := catalog.Get(texGUID.Value)
	if texture == nil {
		return nil, fmt.Errorf("%w: %s (material %s, prefab %s)", ErrDanglingReference, texGUID.Value, material.GUID, prefab.GUID)
	}

	logger.Info().
		Str("model", foundModels[0].Path).
		Str("material", material.Path).
		Str("texture", texture.Path).
		Msg("matched")
	return &Match{
		Prefab:   prefab,
		Model:    foundModels[0],
		Material: material,
		Texture:  texture,
	}, nil
}
