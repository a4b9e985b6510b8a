package unpack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"

	"github.com/unitypkg/unitypkg/converter"
	"github.com/unitypkg/unitypkg/gltfutil"
	"github.com/unitypkg/unitypkg/unity"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Input is a .unitypackage file or an already extracted package directory.
	Input  string
	Output string
	// FBXToGLTF is the converter executable. Models are converted instead of copied when set.
	FBXToGLTF               string
	GetMaterialsFromPrefabs bool
	IgnoreExtensions        []string
	CopyMetaFiles           bool
	Workers                 int
	KeepTemp                bool
}

type Report struct {
	Catalogued int
	Placed     int
	Converted  int
	Matches    int
	Rebound    int
	Skipped    int
	Errors     []error
}

func (r *Report) Failed() int {
	return len(r.Errors)
}

type Unpacker struct {
	options *Options
}

func NewUnpacker(options *Options) *Unpacker {
	return &Unpacker{options: options}
}

// Prepare validates the input and removes a previous output directory.
func (u *Unpacker) Prepare() error {
	if _, err := os.Stat(u.options.Input); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if u.options.FBXToGLTF != "" {
		if err := converter.CheckExecutable(u.options.FBXToGLTF); err != nil {
			return fmt.Errorf("fbx-to-gltf: %w", err)
		}
	}
	if _, err := os.Stat(u.options.Output); err == nil {
		log.Info().Str("output", u.options.Output).Msg("output directory exists, cleaning up first")
		if err := os.RemoveAll(u.options.Output); err != nil {
			return err
		}
	}
	return nil
}

// Run unpacks the package into the output directory. Failures of single
// assets are collected in the report, the returned error is reserved for
// failures that invalidate the whole run.
func (u *Unpacker) Run(ctx context.Context) (*Report, error) {
	packageDir, temp, err := u.openPackage()
	if err != nil {
		return nil, err
	}
	if temp && !u.options.KeepTemp {
		defer func() {
			if err := os.RemoveAll(packageDir); err != nil {
				log.Warn().Err(err).Str("dir", packageDir).Msg("cannot remove temp dir")
			}
		}()
	}

	report := &Report{}
	var errs unity.ErrorList
	defer func() {
		report.Errors = errs.Errors()
	}()

	catalog, err := unity.BuildCatalog(ctx, unity.CatalogOptions{
		PackageDir:        packageDir,
		OutputDir:         u.options.Output,
		IgnoredExtensions: u.options.IgnoreExtensions,
		Workers:           u.options.Workers,
	})
	if err != nil {
		return nil, err
	}
	report.Catalogued = catalog.Len()
	report.Skipped += catalog.Skipped()
	for _, err := range catalog.Errors() {
		log.Error().Err(err).Msg("scan failed")
		errs.Add(err)
	}
	log.Info().Int("assets", catalog.Len()).Int("skipped", catalog.Skipped()).Msg("catalog built")

	var matches []*unity.Match
	if u.options.GetMaterialsFromPrefabs {
		res, err := unity.Resolve(ctx, catalog, unity.ResolveOptions{Workers: u.options.Workers})
		if err != nil {
			return nil, err
		}
		matches = res.Matches
		report.Matches = len(matches)
		report.Skipped += res.Skipped
		for _, err := range res.Errors() {
			errs.Add(err)
		}
	}

	if err := u.place(ctx, catalog, !temp, report, &errs); err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		if err := u.rebind(ctx, matches, report, &errs); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func (u *Unpacker) openPackage() (string, bool, error) {
	stat, err := os.Stat(u.options.Input)
	if err != nil {
		return "", false, err
	}
	if stat.IsDir() {
		return u.options.Input, false, nil
	}
	tmpDir, err := os.MkdirTemp("", "unitypkg_")
	if err != nil {
		return "", false, err
	}
	log.Info().Str("input", u.options.Input).Str("dir", tmpDir).Msg("extracting")
	if err := unity.ExtractPackage(u.options.Input, tmpDir); err != nil {
		os.RemoveAll(tmpDir)
		return "", false, fmt.Errorf("extract %s: %w", u.options.Input, err)
	}
	return tmpDir, true, nil
}

func (u *Unpacker) place(ctx context.Context, catalog *unity.Catalog, keepSource bool, report *Report, errs *unity.ErrorList) error {
	owners := map[string]string{}
	for _, a := range catalog.All() {
		if other, ok := owners[a.Path]; ok {
			log.Warn().Str("path", a.Path).Str("guid", a.GUID).Str("other", other).Msg("duplicate output path")
		}
		owners[a.Path] = a.GUID
	}

	var conv interface {
		Convert(ctx context.Context, src, dst string) (string, error)
	}
	if u.options.FBXToGLTF != "" {
		conv = converter.NewFBXToGLTFConverter(&converter.FBXToGLTFOption{Tool: u.options.FBXToGLTF})
	}

	var placed, converted atomic.Int64
	err := forEach(ctx, u.options.Workers, catalog.All(), func(ctx context.Context, a *unity.Asset) error {
		logger := log.With().Str("guid", a.GUID).Str("path", a.Path).Logger()
		if err := os.MkdirAll(filepath.Dir(a.Path), 0755); err != nil {
			errs.Add(fmt.Errorf("%s: %w", a.GUID, err))
			return nil
		}
		if conv != nil && a.Kind == unity.KindModel {
			if _, err := conv.Convert(ctx, a.Source, a.Path); err != nil {
				logger.Error().Err(err).Msg("convert failed")
				errs.Add(fmt.Errorf("%s: %w", a.GUID, err))
				return nil
			}
			converted.Add(1)
			logger.Info().Msg("converted")
			return nil
		}
		if err := moveFile(a.Source, a.Path, keepSource); err != nil {
			logger.Error().Err(err).Msg("place failed")
			errs.Add(fmt.Errorf("%s: %w", a.GUID, err))
			return nil
		}
		placed.Add(1)
		logger.Info().Msg("placed")

		if u.options.CopyMetaFiles && a.HasMeta {
			if err := copyFile(a.MetaSource(), a.Path+".meta"); err != nil {
				errs.Add(fmt.Errorf("%s meta: %w", a.GUID, err))
			}
		}
		return nil
	})
	report.Placed = int(placed.Load())
	report.Converted = int(converted.Load())
	return err
}

// rebind applies matches grouped by container, so each container is written by one task.
func (u *Unpacker) rebind(ctx context.Context, matches []*unity.Match, report *Report, errs *unity.ErrorList) error {
	groups := map[string][]*unity.Match{}
	for _, m := range matches {
		c := m.Model.ContainerPath()
		groups[c] = append(groups[c], m)
	}
	containers := make([]string, 0, len(groups))
	for c, ms := range groups {
		sort.Slice(ms, func(i, j int) bool { return ms[i].Prefab.GUID < ms[j].Prefab.GUID })
		containers = append(containers, c)
	}

	var rebound, skipped atomic.Int64
	err := forEach(ctx, u.options.Workers, containers, func(ctx context.Context, container string) error {
		logger := log.With().Str("container", container).Logger()
		if _, err := os.Stat(container); errors.Is(err, os.ErrNotExist) {
			logger.Debug().Msg("container not found, skip rebind")
			skipped.Add(int64(len(groups[container])))
			return nil
		}
		for _, m := range groups[container] {
			err := gltfutil.Rebind(container, m.Texture.Path)
			switch {
			case errors.Is(err, gltfutil.ErrNoRelativePath):
				logger.Warn().Err(err).Str("texture", m.Texture.Path).Msg("skip rebind")
				skipped.Add(1)
			case err != nil:
				logger.Error().Err(err).Str("prefab", m.Prefab.GUID).Msg("rebind failed")
				errs.Add(fmt.Errorf("rebind %s: %w", container, err))
			default:
				rebound.Add(1)
			}
		}
		return nil
	})
	report.Rebound = int(rebound.Load())
	report.Skipped += int(skipped.Load())
	return err
}

// forEach runs fn for every item on a fixed number of workers.
func forEach[T any](ctx context.Context, workers int, items []T, fn func(context.Context, T) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, item := range items {
		item := item
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, item)
		})
	}
	return g.Wait()
}

func moveFile(src, dst string, keepSource bool) error {
	if !keepSource {
		if err := os.Rename(src, dst); err == nil {
			return nil
		}
	}
	return copyFile(src, dst)
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
		return err
	}
	return w.Close()
}
