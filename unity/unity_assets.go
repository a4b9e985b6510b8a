package unity

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	opt "github.com/repeale/fp-go/option"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
)

type Kind int

const (
	KindOther Kind = iota
	KindModel
	KindMaterial
	KindPrefab
	KindScene
)

var kindByExtension = map[string]Kind{
	"fbx":    KindModel,
	"mat":    KindMaterial,
	"prefab": KindPrefab,
	"unity":  KindScene,
}

func (k Kind) String() string {
	switch k {
	case KindModel:
		return "Model"
	case KindMaterial:
		return "Material"
	case KindPrefab:
		return "Prefab"
	case KindScene:
		return "Scene"
	}
	return "Other"
}

// Asset is an object extracted from a .unitypackage.
type Asset struct {
	GUID string
	// Path is the destination of the object in the output tree.
	Path string
	// Source is the extracted payload (<package>/<guid>/asset).
	Source string
	// Extension is the lower-cased suffix of Path.
	Extension opt.Option[string]
	HasMeta   bool
	Kind      Kind
}

func (a *Asset) MetaSource() string {
	return a.Source + ".meta"
}

func (a *Asset) ReadSource() ([]byte, error) {
	return os.ReadFile(a.Source)
}

// ContainerPath returns the .glb path a converter writes next to Path.
func (a *Asset) ContainerPath() string {
	return strings.TrimSuffix(a.Path, filepath.Ext(a.Path)) + ".glb"
}

func splitExtension(path string) (string, bool) {
	base := filepath.Base(path)
	i := strings.LastIndexByte(base, '.')
	if i <= 0 {
		return "", false
	}
	return base[i+1:], true
}

// Catalog is an immutable set of assets indexed by GUID.
type Catalog struct {
	assets  []*Asset
	byGUID  map[string]*Asset
	skipped int
	errs    []error
}

func NewCatalog(assets []*Asset) *Catalog {
	c := &Catalog{byGUID: make(map[string]*Asset, len(assets))}
	for _, a := range assets {
		if _, ok := c.byGUID[a.GUID]; ok {
			continue
		}
		c.byGUID[a.GUID] = a
		c.assets = append(c.assets, a)
	}
	return c
}

func (c *Catalog) Get(guid string) *Asset {
	return c.byGUID[guid]
}

func (c *Catalog) All() []*Asset {
	return c.assets
}

func (c *Catalog) Len() int {
	return len(c.assets)
}

func (c *Catalog) OfKind(kind Kind) []*Asset {
	var assets []*Asset
	for _, a := range c.assets {
		if a.Kind == kind {
			assets = append(assets, a)
		}
	}
	return assets
}

// Skipped is the number of placeholder or ignored folders.
func (c *Catalog) Skipped() int {
	return c.skipped
}

// Errors returns the per-folder failures encountered while scanning.
func (c *Catalog) Errors() []error {
	return c.errs
}

type CatalogOptions struct {
	PackageDir        string
	OutputDir         string
	IgnoredExtensions []string
	Workers           int
}

type scanResult struct {
	asset   *Asset
	skipped bool
	err     error
}

// BuildCatalog scans an extracted package. Only an unreadable PackageDir is fatal,
// failures of individual folders are available from Catalog.Errors.
func BuildCatalog(ctx context.Context, opts CatalogOptions) (*Catalog, error) {
	ent, err := os.ReadDir(opts.PackageDir)
	if err != nil {
		return nil, fmt.Errorf("read package dir: %w", err)
	}
	ignored := map[string]bool{}
	for _, ext := range opts.IgnoredExtensions {
		ignored[ext] = true
	}

	results := make([]scanResult, len(ent))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(opts.Workers))
	for i, f := range ent {
		if !f.IsDir() {
			results[i].skipped = true
			continue
		}
		i, guid := i, f.Name()
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			asset, err := scanAssetDir(opts.PackageDir, opts.OutputDir, guid, ignored)
			results[i] = scanResult{asset: asset, skipped: asset == nil && err == nil, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var assets []*Asset
	var errs []error
	skipped := 0
	for _, r := range results {
		switch {
		case r.err != nil:
			errs = append(errs, r.err)
		case r.skipped:
			skipped++
		case r.asset != nil:
			assets = append(assets, r.asset)
		}
	}
	c := NewCatalog(assets)
	c.skipped, c.errs = skipped, errs
	return c, nil
}

func scanAssetDir(packageDir, outputDir, guid string, ignored map[string]bool) (*Asset, error) {
	dir := filepath.Join(packageDir, guid)
	pathname, err := readPathname(filepath.Join(dir, "pathname"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", guid, err)
	}

	source := filepath.Join(dir, "asset")
	if _, err := os.Stat(source); errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("guid", guid).Str("pathname", pathname).Msg("placeholder without asset")
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("%s: %w", guid, err)
	}

	outputPath := filepath.Join(outputDir, pathname)
	if rel, err := filepath.Rel(outputDir, outputPath); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%s: pathname escapes output dir: %q", guid, pathname)
	}

	asset := &Asset{
		GUID:      guid,
		Path:      outputPath,
		Source:    source,
		Extension: opt.None[string](),
		Kind:      KindOther,
	}
	if _, err := os.Stat(asset.MetaSource()); err == nil {
		asset.HasMeta = true
	}
	raw, ok := splitExtension(outputPath)
	if ignored[raw] {
		log.Debug().Str("guid", guid).Str("path", outputPath).Msg("ignored extension")
		return nil, nil
	}
	if ok {
		ext := strings.ToLower(raw)
		asset.Extension = opt.Some(ext)
		if kind, found := kindByExtension[ext]; found {
			asset.Kind = kind
		}
	}
	return asset, nil
}

// readPathname returns the first line of a pathname file.
func readPathname(name string) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("empty pathname")
	}
	line := strings.TrimRight(sc.Text(), "\r")
	if line == "" {
		return "", fmt.Errorf("empty pathname")
	}
	return norm.NFC.String(filepath.FromSlash(line)), nil
}

func workerCount(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}
