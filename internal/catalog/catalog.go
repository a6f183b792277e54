// Package catalog resolves airway model ids to on-disk centerline assets via
// a manifest file, with optional live reload so operators can add models
// without restarting the workstation.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"go.viam.com/rdk/logging"
)

// ManifestName is the manifest file expected inside the catalog directory.
const ManifestName = "manifest.json"

// ErrModelNotFound is returned when a lookup id is absent from the manifest.
var ErrModelNotFound = errors.New("model not found in catalog")

// Complexity grades how much anatomical detail a model carries.
type Complexity int

const (
	ComplexitySimplified Complexity = iota
	ComplexityStandard
	ComplexityDetailed
	ComplexityResearch
)

func (c Complexity) String() string {
	switch c {
	case ComplexitySimplified:
		return "simplified"
	case ComplexityStandard:
		return "standard"
	case ComplexityDetailed:
		return "detailed"
	case ComplexityResearch:
		return "research"
	default:
		return "unknown"
	}
}

func complexityFromString(s string) (Complexity, error) {
	switch s {
	case "simplified":
		return ComplexitySimplified, nil
	case "standard":
		return ComplexityStandard, nil
	case "detailed":
		return ComplexityDetailed, nil
	case "research":
		return ComplexityResearch, nil
	default:
		return ComplexityStandard, fmt.Errorf("unknown complexity %q", s)
	}
}

// AnatomicalVariant distinguishes the patient anatomy a model represents.
type AnatomicalVariant int

const (
	VariantNormal AnatomicalVariant = iota
	VariantPathological
	VariantPediatric
	VariantGeriatric
	VariantSurgical
)

func (v AnatomicalVariant) String() string {
	switch v {
	case VariantNormal:
		return "normal"
	case VariantPathological:
		return "pathological"
	case VariantPediatric:
		return "pediatric"
	case VariantGeriatric:
		return "geriatric"
	case VariantSurgical:
		return "surgical"
	default:
		return "unknown"
	}
}

func variantFromString(s string) (AnatomicalVariant, error) {
	switch s {
	case "normal":
		return VariantNormal, nil
	case "pathological":
		return VariantPathological, nil
	case "pediatric":
		return VariantPediatric, nil
	case "geriatric":
		return VariantGeriatric, nil
	case "surgical":
		return VariantSurgical, nil
	default:
		return VariantNormal, fmt.Errorf("unknown anatomical variant %q", s)
	}
}

// Format is the on-disk shape of a centerline asset.
type Format int

const (
	FormatCSV Format = iota
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

func formatFromString(s string) (Format, error) {
	switch s {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatCSV, fmt.Errorf("unknown asset format %q", s)
	}
}

// ModelDescriptor describes one loadable airway model.
type ModelDescriptor struct {
	ID          string
	Name        string
	Description string
	Complexity  Complexity
	Variant     AnatomicalVariant
	Format      Format
	AssetPath   string // Relative to the catalog directory.
	Tags        []string
}

// Catalog is a reloadable view of the manifest. Reads are safe concurrently
// with a background reload.
type Catalog struct {
	dir    string
	logger logging.Logger

	mu     sync.RWMutex
	models map[string]ModelDescriptor
}

// Load reads dir/manifest.json and returns the catalog.
func Load(dir string, logger logging.Logger) (*Catalog, error) {
	c := &Catalog{dir: dir, logger: logger}
	if err := c.reload(); err != nil {
		return nil, err
	}
	return c, nil
}

type manifestDocument struct {
	Models []modelDocument `mapstructure:"models"`
}

type modelDocument struct {
	ID          string   `mapstructure:"id"`
	Name        string   `mapstructure:"name"`
	Description string   `mapstructure:"description"`
	Complexity  string   `mapstructure:"complexity"`
	Variant     string   `mapstructure:"variant"`
	Format      string   `mapstructure:"format"`
	Asset       string   `mapstructure:"asset"`
	Tags        []string `mapstructure:"tags"`
}

func (c *Catalog) reload() error {
	path := filepath.Join(c.dir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	var doc manifestDocument
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &doc,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("decode manifest: %w", err)
	}

	models := make(map[string]ModelDescriptor, len(doc.Models))
	for i, m := range doc.Models {
		desc, err := toDescriptor(m)
		if err != nil {
			return fmt.Errorf("manifest model %d: %w", i, err)
		}
		if _, dup := models[desc.ID]; dup {
			return fmt.Errorf("manifest model %d: duplicate id %q", i, desc.ID)
		}
		models[desc.ID] = desc
	}

	c.mu.Lock()
	c.models = models
	c.mu.Unlock()
	return nil
}

func toDescriptor(m modelDocument) (ModelDescriptor, error) {
	if m.ID == "" {
		return ModelDescriptor{}, errors.New("missing id")
	}
	if m.Asset == "" {
		return ModelDescriptor{}, fmt.Errorf("model %q: missing asset path", m.ID)
	}
	complexity, err := complexityFromString(m.Complexity)
	if err != nil {
		return ModelDescriptor{}, fmt.Errorf("model %q: %w", m.ID, err)
	}
	variant, err := variantFromString(m.Variant)
	if err != nil {
		return ModelDescriptor{}, fmt.Errorf("model %q: %w", m.ID, err)
	}
	format, err := formatFromString(m.Format)
	if err != nil {
		return ModelDescriptor{}, fmt.Errorf("model %q: %w", m.ID, err)
	}
	return ModelDescriptor{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Complexity:  complexity,
		Variant:     variant,
		Format:      format,
		AssetPath:   m.Asset,
		Tags:        m.Tags,
	}, nil
}

// Lookup returns the descriptor for a model id.
func (c *Catalog) Lookup(id string) (ModelDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	desc, ok := c.models[id]
	if !ok {
		return ModelDescriptor{}, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	return desc, nil
}

// List returns every descriptor ordered by id.
func (c *Catalog) List() []ModelDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	models := make([]ModelDescriptor, 0, len(c.models))
	for _, m := range c.models {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models
}

// AssetFile returns the absolute path of a descriptor's centerline asset.
func (c *Catalog) AssetFile(desc ModelDescriptor) string {
	return filepath.Join(c.dir, desc.AssetPath)
}

// Watch reloads the catalog whenever the manifest changes on disk, debouncing
// rapid write bursts. A failed reload keeps the previous catalog contents.
// Blocks until ctx is cancelled.
func (c *Catalog) Watch(ctx context.Context, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(c.dir); err != nil {
		return fmt.Errorf("watch %s: %w", c.dir, err)
	}

	timer := time.NewTimer(debounce)
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != ManifestName {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Rename == fsnotify.Rename {
				pending = true
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warnf("catalog watcher error: %v", err)
		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if err := c.reload(); err != nil {
				c.logger.Warnf("manifest reload failed, keeping previous catalog: %v", err)
				continue
			}
			c.logger.Infof("catalog reloaded: %d models", c.Len())
		}
	}
}

// Len returns the number of models currently in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}
