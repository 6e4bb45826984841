// Package config handles configuration loading and shared data structures.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/woozymasta/windlayer/internal/geo"
	"github.com/woozymasta/windlayer/internal/observation"
	"github.com/woozymasta/windlayer/internal/render"

	"gopkg.in/yaml.v3"
)

// DefaultTileURL is the OpenStreetMap standard tile layer.
const DefaultTileURL = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"

// Config represents the root configuration file structure.
type Config struct {
	Seed        *uint64            `yaml:"seed,omitempty" json:"-"`
	Attribution string             `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	Projection  string             `yaml:"projection,omitempty" json:"projection,omitempty"`
	OutputDir   string             `yaml:"output_dir,omitempty" json:"-"`
	Source      observation.Source `yaml:"source" json:"-"`
	Layers      []render.Layer     `yaml:"layers" json:"layers"`
	Basemap     Basemap            `yaml:"basemap,omitempty" json:"-"`
}

// Basemap configures the cached raster base layer.
type Basemap struct {
	URL       string `yaml:"url,omitempty"`
	Dir       string `yaml:"dir,omitempty"`
	UserAgent string `yaml:"user_agent,omitempty"`
	ZoomLimit int    `yaml:"zoom,omitempty"`
	Disabled  bool   `yaml:"disabled,omitempty"`
}

// Load reads and parses the YAML configuration file from the specified path.
// Source and shader files are resolved relative to the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes a configuration document, applies defaults and validates it.
// Relative source and shader paths are resolved against baseDir.
func Parse(data []byte, baseDir string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if cfg.Source.Path != "" && !filepath.IsAbs(cfg.Source.Path) {
		cfg.Source.Path = filepath.Join(baseDir, cfg.Source.Path)
	}

	for i := range cfg.Layers {
		if cfg.Layers[i].Shader == nil {
			continue
		}
		if err := cfg.Layers[i].Shader.Resolve(baseDir); err != nil {
			return nil, fmt.Errorf("layer %q: %w", cfg.Layers[i].Name, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sort.SliceStable(cfg.Layers, func(i, j int) bool {
		return cfg.Layers[i].ZIndex < cfg.Layers[j].ZIndex
	})

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = "out"
	}
	if c.Basemap.URL == "" {
		c.Basemap.URL = DefaultTileURL
	}
	if c.Basemap.Dir == "" {
		c.Basemap.Dir = filepath.Join(c.OutputDir, "tiles")
	}
	if c.Basemap.UserAgent == "" {
		c.Basemap.UserAgent = "windlayer/1.0"
	}
	for i := range c.Layers {
		if c.Layers[i].Projection == "" {
			c.Layers[i].Projection = c.Projection
		}
	}
}

// Validate checks the source, projections and every layer.
func (c *Config) Validate() error {
	if c.Source.ResolveKind() == "" {
		return errors.New("source: one of inline, url or path is required")
	}
	if len(c.Layers) == 0 {
		return errors.New("no layers configured")
	}

	seen := make(map[string]bool, len(c.Layers))
	for _, l := range c.Layers {
		if seen[l.Name] {
			return fmt.Errorf("duplicate layer %q", l.Name)
		}
		seen[l.Name] = true

		if _, err := geo.ByName(l.Projection); err != nil {
			return fmt.Errorf("layer %q: %w", l.Name, err)
		}
		if err := l.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Layer returns the layer with the given name.
func (c *Config) Layer(name string) (render.Layer, bool) {
	for _, l := range c.Layers {
		if l.Name == name {
			return l, true
		}
	}
	return render.Layer{}, false
}
