package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/woozymasta/windlayer/internal/render"
)

const sampleConfig = `
projection: web-mercator
seed: 7
source:
  inline:
    - coord: {xPos: -8.711, yPos: 30.35}
      wind: {speed: 59.58, deg: 8}
    - coord: {xPos: 4, yPos: -10.237}
      wind: {speed: 42.4, deg: 50}
layers:
  - name: glsl
    z_index: 10
    projection: clip-space
    shader:
      vertex_file: points.vert
    attributes:
      - {name: coords, derive: coords, arity: 2}
      - {name: color, derive: hemisphere_color, arity: 4}
  - name: triangles
    z_index: 2
    symbol: {type: triangle, size: 24, color: blue, rotate_by: rotation}
    attributes:
      - {name: rotation, derive: rotation, arity: 1}
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "points.vert"), []byte(render.DefaultVertexShader), 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Seed == nil || *cfg.Seed != 7 {
		t.Errorf("seed = %v", cfg.Seed)
	}
	if len(cfg.Source.Inline) != 2 {
		t.Errorf("inline records = %d", len(cfg.Source.Inline))
	}
	if cfg.Layers[0].Name != "triangles" || cfg.Layers[1].Name != "glsl" {
		t.Errorf("layers not sorted by z_index: %s, %s", cfg.Layers[0].Name, cfg.Layers[1].Name)
	}
	if cfg.Layers[0].Projection != "web-mercator" {
		t.Errorf("default projection not applied: %q", cfg.Layers[0].Projection)
	}

	glsl, ok := cfg.Layer("glsl")
	if !ok {
		t.Fatal("glsl layer missing")
	}
	if glsl.Shader.Vertex != render.DefaultVertexShader {
		t.Error("vertex shader file not resolved")
	}
	if glsl.Shader.Fragment != render.DefaultFragmentShader {
		t.Error("missing fragment shader did not fall back to default")
	}
	if cfg.Basemap.URL != DefaultTileURL || cfg.Basemap.Dir != filepath.Join("out", "tiles") {
		t.Errorf("basemap defaults = %+v", cfg.Basemap)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"no source", "layers: [{name: a, symbol: {type: circle}}]", "source"},
		{"no layers", "source: {url: http://x}", "no layers"},
		{"duplicate", "source: {url: http://x}\nlayers: [{name: a, symbol: {type: circle}}, {name: a, symbol: {type: circle}}]", "duplicate"},
		{"projection", "source: {url: http://x}\nlayers: [{name: a, projection: polar, symbol: {type: circle}}]", "projection"},
		{"unbound shader", "source: {url: http://x}\nlayers: [{name: a, shader: {}}]", "binding"},
		{"yaml", "layers: [", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), t.TempDir())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParseSourcePath(t *testing.T) {
	base := t.TempDir()
	abs := filepath.Join(t.TempDir(), "wind.json")

	tests := []struct {
		name string
		path string
		want string
	}{
		{"relative", "data/wind.json", filepath.Join(base, "data", "wind.json")},
		{"absolute", abs, abs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := "source: {path: " + tt.path + "}\nlayers: [{name: a, symbol: {type: circle}}]"
			cfg, err := Parse([]byte(doc), base)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Source.Path != tt.want {
				t.Errorf("source path = %q, want %q", cfg.Source.Path, tt.want)
			}
		})
	}
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(cfg.Source.Path); err != nil {
		t.Errorf("example source not resolved next to the config: %v", err)
	}
}
