// Package render describes point layers for the browser renderer: symbol
// styles, custom shader programs, their attribute bindings and the packed
// vertex buffers that feed them.
package render

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/woozymasta/windlayer/internal/feature"
)

// Symbol types understood by the renderer.
const (
	SymbolTriangle = "triangle"
	SymbolCircle   = "circle"
	SymbolSquare   = "square"
)

// Symbol is a built-in point style.
type Symbol struct {
	Type  string  `yaml:"type" json:"symbolType"`
	Color string  `yaml:"color" json:"color"`
	Size  float64 `yaml:"size" json:"size"`
	// RotateBy names an attribute holding a rotation in radians.
	RotateBy string `yaml:"rotate_by,omitempty" json:"rotateBy,omitempty"`
}

// ShaderProgram is a vertex/fragment pair in GLSL ES source form. Sources can
// be given inline or as file paths relative to the config file.
type ShaderProgram struct {
	Vertex       string `yaml:"vertex,omitempty" json:"vertexShader"`
	Fragment     string `yaml:"fragment,omitempty" json:"fragmentShader"`
	VertexFile   string `yaml:"vertex_file,omitempty" json:"-"`
	FragmentFile string `yaml:"fragment_file,omitempty" json:"-"`
}

// Resolve reads file-backed sources. Inline sources take priority and a
// missing stage falls back to the default program.
func (p *ShaderProgram) Resolve(baseDir string) error {
	read := func(dst *string, file string) error {
		if *dst != "" || file == "" {
			return nil
		}
		if !filepath.IsAbs(file) {
			file = filepath.Join(baseDir, file)
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		*dst = string(data)
		return nil
	}

	if err := read(&p.Vertex, p.VertexFile); err != nil {
		return err
	}
	if err := read(&p.Fragment, p.FragmentFile); err != nil {
		return err
	}
	if p.Vertex == "" {
		p.Vertex = DefaultVertexShader
	}
	if p.Fragment == "" {
		p.Fragment = DefaultFragmentShader
	}

	return nil
}

// Layer is one point layer of the map. It is either symbol-styled or drawn
// with a custom shader program, never both.
type Layer struct {
	Symbol     *Symbol               `yaml:"symbol,omitempty" json:"symbol,omitempty"`
	Shader     *ShaderProgram        `yaml:"shader,omitempty" json:"shader,omitempty"`
	Name       string                `yaml:"name" json:"name"`
	Projection string                `yaml:"projection,omitempty" json:"projection,omitempty"`
	Attributes feature.AttributeSpec `yaml:"attributes" json:"attributes"`
	ZIndex     int                   `yaml:"z_index" json:"zIndex"`
}

// Validate checks the layer definition and, for shader layers, that the
// program declares exactly the attributes the spec provides.
func (l Layer) Validate() error {
	if l.Name == "" {
		return errors.New("layer has no name")
	}
	if (l.Symbol == nil) == (l.Shader == nil) {
		return fmt.Errorf("layer %q: exactly one of symbol or shader must be set", l.Name)
	}
	if err := l.Attributes.Validate(); err != nil {
		return fmt.Errorf("layer %q: %w", l.Name, err)
	}

	if l.Symbol != nil {
		switch l.Symbol.Type {
		case SymbolTriangle, SymbolCircle, SymbolSquare:
		default:
			return fmt.Errorf("layer %q: unknown symbol type %q", l.Name, l.Symbol.Type)
		}
		if l.Symbol.RotateBy != "" {
			if _, ok := l.Attributes.Lookup(l.Symbol.RotateBy); !ok {
				return fmt.Errorf("layer %q: rotate_by references undeclared attribute %q", l.Name, l.Symbol.RotateBy)
			}
		}
		return nil
	}

	if err := CheckBindings(*l.Shader, l.Attributes); err != nil {
		return fmt.Errorf("layer %q: %w", l.Name, err)
	}
	return nil
}
