package feature

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSpec is returned when an AttributeSpec cannot be used at all.
var ErrInvalidSpec = errors.New("invalid attribute spec")

// ReservedName is the GeoJSON property carrying the input record index.
const ReservedName = "index"

// AttributeDef declares one attribute a layer binds to its shader.
type AttributeDef struct {
	// Name is the feature property key.
	Name string `yaml:"name" json:"name"`
	// Input is the shader attribute name, a_<name> when empty.
	Input string `yaml:"input,omitempty" json:"input"`
	// Derive names the derivation computing the value.
	Derive string `yaml:"derive" json:"derive"`
	// Value parameterizes constant, random_color and speed_color.
	Value []float64 `yaml:"value,omitempty" json:"value,omitempty"`
	// Arity is the number of floats, 1 to 4.
	Arity int `yaml:"arity" json:"arity"`
}

// ShaderInput returns the shader attribute name the value binds to.
func (d AttributeDef) ShaderInput() string {
	if d.Input != "" {
		return d.Input
	}
	return "a_" + d.Name
}

// AttributeSpec enumerates the attributes every feature of a layer carries.
type AttributeSpec []AttributeDef

// Names returns the attribute names in declaration order.
func (s AttributeSpec) Names() []string {
	names := make([]string, len(s))
	for i, d := range s {
		names[i] = d.Name
	}
	return names
}

// Lookup finds a declaration by attribute name.
func (s AttributeSpec) Lookup(name string) (AttributeDef, bool) {
	for _, d := range s {
		if d.Name == name {
			return d, true
		}
	}
	return AttributeDef{}, false
}

// Stride is the number of floats one feature occupies when packed.
func (s AttributeSpec) Stride() int {
	n := 0
	for _, d := range s {
		n += d.Arity
	}
	return n
}

// Validate checks the declarations against the built-in derivations.
func (s AttributeSpec) Validate() error {
	return s.validate(builtin)
}

func (s AttributeSpec) validate(registry map[string]Derivation) error {
	names := make(map[string]bool, len(s))
	inputs := make(map[string]bool, len(s))

	for i, d := range s {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("%w: attribute %d has no name", ErrInvalidSpec, i)
		}
		if d.Name == ReservedName {
			return fmt.Errorf("%w: attribute name %q is reserved", ErrInvalidSpec, d.Name)
		}
		if names[d.Name] {
			return fmt.Errorf("%w: duplicate attribute %q", ErrInvalidSpec, d.Name)
		}
		names[d.Name] = true

		if inputs[d.ShaderInput()] {
			return fmt.Errorf("%w: duplicate shader input %q", ErrInvalidSpec, d.ShaderInput())
		}
		inputs[d.ShaderInput()] = true

		if d.Arity < 1 || d.Arity > 4 {
			return fmt.Errorf("%w: attribute %q arity %d not in 1..4", ErrInvalidSpec, d.Name, d.Arity)
		}
		if _, ok := registry[d.Derive]; !ok {
			return fmt.Errorf("%w: attribute %q uses unknown derivation %q", ErrInvalidSpec, d.Name, d.Derive)
		}
		if d.Derive == DeriveConstant && len(d.Value) == 0 {
			return fmt.Errorf("%w: constant attribute %q has no value", ErrInvalidSpec, d.Name)
		}
	}

	return nil
}
