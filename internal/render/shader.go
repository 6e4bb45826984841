package render

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/woozymasta/windlayer/internal/feature"
)

var (
	// ErrUnboundAttribute reports a shader attribute no declaration feeds.
	ErrUnboundAttribute = errors.New("shader attribute has no binding")
	// ErrUndeclaredAttribute reports a binding the shader never declares.
	ErrUndeclaredAttribute = errors.New("binding not declared by shader")
	// ErrAttributeType reports a binding whose arity differs from the GLSL type.
	ErrAttributeType = errors.New("attribute type mismatch")
	// ErrVarying reports a fragment input the vertex shader does not write.
	ErrVarying = errors.New("varying not declared by vertex shader")
)

// DefaultVertexShader draws each point at its clip space coords with its color.
const DefaultVertexShader = `precision mediump float;

attribute vec2 a_coords;
attribute vec4 a_color;

varying vec4 v_color;

void main() {
  v_color = a_color;
  gl_PointSize = 4.0;
  gl_Position = vec4(a_coords, 0.0, 1.0);
}
`

// DefaultFragmentShader paints the interpolated color.
const DefaultFragmentShader = `precision mediump float;

varying vec4 v_color;

void main() {
  gl_FragColor = v_color;
}
`

var (
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment  = regexp.MustCompile(`//[^\n]*`)

	qualifiers = `(?:(?:lowp|mediump|highp|flat|smooth)\s+)*`

	vertexInput = regexp.MustCompile(
		`(?m)^\s*(?:layout\s*\([^)]*\)\s*)?(?:attribute|in)\s+` + qualifiers +
			`(float|vec2|vec3|vec4)\s+(\w+)\s*;`)
	vertexOutput = regexp.MustCompile(
		`(?m)^\s*` + qualifiers + `(?:varying|out)\s+` + qualifiers + `\w+\s+(\w+)\s*;`)
	fragmentInput = regexp.MustCompile(
		`(?m)^\s*` + qualifiers + `(?:varying|in)\s+` + qualifiers + `\w+\s+(\w+)\s*;`)
)

var typeArity = map[string]int{"float": 1, "vec2": 2, "vec3": 3, "vec4": 4}

func stripComments(src string) string {
	return lineComment.ReplaceAllString(blockComment.ReplaceAllString(src, ""), "")
}

// Attributes returns the vertex shader attribute declarations as name to arity.
func Attributes(vertex string) map[string]int {
	out := make(map[string]int)
	for _, m := range vertexInput.FindAllStringSubmatch(stripComments(vertex), -1) {
		out[m[2]] = typeArity[m[1]]
	}
	return out
}

// CheckBindings verifies the program against the attribute spec: every
// declared binding must match a shader attribute of the same arity, every
// shader attribute must be fed, and every fragment varying must be written by
// the vertex stage. All problems are reported together.
func CheckBindings(p ShaderProgram, spec feature.AttributeSpec) error {
	declared := Attributes(p.Vertex)
	var errs []error

	bound := make(map[string]bool, len(spec))
	for _, d := range spec {
		input := d.ShaderInput()
		bound[input] = true

		arity, ok := declared[input]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s (attribute %q)", ErrUndeclaredAttribute, input, d.Name))
			continue
		}
		if arity != d.Arity {
			errs = append(errs, fmt.Errorf("%w: %s is %d-component in shader, %d declared", ErrAttributeType, input, arity, d.Arity))
		}
	}

	unbound := make([]string, 0)
	for name := range declared {
		if !bound[name] {
			unbound = append(unbound, name)
		}
	}
	sort.Strings(unbound)
	for _, name := range unbound {
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnboundAttribute, name))
	}

	outputs := make(map[string]bool)
	for _, m := range vertexOutput.FindAllStringSubmatch(stripComments(p.Vertex), -1) {
		outputs[m[1]] = true
	}
	for _, m := range fragmentInput.FindAllStringSubmatch(stripComments(p.Fragment), -1) {
		if !outputs[m[1]] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrVarying, m[1]))
		}
	}

	return errors.Join(errs...)
}
