package feature

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/woozymasta/windlayer/internal/observation"
)

// Derivation names usable in AttributeDef.Derive.
const (
	DeriveSpeed           = "speed"
	DeriveHeading         = "heading"
	DeriveRotation        = "rotation"
	DeriveCoords          = "coords"
	DeriveWindVector      = "wind_vector"
	DeriveConstant        = "constant"
	DeriveRandomColor     = "random_color"
	DeriveHemisphereColor = "hemisphere_color"
	DeriveSpeedColor      = "speed_color"
)

// DefaultSpeedRange is the speed mapped to full red by speed_color.
const DefaultSpeedRange = 60.0

// ErrNoRandSource is returned when a spec uses a randomized derivation and
// no random source was supplied.
var ErrNoRandSource = errors.New("randomized attribute requires a random source")

// Input is what a derivation sees for one observation.
type Input struct {
	Rand        *rand.Rand
	Def         AttributeDef
	Observation observation.Observation
	Position    [2]float64 // projected
}

// Derivation computes one attribute value from an observation.
type Derivation struct {
	Fn func(in Input) ([]float64, error)
	// Random marks derivations that draw from Input.Rand.
	Random bool
}

var builtin = map[string]Derivation{
	DeriveSpeed:           {Fn: deriveSpeed},
	DeriveHeading:         {Fn: deriveHeading},
	DeriveRotation:        {Fn: deriveRotation},
	DeriveCoords:          {Fn: deriveCoords},
	DeriveWindVector:      {Fn: deriveWindVector},
	DeriveConstant:        {Fn: deriveConstant},
	DeriveRandomColor:     {Fn: deriveRandomColor, Random: true},
	DeriveHemisphereColor: {Fn: deriveHemisphereColor},
	DeriveSpeedColor:      {Fn: deriveSpeedColor},
}

func missing(in Input, field string) error {
	return &observation.RecordError{
		Index: in.Observation.Index,
		Field: field,
		Err:   observation.ErrMissingField,
	}
}

func speed(in Input) (float64, error) {
	if in.Observation.Wind.Speed == nil {
		return 0, missing(in, "wind.speed")
	}
	return *in.Observation.Wind.Speed, nil
}

func heading(in Input) (float64, error) {
	if in.Observation.Wind.HeadingDeg == nil {
		return 0, missing(in, "wind.heading_deg")
	}
	return *in.Observation.Wind.HeadingDeg, nil
}

func deriveSpeed(in Input) ([]float64, error) {
	v, err := speed(in)
	if err != nil {
		return nil, err
	}
	return []float64{v}, nil
}

func deriveHeading(in Input) ([]float64, error) {
	v, err := heading(in)
	if err != nil {
		return nil, err
	}
	return []float64{v}, nil
}

func deriveRotation(in Input) ([]float64, error) {
	v, err := heading(in)
	if err != nil {
		return nil, err
	}
	return []float64{v * math.Pi / 180}, nil
}

func deriveCoords(in Input) ([]float64, error) {
	return []float64{in.Position[0], in.Position[1]}, nil
}

// deriveWindVector returns the u, v components the wind blows towards.
func deriveWindVector(in Input) ([]float64, error) {
	s, err := speed(in)
	if err != nil {
		return nil, err
	}
	h, err := heading(in)
	if err != nil {
		return nil, err
	}
	rad := h * math.Pi / 180
	return []float64{-s * math.Sin(rad), -s * math.Cos(rad)}, nil
}

func deriveConstant(in Input) ([]float64, error) {
	return append([]float64(nil), in.Def.Value...), nil
}

func deriveRandomColor(in Input) ([]float64, error) {
	alpha := 1.0
	if len(in.Def.Value) > 0 {
		alpha = in.Def.Value[0]
	}
	return []float64{in.Rand.Float64(), in.Rand.Float64(), in.Rand.Float64(), alpha}, nil
}

// deriveHemisphereColor colors by projected x: red right of 0.5, blue left
// of 0, gray between.
func deriveHemisphereColor(in Input) ([]float64, error) {
	switch x := in.Position[0]; {
	case x > 0.5:
		return []float64{1, 0, 0, 0.5}, nil
	case x < 0:
		return []float64{0, 0, 1, 0.5}, nil
	default:
		return []float64{0.75, 0.75, 0.75, 1}, nil
	}
}

// deriveSpeedColor ramps from blue at calm to red at Value[0].
func deriveSpeedColor(in Input) ([]float64, error) {
	s, err := speed(in)
	if err != nil {
		return nil, err
	}

	limit := DefaultSpeedRange
	if len(in.Def.Value) > 0 && in.Def.Value[0] > 0 {
		limit = in.Def.Value[0]
	}

	t := math.Max(0, math.Min(1, s/limit))
	return []float64{t, 0, 1 - t, 1}, nil
}
