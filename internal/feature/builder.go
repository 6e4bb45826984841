// Package feature turns observations into renderable point features whose
// attributes bind to shader inputs by name.
package feature

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/woozymasta/windlayer/internal/geo"
	"github.com/woozymasta/windlayer/internal/observation"
)

// ErrArityMismatch reports a derived value whose length differs from the
// declared arity. Values are never truncated or padded.
var ErrArityMismatch = errors.New("arity mismatch")

// ErrMissingField is the observation package sentinel, re-exported for callers
// that only import feature.
var ErrMissingField = observation.ErrMissingField

// Feature is a renderable point. Scalars are one-element slices. Position
// is in render space, LonLat the untransformed source position.
type Feature struct {
	Attributes map[string][]float64 `json:"attributes"`
	Position   [2]float64           `json:"position"`
	LonLat     [2]float64           `json:"lonLat"`
	Index      int                  `json:"index"`
}

// Result holds the features built from one batch and the records skipped.
type Result struct {
	Features []Feature
	Failures []observation.RecordError
}

type options struct {
	project     geo.Projection
	rand        *rand.Rand
	derivations map[string]Derivation
}

// Option configures Build.
type Option func(*options)

// WithProjection sets the transform applied to every position.
func WithProjection(p geo.Projection) Option {
	return func(o *options) {
		if p != nil {
			o.project = p
		}
	}
}

// WithRand supplies the random source for randomized derivations.
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		o.rand = r
	}
}

// WithSeed is WithRand with a PCG source seeded from seed.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed)))
}

// WithDerivation registers an extra derivation for this call only.
func WithDerivation(name string, d Derivation) Option {
	return func(o *options) {
		o.derivations[name] = d
	}
}

// Build derives one feature per observation, in input order. A record that
// fails a derivation is skipped and reported in Result.Failures, so
// len(Features)+len(Failures) == len(observations). The returned error is
// reserved for problems with the spec or options, in which case nothing is
// built.
func Build(observations []observation.Observation, spec AttributeSpec, opts ...Option) (Result, error) {
	o := options{
		project:     geo.Identity,
		derivations: make(map[string]Derivation, len(builtin)),
	}
	for name, d := range builtin {
		o.derivations[name] = d
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := spec.validate(o.derivations); err != nil {
		return Result{}, err
	}
	for _, d := range spec {
		if o.derivations[d.Derive].Random && o.rand == nil {
			return Result{}, fmt.Errorf("attribute %q: %w", d.Name, ErrNoRandSource)
		}
	}

	res := Result{Features: make([]Feature, 0, len(observations))}
	for _, obs := range observations {
		f, err := buildOne(obs, spec, &o)
		if err != nil {
			res.Failures = append(res.Failures, asRecordError(obs.Index, err))
			continue
		}
		res.Features = append(res.Features, f)
	}

	return res, nil
}

func buildOne(obs observation.Observation, spec AttributeSpec, o *options) (Feature, error) {
	x, y := o.project(obs.Position.X, obs.Position.Y)
	f := Feature{
		Index:      obs.Index,
		Position:   [2]float64{x, y},
		LonLat:     [2]float64{obs.Position.X, obs.Position.Y},
		Attributes: make(map[string][]float64, len(spec)),
	}

	for _, d := range spec {
		v, err := o.derivations[d.Derive].Fn(Input{
			Observation: obs,
			Position:    f.Position,
			Def:         d,
			Rand:        o.rand,
		})
		if err != nil {
			return Feature{}, err
		}
		if len(v) != d.Arity {
			return Feature{}, &observation.RecordError{
				Index: obs.Index,
				Field: d.Name,
				Err:   fmt.Errorf("%w: derived %d values, declared %d", ErrArityMismatch, len(v), d.Arity),
			}
		}
		f.Attributes[d.Name] = v
	}

	return f, nil
}

func asRecordError(index int, err error) observation.RecordError {
	var recErr *observation.RecordError
	if errors.As(err, &recErr) {
		return *recErr
	}
	return observation.RecordError{Index: index, Err: err}
}
