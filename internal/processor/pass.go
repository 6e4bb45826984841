// Package processor runs the load and build pass over the configured layers
// and produces everything derived from it: GeoJSON, vertex buffers, basemap
// tiles and the quicklook image.
package processor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/woozymasta/windlayer/internal/config"
	"github.com/woozymasta/windlayer/internal/feature"
	"github.com/woozymasta/windlayer/internal/geo"
	"github.com/woozymasta/windlayer/internal/observation"
	"github.com/woozymasta/windlayer/internal/render"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
)

// LayerOutput is the built state of one layer.
type LayerOutput struct {
	Layer    render.Layer
	Features []feature.Feature
	Failures []observation.RecordError
	Buffer   render.Buffer
}

// Pass is the result of loading the source once and building every layer
// from it. Layers never share feature values.
type Pass struct {
	Batch  observation.Batch
	Layers []LayerOutput
	Seed   uint64
}

// Layer returns the output of the named layer.
func (p *Pass) Layer(name string) (*LayerOutput, bool) {
	for i := range p.Layers {
		if p.Layers[i].Layer.Name == name {
			return &p.Layers[i], true
		}
	}
	return nil, false
}

// Bounds returns the source space bounding box of all observations.
func (p *Pass) Bounds() orb.Bound {
	mp := make(orb.MultiPoint, len(p.Batch.Observations))
	for i, o := range p.Batch.Observations {
		mp[i] = orb.Point{o.Position.X, o.Position.Y}
	}
	return mp.Bound()
}

// Run loads the configured source and builds every layer. A load failure
// aborts before any layer is built.
func Run(ctx context.Context, client *http.Client, cfg *config.Config) (*Pass, error) {
	batch, err := observation.Load(ctx, client, cfg.Source)
	if err != nil {
		return nil, err
	}

	for _, f := range batch.Failures {
		log.Warn().
			Int("index", f.Index).
			Str("field", f.Field).
			Err(f.Err).
			Msg("Skipping malformed record")
	}

	seed := uint64(time.Now().UnixNano())
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}

	pass := &Pass{Batch: batch, Seed: seed, Layers: make([]LayerOutput, 0, len(cfg.Layers))}
	for i, layer := range cfg.Layers {
		out, err := buildLayer(batch, layer, rand.New(rand.NewPCG(seed, uint64(i))))
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", layer.Name, err)
		}
		pass.Layers = append(pass.Layers, out)
	}

	log.Info().
		Uint64("seed", seed).
		Int("layers", len(pass.Layers)).
		Int("observations", len(batch.Observations)).
		Msg("Pass complete")

	return pass, nil
}

func buildLayer(batch observation.Batch, layer render.Layer, rnd *rand.Rand) (LayerOutput, error) {
	project, err := geo.ByName(layer.Projection)
	if err != nil {
		return LayerOutput{}, err
	}

	res, err := feature.Build(batch.Observations, layer.Attributes,
		feature.WithProjection(project),
		feature.WithRand(rnd))
	if err != nil {
		return LayerOutput{}, err
	}

	buf, err := render.Pack(res.Features, layer.Attributes)
	if err != nil {
		return LayerOutput{}, err
	}

	for _, f := range res.Failures {
		log.Debug().
			Str("layer", layer.Name).
			Int("index", f.Index).
			Str("field", f.Field).
			Err(f.Err).
			Msg("Record skipped")
	}

	log.Debug().
		Str("layer", layer.Name).
		Int("features", len(res.Features)).
		Int("failures", len(res.Failures)).
		Int("stride", buf.Stride).
		Msg("Layer built")

	return LayerOutput{
		Layer:    layer,
		Features: res.Features,
		Failures: res.Failures,
		Buffer:   buf,
	}, nil
}
