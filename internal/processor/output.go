package processor

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/woozymasta/windlayer/internal/feature"

	"github.com/rs/zerolog/log"
)

// WriteOutputs stores <layer>.geojson and <layer>.bin for every layer under
// dir. Existing files are kept unless force is set.
func WriteOutputs(dir string, pass *Pass, force bool) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	for _, out := range pass.Layers {
		geoPath := filepath.Join(dir, out.Layer.Name+".geojson")
		binPath := filepath.Join(dir, out.Layer.Name+".bin")

		if !force && exists(geoPath) && exists(binPath) {
			log.Debug().Str("layer", out.Layer.Name).Msg("Layer output exists, skipping")
			continue
		}

		if err := saveGeoJSON(geoPath, out.Features); err != nil {
			return err
		}
		if err := os.WriteFile(binPath, out.Buffer.Bytes(), 0644); err != nil {
			return err
		}

		log.Info().
			Str("layer", out.Layer.Name).
			Str("geojson", geoPath).
			Str("buffer", binPath).
			Int("features", len(out.Features)).
			Msg("Layer output written")
	}

	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// saveGeoJSON marshals the features as a collection and writes it to disk.
func saveGeoJSON(path string, features []feature.Feature) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	// We care about write errors on close
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", path).Msg("Failed to close file")
		}
	}()

	return json.NewEncoder(f).Encode(feature.Collection(features))
}
