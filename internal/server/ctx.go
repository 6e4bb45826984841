package server

import (
	"bytes"
	"image"
	"sync"

	"github.com/woozymasta/windlayer/assets"
	"github.com/woozymasta/windlayer/internal/config"
	"github.com/woozymasta/windlayer/internal/processor"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
)

// tileSize is the edge of the transparent fallback tile.
const tileSize = 256

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config          *config.Config
	Pass            *processor.Pass
	IndexHTML       []byte
	Favicon         []byte
	TransparentTile []byte
	TileDir         string

	previewOnce sync.Once
	preview     []byte
	previewErr  error
}

// NewServerContext wraps a completed pass for serving. Layers with no
// features are kept so the client can still show their failures.
func NewServerContext(cfg *config.Config, pass *processor.Pass) *ServerContext {
	log.Info().Int("layers", len(pass.Layers)).Msg("Initializing server context")

	for _, out := range pass.Layers {
		if len(out.Features) == 0 {
			log.Warn().
				Str("layer", out.Layer.Name).
				Int("failures", len(out.Failures)).
				Msg("Layer has no features")
			continue
		}

		log.Debug().
			Str("layer", out.Layer.Name).
			Int("features", len(out.Features)).
			Bool("shader", out.Layer.Shader != nil).
			Msg("Layer ready")
	}

	tileDir := ""
	if !cfg.Basemap.Disabled {
		tileDir = cfg.Basemap.Dir
	}

	return &ServerContext{
		Config:          cfg,
		Pass:            pass,
		IndexHTML:       assets.Index,
		Favicon:         assets.Favicon,
		TransparentTile: transparentTile(),
		TileDir:         tileDir,
	}
}

// previewImage renders and encodes the quicklook once.
func (s *ServerContext) previewImage() ([]byte, error) {
	s.previewOnce.Do(func() {
		img, err := processor.RenderPreview(s.Pass, processor.PreviewOptions{})
		if err != nil {
			s.previewErr = err
			return
		}
		var buf bytes.Buffer
		if err := processor.EncodePreview(&buf, img); err != nil {
			s.previewErr = err
			return
		}
		s.preview = buf.Bytes()
	})

	return s.preview, s.previewErr
}

func transparentTile() []byte {
	var buf bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, tileSize, tileSize))
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: true}); err != nil {
		log.Error().Err(err).Msg("Failed to encode transparent tile")
		return nil
	}
	return buf.Bytes()
}
