package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/woozymasta/windlayer/internal/config"
	"github.com/woozymasta/windlayer/internal/logger"
	"github.com/woozymasta/windlayer/internal/processor"
	"github.com/woozymasta/windlayer/internal/render"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile   string   `short:"c" long:"config"        env:"CONFIG_FILE"  description:"Path to configuration file" default:"config.yaml"`
	Limit        []string `short:"l" long:"limit"         env:"LIMIT_NAMES"  description:"Limit processing to specific layer names"`
	Concurrency  int      `short:"p" long:"concurrency"   env:"CONCURRENCY"  description:"Tile download concurrency" default:"4"`
	ZoomLimit    int      `short:"z" long:"zoom-limit"    env:"ZOOM_LIMIT"   description:"Basemap zoom limit" default:"4"`
	Seed         *uint64  `short:"s" long:"seed"          env:"SEED"         description:"Random seed for randomized attributes (overrides config)"`
	TilesOnly    bool     `short:"t" long:"tiles-only"    description:"Sync basemap tiles only"`
	FeaturesOnly bool     `short:"g" long:"features-only" description:"Write layer outputs only"`
	Preview      bool     `short:"P" long:"preview"       description:"Write a quicklook preview.webp"`
	Force        bool     `short:"f" long:"force"         description:"Force overwrite of existing files"`
	FastCheck    bool     `short:"F" long:"fast-check"    description:"Skip basemap sync if the tile directory exists"`
}

func main() {
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if opts.Seed != nil {
		cfg.Seed = opts.Seed
	}

	processTiles := !cfg.Basemap.Disabled
	processFeatures := true
	if opts.TilesOnly && !opts.FeaturesOnly {
		processFeatures = false
	} else if opts.FeaturesOnly && !opts.TilesOnly {
		processTiles = false
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
		Timeout: 15 * time.Second,
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	if cfg.Basemap.ZoomLimit <= 0 {
		if opts.ZoomLimit <= 0 {
			cfg.Basemap.ZoomLimit = 4
		} else {
			cfg.Basemap.ZoomLimit = opts.ZoomLimit
		}
	}

	// Filter layers if limit is set
	if len(opts.Limit) > 0 {
		layers := make([]render.Layer, 0, len(opts.Limit))
		seen := make(map[string]bool)

		for _, name := range opts.Limit {
			if seen[name] {
				continue
			}
			seen[name] = true

			if l, ok := cfg.Layer(name); ok {
				layers = append(layers, l)
			} else {
				log.Error().
					Str("name", name).
					Msg("Layer specified in --limit not found in configuration")
			}
		}
		cfg.Layers = layers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info().
		Str("source", cfg.Source.String()).
		Int("layers", len(cfg.Layers)).
		Bool("fast_check", opts.FastCheck).
		Msg("Starting loader")

	pass, err := processor.Run(ctx, client, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build layers")
	}

	if processFeatures {
		if err := processor.WriteOutputs(cfg.OutputDir, pass, opts.Force); err != nil {
			log.Fatal().Err(err).Msg("Failed to write layer outputs")
		}
	}

	if opts.Preview {
		writePreview(filepath.Join(cfg.OutputDir, "preview.webp"), pass)
	}

	if processTiles {
		syncTiles(ctx, client, cfg, pass, opts)
	}

	log.Info().Msg("Loader finished successfully")
}

func writePreview(path string, pass *processor.Pass) {
	img, err := processor.RenderPreview(pass, processor.PreviewOptions{})
	if err != nil {
		log.Error().Err(err).Msg("Failed to render preview")
		return
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to create output directory")
		return
	}

	f, err := os.Create(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to create preview")
		return
	}
	defer func() { _ = f.Close() }()

	if err := processor.EncodePreview(f, img); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to encode preview")
		return
	}

	log.Info().Str("path", path).Msg("Preview written")
}

func syncTiles(ctx context.Context, client *http.Client, cfg *config.Config, pass *processor.Pass, opts Options) {
	if opts.FastCheck {
		if _, err := os.Stat(cfg.Basemap.Dir); err == nil {
			log.Info().
				Str("dir", cfg.Basemap.Dir).
				Msg("Tile directory exists, skipping (fast-check)")
			return
		}
	}

	if len(pass.Batch.Observations) == 0 {
		log.Warn().Msg("No observations, skipping basemap sync")
		return
	}

	_, err := processor.SyncTiles(ctx, client, pass.Bounds(), processor.TileOptions{
		URLTemplate: cfg.Basemap.URL,
		Dir:         cfg.Basemap.Dir,
		UserAgent:   cfg.Basemap.UserAgent,
		ZoomLimit:   cfg.Basemap.ZoomLimit,
		Concurrency: opts.Concurrency,
		Padding:     1,
		Force:       opts.Force,
	})
	if err != nil {
		log.Error().Err(err).Msg("Basemap sync interrupted")
	}
}
