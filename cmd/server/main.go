package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/woozymasta/windlayer/internal/config"
	"github.com/woozymasta/windlayer/internal/logger"
	"github.com/woozymasta/windlayer/internal/processor"
	"github.com/woozymasta/windlayer/internal/server"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string        `short:"c" long:"config"       env:"CONFIG_FILE"    description:"Path to configuration file" default:"config.yaml"`
	Addr        string        `short:"a" long:"addr"         env:"LISTEN_ADDRESS" description:"Address to listen on"       default:"0.0.0.0"`
	Port        int           `short:"p" long:"port"         env:"LISTEN_PORT"    description:"Port to listen on"          default:"8080"`
	LoadTimeout time.Duration `short:"t" long:"load-timeout" env:"LOAD_TIMEOUT"   description:"Observation fetch timeout"  default:"30s"`
	Seed        *uint64       `short:"s" long:"seed"         env:"SEED"           description:"Random seed for randomized attributes (overrides config)"`
}

func main() {
	// .env is optional, real environment wins
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if opts.Seed != nil {
		cfg.Seed = opts.Seed
	}

	client := &http.Client{Timeout: opts.LoadTimeout}
	ctx, cancel := context.WithTimeout(context.Background(), opts.LoadTimeout)
	pass, err := processor.Run(ctx, client, cfg)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build layers")
	}

	srvCtx := server.NewServerContext(cfg, pass)

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	log.Info().
		Str("addr", listenAddr).
		Int("layers", len(pass.Layers)).
		Uint64("seed", pass.Seed).
		Msg("Web server started")

	if err := http.ListenAndServe(listenAddr, srvCtx.Routes()); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
