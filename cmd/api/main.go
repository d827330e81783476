package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Lunexa-AI/right-line-sub002/internal/config"
	"github.com/Lunexa-AI/right-line-sub002/internal/database"
	"github.com/Lunexa-AI/right-line-sub002/internal/server"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	setupLogger(cfg.Logging)

	runs, err := database.New(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to run store")
		os.Exit(1)
	}

	srv := server.New(*cfg, runs)

	log.Info().Int("port", cfg.Port).Msg("Starting status API")
	if err := srv.ListenAndServe(); err != nil {
		log.Error().Err(err).Msg("Server stopped")
		os.Exit(1)
	}
}

func setupLogger(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	switch cfg.Format {
	case "json":
		// JSON is the default for zerolog
	default:
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	log.Logger = log.With().Timestamp().Logger()
}
