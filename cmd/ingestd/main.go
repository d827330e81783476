package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Lunexa-AI/right-line-sub002/internal/cache"
	"github.com/Lunexa-AI/right-line-sub002/internal/config"
	"github.com/Lunexa-AI/right-line-sub002/internal/database"
	"github.com/Lunexa-AI/right-line-sub002/internal/orchestrator"
	"github.com/Lunexa-AI/right-line-sub002/internal/rabbitmq"
	"github.com/Lunexa-AI/right-line-sub002/internal/storage"
	"github.com/Lunexa-AI/right-line-sub002/pkg/structurer"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to config file")
	maxDocs := flag.Int("max-docs", 0, "cap on documents to process, 0 for all")
	batchSize := flag.Int("batch-size", 0, "documents per batch, 0 for config value")
	concurrency := flag.Int("concurrency", 0, "max concurrent uploads, 0 for config value")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	setupLogger(cfg.Logging, *verbose)

	// A missing credential is the one error fatal before any batch starts
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		os.Exit(2)
	}

	if *batchSize > 0 {
		cfg.Ingest.BatchSize = *batchSize
	}
	if *concurrency > 0 {
		cfg.Ingest.MaxConcurrentUploads = *concurrency
	}

	store, err := storage.NewS3Store(cfg.S3)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize object store")
		os.Exit(1)
	}

	// Redis is optional; without it artifact reads skip the cache
	var artifactCache cache.Cache
	if cfg.Structurer.Cache && cfg.Redis.Address != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, continuing without artifact cache")
		} else {
			artifactCache = redisCache
			defer redisCache.Close()
		}
	}

	svc := structurer.New(cfg.Structurer, artifactCache)
	defer svc.Close()

	opts := orchestrator.Options{
		OutputPrefix: cfg.S3.OutputPrefix,
	}

	if cfg.MongoDB.URI != "" {
		runs, err := database.New(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Run store unavailable, run record will not be persisted")
		} else {
			opts.Runs = runs
		}
	}

	if cfg.RabbitMQ.Host != "" {
		rabbit, err := rabbitmq.NewClientFromConfig(cfg.RabbitMQ)
		if err != nil {
			log.Warn().Err(err).Msg("RabbitMQ unavailable, events will not be published")
		} else {
			defer rabbit.Close()
			publisher, err := rabbitmq.NewEventPublisher(rabbit, cfg.RabbitMQ.Exchange)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to declare event exchange")
			} else {
				opts.Events = publisher
			}
		}
	}

	ctx := context.Background()

	keys, err := store.ListObjects(ctx, cfg.S3.SourcePrefix)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list source documents")
		os.Exit(1)
	}
	if *maxDocs > 0 && len(keys) > *maxDocs {
		keys = keys[:*maxDocs]
	}
	if len(keys) == 0 {
		log.Warn().Str("prefix", cfg.S3.SourcePrefix).Msg("No source documents found")
		os.Exit(0)
	}

	engine := orchestrator.NewEngine(svc, store, cfg.Ingest, opts)

	stats, err := engine.Run(ctx, keys)
	if err != nil {
		log.Error().Err(err).Msg("Ingestion run failed")
		os.Exit(1)
	}

	fmt.Println(stats.Summary())
}

func setupLogger(cfg config.LoggingConfig, verbose bool) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
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
