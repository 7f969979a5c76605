package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"songgraph/internal/config"
	"songgraph/internal/enrich"
	"songgraph/internal/env"
	"songgraph/internal/jobs"
	"songgraph/internal/logging"
	"songgraph/internal/orchestrator"
	"songgraph/internal/storage"
	"songgraph/pkg/inference"
	"songgraph/pkg/lyricsovh"
	"songgraph/pkg/spotify"
)

const audioTimeout = 10 * time.Second

// app holds the process-wide configuration and the dependencies built from
// it.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	closer []func()
}

func newApp() (*app, error) {
	var files []string
	if rootFlags.envFile != "" {
		files = append(files, rootFlags.envFile)
	}
	env.LoadEnv(nil, files...)

	cfg, err := config.Load(rootFlags.config)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) Close() {
	for i := len(a.closer) - 1; i >= 0; i-- {
		a.closer[i]()
	}
	_ = a.logger.Sync()
}

func (a *app) s3Config() storage.S3Config {
	m := a.cfg.Storage.MinIO
	return storage.S3Config{
		Endpoint:  m.Endpoint,
		AccessKey: m.AccessKey,
		SecretKey: m.SecretKey,
		UseSSL:    m.UseSSL,
		Region:    m.Region,
		Bucket:    a.cfg.Storage.Bucket,
		Prefix:    a.cfg.Storage.Prefix,
	}
}

// store opens the configured playlist backend.
func (a *app) store(ctx context.Context) (storage.Store, error) {
	backend, err := storage.ParseBackend(a.cfg.Storage.Backend)
	if err != nil {
		return nil, err
	}
	logger := a.logger.Named("storage")

	switch backend {
	case storage.BackendS3:
		s3, err := storage.NewS3Store(a.s3Config(), logger)
		if err != nil {
			return nil, err
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s3, nil
	case storage.BackendPostgres:
		pool, err := storage.NewPostgresPool(ctx, a.cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closer = append(a.closer, pool.Close)
		pg := storage.NewPostgresStore(pool, logger)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return storage.NewFileStore(a.cfg.Storage.PlaylistsDir, logger), nil
	}
}

func (a *app) catalog() *spotify.PlaylistService {
	return spotify.NewPlaylistService(spotify.NewClient(a.cfg.Spotify.ClientID, a.cfg.Spotify.ClientSecret))
}

// pipeline wires the real collaborators into one stage per kind.
func (a *app) pipeline() *enrich.Pipeline {
	w := a.cfg.Workers
	timeout := time.Duration(w.ItemTimeout)
	logger := a.logger.Named("enrich")
	inf := a.cfg.Inference

	tempo := enrich.NewTempoEnricher(
		inference.NewAudioDownloader(audioTimeout),
		inference.NewTempoAnalyzer(inf.TempoAnalyzerURL, timeout),
	)
	lyrics := enrich.NewLyricsEnricher(lyricsovh.NewClient(inf.LyricsBaseURL), time.Duration(w.LyricsThrottle))
	sentiment := enrich.NewSentimentEnricher(inference.NewClassifier("", inf.SentimentModel, inf.HFToken))

	return enrich.NewPipeline(
		enrich.NewStage(tempo, w.Tempo, timeout, logger),
		enrich.NewStage(lyrics, w.Lyrics, timeout, logger),
		enrich.NewStage(sentiment, w.Sentiment, timeout, logger),
		logger,
	)
}

func (a *app) registry() *jobs.Registry {
	return jobs.NewRegistry(jobs.WithTTL(time.Duration(a.cfg.Progress.JobTTL)))
}

func (a *app) orchestrator(ctx context.Context, registry *jobs.Registry, store storage.Store) *orchestrator.Orchestrator {
	return orchestrator.New(ctx, registry, a.pipeline(), a.catalog(),
		orchestrator.WithStore(store),
		orchestrator.WithLogger(a.logger.Named("orchestrator")))
}

func (a *app) sweepInterval() time.Duration {
	ttl := time.Duration(a.cfg.Progress.JobTTL)
	if ttl <= 0 || ttl > time.Minute {
		return time.Minute
	}
	return ttl
}

func requireSet(values map[string]string) error {
	for name, v := range values {
		if v == "" {
			return fmt.Errorf("%s must be set", name)
		}
	}
	return nil
}
