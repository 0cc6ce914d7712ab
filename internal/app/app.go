// Package app builds the process-wide object graph shared by the HTTP server
// and the CLI.
package app

import (
	"context"
	"time"

	"call-audit-go/internal/analysis"
	"call-audit-go/internal/cache"
	"call-audit-go/internal/config"
	"call-audit-go/internal/events"
	"call-audit-go/internal/inference"
	"call-audit-go/internal/logger"
	"call-audit-go/internal/models"
	"call-audit-go/internal/pipeline"
	"call-audit-go/internal/processor"
	"call-audit-go/internal/storage"
	"call-audit-go/internal/transcription"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Cfg         *config.Config
	Log         *logger.Logger

	Models    *models.Pool
	Workers   *pipeline.Pool
	Store     storage.Store
	Publisher *events.Publisher
	Processor *processor.Processor

	closers []func()
}

// New loads every model and connects the configured backends. Model load
// failures are logged and leave the model unavailable; backend connection
// failures are returned.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Application, error) {
	a := &Application{Cfg: cfg, Log: log, StartupTime: time.Now().UTC()}
	appLog := log.WithComponent("application")

	loader := inference.HTTPLoader{
		SpeechURL:      cfg.Models.SpeechURL,
		TextURL:        cfg.Models.InferenceURL,
		APIKey:         cfg.Models.APIKey,
		Language:       cfg.Models.Language,
		BeamSize:       cfg.Models.BeamSize,
		MaxLength:      cfg.Models.MaxLength,
		RequestTimeout: cfg.Models.RequestTimeout,
		LoadTimeout:    cfg.Models.LoadTimeout,
	}
	a.Models = models.Load(ctx, models.SpecsFromConfig(cfg.Models), loader, log)
	a.Workers = pipeline.NewPool(cfg.Pipeline.WorkerPoolSize())

	var backend cache.Cache
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		backend = rc
		appLog.WithField("addr", cfg.Cache.RedisAddr).Info("using redis analysis cache")
	} else {
		backend = cache.NewMemoryCache()
		appLog.Info("using in-memory analysis cache")
	}
	guarded := cache.NewGuarded(backend, cfg.Cache.TTL, log)

	if cfg.Storage.DatabaseURL != "" {
		db, err := storage.ConnectPostgres(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		ps := storage.NewPostgresStore(db)
		a.closers = append(a.closers, ps.Close)
		if err := ps.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.Store = ps
		appLog.Info("using postgres store")
	} else {
		fs, err := storage.NewFileStore(cfg.Storage.AnalysisDir)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Store = fs
		appLog.WithField("dir", fs.Dir()).Info("using file store")
	}

	a.Publisher = events.New(events.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, log)
	a.closers = append(a.closers, func() { _ = a.Publisher.Close() })

	tc := transcription.NewCoordinator(a.Models, a.Workers, transcription.Options{
		MaxChunkDuration: cfg.Pipeline.MaxChunkDuration,
		Concurrency:      cfg.Pipeline.MaxConcurrentTranscriptions,
		Timeout:          cfg.Pipeline.StageTimeout,
		TempDir:          cfg.Pipeline.TempDir,
		FFmpegPath:       cfg.Pipeline.FFmpegPath,
	}, log)
	ac := analysis.NewCoordinator(a.Models, a.Workers, guarded, analysis.Options{
		Concurrency: cfg.Pipeline.MaxConcurrentAnalyses,
		Timeout:     cfg.Pipeline.StageTimeout,
		Categories:  cfg.Models.Categories,
		Tones:       cfg.Models.Tones,
	}, log)
	a.Processor = processor.New(tc, ac, a.Store, a.Publisher, log)

	appLog.WithField("workers", a.Workers.Size()).
		WithField("missing_models", a.Models.Missing(models.Speech, models.Sentiment, models.Summarizer, models.Emotion, models.ZeroShot)).
		Info("application created")
	return a, nil
}

// Close releases backends in reverse order of creation.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	a.Log.WithComponent("application").Info("application shut down")
}
